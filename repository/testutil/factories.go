package testutil

import (
	"time"

	"betledger/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

var (
	CreatorAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	AliceAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	BobAddr     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	CarolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000ca")
)

// Finney returns n thousandths of an ether in wei
func Finney(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(params.Ether/1000))
}

// CreateTestActivity creates an open activity with the given initial pool
func CreateTestActivity(creator common.Address, choiceCount int, initialPool *uint256.Int) *models.Activity {
	return &models.Activity{
		Creator:     creator,
		Content:     "Who wins the final?",
		ChoiceCount: choiceCount,
		Deadline:    time.Now().Add(24 * time.Hour).UTC().Truncate(time.Microsecond),
		InitialPool: new(uint256.Int).Set(initialPool),
		TotalPool:   new(uint256.Int).Set(initialPool),
	}
}

// ChoiceLabels returns n distinct labels
func ChoiceLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = string(rune('A' + i))
	}
	return labels
}

// CreateTestTicket creates an unsaved ticket
func CreateTestTicket(activityID int64, choiceIndex int, amount *uint256.Int, owner common.Address) *models.Ticket {
	return &models.Ticket{
		ActivityID:  activityID,
		ChoiceIndex: choiceIndex,
		Amount:      amount,
		Owner:       owner,
	}
}

// CreateTestListing creates an unsaved active listing
func CreateTestListing(tokenID int64, seller common.Address, price *uint256.Int) *models.Listing {
	return &models.Listing{
		TokenID: tokenID,
		Seller:  seller,
		Price:   price,
		Status:  models.ListingStatusActive,
	}
}
