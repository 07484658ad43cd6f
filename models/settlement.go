package models

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TicketPayout is the amount a single ticket receives at settlement
type TicketPayout struct {
	TicketID int64
	Owner    common.Address
	Amount   *uint256.Int
	IsWinner bool
	IsRefund bool
}

// Settlement describes how the total pool of an activity is distributed
type Settlement struct {
	ActivityID    int64
	WinningChoice int
	TotalPool     *uint256.Int
	WinnerPool    *uint256.Int
	Payouts       []TicketPayout
	// CreatorCredit is the amount owed to the creator: the rounding residue
	// when there are winners, or the initial pool when the winner pool is empty.
	CreatorCredit *uint256.Int
	Residue       *uint256.Int
	Refunded      bool
}

// TotalDistributed sums every ticket payout and the creator credit
func (s *Settlement) TotalDistributed() *uint256.Int {
	total := new(uint256.Int).Set(s.CreatorCredit)
	for _, p := range s.Payouts {
		total.Add(total, p.Amount)
	}
	return total
}
