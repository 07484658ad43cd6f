package api

import (
	"context"
	"time"

	"betledger/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/mock"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) CreateActivity(ctx context.Context, creator common.Address, content string, choices []string, deadline time.Time, attached *uint256.Int) (int64, error) {
	args := m.Called(ctx, creator, content, choices, deadline, attached)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEngine) FundActivity(ctx context.Context, caller common.Address, activityID int64, attached *uint256.Int) error {
	args := m.Called(ctx, caller, activityID, attached)
	return args.Error(0)
}

func (m *MockEngine) BuyTicket(ctx context.Context, caller common.Address, activityID int64, choiceIndex int, attached *uint256.Int) (int64, error) {
	args := m.Called(ctx, caller, activityID, choiceIndex, attached)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEngine) SettleActivity(ctx context.Context, caller common.Address, activityID int64, winningChoice int) (*models.Settlement, error) {
	args := m.Called(ctx, caller, activityID, winningChoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *MockEngine) ApproveTicket(ctx context.Context, caller common.Address, tokenID int64) error {
	args := m.Called(ctx, caller, tokenID)
	return args.Error(0)
}

func (m *MockEngine) ListTicket(ctx context.Context, seller common.Address, tokenID int64, price *uint256.Int) (*models.Listing, error) {
	args := m.Called(ctx, seller, tokenID, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockEngine) CancelListing(ctx context.Context, caller common.Address, tokenID int64) error {
	args := m.Called(ctx, caller, tokenID)
	return args.Error(0)
}

func (m *MockEngine) BuyListedTicket(ctx context.Context, buyer common.Address, tokenID int64, attached *uint256.Int) error {
	args := m.Called(ctx, buyer, tokenID, attached)
	return args.Error(0)
}

func (m *MockEngine) ActivityExists(ctx context.Context, activityID int64) (bool, error) {
	args := m.Called(ctx, activityID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEngine) GetChoicesCount(ctx context.Context, activityID int64) (int, error) {
	args := m.Called(ctx, activityID)
	return args.Int(0), args.Error(1)
}

func (m *MockEngine) GetActivityTicketIDs(ctx context.Context, activityID int64) ([]int64, error) {
	args := m.Called(ctx, activityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockEngine) GetActivityDetail(ctx context.Context, activityID int64) (*models.ActivityDetail, error) {
	args := m.Called(ctx, activityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ActivityDetail), args.Error(1)
}

func (m *MockEngine) GetTicketInfo(ctx context.Context, tokenID int64) (*models.Ticket, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockEngine) OwnerOf(ctx context.Context, tokenID int64) (common.Address, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *MockEngine) GetTicketsByOwner(ctx context.Context, owner common.Address) ([]*models.Ticket, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Ticket), args.Error(1)
}

func (m *MockEngine) GetListing(ctx context.Context, tokenID int64) (*models.Listing, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockEngine) GetAllListings(ctx context.Context) ([]*models.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}

func (m *MockEngine) GetAllTrades(ctx context.Context) ([]*models.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}

func (m *MockEngine) Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) (*models.Withdrawal, error) {
	args := m.Called(ctx, caller, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockEngine) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uint256.Int), args.Error(1)
}

func (m *MockEngine) GetVaultHistory(ctx context.Context, address common.Address, limit int) ([]*models.VaultHistory, error) {
	args := m.Called(ctx, address, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VaultHistory), args.Error(1)
}
