package service

import (
	"context"
	"time"

	"betledger/events"
	"betledger/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/mock"
)

// MockActivityRepository is a mock implementation of ActivityRepository
type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) Create(ctx context.Context, activity *models.Activity, labels []string) error {
	args := m.Called(ctx, activity, labels)
	return args.Error(0)
}

func (m *MockActivityRepository) GetByID(ctx context.Context, id int64) (*models.Activity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Activity), args.Error(1)
}

func (m *MockActivityRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Activity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Activity), args.Error(1)
}

func (m *MockActivityRepository) Exists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockActivityRepository) GetChoices(ctx context.Context, id int64) ([]*models.ActivityChoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ActivityChoice), args.Error(1)
}

func (m *MockActivityRepository) AddFunding(ctx context.Context, id int64, amount *uint256.Int) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockActivityRepository) AddToChoicePool(ctx context.Context, id int64, choiceIndex int, amount *uint256.Int) error {
	args := m.Called(ctx, id, choiceIndex, amount)
	return args.Error(0)
}

func (m *MockActivityRepository) MarkSettled(ctx context.Context, id int64, winningChoice int, settledAt time.Time) error {
	args := m.Called(ctx, id, winningChoice, settledAt)
	return args.Error(0)
}

// MockTicketRepository is a mock implementation of TicketRepository
type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByActivity(ctx context.Context, activityID int64) ([]*models.Ticket, error) {
	args := m.Called(ctx, activityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetIDsByActivity(ctx context.Context, activityID int64) ([]int64, error) {
	args := m.Called(ctx, activityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockTicketRepository) GetByOwner(ctx context.Context, owner common.Address) ([]*models.Ticket, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Ticket), args.Error(1)
}

func (m *MockTicketRepository) UpdateOwner(ctx context.Context, id int64, owner common.Address) error {
	args := m.Called(ctx, id, owner)
	return args.Error(0)
}

func (m *MockTicketRepository) SetApproved(ctx context.Context, id int64, approved bool) error {
	args := m.Called(ctx, id, approved)
	return args.Error(0)
}

func (m *MockTicketRepository) MarkClaimed(ctx context.Context, id int64, payout *uint256.Int) error {
	args := m.Called(ctx, id, payout)
	return args.Error(0)
}

// MockListingRepository is a mock implementation of ListingRepository
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepository) GetLatestByToken(ctx context.Context, tokenID int64) (*models.Listing, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) GetActiveByToken(ctx context.Context, tokenID int64) (*models.Listing, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingRepository) GetActiveByActivity(ctx context.Context, activityID int64) ([]*models.Listing, error) {
	args := m.Called(ctx, activityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}

func (m *MockListingRepository) UpdateStatus(ctx context.Context, listing *models.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *MockListingRepository) GetAll(ctx context.Context) ([]*models.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}

func (m *MockListingRepository) GetCompleted(ctx context.Context) ([]*models.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Listing), args.Error(1)
}

// MockVaultRepository is a mock implementation of VaultRepository
type MockVaultRepository struct {
	mock.Mock
}

func (m *MockVaultRepository) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uint256.Int), args.Error(1)
}

func (m *MockVaultRepository) Credit(ctx context.Context, address common.Address, amount *uint256.Int) (*uint256.Int, error) {
	args := m.Called(ctx, address, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uint256.Int), args.Error(1)
}

func (m *MockVaultRepository) Debit(ctx context.Context, address common.Address, amount *uint256.Int) (*uint256.Int, bool, error) {
	args := m.Called(ctx, address, amount)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*uint256.Int), args.Bool(1), args.Error(2)
}

func (m *MockVaultRepository) RecordHistory(ctx context.Context, history *models.VaultHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockVaultRepository) GetHistory(ctx context.Context, address common.Address, limit int) ([]*models.VaultHistory, error) {
	args := m.Called(ctx, address, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VaultHistory), args.Error(1)
}

func (m *MockVaultRepository) CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error {
	args := m.Called(ctx, withdrawal)
	return args.Error(0)
}

func (m *MockVaultRepository) UpdateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error {
	args := m.Called(ctx, withdrawal)
	return args.Error(0)
}

func (m *MockVaultRepository) GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockPayer is a mock implementation of Payer
type MockPayer struct {
	mock.Mock
}

func (m *MockPayer) Transfer(ctx context.Context, withdrawal *models.Withdrawal) error {
	args := m.Called(ctx, withdrawal)
	return args.Error(0)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return whatever was set with SetRepositories and are not recorded as calls.
type MockUnitOfWork struct {
	mock.Mock
	activityRepo ActivityRepository
	ticketRepo   TicketRepository
	listingRepo  ListingRepository
	vaultRepo    VaultRepository
	eventBus     EventPublisher
}

// SetRepositories sets the repositories handed out by the unit of work
func (m *MockUnitOfWork) SetRepositories(activityRepo ActivityRepository, ticketRepo TicketRepository, listingRepo ListingRepository, vaultRepo VaultRepository) {
	m.activityRepo = activityRepo
	m.ticketRepo = ticketRepo
	m.listingRepo = listingRepo
	m.vaultRepo = vaultRepo
}

// SetEventBus sets the publisher returned by EventBus
func (m *MockUnitOfWork) SetEventBus(eventBus EventPublisher) {
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) BeginSnapshot(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) ActivityRepository() ActivityRepository {
	return m.activityRepo
}

func (m *MockUnitOfWork) TicketRepository() TicketRepository {
	return m.ticketRepo
}

func (m *MockUnitOfWork) ListingRepository() ListingRepository {
	return m.listingRepo
}

func (m *MockUnitOfWork) VaultRepository() VaultRepository {
	return m.vaultRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
