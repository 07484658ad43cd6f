package service

import (
	"context"
	"time"

	"betledger/events"
	"betledger/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ActivityRepository defines the interface for activity data access
type ActivityRepository interface {
	// Create inserts the activity and one zero pool per choice label, filling in ID and CreatedAt
	Create(ctx context.Context, activity *models.Activity, labels []string) error

	// GetByID retrieves an activity, nil when it does not exist
	GetByID(ctx context.Context, id int64) (*models.Activity, error)

	// GetByIDForUpdate retrieves an activity and locks its row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Activity, error)

	// Exists reports whether an activity with the id exists
	Exists(ctx context.Context, id int64) (bool, error)

	// GetChoices returns the choices of an activity ordered by index
	GetChoices(ctx context.Context, id int64) ([]*models.ActivityChoice, error)

	// AddFunding adds amount to both the initial and the total pool
	AddFunding(ctx context.Context, id int64, amount *uint256.Int) error

	// AddToChoicePool adds amount to one choice pool and to the total pool
	AddToChoicePool(ctx context.Context, id int64, choiceIndex int, amount *uint256.Int) error

	// MarkSettled flips the settled flag and records the winning choice
	MarkSettled(ctx context.Context, id int64, winningChoice int, settledAt time.Time) error
}

// TicketRepository defines the interface for ticket data access
type TicketRepository interface {
	// Create inserts a ticket, filling in ID and timestamps
	Create(ctx context.Context, ticket *models.Ticket) error

	// GetByID retrieves a ticket, nil when it does not exist
	GetByID(ctx context.Context, id int64) (*models.Ticket, error)

	// GetByIDForUpdate retrieves a ticket and locks its row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Ticket, error)

	// GetByActivity returns every ticket of an activity ordered by id
	GetByActivity(ctx context.Context, activityID int64) ([]*models.Ticket, error)

	// GetIDsByActivity returns the ticket ids of an activity in mint order
	GetIDsByActivity(ctx context.Context, activityID int64) ([]int64, error)

	// GetByOwner returns the tickets currently owned by an identity
	GetByOwner(ctx context.Context, owner common.Address) ([]*models.Ticket, error)

	// UpdateOwner reassigns a ticket and clears its approval
	UpdateOwner(ctx context.Context, id int64, owner common.Address) error

	// SetApproved grants or revokes engine custody of a ticket
	SetApproved(ctx context.Context, id int64, approved bool) error

	// MarkClaimed records the settlement payout of a ticket
	MarkClaimed(ctx context.Context, id int64, payout *uint256.Int) error
}

// ListingRepository defines the interface for marketplace listing data access
type ListingRepository interface {
	// Create inserts a listing, filling in ID and CreatedAt
	Create(ctx context.Context, listing *models.Listing) error

	// GetLatestByToken returns the most recent listing for a ticket, nil if it was never listed
	GetLatestByToken(ctx context.Context, tokenID int64) (*models.Listing, error)

	// GetActiveByToken returns the active listing for a ticket, nil if there is none
	GetActiveByToken(ctx context.Context, tokenID int64) (*models.Listing, error)

	// GetActiveByActivity returns the active listings on tickets of an activity
	GetActiveByActivity(ctx context.Context, activityID int64) ([]*models.Listing, error)

	// UpdateStatus persists the status, buyer and closed time of a listing
	UpdateStatus(ctx context.Context, listing *models.Listing) error

	// GetAll returns every listing regardless of status
	GetAll(ctx context.Context) ([]*models.Listing, error)

	// GetCompleted returns every completed listing
	GetCompleted(ctx context.Context) ([]*models.Listing, error)
}

// VaultRepository defines the interface for withdrawable balances, their history and withdrawals
type VaultRepository interface {
	// GetBalance returns the balance of an identity, zero if it was never credited
	GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error)

	// Credit atomically adds amount and returns the new balance
	Credit(ctx context.Context, address common.Address, amount *uint256.Int) (*uint256.Int, error)

	// Debit atomically subtracts amount when the balance covers it.
	// It returns the new balance, or ok=false without changes when the balance is too low.
	Debit(ctx context.Context, address common.Address, amount *uint256.Int) (balance *uint256.Int, ok bool, err error)

	// RecordHistory appends a vault history entry
	RecordHistory(ctx context.Context, history *models.VaultHistory) error

	// GetHistory returns the latest history entries of an identity, newest first
	GetHistory(ctx context.Context, address common.Address, limit int) ([]*models.VaultHistory, error)

	// CreateWithdrawal inserts a withdrawal, filling in ID and CreatedAt
	CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error

	// UpdateWithdrawal persists the status, failure reason and completion time of a withdrawal
	UpdateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error

	// GetWithdrawal retrieves a withdrawal, nil when it does not exist
	GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error)
}

// EventPublisher queues events for delivery after the transaction commits
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork groups repositories sharing one database transaction
type UnitOfWork interface {
	// Begin starts a read-write transaction
	Begin(ctx context.Context) error

	// BeginSnapshot starts a read-only transaction in which every statement
	// observes the same committed state
	BeginSnapshot(ctx context.Context) error

	Commit() error
	Rollback() error

	ActivityRepository() ActivityRepository
	TicketRepository() TicketRepository
	ListingRepository() ListingRepository
	VaultRepository() VaultRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// Payer moves withdrawn funds out of the engine
type Payer interface {
	Transfer(ctx context.Context, withdrawal *models.Withdrawal) error
}

// ActivityService defines activity creation, funding, betting and settlement
type ActivityService interface {
	// CreateActivity registers a new activity and returns its id
	CreateActivity(ctx context.Context, creator common.Address, content string, choices []string, deadline time.Time, attached *uint256.Int) (int64, error)

	// FundActivity adds attached to the activity's initial pool
	FundActivity(ctx context.Context, caller common.Address, activityID int64, attached *uint256.Int) error

	// BuyTicket places a bet and mints a ticket to the caller
	BuyTicket(ctx context.Context, caller common.Address, activityID int64, choiceIndex int, attached *uint256.Int) (int64, error)

	// SettleActivity fixes the winning choice and credits every payout to the vault
	SettleActivity(ctx context.Context, caller common.Address, activityID int64, winningChoice int) (*models.Settlement, error)
}

// MarketplaceService defines the secondary market for tickets
type MarketplaceService interface {
	// ApproveTicket grants the engine custody of a ticket so it can be listed
	ApproveTicket(ctx context.Context, caller common.Address, tokenID int64) error

	// ListTicket offers a ticket for sale at a fixed price
	ListTicket(ctx context.Context, seller common.Address, tokenID int64, price *uint256.Int) (*models.Listing, error)

	// CancelListing withdraws the caller's active listing
	CancelListing(ctx context.Context, caller common.Address, tokenID int64) error

	// BuyListedTicket pays for a listed ticket and takes ownership of it
	BuyListedTicket(ctx context.Context, buyer common.Address, tokenID int64, attached *uint256.Int) error
}

// VaultService defines access to withdrawable balances
type VaultService interface {
	// Withdraw debits the caller's balance and transfers the amount out
	Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) (*models.Withdrawal, error)

	GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error)

	GetHistory(ctx context.Context, address common.Address, limit int) ([]*models.VaultHistory, error)
}

// QueryService defines the read-only views over engine state
type QueryService interface {
	ActivityExists(ctx context.Context, activityID int64) (bool, error)
	GetChoicesCount(ctx context.Context, activityID int64) (int, error)
	GetActivityTicketIDs(ctx context.Context, activityID int64) ([]int64, error)
	GetActivityDetail(ctx context.Context, activityID int64) (*models.ActivityDetail, error)
	GetTicketInfo(ctx context.Context, tokenID int64) (*models.Ticket, error)
	OwnerOf(ctx context.Context, tokenID int64) (common.Address, error)
	GetTicketsByOwner(ctx context.Context, owner common.Address) ([]*models.Ticket, error)
	GetListing(ctx context.Context, tokenID int64) (*models.Listing, error)
	GetAllListings(ctx context.Context) ([]*models.Listing, error)
	GetAllTrades(ctx context.Context) ([]*models.Listing, error)
}

// Engine is the single entry point for every ledger operation
type Engine interface {
	ActivityService
	MarketplaceService
	QueryService

	Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) (*models.Withdrawal, error)
	GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error)
	GetVaultHistory(ctx context.Context, address common.Address, limit int) ([]*models.VaultHistory, error)
}
