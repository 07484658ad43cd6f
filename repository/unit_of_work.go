package repository

import (
	"context"
	"errors"
	"fmt"

	"betledger/database"
	"betledger/events"
	"betledger/service"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const notStartedPanic = "unit of work not started - call Begin() first"

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	activityRepo     service.ActivityRepository
	ticketRepo       service.TicketRepository
	listingRepo      service.ListingRepository
	vaultRepo        service.VaultRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new read-write transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	return u.begin(ctx, database.WriteTxOptions)
}

// BeginSnapshot starts a read-only repeatable read transaction
func (u *unitOfWork) BeginSnapshot(ctx context.Context) error {
	return u.begin(ctx, database.SnapshotTxOptions)
}

func (u *unitOfWork) begin(ctx context.Context, opts pgx.TxOptions) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.activityRepo = newActivityRepositoryWithTx(tx)
	u.ticketRepo = newTicketRepositoryWithTx(tx)
	u.listingRepo = newListingRepositoryWithTx(tx)
	u.vaultRepo = newVaultRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and delivers the queued events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		u.transactionalBus.Discard()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if err := u.transactionalBus.Flush(u.ctx); err != nil {
		log.WithError(err).Error("Failed to flush events after commit")
	}

	return nil
}

// Rollback rolls back the transaction. Safe to call after Commit.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

// ActivityRepository returns the activity repository for this unit of work
func (u *unitOfWork) ActivityRepository() service.ActivityRepository {
	if u.activityRepo == nil {
		panic(notStartedPanic)
	}
	return u.activityRepo
}

// TicketRepository returns the ticket repository for this unit of work
func (u *unitOfWork) TicketRepository() service.TicketRepository {
	if u.ticketRepo == nil {
		panic(notStartedPanic)
	}
	return u.ticketRepo
}

// ListingRepository returns the listing repository for this unit of work
func (u *unitOfWork) ListingRepository() service.ListingRepository {
	if u.listingRepo == nil {
		panic(notStartedPanic)
	}
	return u.listingRepo
}

// VaultRepository returns the vault repository for this unit of work
func (u *unitOfWork) VaultRepository() service.VaultRepository {
	if u.vaultRepo == nil {
		panic(notStartedPanic)
	}
	return u.vaultRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic(notStartedPanic)
	}
	return u.transactionalBus
}
