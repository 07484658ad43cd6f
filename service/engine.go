package service

import (
	"context"
	"errors"
	"time"

	"betledger/models"
	"betledger/observability"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"
)

type engine struct {
	activities ActivityService
	market     MarketplaceService
	vault      VaultService
	queries    QueryService
	metrics    *observability.Metrics
}

// NewEngine wires the ledger services behind a single facade that logs and
// measures every operation. A nil clock uses SystemClock.
func NewEngine(uowFactory UnitOfWorkFactory, payer Payer, metrics *observability.Metrics, clock Clock) Engine {
	return &engine{
		activities: NewActivityService(uowFactory, clock),
		market:     NewMarketplaceService(uowFactory, clock),
		vault:      NewVaultService(uowFactory, payer, clock),
		queries:    NewQueryService(uowFactory),
		metrics:    metrics,
	}
}

// observe logs a mutating operation and records its metrics. Typed failures are
// expected caller errors and log at info; anything else is an error.
func (e *engine) observe(operation string, start time.Time, err error, fields log.Fields) {
	code := ErrorCode(err)
	e.metrics.ObserveOperation(operation, code, time.Since(start))

	entry := log.WithFields(fields).WithFields(log.Fields{
		"operation": operation,
		"outcome":   code,
		"duration":  time.Since(start),
	})
	switch {
	case err == nil:
		entry.Info("Operation completed")
	case IsBusinessError(err):
		entry.WithError(err).Info("Operation rejected")
	default:
		entry.WithError(err).Error("Operation failed")
	}
}

func (e *engine) CreateActivity(ctx context.Context, creator common.Address, content string, choices []string, deadline time.Time, attached *uint256.Int) (int64, error) {
	start := time.Now()
	id, err := e.activities.CreateActivity(ctx, creator, content, choices, deadline, attached)
	e.observe("create_activity", start, err, log.Fields{
		"creator":    creator.Hex(),
		"activityID": id,
		"choices":    len(choices),
	})
	if err == nil {
		e.metrics.AddVolume("fund", attached)
	}
	return id, err
}

func (e *engine) FundActivity(ctx context.Context, caller common.Address, activityID int64, attached *uint256.Int) error {
	start := time.Now()
	err := e.activities.FundActivity(ctx, caller, activityID, attached)
	e.observe("fund_activity", start, err, log.Fields{
		"caller":     caller.Hex(),
		"activityID": activityID,
	})
	if err == nil {
		e.metrics.AddVolume("fund", attached)
	}
	return err
}

func (e *engine) BuyTicket(ctx context.Context, caller common.Address, activityID int64, choiceIndex int, attached *uint256.Int) (int64, error) {
	start := time.Now()
	ticketID, err := e.activities.BuyTicket(ctx, caller, activityID, choiceIndex, attached)
	e.observe("buy_ticket", start, err, log.Fields{
		"caller":      caller.Hex(),
		"activityID":  activityID,
		"choiceIndex": choiceIndex,
		"ticketID":    ticketID,
	})
	if err == nil {
		e.metrics.AddVolume("bet", attached)
	}
	return ticketID, err
}

func (e *engine) SettleActivity(ctx context.Context, caller common.Address, activityID int64, winningChoice int) (*models.Settlement, error) {
	start := time.Now()
	settlement, err := e.activities.SettleActivity(ctx, caller, activityID, winningChoice)
	fields := log.Fields{
		"caller":        caller.Hex(),
		"activityID":    activityID,
		"winningChoice": winningChoice,
	}
	if settlement != nil {
		fields["totalPool"] = settlement.TotalPool.Dec()
		fields["winnerPool"] = settlement.WinnerPool.Dec()
		fields["tickets"] = len(settlement.Payouts)
		fields["refunded"] = settlement.Refunded
	}
	e.observe("settle_activity", start, err, fields)
	if err == nil {
		e.metrics.AddVolume("payout", settlement.TotalPool)
	}
	return settlement, err
}

func (e *engine) ApproveTicket(ctx context.Context, caller common.Address, tokenID int64) error {
	start := time.Now()
	err := e.market.ApproveTicket(ctx, caller, tokenID)
	e.observe("approve_ticket", start, err, log.Fields{
		"caller":   caller.Hex(),
		"ticketID": tokenID,
	})
	return err
}

func (e *engine) ListTicket(ctx context.Context, seller common.Address, tokenID int64, price *uint256.Int) (*models.Listing, error) {
	start := time.Now()
	listing, err := e.market.ListTicket(ctx, seller, tokenID, price)
	fields := log.Fields{
		"seller":   seller.Hex(),
		"ticketID": tokenID,
	}
	if listing != nil {
		fields["listingID"] = listing.ID
		fields["price"] = listing.Price.Dec()
	}
	e.observe("list_ticket", start, err, fields)
	return listing, err
}

func (e *engine) CancelListing(ctx context.Context, caller common.Address, tokenID int64) error {
	start := time.Now()
	err := e.market.CancelListing(ctx, caller, tokenID)
	e.observe("cancel_listing", start, err, log.Fields{
		"caller":   caller.Hex(),
		"ticketID": tokenID,
	})
	return err
}

func (e *engine) BuyListedTicket(ctx context.Context, buyer common.Address, tokenID int64, attached *uint256.Int) error {
	start := time.Now()
	err := e.market.BuyListedTicket(ctx, buyer, tokenID, attached)
	e.observe("buy_listed_ticket", start, err, log.Fields{
		"buyer":    buyer.Hex(),
		"ticketID": tokenID,
	})
	if err == nil {
		e.metrics.AddVolume("sale", attached)
	}
	return err
}

func (e *engine) Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) (*models.Withdrawal, error) {
	start := time.Now()
	withdrawal, err := e.vault.Withdraw(ctx, caller, amount)
	fields := log.Fields{"caller": caller.Hex()}
	if withdrawal != nil {
		fields["withdrawalID"] = withdrawal.ID
		fields["status"] = withdrawal.Status
	}
	e.observe("withdraw", start, err, fields)
	if err == nil || errors.Is(err, ErrWithdrawalUnrecorded) {
		e.metrics.AddVolume("withdraw", amount)
	}
	return withdrawal, err
}

func (e *engine) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	return e.vault.GetBalance(ctx, address)
}

func (e *engine) GetVaultHistory(ctx context.Context, address common.Address, limit int) ([]*models.VaultHistory, error) {
	return e.vault.GetHistory(ctx, address, limit)
}

func (e *engine) ActivityExists(ctx context.Context, activityID int64) (bool, error) {
	return e.queries.ActivityExists(ctx, activityID)
}

func (e *engine) GetChoicesCount(ctx context.Context, activityID int64) (int, error) {
	return e.queries.GetChoicesCount(ctx, activityID)
}

func (e *engine) GetActivityTicketIDs(ctx context.Context, activityID int64) ([]int64, error) {
	return e.queries.GetActivityTicketIDs(ctx, activityID)
}

func (e *engine) GetActivityDetail(ctx context.Context, activityID int64) (*models.ActivityDetail, error) {
	return e.queries.GetActivityDetail(ctx, activityID)
}

func (e *engine) GetTicketInfo(ctx context.Context, tokenID int64) (*models.Ticket, error) {
	return e.queries.GetTicketInfo(ctx, tokenID)
}

func (e *engine) OwnerOf(ctx context.Context, tokenID int64) (common.Address, error) {
	return e.queries.OwnerOf(ctx, tokenID)
}

func (e *engine) GetTicketsByOwner(ctx context.Context, owner common.Address) ([]*models.Ticket, error) {
	return e.queries.GetTicketsByOwner(ctx, owner)
}

func (e *engine) GetListing(ctx context.Context, tokenID int64) (*models.Listing, error) {
	return e.queries.GetListing(ctx, tokenID)
}

func (e *engine) GetAllListings(ctx context.Context) ([]*models.Listing, error) {
	return e.queries.GetAllListings(ctx)
}

func (e *engine) GetAllTrades(ctx context.Context) ([]*models.Listing, error) {
	return e.queries.GetAllTrades(ctx)
}
