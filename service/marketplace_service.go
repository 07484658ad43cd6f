package service

import (
	"context"
	"fmt"

	"betledger/events"
	"betledger/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type marketplaceService struct {
	uowFactory UnitOfWorkFactory
	now        Clock
}

// NewMarketplaceService creates a new marketplace service
func NewMarketplaceService(uowFactory UnitOfWorkFactory, clock Clock) MarketplaceService {
	return &marketplaceService{
		uowFactory: uowFactory,
		now:        clockOrDefault(clock),
	}
}

// ApproveTicket lets the owner hand custody of a ticket to the engine
func (s *marketplaceService) ApproveTicket(ctx context.Context, caller common.Address, tokenID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ticket, err := uow.TicketRepository().GetByIDForUpdate(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return fmt.Errorf("%w: ticket %d", ErrNotFound, tokenID)
	}
	if !ticket.IsOwnedBy(caller) {
		return fmt.Errorf("%w: %s does not own ticket %d", ErrUnauthorized, caller.Hex(), tokenID)
	}

	if !ticket.Approved {
		if err := uow.TicketRepository().SetApproved(ctx, tokenID, true); err != nil {
			return fmt.Errorf("failed to approve ticket: %w", err)
		}
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListTicket offers an approved ticket for sale while its activity is unsettled
func (s *marketplaceService) ListTicket(ctx context.Context, seller common.Address, tokenID int64, price *uint256.Int) (*models.Listing, error) {
	if price == nil || price.IsZero() {
		return nil, fmt.Errorf("%w: listing price must be positive", ErrInvalidArgument)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	activity, ticket, err := lockTicket(ctx, uow, tokenID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: ticket %d", ErrNotFound, tokenID)
	}
	if !ticket.IsOwnedBy(seller) {
		return nil, fmt.Errorf("%w: %s does not own ticket %d", ErrUnauthorized, seller.Hex(), tokenID)
	}
	if !ticket.Approved {
		return nil, fmt.Errorf("%w: ticket %d is not approved for sale", ErrUnauthorized, tokenID)
	}

	active, err := uow.ListingRepository().GetActiveByToken(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active listing: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: ticket %d in listing %d", ErrAlreadyListed, tokenID, active.ID)
	}
	if activity.IsSettled() {
		return nil, fmt.Errorf("%w: activity %d", ErrAlreadySettled, activity.ID)
	}

	listing := &models.Listing{
		TokenID: tokenID,
		Seller:  seller,
		Price:   new(uint256.Int).Set(price),
		Status:  models.ListingStatusActive,
	}
	if err := uow.ListingRepository().Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	uow.EventBus().Publish(events.ListingCreatedEvent{
		ListingID: listing.ID,
		TicketID:  tokenID,
		Seller:    seller.Hex(),
		Price:     price.Dec(),
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return listing, nil
}

// CancelListing withdraws the latest listing of a ticket. Only its seller may cancel it.
func (s *marketplaceService) CancelListing(ctx context.Context, caller common.Address, tokenID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	_, ticket, err := lockTicket(ctx, uow, tokenID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return fmt.Errorf("%w: ticket %d was never listed", ErrListingNotActive, tokenID)
	}

	listing, err := uow.ListingRepository().GetLatestByToken(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("failed to get listing: %w", err)
	}
	if listing == nil {
		return fmt.Errorf("%w: ticket %d was never listed", ErrListingNotActive, tokenID)
	}
	if listing.Seller != caller {
		return fmt.Errorf("%w: %s is not the seller of listing %d", ErrUnauthorized, caller.Hex(), listing.ID)
	}
	if !listing.IsActive() {
		return fmt.Errorf("%w: listing %d is %s", ErrListingNotActive, listing.ID, listing.Status)
	}

	listing.Cancel(s.now())
	if err := uow.ListingRepository().UpdateStatus(ctx, listing); err != nil {
		return fmt.Errorf("failed to cancel listing: %w", err)
	}

	uow.EventBus().Publish(events.ListingCancelledEvent{
		ListingID: listing.ID,
		TicketID:  tokenID,
		Seller:    caller.Hex(),
		Reason:    "seller_cancelled",
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// BuyListedTicket pays exactly the listing price, moves the ticket to the buyer and
// credits the full price to the seller's vault, all in one transaction.
func (s *marketplaceService) BuyListedTicket(ctx context.Context, buyer common.Address, tokenID int64, attached *uint256.Int) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	_, ticket, err := lockTicket(ctx, uow, tokenID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return fmt.Errorf("%w: ticket %d is not listed", ErrListingNotActive, tokenID)
	}

	listing, err := uow.ListingRepository().GetActiveByToken(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("failed to get active listing: %w", err)
	}
	if listing == nil {
		return fmt.Errorf("%w: ticket %d is not listed", ErrListingNotActive, tokenID)
	}
	if attached == nil || !attached.Eq(listing.Price) {
		paid := "0"
		if attached != nil {
			paid = attached.Dec()
		}
		return fmt.Errorf("%w: listing %d costs %s, got %s", ErrInsufficientPayment, listing.ID, listing.Price.Dec(), paid)
	}
	if buyer == listing.Seller {
		return fmt.Errorf("%w: seller cannot buy their own listing %d", ErrInvalidArgument, listing.ID)
	}

	if err := TransferTicket(ctx, uow, ticket, listing.Seller, buyer); err != nil {
		return err
	}

	listing.Complete(buyer, s.now())
	if err := uow.ListingRepository().UpdateStatus(ctx, listing); err != nil {
		return fmt.Errorf("failed to complete listing: %w", err)
	}

	if err := CreditVault(ctx, uow, VaultCredit{
		Address:     listing.Seller,
		Amount:      listing.Price,
		EntryType:   models.VaultEntrySaleProceeds,
		RelatedType: models.RelatedTypeListing,
		RelatedID:   listing.ID,
		Metadata:    map[string]any{"ticket_id": tokenID, "buyer": buyer.Hex()},
	}); err != nil {
		return err
	}

	uow.EventBus().Publish(events.ListingCompletedEvent{
		ListingID: listing.ID,
		TicketID:  tokenID,
		Seller:    listing.Seller.Hex(),
		Buyer:     buyer.Hex(),
		Price:     listing.Price.Dec(),
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// lockTicket takes the activity lock and then the ticket lock, in that order.
// A missing ticket is returned as nil so callers can pick their own failure.
func lockTicket(ctx context.Context, uow UnitOfWork, tokenID int64) (*models.Activity, *models.Ticket, error) {
	ticket, err := uow.TicketRepository().GetByID(ctx, tokenID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, nil, nil
	}

	activity, err := lockActivity(ctx, uow, ticket.ActivityID)
	if err != nil {
		return nil, nil, err
	}

	ticket, err = uow.TicketRepository().GetByIDForUpdate(ctx, tokenID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock ticket: %w", err)
	}
	return activity, ticket, nil
}
