package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"betledger/events"
	"betledger/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const settlementCancelReason = "activity_settled"

type activityService struct {
	uowFactory UnitOfWorkFactory
	now        Clock
}

// NewActivityService creates a new activity service
func NewActivityService(uowFactory UnitOfWorkFactory, clock Clock) ActivityService {
	return &activityService{
		uowFactory: uowFactory,
		now:        clockOrDefault(clock),
	}
}

// CreateActivity registers a new activity seeded with the attached amount
func (s *activityService) CreateActivity(ctx context.Context, creator common.Address, content string, choices []string, deadline time.Time, attached *uint256.Int) (int64, error) {
	if strings.TrimSpace(content) == "" {
		return 0, fmt.Errorf("%w: content cannot be empty", ErrInvalidArgument)
	}
	if len(choices) < 2 {
		return 0, fmt.Errorf("%w: must provide at least 2 choices", ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(choices))
	labels := make([]string, len(choices))
	for i, choice := range choices {
		label := strings.TrimSpace(choice)
		if label == "" {
			return 0, fmt.Errorf("%w: choice %d is empty", ErrInvalidArgument, i)
		}
		if seen[label] {
			return 0, fmt.Errorf("%w: duplicate choice %q", ErrInvalidArgument, label)
		}
		seen[label] = true
		labels[i] = label
	}
	if !deadline.After(s.now()) {
		return 0, fmt.Errorf("%w: deadline must be in the future", ErrInvalidArgument)
	}
	if attached == nil {
		attached = new(uint256.Int)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	activity := &models.Activity{
		Creator:     creator,
		Content:     content,
		ChoiceCount: len(labels),
		Deadline:    deadline.UTC(),
		InitialPool: new(uint256.Int).Set(attached),
		TotalPool:   new(uint256.Int).Set(attached),
	}
	if err := uow.ActivityRepository().Create(ctx, activity, labels); err != nil {
		return 0, fmt.Errorf("failed to create activity: %w", err)
	}

	uow.EventBus().Publish(events.ActivityCreatedEvent{
		ActivityID:  activity.ID,
		Creator:     creator.Hex(),
		Content:     content,
		Choices:     labels,
		Deadline:    activity.Deadline.Unix(),
		InitialPool: attached.Dec(),
	})

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return activity.ID, nil
}

// FundActivity tops up the initial pool without attributing the amount to a choice
func (s *activityService) FundActivity(ctx context.Context, caller common.Address, activityID int64, attached *uint256.Int) error {
	if attached == nil || attached.IsZero() {
		return fmt.Errorf("%w: funding amount must be positive", ErrInvalidArgument)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	activity, err := lockActivity(ctx, uow, activityID)
	if err != nil {
		return err
	}
	if activity.IsSettled() {
		return fmt.Errorf("%w: activity %d", ErrAlreadySettled, activityID)
	}

	newTotal, overflow := new(uint256.Int).AddOverflow(activity.TotalPool, attached)
	if overflow {
		return fmt.Errorf("%w: pool of activity %d would overflow", ErrInvalidArgument, activityID)
	}

	if err := uow.ActivityRepository().AddFunding(ctx, activityID, attached); err != nil {
		return fmt.Errorf("failed to fund activity: %w", err)
	}

	uow.EventBus().Publish(events.ActivityFundedEvent{
		ActivityID: activityID,
		Funder:     caller.Hex(),
		Amount:     attached.Dec(),
		TotalPool:  newTotal.Dec(),
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// BuyTicket accepts a bet on one choice and mints the ticket representing it
func (s *activityService) BuyTicket(ctx context.Context, caller common.Address, activityID int64, choiceIndex int, attached *uint256.Int) (int64, error) {
	if attached == nil || attached.IsZero() {
		return 0, fmt.Errorf("%w: bet amount must be positive", ErrInvalidArgument)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	activity, err := lockActivity(ctx, uow, activityID)
	if err != nil {
		return 0, err
	}
	if activity.IsSettled() {
		return 0, fmt.Errorf("%w: activity %d", ErrAlreadySettled, activityID)
	}
	if !activity.CanAcceptBets(s.now()) {
		return 0, fmt.Errorf("%w: activity %d closed at %s", ErrDeadlinePassed, activityID, activity.Deadline.Format(time.RFC3339))
	}
	if !activity.IsValidChoice(choiceIndex) {
		return 0, fmt.Errorf("%w: choice %d of activity %d", ErrInvalidChoice, choiceIndex, activityID)
	}
	if _, overflow := new(uint256.Int).AddOverflow(activity.TotalPool, attached); overflow {
		return 0, fmt.Errorf("%w: pool of activity %d would overflow", ErrInvalidArgument, activityID)
	}

	if err := uow.ActivityRepository().AddToChoicePool(ctx, activityID, choiceIndex, attached); err != nil {
		return 0, fmt.Errorf("failed to add bet to pool: %w", err)
	}

	ticket, err := MintTicket(ctx, uow, caller, activityID, choiceIndex, attached)
	if err != nil {
		return 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ticket.ID, nil
}

// SettleActivity fixes the winning choice and distributes the pool through the vault.
// Every ticket is marked claimed with its payout, active listings on the activity's
// tickets are cancelled and the creator receives the rounding residue or, when nobody
// backed the winner, the initial pool.
func (s *activityService) SettleActivity(ctx context.Context, caller common.Address, activityID int64, winningChoice int) (*models.Settlement, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	activity, err := lockActivity(ctx, uow, activityID)
	if err != nil {
		return nil, err
	}
	if !activity.IsCreator(caller) {
		return nil, fmt.Errorf("%w: only the creator can settle activity %d", ErrUnauthorized, activityID)
	}
	if activity.IsSettled() {
		return nil, fmt.Errorf("%w: activity %d", ErrAlreadySettled, activityID)
	}
	if !activity.IsValidChoice(winningChoice) {
		return nil, fmt.Errorf("%w: choice %d of activity %d", ErrInvalidChoice, winningChoice, activityID)
	}

	choices, err := uow.ActivityRepository().GetChoices(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get choices: %w", err)
	}
	detail := &models.ActivityDetail{Activity: activity, Choices: choices}
	if err := detail.VerifyPools(); err != nil {
		return nil, err
	}

	tickets, err := uow.TicketRepository().GetByActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}

	settlement, err := CalculateSettlement(activity, detail.PerChoicePool(), tickets, winningChoice)
	if err != nil {
		return nil, err
	}

	now := s.now()

	listings, err := uow.ListingRepository().GetActiveByActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active listings: %w", err)
	}
	for _, listing := range listings {
		listing.Cancel(now)
		if err := uow.ListingRepository().UpdateStatus(ctx, listing); err != nil {
			return nil, fmt.Errorf("failed to cancel listing %d: %w", listing.ID, err)
		}
		uow.EventBus().Publish(events.ListingCancelledEvent{
			ListingID: listing.ID,
			TicketID:  listing.TokenID,
			Seller:    listing.Seller.Hex(),
			Reason:    settlementCancelReason,
		})
	}

	credits := make([]VaultCredit, 0, len(settlement.Payouts)+1)
	for _, payout := range settlement.Payouts {
		if err := uow.TicketRepository().MarkClaimed(ctx, payout.TicketID, payout.Amount); err != nil {
			return nil, fmt.Errorf("failed to mark ticket %d claimed: %w", payout.TicketID, err)
		}

		entryType := models.VaultEntrySettlementPayout
		if payout.IsRefund {
			entryType = models.VaultEntrySettlementRefund
		}
		credits = append(credits, VaultCredit{
			Address:     payout.Owner,
			Amount:      payout.Amount,
			EntryType:   entryType,
			RelatedType: models.RelatedTypeTicket,
			RelatedID:   payout.TicketID,
			Metadata:    map[string]any{"activity_id": activityID},
		})
	}

	creatorEntry := models.VaultEntrySettlementResidue
	if settlement.Refunded {
		creatorEntry = models.VaultEntryCreatorRefund
	}
	credits = append(credits, VaultCredit{
		Address:     activity.Creator,
		Amount:      settlement.CreatorCredit,
		EntryType:   creatorEntry,
		RelatedType: models.RelatedTypeActivity,
		RelatedID:   activityID,
	})

	// Vault rows are locked in address order across concurrent settlements
	sort.SliceStable(credits, func(i, j int) bool {
		return bytes.Compare(credits[i].Address[:], credits[j].Address[:]) < 0
	})
	for _, credit := range credits {
		if err := CreditVault(ctx, uow, credit); err != nil {
			return nil, err
		}
	}

	if err := uow.ActivityRepository().MarkSettled(ctx, activityID, winningChoice, now); err != nil {
		return nil, fmt.Errorf("failed to mark activity settled: %w", err)
	}

	uow.EventBus().Publish(events.ActivitySettledEvent{
		ActivityID:    activityID,
		WinningChoice: winningChoice,
		TotalPool:     settlement.TotalPool.Dec(),
		WinnerPool:    settlement.WinnerPool.Dec(),
		CreatorCredit: settlement.CreatorCredit.Dec(),
		TicketCount:   len(settlement.Payouts),
		Refunded:      settlement.Refunded,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return settlement, nil
}

// lockActivity loads an activity and holds its row lock for the rest of the
// transaction. Every mutation of an activity or its tickets goes through it first.
func lockActivity(ctx context.Context, uow UnitOfWork, activityID int64) (*models.Activity, error) {
	activity, err := uow.ActivityRepository().GetByIDForUpdate(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	if activity == nil {
		return nil, fmt.Errorf("%w: activity %d", ErrNotFound, activityID)
	}
	return activity, nil
}
