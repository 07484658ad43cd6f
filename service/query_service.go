package service

import (
	"context"
	"fmt"

	"betledger/models"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type queryService struct {
	uowFactory UnitOfWorkFactory
}

// NewQueryService creates a new read-only query service.
// Every query runs in its own snapshot transaction.
func NewQueryService(uowFactory UnitOfWorkFactory) QueryService {
	return &queryService{uowFactory: uowFactory}
}

func (s *queryService) snapshot(ctx context.Context) (UnitOfWork, error) {
	uow := s.uowFactory.Create()
	if err := uow.BeginSnapshot(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return uow, nil
}

func (s *queryService) ActivityExists(ctx context.Context, activityID int64) (bool, error) {
	uow, err := s.snapshot(ctx)
	if err != nil {
		return false, err
	}
	defer uow.Rollback()

	exists, err := uow.ActivityRepository().Exists(ctx, activityID)
	if err != nil {
		return false, fmt.Errorf("failed to check activity: %w", err)
	}
	return exists, nil
}

func (s *queryService) GetChoicesCount(ctx context.Context, activityID int64) (int, error) {
	uow, err := s.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	defer uow.Rollback()

	activity, err := getActivity(ctx, uow, activityID)
	if err != nil {
		return 0, err
	}
	return activity.ChoiceCount, nil
}

func (s *queryService) GetActivityTicketIDs(ctx context.Context, activityID int64) ([]int64, error) {
	uow, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if _, err := getActivity(ctx, uow, activityID); err != nil {
		return nil, err
	}

	ids, err := uow.TicketRepository().GetIDsByActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket ids: %w", err)
	}
	return ids, nil
}

// GetActivityDetail returns the activity, its per-choice pools and its ticket ids
// as one consistent view
func (s *queryService) GetActivityDetail(ctx context.Context, activityID int64) (*models.ActivityDetail, error) {
	uow, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	activity, err := getActivity(ctx, uow, activityID)
	if err != nil {
		return nil, err
	}

	choices, err := uow.ActivityRepository().GetChoices(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get choices: %w", err)
	}

	ids, err := uow.TicketRepository().GetIDsByActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket ids: %w", err)
	}

	detail := &models.ActivityDetail{
		Activity:  activity,
		Choices:   choices,
		TicketIDs: ids,
	}
	if err := detail.VerifyPools(); err != nil {
		log.WithFields(log.Fields{
			"activityID": activityID,
			"error":      err,
		}).Error("Activity pools are inconsistent")
	}
	return detail, nil
}

func (s *queryService) GetTicketInfo(ctx context.Context, tokenID int64) (*models.Ticket, error) {
	uow, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	return getTicket(ctx, uow, tokenID)
}

func (s *queryService) OwnerOf(ctx context.Context, tokenID int64) (common.Address, error) {
	ticket, err := s.GetTicketInfo(ctx, tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return ticket.Owner, nil
}

func (s *queryService) GetTicketsByOwner(ctx context.Context, owner common.Address) ([]*models.Ticket, error) {
	uow, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	tickets, err := uow.TicketRepository().GetByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets by owner: %w", err)
	}
	return tickets, nil
}

// GetListing returns the latest listing of a ticket, whatever its status
func (s *queryService) GetListing(ctx context.Context, tokenID int64) (*models.Listing, error) {
	uow, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	listing, err := uow.ListingRepository().GetLatestByToken(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	if listing == nil {
		return nil, fmt.Errorf("%w: listing for ticket %d", ErrNotFound, tokenID)
	}
	return listing, nil
}

func (s *queryService) GetAllListings(ctx context.Context) ([]*models.Listing, error) {
	uow, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	listings, err := uow.ListingRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get listings: %w", err)
	}
	return listings, nil
}

func (s *queryService) GetAllTrades(ctx context.Context) ([]*models.Listing, error) {
	uow, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	trades, err := uow.ListingRepository().GetCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	return trades, nil
}

func getActivity(ctx context.Context, uow UnitOfWork, activityID int64) (*models.Activity, error) {
	activity, err := uow.ActivityRepository().GetByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	if activity == nil {
		return nil, fmt.Errorf("%w: activity %d", ErrNotFound, activityID)
	}
	return activity, nil
}

func getTicket(ctx context.Context, uow UnitOfWork, tokenID int64) (*models.Ticket, error) {
	ticket, err := uow.TicketRepository().GetByID(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: ticket %d", ErrNotFound, tokenID)
	}
	return ticket, nil
}
