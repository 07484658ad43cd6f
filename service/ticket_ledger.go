package service

import (
	"context"
	"fmt"

	"betledger/events"
	"betledger/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MintTicket issues a new ticket for a bet. The caller is responsible for
// validating the activity and adding the amount to its choice pool.
func MintTicket(ctx context.Context, uow UnitOfWork, owner common.Address, activityID int64, choiceIndex int, amount *uint256.Int) (*models.Ticket, error) {
	ticket := &models.Ticket{
		ActivityID:  activityID,
		ChoiceIndex: choiceIndex,
		Amount:      new(uint256.Int).Set(amount),
		Owner:       owner,
	}

	if err := uow.TicketRepository().Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to mint ticket: %w", err)
	}

	uow.EventBus().Publish(events.TicketMintedEvent{
		TicketID:    ticket.ID,
		ActivityID:  activityID,
		ChoiceIndex: choiceIndex,
		Owner:       owner.Hex(),
		Amount:      amount.Dec(),
	})

	return ticket, nil
}

// TransferTicket moves a ticket from its current owner to a new one and clears
// any custody approval granted by the previous owner.
func TransferTicket(ctx context.Context, uow UnitOfWork, ticket *models.Ticket, from, to common.Address) error {
	if !ticket.IsOwnedBy(from) {
		return fmt.Errorf("%w: %s does not own ticket %d", ErrUnauthorized, from.Hex(), ticket.ID)
	}

	if err := uow.TicketRepository().UpdateOwner(ctx, ticket.ID, to); err != nil {
		return fmt.Errorf("failed to transfer ticket %d: %w", ticket.ID, err)
	}
	ticket.Owner = to
	ticket.Approved = false

	uow.EventBus().Publish(events.TicketTransferredEvent{
		TicketID: ticket.ID,
		From:     from.Hex(),
		To:       to.Hex(),
	})

	return nil
}
