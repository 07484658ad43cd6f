package repository

import (
	"context"
	"errors"
	"fmt"

	"betledger/database"
	"betledger/models"
	"betledger/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const ticketColumns = `
	id, activity_id, choice_index, amount, owner, approved, claimed, payout, created_at, updated_at
`

// TicketRepository implements ticket data access
type TicketRepository struct {
	q queryable
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{q: db.Pool}
}

// newTicketRepositoryWithTx creates a new ticket repository with a transaction
func newTicketRepositoryWithTx(tx queryable) service.TicketRepository {
	return &TicketRepository{q: tx}
}

// Create mints a ticket row
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (activity_id, choice_index, amount, owner, approved)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		ticket.ActivityID,
		ticket.ChoiceIndex,
		database.Numeric(ticket.Amount),
		addressParam(ticket.Owner),
		ticket.Approved,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	return nil
}

// GetByID retrieves a ticket by its id
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	return r.get(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a ticket and locks its row
func (r *TicketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Ticket, error) {
	return r.get(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id)
}

func (r *TicketRepository) get(ctx context.Context, query string, id int64) (*models.Ticket, error) {
	ticket, err := scanTicket(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket %d: %w", id, err)
	}
	return ticket, nil
}

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var ticket models.Ticket
	var owner string
	var amount, payout pgtype.Numeric

	err := row.Scan(
		&ticket.ID,
		&ticket.ActivityID,
		&ticket.ChoiceIndex,
		&amount,
		&owner,
		&ticket.Approved,
		&ticket.Claimed,
		&payout,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ticket.Owner, err = parseAddress(owner); err != nil {
		return nil, err
	}
	if ticket.Amount, err = database.Uint256(amount); err != nil {
		return nil, fmt.Errorf("failed to decode amount of ticket %d: %w", ticket.ID, err)
	}
	if ticket.Payout, err = database.NullableUint256(payout); err != nil {
		return nil, fmt.Errorf("failed to decode payout of ticket %d: %w", ticket.ID, err)
	}

	return &ticket, nil
}

func (r *TicketRepository) list(ctx context.Context, query string, args ...any) ([]*models.Ticket, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, nil
}

// GetByActivity returns every ticket of an activity in mint order
func (r *TicketRepository) GetByActivity(ctx context.Context, activityID int64) ([]*models.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE activity_id = $1 ORDER BY id`, activityID)
}

// GetIDsByActivity returns the ticket ids of an activity in mint order
func (r *TicketRepository) GetIDsByActivity(ctx context.Context, activityID int64) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM tickets WHERE activity_id = $1 ORDER BY id`, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket ids of activity %d: %w", activityID, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect ticket ids of activity %d: %w", activityID, err)
	}

	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// GetByOwner returns the tickets currently owned by an identity
func (r *TicketRepository) GetByOwner(ctx context.Context, owner common.Address) ([]*models.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE owner = $1 ORDER BY id`, addressParam(owner))
}

// UpdateOwner reassigns a ticket and clears its approval
func (r *TicketRepository) UpdateOwner(ctx context.Context, id int64, owner common.Address) error {
	query := `
		UPDATE tickets
		SET owner = $2, approved = FALSE, updated_at = NOW()
		WHERE id = $1
	`

	return r.exec(ctx, id, query, id, addressParam(owner))
}

// SetApproved grants or revokes engine custody of a ticket
func (r *TicketRepository) SetApproved(ctx context.Context, id int64, approved bool) error {
	query := `
		UPDATE tickets
		SET approved = $2, updated_at = NOW()
		WHERE id = $1
	`

	return r.exec(ctx, id, query, id, approved)
}

// MarkClaimed records the settlement payout of a ticket
func (r *TicketRepository) MarkClaimed(ctx context.Context, id int64, payout *uint256.Int) error {
	query := `
		UPDATE tickets
		SET claimed = TRUE, payout = $2, updated_at = NOW()
		WHERE id = $1 AND claimed = FALSE
	`

	return r.exec(ctx, id, query, id, database.Numeric(payout))
}

func (r *TicketRepository) exec(ctx context.Context, id int64, query string, args ...any) error {
	result, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update ticket %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("ticket %d not found or already claimed", id)
	}
	return nil
}
