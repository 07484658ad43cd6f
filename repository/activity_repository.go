package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"betledger/database"
	"betledger/models"
	"betledger/service"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const activityColumns = `
	id, creator, content, choice_count, deadline, initial_pool, total_pool,
	settled, winning_choice, created_at, settled_at
`

// ActivityRepository implements activity data access
type ActivityRepository struct {
	q queryable
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{q: db.Pool}
}

// newActivityRepositoryWithTx creates a new activity repository with a transaction
func newActivityRepositoryWithTx(tx queryable) service.ActivityRepository {
	return &ActivityRepository{q: tx}
}

// Create inserts the activity and its zeroed choice pools
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity, labels []string) error {
	query := `
		INSERT INTO activities (creator, content, choice_count, deadline, initial_pool, total_pool)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		addressParam(activity.Creator),
		activity.Content,
		activity.ChoiceCount,
		activity.Deadline,
		database.Numeric(activity.InitialPool),
		database.Numeric(activity.TotalPool),
	).Scan(&activity.ID, &activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}

	choiceQuery := `
		INSERT INTO activity_choices (activity_id, choice_index, label, pool)
		VALUES
	`
	args := make([]any, 0, len(labels)*3)
	for i, label := range labels {
		if i > 0 {
			choiceQuery += ","
		}
		paramIndex := i * 3
		choiceQuery += fmt.Sprintf(" ($%d, $%d, $%d, 0)", paramIndex+1, paramIndex+2, paramIndex+3)
		args = append(args, activity.ID, i, label)
	}

	if _, err := r.q.Exec(ctx, choiceQuery, args...); err != nil {
		return fmt.Errorf("failed to create choices for activity %d: %w", activity.ID, err)
	}

	return nil
}

// GetByID retrieves an activity by its id
func (r *ActivityRepository) GetByID(ctx context.Context, id int64) (*models.Activity, error) {
	return r.get(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves an activity and locks its row
func (r *ActivityRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Activity, error) {
	return r.get(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1 FOR UPDATE`, id)
}

func (r *ActivityRepository) get(ctx context.Context, query string, id int64) (*models.Activity, error) {
	activity, err := scanActivity(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity %d: %w", id, err)
	}
	return activity, nil
}

func scanActivity(row pgx.Row) (*models.Activity, error) {
	var activity models.Activity
	var creator string
	var initialPool, totalPool pgtype.Numeric

	err := row.Scan(
		&activity.ID,
		&creator,
		&activity.Content,
		&activity.ChoiceCount,
		&activity.Deadline,
		&initialPool,
		&totalPool,
		&activity.Settled,
		&activity.WinningChoice,
		&activity.CreatedAt,
		&activity.SettledAt,
	)
	if err != nil {
		return nil, err
	}

	if activity.Creator, err = parseAddress(creator); err != nil {
		return nil, err
	}
	if err := scanAmounts(map[*pgtype.Numeric]**uint256.Int{
		&initialPool: &activity.InitialPool,
		&totalPool:   &activity.TotalPool,
	}); err != nil {
		return nil, fmt.Errorf("failed to decode pools of activity %d: %w", activity.ID, err)
	}

	return &activity, nil
}

// Exists reports whether an activity exists
func (r *ActivityRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM activities WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check activity %d: %w", id, err)
	}
	return exists, nil
}

// GetChoices returns the choices of an activity ordered by index
func (r *ActivityRepository) GetChoices(ctx context.Context, id int64) ([]*models.ActivityChoice, error) {
	query := `
		SELECT activity_id, choice_index, label, pool
		FROM activity_choices
		WHERE activity_id = $1
		ORDER BY choice_index
	`

	rows, err := r.q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query choices of activity %d: %w", id, err)
	}
	defer rows.Close()

	var choices []*models.ActivityChoice
	for rows.Next() {
		var choice models.ActivityChoice
		var pool pgtype.Numeric
		if err := rows.Scan(&choice.ActivityID, &choice.ChoiceIndex, &choice.Label, &pool); err != nil {
			return nil, fmt.Errorf("failed to scan choice: %w", err)
		}
		if choice.Pool, err = database.Uint256(pool); err != nil {
			return nil, fmt.Errorf("failed to decode choice pool: %w", err)
		}
		choices = append(choices, &choice)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating choices: %w", err)
	}

	return choices, nil
}

// AddFunding adds amount to the initial and total pool
func (r *ActivityRepository) AddFunding(ctx context.Context, id int64, amount *uint256.Int) error {
	query := `
		UPDATE activities
		SET initial_pool = initial_pool + $2, total_pool = total_pool + $2
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, id, database.Numeric(amount))
	if err != nil {
		return fmt.Errorf("failed to fund activity %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("activity %d not found", id)
	}
	return nil
}

// AddToChoicePool adds amount to one choice pool and to the total pool
func (r *ActivityRepository) AddToChoicePool(ctx context.Context, id int64, choiceIndex int, amount *uint256.Int) error {
	result, err := r.q.Exec(ctx, `
		UPDATE activity_choices
		SET pool = pool + $3
		WHERE activity_id = $1 AND choice_index = $2
	`, id, choiceIndex, database.Numeric(amount))
	if err != nil {
		return fmt.Errorf("failed to update choice %d of activity %d: %w", choiceIndex, id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("choice %d of activity %d not found", choiceIndex, id)
	}

	result, err = r.q.Exec(ctx, `
		UPDATE activities
		SET total_pool = total_pool + $2
		WHERE id = $1
	`, id, database.Numeric(amount))
	if err != nil {
		return fmt.Errorf("failed to update total pool of activity %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("activity %d not found", id)
	}
	return nil
}

// MarkSettled flips the one-way settled flag
func (r *ActivityRepository) MarkSettled(ctx context.Context, id int64, winningChoice int, settledAt time.Time) error {
	query := `
		UPDATE activities
		SET settled = TRUE, winning_choice = $2, settled_at = $3
		WHERE id = $1 AND settled = FALSE
	`

	result, err := r.q.Exec(ctx, query, id, winningChoice, settledAt)
	if err != nil {
		return fmt.Errorf("failed to settle activity %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("activity %d not found or already settled", id)
	}
	return nil
}
