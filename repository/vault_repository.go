package repository

import (
	"context"
	"encoding/json"
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

// VaultRepository implements balance, history and withdrawal data access
type VaultRepository struct {
	q queryable
}

// NewVaultRepository creates a new vault repository
func NewVaultRepository(db *database.DB) *VaultRepository {
	return &VaultRepository{q: db.Pool}
}

// newVaultRepositoryWithTx creates a new vault repository with a transaction
func newVaultRepositoryWithTx(tx queryable) service.VaultRepository {
	return &VaultRepository{q: tx}
}

// GetBalance returns the withdrawable balance, zero for unknown identities
func (r *VaultRepository) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	var balance pgtype.Numeric
	err := r.q.QueryRow(ctx, `SELECT balance FROM vault_balances WHERE address = $1`, addressParam(address)).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", address.Hex(), err)
	}

	v, err := database.Uint256(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balance of %s: %w", address.Hex(), err)
	}
	return v, nil
}

// Credit adds amount to the balance in a single statement
func (r *VaultRepository) Credit(ctx context.Context, address common.Address, amount *uint256.Int) (*uint256.Int, error) {
	query := `
		INSERT INTO vault_balances (address, balance)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE
		SET balance = vault_balances.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance
	`

	var balance pgtype.Numeric
	if err := r.q.QueryRow(ctx, query, addressParam(address), database.Numeric(amount)).Scan(&balance); err != nil {
		return nil, fmt.Errorf("failed to credit %s: %w", address.Hex(), err)
	}

	v, err := database.Uint256(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balance of %s: %w", address.Hex(), err)
	}
	return v, nil
}

// Debit subtracts amount only when the balance covers it
func (r *VaultRepository) Debit(ctx context.Context, address common.Address, amount *uint256.Int) (*uint256.Int, bool, error) {
	query := `
		UPDATE vault_balances
		SET balance = balance - $2, updated_at = NOW()
		WHERE address = $1 AND balance >= $2
		RETURNING balance
	`

	var balance pgtype.Numeric
	err := r.q.QueryRow(ctx, query, addressParam(address), database.Numeric(amount)).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to debit %s: %w", address.Hex(), err)
	}

	v, err := database.Uint256(balance)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode balance of %s: %w", address.Hex(), err)
	}
	return v, true, nil
}

// RecordHistory appends a vault history entry
func (r *VaultRepository) RecordHistory(ctx context.Context, history *models.VaultHistory) error {
	var metadata []byte
	if len(history.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(history.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal history metadata: %w", err)
		}
	}

	query := `
		INSERT INTO vault_history (
			address, direction, amount, balance_before, balance_after,
			entry_type, related_type, related_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		addressParam(history.Address),
		history.Direction,
		database.Numeric(history.Amount),
		database.Numeric(history.BalanceBefore),
		database.Numeric(history.BalanceAfter),
		history.EntryType,
		history.RelatedType,
		history.RelatedID,
		metadata,
	).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record vault history: %w", err)
	}

	return nil
}

// GetHistory returns the latest entries of an identity, newest first
func (r *VaultRepository) GetHistory(ctx context.Context, address common.Address, limit int) ([]*models.VaultHistory, error) {
	query := `
		SELECT id, address, direction, amount, balance_before, balance_after,
		       entry_type, related_type, related_id, metadata, created_at
		FROM vault_history
		WHERE address = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, addressParam(address), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault history: %w", err)
	}
	defer rows.Close()

	histories := []*models.VaultHistory{}
	for rows.Next() {
		var h models.VaultHistory
		var addr string
		var amount, before, after pgtype.Numeric
		var metadata []byte

		err := rows.Scan(
			&h.ID,
			&addr,
			&h.Direction,
			&amount,
			&before,
			&after,
			&h.EntryType,
			&h.RelatedType,
			&h.RelatedID,
			&metadata,
			&h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vault history: %w", err)
		}

		if h.Address, err = parseAddress(addr); err != nil {
			return nil, err
		}
		if err := scanAmounts(map[*pgtype.Numeric]**uint256.Int{
			&amount: &h.Amount,
			&before: &h.BalanceBefore,
			&after:  &h.BalanceAfter,
		}); err != nil {
			return nil, fmt.Errorf("failed to decode vault history %d: %w", h.ID, err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &h.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata of vault history %d: %w", h.ID, err)
			}
		}

		histories = append(histories, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vault history: %w", err)
	}

	return histories, nil
}

// CreateWithdrawal inserts a withdrawal
func (r *VaultRepository) CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (address, amount, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		addressParam(withdrawal.Address),
		database.Numeric(withdrawal.Amount),
		withdrawal.Status,
	).Scan(&withdrawal.ID, &withdrawal.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}

	return nil
}

// UpdateWithdrawal resolves a pending withdrawal
func (r *VaultRepository) UpdateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error {
	query := `
		UPDATE withdrawals
		SET status = $2, failure_reason = $3, completed_at = $4
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query,
		withdrawal.ID,
		withdrawal.Status,
		withdrawal.FailureReason,
		withdrawal.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal %d: %w", withdrawal.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal %d not found or already resolved", withdrawal.ID)
	}
	return nil
}

// GetWithdrawal retrieves a withdrawal by id
func (r *VaultRepository) GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	query := `
		SELECT id, address, amount, status, failure_reason, created_at, completed_at
		FROM withdrawals
		WHERE id = $1
	`

	var w models.Withdrawal
	var addr string
	var amount pgtype.Numeric
	err := r.q.QueryRow(ctx, query, id).Scan(
		&w.ID,
		&addr,
		&amount,
		&w.Status,
		&w.FailureReason,
		&w.CreatedAt,
		&w.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %d: %w", id, err)
	}

	if w.Address, err = parseAddress(addr); err != nil {
		return nil, err
	}
	if w.Amount, err = database.Uint256(amount); err != nil {
		return nil, fmt.Errorf("failed to decode amount of withdrawal %d: %w", id, err)
	}

	return &w, nil
}
