package repository

import (
	"context"
	"errors"
	"fmt"

	"betledger/database"
	"betledger/models"
	"betledger/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const listingColumns = `
	l.id, l.token_id, l.seller, l.price, l.status, l.buyer, l.created_at, l.closed_at
`

// ListingRepository implements marketplace listing data access
type ListingRepository struct {
	q queryable
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db *database.DB) *ListingRepository {
	return &ListingRepository{q: db.Pool}
}

// newListingRepositoryWithTx creates a new listing repository with a transaction
func newListingRepositoryWithTx(tx queryable) service.ListingRepository {
	return &ListingRepository{q: tx}
}

// Create inserts a new listing
func (r *ListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	query := `
		INSERT INTO listings (token_id, seller, price, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		listing.TokenID,
		addressParam(listing.Seller),
		database.Numeric(listing.Price),
		listing.Status,
	).Scan(&listing.ID, &listing.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	return nil
}

// GetLatestByToken returns the most recent listing of a ticket
func (r *ListingRepository) GetLatestByToken(ctx context.Context, tokenID int64) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings l
		WHERE l.token_id = $1
		ORDER BY l.id DESC
		LIMIT 1
	`
	return r.get(ctx, query, tokenID)
}

// GetActiveByToken returns the active listing of a ticket
func (r *ListingRepository) GetActiveByToken(ctx context.Context, tokenID int64) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings l
		WHERE l.token_id = $1 AND l.status = 'active'
		FOR UPDATE
	`
	return r.get(ctx, query, tokenID)
}

func (r *ListingRepository) get(ctx context.Context, query string, tokenID int64) (*models.Listing, error) {
	listing, err := scanListing(r.q.QueryRow(ctx, query, tokenID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing for ticket %d: %w", tokenID, err)
	}
	return listing, nil
}

func scanListing(row pgx.Row) (*models.Listing, error) {
	var listing models.Listing
	var seller string
	var buyer *string
	var price pgtype.Numeric

	err := row.Scan(
		&listing.ID,
		&listing.TokenID,
		&seller,
		&price,
		&listing.Status,
		&buyer,
		&listing.CreatedAt,
		&listing.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	if listing.Seller, err = parseAddress(seller); err != nil {
		return nil, err
	}
	if listing.Buyer, err = parseNullableAddress(buyer); err != nil {
		return nil, err
	}
	if listing.Price, err = database.Uint256(price); err != nil {
		return nil, fmt.Errorf("failed to decode price of listing %d: %w", listing.ID, err)
	}

	return &listing, nil
}

func (r *ListingRepository) list(ctx context.Context, query string, args ...any) ([]*models.Listing, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	listings := []*models.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return listings, nil
}

// GetActiveByActivity returns the active listings on tickets of an activity
func (r *ListingRepository) GetActiveByActivity(ctx context.Context, activityID int64) ([]*models.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings l
		JOIN tickets t ON t.id = l.token_id
		WHERE t.activity_id = $1 AND l.status = 'active'
		ORDER BY l.id
		FOR UPDATE OF l
	`
	return r.list(ctx, query, activityID)
}

// UpdateStatus closes a listing. Only active listings can change state.
func (r *ListingRepository) UpdateStatus(ctx context.Context, listing *models.Listing) error {
	var buyer *string
	if listing.Buyer != nil {
		b := addressParam(*listing.Buyer)
		buyer = &b
	}

	query := `
		UPDATE listings
		SET status = $2, buyer = $3, closed_at = $4
		WHERE id = $1 AND status = 'active'
	`

	result, err := r.q.Exec(ctx, query, listing.ID, listing.Status, buyer, listing.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to update listing %d: %w", listing.ID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("listing %d not found or already closed", listing.ID)
	}
	return nil
}

// GetAll returns every listing in creation order
func (r *ListingRepository) GetAll(ctx context.Context) ([]*models.Listing, error) {
	return r.list(ctx, `SELECT `+listingColumns+` FROM listings l ORDER BY l.id`)
}

// GetCompleted returns every completed listing in creation order
func (r *ListingRepository) GetCompleted(ctx context.Context) ([]*models.Listing, error) {
	return r.list(ctx, `SELECT `+listingColumns+` FROM listings l WHERE l.status = 'completed' ORDER BY l.id`)
}
