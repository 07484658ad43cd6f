package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ListingStatus represents the state of a marketplace listing
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusCancelled ListingStatus = "cancelled"
	ListingStatusCompleted ListingStatus = "completed"
)

// Listing is an offer to sell one ticket at a fixed price.
// A listing leaves the active state exactly once and is never reopened.
type Listing struct {
	ID        int64           `db:"id"`
	TokenID   int64           `db:"token_id"`
	Seller    common.Address  `db:"seller"`
	Price     *uint256.Int    `db:"price"`
	Status    ListingStatus   `db:"status"`
	Buyer     *common.Address `db:"buyer"`
	CreatedAt time.Time       `db:"created_at"`
	ClosedAt  *time.Time      `db:"closed_at"`
}

// IsActive checks if the listing can still be bought or cancelled
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

// Cancel closes an active listing without a trade
func (l *Listing) Cancel(at time.Time) {
	l.Status = ListingStatusCancelled
	l.ClosedAt = &at
}

// Complete closes an active listing with a trade to buyer
func (l *Listing) Complete(buyer common.Address, at time.Time) {
	l.Status = ListingStatusCompleted
	l.Buyer = &buyer
	l.ClosedAt = &at
}
