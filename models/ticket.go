package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ticket is the non-fungible record of a single bet
type Ticket struct {
	ID          int64          `db:"id"`
	ActivityID  int64          `db:"activity_id"`
	ChoiceIndex int            `db:"choice_index"`
	Amount      *uint256.Int   `db:"amount"`
	Owner       common.Address `db:"owner"`
	Approved    bool           `db:"approved"`
	Claimed     bool           `db:"claimed"`
	Payout      *uint256.Int   `db:"payout"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// IsOwnedBy checks if identity currently owns the ticket
func (t *Ticket) IsOwnedBy(identity common.Address) bool {
	return t.Owner == identity
}

// IsWinner checks if the ticket backed the winning choice
func (t *Ticket) IsWinner(winningChoice int) bool {
	return t.ChoiceIndex == winningChoice
}
