package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// VaultDirection tells whether a vault entry added or removed funds
type VaultDirection string

const (
	VaultDirectionCredit VaultDirection = "credit"
	VaultDirectionDebit  VaultDirection = "debit"
)

// VaultEntryType represents the reason for a vault balance change
type VaultEntryType string

const (
	VaultEntrySettlementPayout   VaultEntryType = "settlement_payout"
	VaultEntrySettlementRefund   VaultEntryType = "settlement_refund"
	VaultEntrySettlementResidue  VaultEntryType = "settlement_residue"
	VaultEntryCreatorRefund      VaultEntryType = "creator_refund"
	VaultEntrySaleProceeds       VaultEntryType = "sale_proceeds"
	VaultEntryWithdrawal         VaultEntryType = "withdrawal"
	VaultEntryWithdrawalReversal VaultEntryType = "withdrawal_reversal"
)

// RelatedType represents what kind of record a vault entry's related_id points at
type RelatedType string

const (
	RelatedTypeActivity   RelatedType = "activity"
	RelatedTypeTicket     RelatedType = "ticket"
	RelatedTypeListing    RelatedType = "listing"
	RelatedTypeWithdrawal RelatedType = "withdrawal"
)

// VaultHistory records one credit or debit of a withdrawable balance
type VaultHistory struct {
	ID            int64          `db:"id"`
	Address       common.Address `db:"address"`
	Direction     VaultDirection `db:"direction"`
	Amount        *uint256.Int   `db:"amount"`
	BalanceBefore *uint256.Int   `db:"balance_before"`
	BalanceAfter  *uint256.Int   `db:"balance_after"`
	EntryType     VaultEntryType `db:"entry_type"`
	RelatedType   *RelatedType   `db:"related_type"`
	RelatedID     *int64         `db:"related_id"`
	Metadata      map[string]any `db:"metadata"`
	CreatedAt     time.Time      `db:"created_at"`
}

// WithdrawalStatus represents the state of an outbound transfer
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
)

// Withdrawal is a debit from the vault that is transferred out of the engine
type Withdrawal struct {
	ID            int64            `db:"id"`
	Address       common.Address   `db:"address"`
	Amount        *uint256.Int     `db:"amount"`
	Status        WithdrawalStatus `db:"status"`
	FailureReason *string          `db:"failure_reason"`
	CreatedAt     time.Time        `db:"created_at"`
	CompletedAt   *time.Time       `db:"completed_at"`
}
