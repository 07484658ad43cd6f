package service

import (
	"context"
	"errors"
	"fmt"

	"betledger/events"
	"betledger/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"
)

const defaultHistoryLimit = 50

// VaultCredit describes an amount owed to an identity
type VaultCredit struct {
	Address     common.Address
	Amount      *uint256.Int
	EntryType   models.VaultEntryType
	RelatedType models.RelatedType
	RelatedID   int64
	Metadata    map[string]any
}

// CreditVault adds an amount to an identity's withdrawable balance, records the
// history entry and queues a credit event. Zero amounts are skipped.
// This is the single entry point for every vault credit.
func CreditVault(ctx context.Context, uow UnitOfWork, credit VaultCredit) error {
	if credit.Amount == nil || credit.Amount.IsZero() {
		return nil
	}

	after, err := uow.VaultRepository().Credit(ctx, credit.Address, credit.Amount)
	if err != nil {
		return fmt.Errorf("failed to credit vault of %s: %w", credit.Address.Hex(), err)
	}
	before := new(uint256.Int).Sub(after, credit.Amount)

	relatedType := credit.RelatedType
	relatedID := credit.RelatedID
	history := &models.VaultHistory{
		Address:       credit.Address,
		Direction:     models.VaultDirectionCredit,
		Amount:        new(uint256.Int).Set(credit.Amount),
		BalanceBefore: before,
		BalanceAfter:  after,
		EntryType:     credit.EntryType,
		RelatedType:   &relatedType,
		RelatedID:     &relatedID,
		Metadata:      credit.Metadata,
	}
	if err := uow.VaultRepository().RecordHistory(ctx, history); err != nil {
		return fmt.Errorf("failed to record vault history: %w", err)
	}

	uow.EventBus().Publish(events.VaultCreditedEvent{
		Address:    credit.Address.Hex(),
		Amount:     credit.Amount.Dec(),
		OldBalance: before.Dec(),
		NewBalance: after.Dec(),
		EntryType:  string(credit.EntryType),
	})

	return nil
}

type vaultService struct {
	uowFactory UnitOfWorkFactory
	payer      Payer
	now        Clock
}

// NewVaultService creates a new vault service
func NewVaultService(uowFactory UnitOfWorkFactory, payer Payer, clock Clock) VaultService {
	return &vaultService{
		uowFactory: uowFactory,
		payer:      payer,
		now:        clockOrDefault(clock),
	}
}

// Withdraw debits the caller's balance in its own transaction before handing the
// withdrawal to the payer, so a caller re-entering during the transfer already
// sees the reduced balance. Only a rejected transfer is compensated by re-crediting
// the amount; an unconfirmed one stays pending until it is reconciled.
func (s *vaultService) Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) (*models.Withdrawal, error) {
	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", ErrInvalidArgument)
	}

	withdrawal, err := s.debit(ctx, caller, amount)
	if err != nil {
		return nil, err
	}

	fields := log.Fields{
		"withdrawalID": withdrawal.ID,
		"address":      caller.Hex(),
		"amount":       amount.Dec(),
	}

	transferErr := s.payer.Transfer(ctx, withdrawal)
	switch {
	case transferErr == nil:
	case errors.Is(transferErr, ErrTransferRejected):
		log.WithFields(fields).WithError(transferErr).Warn("Withdrawal transfer rejected, re-crediting vault")

		if err := s.reverse(context.WithoutCancel(ctx), withdrawal, transferErr); err != nil {
			return nil, fmt.Errorf("failed to reverse withdrawal %d after transfer error (%v): %w", withdrawal.ID, transferErr, err)
		}
		return withdrawal, fmt.Errorf("failed to transfer withdrawal %d: %w", withdrawal.ID, transferErr)
	default:
		// Delivery is unknown, so the debit stands
		log.WithFields(fields).WithError(transferErr).Error("Withdrawal transfer unconfirmed, leaving it pending")
		return withdrawal, fmt.Errorf("%w: withdrawal %d: %w", ErrTransferUnconfirmed, withdrawal.ID, transferErr)
	}

	if err := s.complete(context.WithoutCancel(ctx), withdrawal); err != nil {
		log.WithFields(fields).WithError(err).Error("Withdrawal transferred but could not be marked completed")
		return withdrawal, fmt.Errorf("%w: withdrawal %d: %w", ErrWithdrawalUnrecorded, withdrawal.ID, err)
	}

	return withdrawal, nil
}

func (s *vaultService) debit(ctx context.Context, caller common.Address, amount *uint256.Int) (*models.Withdrawal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	after, ok, err := uow.VaultRepository().Debit(ctx, caller, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to debit vault: %w", err)
	}
	if !ok {
		balance, err := uow.VaultRepository().GetBalance(ctx, caller)
		if err != nil {
			return nil, fmt.Errorf("failed to get vault balance: %w", err)
		}
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}

	withdrawal := &models.Withdrawal{
		Address: caller,
		Amount:  new(uint256.Int).Set(amount),
		Status:  models.WithdrawalStatusPending,
	}
	if err := uow.VaultRepository().CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	relatedType := models.RelatedTypeWithdrawal
	history := &models.VaultHistory{
		Address:       caller,
		Direction:     models.VaultDirectionDebit,
		Amount:        new(uint256.Int).Set(amount),
		BalanceBefore: new(uint256.Int).Add(after, amount),
		BalanceAfter:  after,
		EntryType:     models.VaultEntryWithdrawal,
		RelatedType:   &relatedType,
		RelatedID:     &withdrawal.ID,
	}
	if err := uow.VaultRepository().RecordHistory(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to record vault history: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return withdrawal, nil
}

func (s *vaultService) complete(ctx context.Context, withdrawal *models.Withdrawal) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	completedAt := s.now()
	withdrawal.Status = models.WithdrawalStatusCompleted
	withdrawal.CompletedAt = &completedAt
	if err := uow.VaultRepository().UpdateWithdrawal(ctx, withdrawal); err != nil {
		return fmt.Errorf("failed to complete withdrawal %d: %w", withdrawal.ID, err)
	}

	uow.EventBus().Publish(events.WithdrawalCompletedEvent{
		WithdrawalID: withdrawal.ID,
		Address:      withdrawal.Address.Hex(),
		Amount:       withdrawal.Amount.Dec(),
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *vaultService) reverse(ctx context.Context, withdrawal *models.Withdrawal, cause error) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	reason := cause.Error()
	withdrawal.Status = models.WithdrawalStatusFailed
	withdrawal.FailureReason = &reason
	if err := uow.VaultRepository().UpdateWithdrawal(ctx, withdrawal); err != nil {
		return fmt.Errorf("failed to mark withdrawal %d failed: %w", withdrawal.ID, err)
	}

	if err := CreditVault(ctx, uow, VaultCredit{
		Address:     withdrawal.Address,
		Amount:      withdrawal.Amount,
		EntryType:   models.VaultEntryWithdrawalReversal,
		RelatedType: models.RelatedTypeWithdrawal,
		RelatedID:   withdrawal.ID,
		Metadata:    map[string]any{"reason": reason},
	}); err != nil {
		return err
	}

	uow.EventBus().Publish(events.WithdrawalFailedEvent{
		WithdrawalID: withdrawal.ID,
		Address:      withdrawal.Address.Hex(),
		Amount:       withdrawal.Amount.Dec(),
		Reason:       reason,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBalance returns the withdrawable balance of an identity
func (s *vaultService) GetBalance(ctx context.Context, address common.Address) (*uint256.Int, error) {
	uow := s.uowFactory.Create()
	if err := uow.BeginSnapshot(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	balance, err := uow.VaultRepository().GetBalance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get vault balance: %w", err)
	}
	return balance, nil
}

// GetHistory returns the latest vault entries of an identity
func (s *vaultService) GetHistory(ctx context.Context, address common.Address, limit int) ([]*models.VaultHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.BeginSnapshot(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	history, err := uow.VaultRepository().GetHistory(ctx, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get vault history: %w", err)
	}
	return history, nil
}
