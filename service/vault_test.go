package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"betledger/events"
	"betledger/models"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createTestVaultService() (VaultService, *testMocks, *MockPayer) {
	m := newTestMocks()
	setupBasicTransactionMocks(m.uow)
	payer := new(MockPayer)
	return NewVaultService(m.factory, payer, fixedClock), m, payer
}

func TestCreditVault(t *testing.T) {
	ctx := context.Background()

	t.Run("records history and event", func(t *testing.T) {
		m := newTestMocks()
		m.vault.On("Credit", mock.Anything, aliceAddr, finney(30)).Return(finney(40), nil)
		m.vault.On("RecordHistory", mock.Anything, mock.MatchedBy(func(h *models.VaultHistory) bool {
			return h.Direction == models.VaultDirectionCredit &&
				h.BalanceBefore.Eq(finney(10)) &&
				h.BalanceAfter.Eq(finney(40)) &&
				*h.RelatedType == models.RelatedTypeListing &&
				*h.RelatedID == 8
		})).Return(nil)

		err := CreditVault(ctx, m.uow, VaultCredit{
			Address:     aliceAddr,
			Amount:      finney(30),
			EntryType:   models.VaultEntrySaleProceeds,
			RelatedType: models.RelatedTypeListing,
			RelatedID:   8,
		})
		require.NoError(t, err)

		m.vault.AssertExpectations(t)
		credited := publishedOfType(m.bus, events.EventTypeVaultCredited)
		require.Len(t, credited, 1)
		assert.Equal(t, finney(40).Dec(), credited[0].(events.VaultCreditedEvent).NewBalance)
	})

	t.Run("zero amount is skipped", func(t *testing.T) {
		m := newTestMocks()

		require.NoError(t, CreditVault(ctx, m.uow, VaultCredit{Address: aliceAddr, Amount: new(uint256.Int)}))
		m.vault.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, m.bus.Calls)
	})
}

func TestVaultService_Withdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("debits before transfer", func(t *testing.T) {
		svc, m, payer := createTestVaultService()

		m.vault.On("Debit", mock.Anything, aliceAddr, finney(150)).Return(new(uint256.Int), true, nil)
		m.vault.On("CreateWithdrawal", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Withdrawal).ID = 12
		}).Return(nil)
		m.vault.On("RecordHistory", mock.Anything, mock.MatchedBy(func(h *models.VaultHistory) bool {
			return h.Direction == models.VaultDirectionDebit &&
				h.EntryType == models.VaultEntryWithdrawal &&
				h.BalanceBefore.Eq(finney(150)) &&
				h.BalanceAfter.IsZero()
		})).Return(nil)
		m.vault.On("UpdateWithdrawal", mock.Anything, mock.Anything).Return(nil)

		payer.On("Transfer", mock.Anything, mock.MatchedBy(func(w *models.Withdrawal) bool {
			return w.ID == 12 && w.Status == models.WithdrawalStatusPending
		})).Run(func(args mock.Arguments) {
			// The debit transaction has committed by the time funds move
			m.uow.AssertNumberOfCalls(t, "Commit", 1)
		}).Return(nil)

		withdrawal, err := svc.Withdraw(ctx, aliceAddr, finney(150))
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusCompleted, withdrawal.Status)
		assert.NotNil(t, withdrawal.CompletedAt)

		payer.AssertExpectations(t)
		m.uow.AssertNumberOfCalls(t, "Commit", 2)
		m.vault.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
		assert.Len(t, publishedOfType(m.bus, events.EventTypeWithdrawalCompleted), 1)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		svc, m, payer := createTestVaultService()

		m.vault.On("Debit", mock.Anything, aliceAddr, finney(200)).Return(nil, false, nil)
		m.vault.On("GetBalance", mock.Anything, aliceAddr).Return(finney(150), nil)

		_, err := svc.Withdraw(ctx, aliceAddr, finney(200))
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		payer.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
		m.vault.AssertNotCalled(t, "CreateWithdrawal", mock.Anything, mock.Anything)
		m.uow.AssertNotCalled(t, "Commit")
	})

	t.Run("rejected transfer re-credits the amount", func(t *testing.T) {
		svc, m, payer := createTestVaultService()
		transferErr := fmt.Errorf("%w: no response from stream", ErrTransferRejected)

		m.vault.On("Debit", mock.Anything, aliceAddr, finney(50)).Return(finney(100), true, nil)
		m.vault.On("CreateWithdrawal", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Withdrawal).ID = 13
		}).Return(nil)
		m.vault.On("RecordHistory", mock.Anything, mock.Anything).Return(nil)
		m.vault.On("UpdateWithdrawal", mock.Anything, mock.MatchedBy(func(w *models.Withdrawal) bool {
			return w.Status == models.WithdrawalStatusFailed && w.FailureReason != nil
		})).Return(nil)
		m.vault.On("Credit", mock.Anything, aliceAddr, finney(50)).Return(finney(150), nil)
		payer.On("Transfer", mock.Anything, mock.Anything).Return(transferErr)

		withdrawal, err := svc.Withdraw(ctx, aliceAddr, finney(50))
		assert.ErrorIs(t, err, transferErr)
		require.NotNil(t, withdrawal)
		assert.Equal(t, models.WithdrawalStatusFailed, withdrawal.Status)

		m.vault.AssertCalled(t, "RecordHistory", mock.Anything, mock.MatchedBy(func(h *models.VaultHistory) bool {
			return h.EntryType == models.VaultEntryWithdrawalReversal &&
				h.BalanceBefore.Eq(finney(100)) &&
				h.BalanceAfter.Eq(finney(150))
		}))
		assert.Len(t, publishedOfType(m.bus, events.EventTypeWithdrawalFailed), 1)
	})

	t.Run("unconfirmed transfer stays pending", func(t *testing.T) {
		svc, m, payer := createTestVaultService()

		m.vault.On("Debit", mock.Anything, aliceAddr, finney(50)).Return(finney(100), true, nil)
		m.vault.On("CreateWithdrawal", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Withdrawal).ID = 14
		}).Return(nil)
		m.vault.On("RecordHistory", mock.Anything, mock.Anything).Return(nil)
		payer.On("Transfer", mock.Anything, mock.Anything).Return(fmt.Errorf("failed to publish withdrawal 14: %w", context.DeadlineExceeded))

		withdrawal, err := svc.Withdraw(ctx, aliceAddr, finney(50))
		assert.ErrorIs(t, err, ErrTransferUnconfirmed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrTransferRejected)
		require.NotNil(t, withdrawal)
		assert.Equal(t, models.WithdrawalStatusPending, withdrawal.Status)

		m.vault.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
		m.vault.AssertNotCalled(t, "UpdateWithdrawal", mock.Anything, mock.Anything)
		m.uow.AssertNumberOfCalls(t, "Commit", 1)
		assert.Empty(t, publishedOfType(m.bus, events.EventTypeWithdrawalFailed))
	})

	t.Run("transfer sent but completion not recorded", func(t *testing.T) {
		svc, m, payer := createTestVaultService()
		dbErr := errors.New("db down")

		m.vault.On("Debit", mock.Anything, aliceAddr, finney(50)).Return(finney(100), true, nil)
		m.vault.On("CreateWithdrawal", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Withdrawal).ID = 15
		}).Return(nil)
		m.vault.On("RecordHistory", mock.Anything, mock.Anything).Return(nil)
		m.vault.On("UpdateWithdrawal", mock.Anything, mock.Anything).Return(dbErr)
		payer.On("Transfer", mock.Anything, mock.Anything).Return(nil)

		withdrawal, err := svc.Withdraw(ctx, aliceAddr, finney(50))
		assert.ErrorIs(t, err, ErrWithdrawalUnrecorded)
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, ErrTransferRejected)
		require.NotNil(t, withdrawal)
		assert.Equal(t, models.WithdrawalStatusCompleted, withdrawal.Status)

		m.vault.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, publishedOfType(m.bus, events.EventTypeWithdrawalFailed))
	})

	t.Run("zero amount", func(t *testing.T) {
		svc, m, _ := createTestVaultService()

		_, err := svc.Withdraw(ctx, aliceAddr, new(uint256.Int))
		assert.ErrorIs(t, err, ErrInvalidArgument)
		m.factory.AssertNotCalled(t, "Create")
	})
}

func TestVaultService_GetHistoryDefaultsLimit(t *testing.T) {
	svc, m, _ := createTestVaultService()
	m.uow.On("BeginSnapshot", mock.Anything).Return(nil)
	m.vault.On("GetHistory", mock.Anything, aliceAddr, defaultHistoryLimit).Return([]*models.VaultHistory{}, nil)

	history, err := svc.GetHistory(context.Background(), aliceAddr, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	m.vault.AssertExpectations(t)
}
