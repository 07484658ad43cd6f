package repository

import (
	"context"
	"testing"
	"time"

	"betledger/models"
	"betledger/repository/testutil"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultRepository(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewVaultRepository(testDB.DB)
	ctx := context.Background()

	t.Run("unknown identity has zero balance", func(t *testing.T) {
		balance, err := repo.GetBalance(ctx, testutil.CarolAddr)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("credit accumulates", func(t *testing.T) {
		balance, err := repo.Credit(ctx, testutil.AliceAddr, testutil.Finney(30))
		require.NoError(t, err)
		assert.True(t, balance.Eq(testutil.Finney(30)))

		balance, err = repo.Credit(ctx, testutil.AliceAddr, testutil.Finney(20))
		require.NoError(t, err)
		assert.True(t, balance.Eq(testutil.Finney(50)))
	})

	t.Run("debit requires cover", func(t *testing.T) {
		_, err := repo.Credit(ctx, testutil.BobAddr, testutil.Finney(10))
		require.NoError(t, err)

		_, ok, err := repo.Debit(ctx, testutil.BobAddr, testutil.Finney(11))
		require.NoError(t, err)
		assert.False(t, ok)

		balance, ok, err := repo.Debit(ctx, testutil.BobAddr, testutil.Finney(10))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, balance.IsZero())

		_, ok, err = repo.Debit(ctx, testutil.CarolAddr, uint256.NewInt(1))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("history newest first", func(t *testing.T) {
		relatedType := models.RelatedTypeActivity
		relatedID := int64(42)
		for i, entry := range []models.VaultEntryType{models.VaultEntrySettlementPayout, models.VaultEntrySaleProceeds} {
			h := &models.VaultHistory{
				Address:       testutil.CarolAddr,
				Direction:     models.VaultDirectionCredit,
				Amount:        testutil.Finney(1),
				BalanceBefore: testutil.Finney(uint64(i)),
				BalanceAfter:  testutil.Finney(uint64(i + 1)),
				EntryType:     entry,
				RelatedType:   &relatedType,
				RelatedID:     &relatedID,
				Metadata:      map[string]any{"choice": 1},
			}
			require.NoError(t, repo.RecordHistory(ctx, h))
			require.NotZero(t, h.ID)
		}

		history, err := repo.GetHistory(ctx, testutil.CarolAddr, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, models.VaultEntrySaleProceeds, history[0].EntryType)
		assert.True(t, history[0].BalanceAfter.Eq(testutil.Finney(2)))
		require.NotNil(t, history[1].RelatedID)
		assert.Equal(t, int64(42), *history[1].RelatedID)
		assert.EqualValues(t, 1, history[1].Metadata["choice"])

		limited, err := repo.GetHistory(ctx, testutil.CarolAddr, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("withdrawal resolves once", func(t *testing.T) {
		w := &models.Withdrawal{
			Address: testutil.AliceAddr,
			Amount:  testutil.Finney(5),
			Status:  models.WithdrawalStatusPending,
		}
		require.NoError(t, repo.CreateWithdrawal(ctx, w))

		now := time.Now().UTC()
		reason := "broker unavailable"
		w.Status = models.WithdrawalStatusFailed
		w.FailureReason = &reason
		w.CompletedAt = &now
		require.NoError(t, repo.UpdateWithdrawal(ctx, w))
		assert.Error(t, repo.UpdateWithdrawal(ctx, w))

		stored, err := repo.GetWithdrawal(ctx, w.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.WithdrawalStatusFailed, stored.Status)
		require.NotNil(t, stored.FailureReason)
		assert.Equal(t, reason, *stored.FailureReason)
		assert.True(t, stored.Amount.Eq(testutil.Finney(5)))

		missing, err := repo.GetWithdrawal(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}
