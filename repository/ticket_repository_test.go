package repository

import (
	"context"
	"testing"

	"betledger/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRepository(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	activities := NewActivityRepository(testDB.DB)
	repo := NewTicketRepository(testDB.DB)
	ctx := context.Background()

	activity := createActivity(t, activities, testutil.Finney(100), 2)

	t.Run("ticket not found", func(t *testing.T) {
		ticket, err := repo.GetByID(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, ticket)
	})

	t.Run("mint and read back", func(t *testing.T) {
		ticket := testutil.CreateTestTicket(activity.ID, 1, testutil.Finney(30), testutil.AliceAddr)
		require.NoError(t, repo.Create(ctx, ticket))
		require.NotZero(t, ticket.ID)

		stored, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, testutil.AliceAddr, stored.Owner)
		assert.Equal(t, 1, stored.ChoiceIndex)
		assert.True(t, stored.Amount.Eq(testutil.Finney(30)))
		assert.False(t, stored.Approved)
		assert.False(t, stored.Claimed)
		assert.Nil(t, stored.Payout)
	})

	t.Run("ticket must reference an existing choice", func(t *testing.T) {
		ticket := testutil.CreateTestTicket(activity.ID, 7, testutil.Finney(1), testutil.AliceAddr)
		assert.Error(t, repo.Create(ctx, ticket))
	})

	t.Run("ownership change clears approval", func(t *testing.T) {
		ticket := testutil.CreateTestTicket(activity.ID, 0, testutil.Finney(20), testutil.AliceAddr)
		require.NoError(t, repo.Create(ctx, ticket))
		require.NoError(t, repo.SetApproved(ctx, ticket.ID, true))

		stored, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.True(t, stored.Approved)

		require.NoError(t, repo.UpdateOwner(ctx, ticket.ID, testutil.BobAddr))

		stored, err = repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, testutil.BobAddr, stored.Owner)
		assert.False(t, stored.Approved)

		owned, err := repo.GetByOwner(ctx, testutil.BobAddr)
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, ticket.ID, owned[0].ID)
	})

	t.Run("claim happens once", func(t *testing.T) {
		ticket := testutil.CreateTestTicket(activity.ID, 0, testutil.Finney(5), testutil.CarolAddr)
		require.NoError(t, repo.Create(ctx, ticket))

		require.NoError(t, repo.MarkClaimed(ctx, ticket.ID, testutil.Finney(12)))
		assert.Error(t, repo.MarkClaimed(ctx, ticket.ID, testutil.Finney(12)))

		stored, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.True(t, stored.Claimed)
		require.NotNil(t, stored.Payout)
		assert.True(t, stored.Payout.Eq(testutil.Finney(12)))
	})

	t.Run("ids in mint order", func(t *testing.T) {
		other := createActivity(t, activities, testutil.Finney(1), 2)

		ids, err := repo.GetIDsByActivity(ctx, other.ID)
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.NotNil(t, ids)

		var minted []int64
		for i := 0; i < 3; i++ {
			ticket := testutil.CreateTestTicket(other.ID, i%2, testutil.Finney(1), testutil.AliceAddr)
			require.NoError(t, repo.Create(ctx, ticket))
			minted = append(minted, ticket.ID)
		}

		ids, err = repo.GetIDsByActivity(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, minted, ids)

		tickets, err := repo.GetByActivity(ctx, other.ID)
		require.NoError(t, err)
		assert.Len(t, tickets, 3)
	})
}
