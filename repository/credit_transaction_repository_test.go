package repository

import (
	"context"
	"testing"
	"time"

	"creditledger/models"
	"creditledger/repository/testutil"
	"creditledger/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditTransactionRepository_Record(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewCreditTransactionRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.InsertTestUser(t, testDB.DB, "alice")
	message := testutil.InsertTestMessage(t, testDB.DB, user.ID)

	t.Run("grant without message", func(t *testing.T) {
		tx := &models.CreditTransaction{
			UserID:          user.ID,
			Amount:          10,
			BalanceAfter:    10,
			TransactionType: models.TransactionTypeInitial,
			Description:     models.DescriptionInitialCredits,
		}
		require.NoError(t, repo.Record(ctx, tx))
		assert.NotZero(t, tx.ID)
		assert.False(t, tx.CreatedAt.IsZero())
	})

	t.Run("debit linked to message keeps given timestamp", func(t *testing.T) {
		at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		tx := &models.CreditTransaction{
			UserID:          user.ID,
			Amount:          -1,
			BalanceAfter:    9,
			TransactionType: models.TransactionTypeDebit,
			MessageID:       &message.ID,
			Description:     "chat",
			CreatedAt:       at,
		}
		require.NoError(t, repo.Record(ctx, tx))
		assert.True(t, tx.CreatedAt.Equal(at))
	})

	t.Run("unknown message", func(t *testing.T) {
		missing := "missing-message"
		tx := &models.CreditTransaction{
			UserID:          user.ID,
			Amount:          -1,
			BalanceAfter:    8,
			TransactionType: models.TransactionTypeDebit,
			MessageID:       &missing,
		}
		assert.ErrorIs(t, repo.Record(ctx, tx), service.ErrNotFound)
	})

	t.Run("zero amount violates the ledger constraint", func(t *testing.T) {
		tx := &models.CreditTransaction{
			UserID:          user.ID,
			Amount:          0,
			TransactionType: models.TransactionTypeGrant,
		}
		err := repo.Record(ctx, tx)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, service.ErrNotFound)
	})

	sum, err := repo.SumByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), sum)
}

func TestCreditTransactionRepository_ListByUser(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewCreditTransactionRepository(testDB.DB)
	ctx := context.Background()

	alice := testutil.InsertTestUser(t, testDB.DB, "alice")
	bob := testutil.InsertTestUser(t, testDB.DB, "bob")

	t.Run("empty ledger", func(t *testing.T) {
		txs, err := repo.ListByUser(ctx, alice.ID, nil, 20)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(ctx, &models.CreditTransaction{
			UserID:          alice.ID,
			Amount:          int64(i + 1),
			BalanceAfter:    int64(i + 1),
			TransactionType: models.TransactionTypeGrant,
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
		}))
	}
	// Same timestamp as the newest row; the higher id sorts first.
	require.NoError(t, repo.Record(ctx, &models.CreditTransaction{
		UserID:          alice.ID,
		Amount:          100,
		BalanceAfter:    115,
		TransactionType: models.TransactionTypeGrant,
		CreatedAt:       base.Add(4 * time.Hour),
	}))
	require.NoError(t, repo.Record(ctx, &models.CreditTransaction{
		UserID:          bob.ID,
		Amount:          7,
		BalanceAfter:    7,
		TransactionType: models.TransactionTypeGrant,
	}))

	t.Run("newest first with limit", func(t *testing.T) {
		txs, err := repo.ListByUser(ctx, alice.ID, nil, 3)
		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, int64(100), txs[0].Amount)
		assert.Equal(t, int64(5), txs[1].Amount)
		assert.Equal(t, int64(4), txs[2].Amount)
		for _, tx := range txs {
			assert.Equal(t, alice.ID, tx.UserID)
		}
	})

	t.Run("page before timestamp", func(t *testing.T) {
		cursor := models.HistoryCursor{CreatedAt: base.Add(3 * time.Hour)}
		txs, err := repo.ListByUser(ctx, alice.ID, &cursor, 10)
		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, int64(3), txs[0].Amount)
		assert.Equal(t, int64(1), txs[2].Amount)
	})

	t.Run("paging through a shared timestamp keeps every row", func(t *testing.T) {
		first, err := repo.ListByUser(ctx, alice.ID, nil, 1)
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, int64(100), first[0].Amount)

		cursor := models.CursorAfter(first[0])
		next, err := repo.ListByUser(ctx, alice.ID, &cursor, 2)
		require.NoError(t, err)
		require.Len(t, next, 2)
		assert.Equal(t, int64(5), next[0].Amount)
		assert.Equal(t, int64(4), next[1].Amount)

		var seen []int64
		var page *models.HistoryCursor
		for {
			txs, err := repo.ListByUser(ctx, alice.ID, page, 1)
			require.NoError(t, err)
			if len(txs) == 0 {
				break
			}
			seen = append(seen, txs[0].Amount)
			c := models.CursorAfter(txs[0])
			page = &c
		}
		assert.Equal(t, []int64{100, 5, 4, 3, 2, 1}, seen)
	})
}

func TestCreditTransactionRepository_Cascades(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	txRepo := NewCreditTransactionRepository(testDB.DB)
	msgRepo := NewMessageRepository(testDB.DB)
	userRepo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.InsertTestUser(t, testDB.DB, "dave")
	message := testutil.InsertTestMessage(t, testDB.DB, user.ID)

	tx := &models.CreditTransaction{
		UserID:          user.ID,
		Amount:          -1,
		BalanceAfter:    0,
		TransactionType: models.TransactionTypeDebit,
		MessageID:       &message.ID,
	}
	require.NoError(t, txRepo.Record(ctx, tx))

	t.Run("deleting the message orphans the ledger row", func(t *testing.T) {
		deleted, err := msgRepo.Delete(ctx, message.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		txs, err := txRepo.ListByUser(ctx, user.ID, nil, 10)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, tx.ID, txs[0].ID)
		assert.Nil(t, txs[0].MessageID)
		assert.Equal(t, int64(-1), txs[0].Amount)
	})

	t.Run("deleting the user removes the ledger", func(t *testing.T) {
		removed, err := userRepo.DeleteByExternalID(ctx, user.ExternalID)
		require.NoError(t, err)
		require.NotNil(t, removed)

		txs, err := txRepo.ListByUser(ctx, user.ID, nil, 10)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}
