package repository

import (
	"context"
	"testing"

	"creditledger/models"
	"creditledger/repository/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Upsert(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	name := "Ada Lovelace"
	user := &models.User{
		ID:          uuid.NewString(),
		ExternalID:  "user_ada",
		Email:       "ada@example.com",
		DisplayName: &name,
	}

	created, err := repo.Upsert(ctx, user)
	require.NoError(t, err)
	assert.True(t, created)
	originalID := user.ID

	t.Run("second sync updates profile and keeps id", func(t *testing.T) {
		again := &models.User{
			ID:         uuid.NewString(),
			ExternalID: "user_ada",
			Email:      "ada@newmail.example.com",
		}

		created, err := repo.Upsert(ctx, again)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, originalID, again.ID)

		stored, err := repo.GetByExternalID(ctx, "user_ada")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "ada@newmail.example.com", stored.Email)
		assert.Nil(t, stored.DisplayName)
	})

	t.Run("lookup by id", func(t *testing.T) {
		stored, err := repo.GetByID(ctx, originalID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "user_ada", stored.ExternalID)

		missing, err := repo.GetByID(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestUserRepository_DeleteByExternalID(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	creditRepo := NewUserCreditRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.InsertTestUser(t, testDB.DB, "eve")
	_, _, err := creditRepo.InsertIfAbsent(ctx, user.ID, 10, user.CreatedAt)
	require.NoError(t, err)

	removed, err := repo.DeleteByExternalID(ctx, user.ExternalID)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, user.ID, removed.ID)

	credit, err := creditRepo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, credit)

	again, err := repo.DeleteByExternalID(ctx, user.ExternalID)
	require.NoError(t, err)
	assert.Nil(t, again)
}
