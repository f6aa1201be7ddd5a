package service

import (
	"context"
	"errors"
	"testing"

	"creditledger/events"
	"creditledger/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIdentityUser_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		user     IdentityUser
		expected *string
	}{
		{"first and last", IdentityUser{FirstName: "Ada", LastName: "Lovelace"}, strPtr("Ada Lovelace")},
		{"first only", IdentityUser{FirstName: "Ada"}, strPtr("Ada")},
		{"last only", IdentityUser{LastName: " Lovelace "}, strPtr("Lovelace")},
		{"neither", IdentityUser{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.user.DisplayName())
		})
	}
}

func strPtr(s string) *string {
	return &s
}

func TestUserService_SyncUser_NewUser(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks(ctx)
	service := NewUserService(m.factory, 10).WithClock(fixedClock)

	var storedID string
	m.users.On("Upsert", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.ExternalID == "ext_123" &&
			u.Email == "ada@example.com" &&
			u.DisplayName != nil && *u.DisplayName == "Ada Lovelace" &&
			u.AvatarURL != nil && u.ID != ""
	})).Run(func(args mock.Arguments) {
		storedID = args.Get(1).(*models.User).ID
	}).Return(true, nil)
	m.credits.On("GetByUserID", ctx, mock.AnythingOfType("string")).Return(nil, nil)
	m.credits.On("InsertIfAbsent", ctx, mock.AnythingOfType("string"), int64(10), testNow).
		Return(&models.UserCredit{Balance: 10}, true, nil)
	m.expectRecord(ctx, 1, mock.MatchedBy(func(tx *models.CreditTransaction) bool {
		return tx.Amount == 10 && tx.TransactionType == models.TransactionTypeInitial
	}))
	m.publisher.On("Publish", mock.AnythingOfType("events.CreditBalanceChangedEvent")).Return()
	m.publisher.On("Publish", mock.MatchedBy(func(e events.UserCreatedEvent) bool {
		return e.ExternalID == "ext_123" && e.InitialBalance == 10 && e.UserID == storedID
	})).Return()
	m.expectCommit()

	user, created, err := service.SyncUser(ctx, IdentityUser{
		ExternalID: "ext_123",
		Email:      "ada@example.com",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		ImageURL:   "https://img.example.com/ada.png",
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, storedID, user.ID)
	m.credits.AssertCalled(t, "InsertIfAbsent", ctx, storedID, int64(10), testNow)
	m.assertExpectations(t)
}

func TestUserService_SyncUser_ExistingUser(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks(ctx)
	service := NewUserService(m.factory, 10).WithClock(fixedClock)

	m.users.On("Upsert", ctx, mock.AnythingOfType("*models.User")).Run(func(args mock.Arguments) {
		args.Get(1).(*models.User).ID = "existing-id"
	}).Return(false, nil)
	m.expectCommit()

	user, created, err := service.SyncUser(ctx, IdentityUser{ExternalID: "ext_123", Email: "new@example.com"})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "existing-id", user.ID)
	assert.Nil(t, user.DisplayName)
	m.credits.AssertNotCalled(t, "InsertIfAbsent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.publisher.AssertNotCalled(t, "Publish", mock.Anything)
	m.assertExpectations(t)
}

func TestUserService_SyncUser_UpsertFailure(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks(ctx)
	service := NewUserService(m.factory, 10)

	m.users.On("Upsert", ctx, mock.Anything).Return(false, errors.New("duplicate email"))

	_, _, err := service.SyncUser(ctx, IdentityUser{ExternalID: "ext_123", Email: "dup@example.com"})

	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
	m.uow.AssertNotCalled(t, "Commit")
}

func TestUserService_SyncUser_MissingExternalID(t *testing.T) {
	factory := new(MockUnitOfWorkFactory)
	service := NewUserService(factory, 10)

	_, _, err := service.SyncUser(context.Background(), IdentityUser{Email: "x@example.com"})

	assert.Error(t, err)
	factory.AssertNotCalled(t, "Create")
}

func TestUserService_DeleteUser(t *testing.T) {
	t.Run("existing user", func(t *testing.T) {
		ctx := context.Background()
		m := newLedgerMocks(ctx)
		service := NewUserService(m.factory, 10)

		m.users.On("DeleteByExternalID", ctx, "ext_123").Return(&models.User{ID: "u1", ExternalID: "ext_123"}, nil)
		m.publisher.On("Publish", events.UserDeletedEvent{UserID: "u1", ExternalID: "ext_123"}).Return()
		m.expectCommit()

		deleted, err := service.DeleteUser(ctx, "ext_123")

		require.NoError(t, err)
		assert.True(t, deleted)
		m.assertExpectations(t)
	})

	t.Run("unknown user", func(t *testing.T) {
		ctx := context.Background()
		m := newLedgerMocks(ctx)
		service := NewUserService(m.factory, 10)

		m.users.On("DeleteByExternalID", ctx, "ext_404").Return(nil, nil)

		deleted, err := service.DeleteUser(ctx, "ext_404")

		require.NoError(t, err)
		assert.False(t, deleted)
		m.uow.AssertNotCalled(t, "Commit")
	})
}
