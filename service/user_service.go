package service

import (
	"context"
	"fmt"
	"strings"

	"creditledger/events"
	"creditledger/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// IdentityUser is the subset of an identity-provider user record the ledger keeps
type IdentityUser struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	ImageURL   string
}

// DisplayName joins first and last name, or returns nil when both are empty
func (u IdentityUser) DisplayName() *string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return nil
	}
	return &name
}

// UserService mirrors identity-provider users and opens their credit balance
type UserService struct {
	uowFactory     UnitOfWorkFactory
	newUserCredits int64
	clock          Clock
}

// NewUserService creates a new user service. newUserCredits is the balance
// granted to a user the first time they are synced.
func NewUserService(uowFactory UnitOfWorkFactory, newUserCredits int64) *UserService {
	return &UserService{
		uowFactory:     uowFactory,
		newUserCredits: newUserCredits,
		clock:          SystemClock,
	}
}

// WithClock replaces the time source
func (s *UserService) WithClock(clock Clock) *UserService {
	s.clock = clock
	return s
}

// SyncUser creates or updates the user identified by identity.ExternalID.
// A newly created user gets a balance and initial grant in the same transaction.
func (s *UserService) SyncUser(ctx context.Context, identity IdentityUser) (*models.User, bool, error) {
	if identity.ExternalID == "" {
		return nil, false, fmt.Errorf("external id is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, false, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	user := &models.User{
		ID:          uuid.NewString(),
		ExternalID:  identity.ExternalID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName(),
	}
	if identity.ImageURL != "" {
		user.AvatarURL = &identity.ImageURL
	}

	created, err := uow.UserRepository().Upsert(ctx, user)
	if err != nil {
		return nil, false, storeError("upsert user", err)
	}

	if created {
		credit, err := ensureBalance(ctx, uow, user.ID, s.newUserCredits, s.clock())
		if err != nil {
			return nil, false, err
		}
		uow.EventBus().Publish(events.UserCreatedEvent{
			UserID:         user.ID,
			ExternalID:     user.ExternalID,
			InitialBalance: credit.Balance,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, false, storeError("commit transaction", err)
	}

	log.WithFields(log.Fields{
		"userID":     user.ID,
		"externalID": user.ExternalID,
		"created":    created,
	}).Info("Synced user from identity provider")

	return user, created, nil
}

// DeleteUser removes the user with the given external id. Their balance,
// ledger and messages are removed by the database cascade.
func (s *UserService) DeleteUser(ctx context.Context, externalID string) (bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().DeleteByExternalID(ctx, externalID)
	if err != nil {
		return false, storeError("delete user", err)
	}
	if user == nil {
		return false, nil
	}

	uow.EventBus().Publish(events.UserDeletedEvent{
		UserID:     user.ID,
		ExternalID: user.ExternalID,
	})

	if err := uow.Commit(); err != nil {
		return false, storeError("commit transaction", err)
	}

	log.WithFields(log.Fields{
		"userID":     user.ID,
		"externalID": externalID,
	}).Info("Deleted user")
	return true, nil
}
