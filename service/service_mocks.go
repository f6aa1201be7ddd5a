package service

import (
	"context"

	"creditledger/models"

	"github.com/stretchr/testify/mock"
)

// MockCreditLedger is a mock implementation of CreditLedger
type MockCreditLedger struct {
	mock.Mock
}

func (m *MockCreditLedger) GetBalance(ctx context.Context, userID string) (*models.UserCredit, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCredit), args.Error(1)
}

func (m *MockCreditLedger) InitializeBalance(ctx context.Context, userID string, startingAmount int64) (*models.UserCredit, error) {
	args := m.Called(ctx, userID, startingAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCredit), args.Error(1)
}

func (m *MockCreditLedger) RecordTransaction(ctx context.Context, userID string, amount int64, messageID *string, description string) (*models.CreditTransaction, error) {
	args := m.Called(ctx, userID, amount, messageID, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreditTransaction), args.Error(1)
}

func (m *MockCreditLedger) HasSufficientCredits(ctx context.Context, userID string, required int64) (bool, error) {
	args := m.Called(ctx, userID, required)
	return args.Bool(0), args.Error(1)
}

func (m *MockCreditLedger) RefreshIfDue(ctx context.Context, userID string, dailyAmount int64) (bool, error) {
	args := m.Called(ctx, userID, dailyAmount)
	return args.Bool(0), args.Error(1)
}

func (m *MockCreditLedger) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.CreditTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CreditTransaction), args.Error(1)
}

func (m *MockCreditLedger) ListTransactionsBefore(ctx context.Context, userID string, before models.HistoryCursor, limit int) ([]*models.CreditTransaction, error) {
	args := m.Called(ctx, userID, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CreditTransaction), args.Error(1)
}

func (m *MockCreditLedger) ListDueForRefresh(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCreditLedger) VerifyLedger(ctx context.Context, userID string) (*LedgerAudit, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*LedgerAudit), args.Error(1)
}

// MockUserSyncer is a mock implementation of UserSyncer
type MockUserSyncer struct {
	mock.Mock
}

func (m *MockUserSyncer) SyncUser(ctx context.Context, identity IdentityUser) (*models.User, bool, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.Bool(1), args.Error(2)
}

func (m *MockUserSyncer) DeleteUser(ctx context.Context, externalID string) (bool, error) {
	args := m.Called(ctx, externalID)
	return args.Bool(0), args.Error(1)
}

// MockMessageRecorder is a mock implementation of MessageRecorder
type MockMessageRecorder struct {
	mock.Mock
}

func (m *MockMessageRecorder) CreateConversation(ctx context.Context, userID, title, domain string) (*models.Conversation, error) {
	args := m.Called(ctx, userID, title, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockMessageRecorder) RecordMessage(ctx context.Context, msg NewMessage) (*models.Message, *models.CreditTransaction, error) {
	args := m.Called(ctx, msg)
	var message *models.Message
	if v := args.Get(0); v != nil {
		message = v.(*models.Message)
	}
	var charge *models.CreditTransaction
	if v := args.Get(1); v != nil {
		charge = v.(*models.CreditTransaction)
	}
	return message, charge, args.Error(2)
}

func (m *MockMessageRecorder) DeleteMessage(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
