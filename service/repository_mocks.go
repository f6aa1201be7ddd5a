package service

import (
	"context"
	"time"

	"creditledger/events"
	"creditledger/models"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *models.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) DeleteByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockUserCreditRepository is a mock implementation of UserCreditRepository
type MockUserCreditRepository struct {
	mock.Mock
}

func (m *MockUserCreditRepository) GetByUserID(ctx context.Context, userID string) (*models.UserCredit, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCredit), args.Error(1)
}

func (m *MockUserCreditRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*models.UserCredit, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCredit), args.Error(1)
}

func (m *MockUserCreditRepository) InsertIfAbsent(ctx context.Context, userID string, balance int64, now time.Time) (*models.UserCredit, bool, error) {
	args := m.Called(ctx, userID, balance, now)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.UserCredit), args.Bool(1), args.Error(2)
}

func (m *MockUserCreditRepository) ApplyDelta(ctx context.Context, userID string, amount int64, now time.Time) (*models.UserCredit, error) {
	args := m.Called(ctx, userID, amount, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCredit), args.Error(1)
}

func (m *MockUserCreditRepository) Reset(ctx context.Context, userID string, balance int64, now time.Time) (*models.UserCredit, error) {
	args := m.Called(ctx, userID, balance, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCredit), args.Error(1)
}

func (m *MockUserCreditRepository) ListDueForRefresh(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockCreditTransactionRepository is a mock implementation of CreditTransactionRepository
type MockCreditTransactionRepository struct {
	mock.Mock
}

func (m *MockCreditTransactionRepository) Record(ctx context.Context, tx *models.CreditTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockCreditTransactionRepository) ListByUser(ctx context.Context, userID string, before *models.HistoryCursor, limit int) ([]*models.CreditTransaction, error) {
	args := m.Called(ctx, userID, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CreditTransaction), args.Error(1)
}

func (m *MockCreditTransactionRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockMessageRepository is a mock implementation of MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

func (m *MockMessageRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockMessageRepository) Create(ctx context.Context, message *models.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return whatever SetRepositories installed.
type MockUnitOfWork struct {
	mock.Mock
	userRepo       UserRepository
	userCreditRepo UserCreditRepository
	creditTxRepo   CreditTransactionRepository
	messageRepo    MessageRepository
	eventPublisher EventPublisher
}

// SetRepositories installs the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(userRepo UserRepository, userCreditRepo UserCreditRepository, creditTxRepo CreditTransactionRepository, messageRepo MessageRepository, publisher EventPublisher) {
	m.userRepo = userRepo
	m.userCreditRepo = userCreditRepo
	m.creditTxRepo = creditTxRepo
	m.messageRepo = messageRepo
	m.eventPublisher = publisher
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.userRepo
}

func (m *MockUnitOfWork) UserCreditRepository() UserCreditRepository {
	return m.userCreditRepo
}

func (m *MockUnitOfWork) CreditTransactionRepository() CreditTransactionRepository {
	return m.creditTxRepo
}

func (m *MockUnitOfWork) MessageRepository() MessageRepository {
	return m.messageRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventPublisher
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
