package service

import (
	"context"
	"time"

	"creditledger/models"

	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return testNow
}

// ledgerMocks bundles a mocked unit of work and its repositories
type ledgerMocks struct {
	factory   *MockUnitOfWorkFactory
	uow       *MockUnitOfWork
	users     *MockUserRepository
	credits   *MockUserCreditRepository
	txs       *MockCreditTransactionRepository
	messages  *MockMessageRepository
	publisher *MockEventPublisher
}

// newLedgerMocks wires a factory whose unit of work always begins and rolls
// back successfully. Tests set Commit expectations themselves.
func newLedgerMocks(ctx context.Context) *ledgerMocks {
	m := &ledgerMocks{
		factory:   new(MockUnitOfWorkFactory),
		uow:       new(MockUnitOfWork),
		users:     new(MockUserRepository),
		credits:   new(MockUserCreditRepository),
		txs:       new(MockCreditTransactionRepository),
		messages:  new(MockMessageRepository),
		publisher: new(MockEventPublisher),
	}
	m.uow.SetRepositories(m.users, m.credits, m.txs, m.messages, m.publisher)
	m.factory.On("Create").Return(m.uow)
	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Rollback").Return(nil)
	return m
}

func (m *ledgerMocks) expectCommit() {
	m.uow.On("Commit").Return(nil)
}

// expectRecord accepts a ledger insert and assigns it id
func (m *ledgerMocks) expectRecord(ctx context.Context, id int64, matcher interface{}) *mock.Call {
	return m.txs.On("Record", ctx, matcher).Run(func(args mock.Arguments) {
		args.Get(1).(*models.CreditTransaction).ID = id
	}).Return(nil)
}

func (m *ledgerMocks) assertExpectations(t mock.TestingT) {
	m.factory.AssertExpectations(t)
	m.uow.AssertExpectations(t)
	m.users.AssertExpectations(t)
	m.credits.AssertExpectations(t)
	m.txs.AssertExpectations(t)
	m.messages.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}
