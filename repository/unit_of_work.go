package repository

import (
	"context"
	"errors"
	"fmt"

	"creditledger/database"
	"creditledger/events"
	"creditledger/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	userRepo         service.UserRepository
	userCreditRepo   service.UserCreditRepository
	creditTxRepo     service.CreditTransactionRepository
	messageRepo      service.MessageRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. Events raised in a
// unit of work reach eventBus only after its transaction commits.
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.userRepo = newUserRepositoryWithTx(tx)
	u.userCreditRepo = newUserCreditRepositoryWithTx(tx)
	u.creditTxRepo = newCreditTransactionRepositoryWithTx(tx)
	u.messageRepo = newMessageRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and then releases the queued events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		u.transactionalBus.Discard()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.transactionalBus.Flush()
	return nil
}

// Rollback rolls back the transaction. It is a no-op once committed.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

func (u *unitOfWork) UserCreditRepository() service.UserCreditRepository {
	if u.userCreditRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userCreditRepo
}

func (u *unitOfWork) CreditTransactionRepository() service.CreditTransactionRepository {
	if u.creditTxRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.creditTxRepo
}

func (u *unitOfWork) MessageRepository() service.MessageRepository {
	if u.messageRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.messageRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
