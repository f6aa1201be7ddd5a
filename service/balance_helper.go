package service

import (
	"context"
	"fmt"
	"time"

	"creditledger/events"
	"creditledger/models"

	log "github.com/sirupsen/logrus"
)

// ledgerEntry describes a balance change about to be appended to the ledger
type ledgerEntry struct {
	userID          string
	amount          int64
	balanceAfter    int64
	transactionType models.TransactionType
	messageID       *string
	description     string
	createdAt       time.Time
}

// recordCreditChange appends a ledger row for a balance change that has
// already been applied in the same unit of work, then queues the matching
// event. Every balance mutation goes through here.
func recordCreditChange(ctx context.Context, uow UnitOfWork, entry ledgerEntry) (*models.CreditTransaction, error) {
	tx := &models.CreditTransaction{
		UserID:          entry.userID,
		Amount:          entry.amount,
		BalanceAfter:    entry.balanceAfter,
		TransactionType: entry.transactionType,
		MessageID:       entry.messageID,
		Description:     entry.description,
		CreatedAt:       entry.createdAt,
	}
	if err := uow.CreditTransactionRepository().Record(ctx, tx); err != nil {
		return nil, storeError("record credit transaction", err)
	}

	uow.EventBus().Publish(events.CreditBalanceChangedEvent{
		UserID:          entry.userID,
		TransactionID:   tx.ID,
		OldBalance:      entry.balanceAfter - entry.amount,
		NewBalance:      entry.balanceAfter,
		Amount:          entry.amount,
		TransactionType: entry.transactionType,
		MessageID:       entry.messageID,
	})

	return tx, nil
}

// ensureBalance returns the user's balance row, creating it with
// startingAmount and an initial grant when absent. The insert is an upsert
// so racing callers end up with one row and one grant.
func ensureBalance(ctx context.Context, uow UnitOfWork, userID string, startingAmount int64, now time.Time) (*models.UserCredit, error) {
	repo := uow.UserCreditRepository()

	credit, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, storeError("get balance", err)
	}
	if credit != nil {
		return credit, nil
	}

	credit, created, err := repo.InsertIfAbsent(ctx, userID, startingAmount, now)
	if err != nil {
		return nil, storeError("initialize balance", err)
	}
	if !created {
		return credit, nil
	}

	if startingAmount > 0 {
		_, err := recordCreditChange(ctx, uow, ledgerEntry{
			userID:          userID,
			amount:          startingAmount,
			balanceAfter:    credit.Balance,
			transactionType: models.TransactionTypeInitial,
			description:     models.DescriptionInitialCredits,
			createdAt:       now,
		})
		if err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"userID":  userID,
		"balance": credit.Balance,
	}).Info("Initialized credit balance")

	return credit, nil
}

// applyDelta adds amount to the user's balance without ever going negative.
// Missing rows are reported as ErrNotFound rather than created.
func applyDelta(ctx context.Context, uow UnitOfWork, userID string, amount int64, now time.Time) (*models.UserCredit, error) {
	repo := uow.UserCreditRepository()

	credit, err := repo.ApplyDelta(ctx, userID, amount, now)
	if err != nil {
		return nil, storeError("apply balance delta", err)
	}
	if credit != nil {
		return credit, nil
	}

	current, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, storeError("get balance", err)
	}
	if current == nil {
		return nil, fmt.Errorf("no credit balance for user %s: %w", userID, ErrNotFound)
	}
	return nil, fmt.Errorf("balance %d cannot cover %d: %w", current.Balance, -amount, ErrInsufficientCredits)
}
