package models

import (
	"time"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionTypeInitial TransactionType = "initial"
	TransactionTypeRefresh TransactionType = "refresh"
	TransactionTypeDebit   TransactionType = "debit"
	TransactionTypeGrant   TransactionType = "grant"
)

// Ledger descriptions written by the service layer.
const (
	DescriptionInitialCredits = "Initial free credits"
	DescriptionDailyRefresh   = "Daily free credit refresh"
)

// TransactionTypeForAmount returns the type used for a caller-recorded delta.
func TransactionTypeForAmount(amount int64) TransactionType {
	if amount < 0 {
		return TransactionTypeDebit
	}
	return TransactionTypeGrant
}

// HistoryCursor marks the last entry of a history page. The next page holds
// entries strictly older in (CreatedAt, ID) order. A zero ID compares by
// timestamp alone.
type HistoryCursor struct {
	CreatedAt time.Time
	ID        int64
}

// CursorAfter returns the cursor that continues after tx
func CursorAfter(tx *CreditTransaction) HistoryCursor {
	return HistoryCursor{CreatedAt: tx.CreatedAt, ID: tx.ID}
}

// CreditTransaction is one immutable, signed ledger entry
type CreditTransaction struct {
	ID              int64           `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"userId"`
	Amount          int64           `db:"amount" json:"amount"`
	BalanceAfter    int64           `db:"balance_after" json:"balanceAfter"`
	TransactionType TransactionType `db:"transaction_type" json:"type"`
	MessageID       *string         `db:"message_id" json:"messageId"`
	Description     string          `db:"description" json:"description"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
}
