package service

import (
	"context"
	"time"

	"creditledger/events"
	"creditledger/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID returns nil, nil when the user does not exist
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByExternalID looks a user up by identity-provider id
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)

	// Upsert inserts or updates a user keyed by external id. user.ID is only
	// used on insert; on return it holds the stored id.
	Upsert(ctx context.Context, user *models.User) (created bool, err error)

	// DeleteByExternalID removes the user and, by cascade, everything they own
	DeleteByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// UserCreditRepository defines the interface for the per-user balance row
type UserCreditRepository interface {
	// GetByUserID returns nil, nil when the user has no balance row
	GetByUserID(ctx context.Context, userID string) (*models.UserCredit, error)

	// GetByUserIDForUpdate is GetByUserID holding a row lock until the transaction ends
	GetByUserIDForUpdate(ctx context.Context, userID string) (*models.UserCredit, error)

	// InsertIfAbsent creates the row unless one exists, returning whichever row is stored
	InsertIfAbsent(ctx context.Context, userID string, balance int64, now time.Time) (credit *models.UserCredit, created bool, err error)

	// ApplyDelta adds amount to the balance in a single statement, refusing
	// to go below zero. Returns nil, nil if nothing was updated.
	ApplyDelta(ctx context.Context, userID string, amount int64, now time.Time) (*models.UserCredit, error)

	// Reset sets an absolute balance and marks the refresh time
	Reset(ctx context.Context, userID string, balance int64, now time.Time) (*models.UserCredit, error)

	// ListDueForRefresh returns users whose last refresh is at or before cutoff
	ListDueForRefresh(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// CreditTransactionRepository defines the interface for the append-only ledger
type CreditTransactionRepository interface {
	// Record appends an entry, filling in ID and CreatedAt
	Record(ctx context.Context, tx *models.CreditTransaction) error

	// ListByUser returns entries newest first. A non-nil before restricts the
	// page to entries strictly older than the cursor.
	ListByUser(ctx context.Context, userID string, before *models.HistoryCursor, limit int) ([]*models.CreditTransaction, error)

	// SumByUser returns the sum of all ledger amounts for the user
	SumByUser(ctx context.Context, userID string) (int64, error)
}

// MessageRepository defines the interface for conversations and messages
type MessageRepository interface {
	CreateConversation(ctx context.Context, conversation *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)

	// Delete reports whether a message was removed
	Delete(ctx context.Context, id string) (bool, error)
}

// EventPublisher queues events for delivery once the unit of work commits
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork groups repository calls into a single database transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	// Rollback is a no-op after Commit, so it is safe to defer
	Rollback() error

	UserRepository() UserRepository
	UserCreditRepository() UserCreditRepository
	CreditTransactionRepository() CreditTransactionRepository
	MessageRepository() MessageRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates a fresh unit of work per operation
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// CreditLedger is the balance and ledger API consumed by the HTTP layer and workers
type CreditLedger interface {
	GetBalance(ctx context.Context, userID string) (*models.UserCredit, error)
	InitializeBalance(ctx context.Context, userID string, startingAmount int64) (*models.UserCredit, error)
	RecordTransaction(ctx context.Context, userID string, amount int64, messageID *string, description string) (*models.CreditTransaction, error)
	HasSufficientCredits(ctx context.Context, userID string, required int64) (bool, error)
	RefreshIfDue(ctx context.Context, userID string, dailyAmount int64) (bool, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*models.CreditTransaction, error)
	ListTransactionsBefore(ctx context.Context, userID string, before models.HistoryCursor, limit int) ([]*models.CreditTransaction, error)
	ListDueForRefresh(ctx context.Context, limit int) ([]string, error)
	VerifyLedger(ctx context.Context, userID string) (*LedgerAudit, error)
}

// MessageRecorder stores chat messages and charges them against the ledger
type MessageRecorder interface {
	CreateConversation(ctx context.Context, userID, title, domain string) (*models.Conversation, error)
	RecordMessage(ctx context.Context, msg NewMessage) (*models.Message, *models.CreditTransaction, error)
	DeleteMessage(ctx context.Context, id string) error
}

// UserSyncer applies identity-provider user lifecycle events
type UserSyncer interface {
	SyncUser(ctx context.Context, identity IdentityUser) (*models.User, bool, error)
	DeleteUser(ctx context.Context, externalID string) (bool, error)
}
