package service

import (
	"context"
	"fmt"
	"time"

	"creditledger/events"
	"creditledger/models"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultStartingBalance is granted to a balance created without an explicit amount
	DefaultStartingBalance int64 = 10
	// DefaultRefreshInterval is the minimum gap between two free-tier refreshes
	DefaultRefreshInterval = 20 * time.Hour
	// DefaultHistoryLimit is the page size used when none is requested
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps a single history page
	MaxHistoryLimit = 100
)

// CreditPolicy holds the tunables of the ledger
type CreditPolicy struct {
	StartingBalance     int64
	RefreshInterval     time.Duration
	DefaultHistoryLimit int
}

// DefaultCreditPolicy returns the policy used when nothing is configured
func DefaultCreditPolicy() CreditPolicy {
	return CreditPolicy{
		StartingBalance:     DefaultStartingBalance,
		RefreshInterval:     DefaultRefreshInterval,
		DefaultHistoryLimit: DefaultHistoryLimit,
	}
}

// LedgerAudit compares a stored balance with the sum of its ledger
type LedgerAudit struct {
	UserID     string `json:"userId"`
	Balance    int64  `json:"balance"`
	LedgerSum  int64  `json:"ledgerSum"`
	Consistent bool   `json:"consistent"`
}

// CreditService implements the credit ledger. Every method runs in its own unit of work.
type CreditService struct {
	uowFactory UnitOfWorkFactory
	policy     CreditPolicy
	clock      Clock
}

// NewCreditService creates a new credit service
func NewCreditService(uowFactory UnitOfWorkFactory, policy CreditPolicy) *CreditService {
	if policy.RefreshInterval <= 0 {
		policy.RefreshInterval = DefaultRefreshInterval
	}
	if policy.DefaultHistoryLimit <= 0 {
		policy.DefaultHistoryLimit = DefaultHistoryLimit
	}
	return &CreditService{
		uowFactory: uowFactory,
		policy:     policy,
		clock:      SystemClock,
	}
}

// WithClock replaces the time source
func (s *CreditService) WithClock(clock Clock) *CreditService {
	s.clock = clock
	return s
}

// GetBalance returns the user's balance, creating it with the starting
// balance if the user has none yet.
func (s *CreditService) GetBalance(ctx context.Context, userID string) (*models.UserCredit, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	credit, err := ensureBalance(ctx, uow, userID, s.policy.StartingBalance, s.clock())
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit transaction", err)
	}
	return credit, nil
}

// InitializeBalance creates the user's balance with startingAmount and an
// initial grant. An existing balance is returned untouched.
func (s *CreditService) InitializeBalance(ctx context.Context, userID string, startingAmount int64) (*models.UserCredit, error) {
	if startingAmount < 0 {
		return nil, fmt.Errorf("starting amount %d: %w", startingAmount, ErrInvalidAmount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	credit, err := ensureBalance(ctx, uow, userID, startingAmount, s.clock())
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit transaction", err)
	}
	return credit, nil
}

// RecordTransaction applies a signed delta to an existing balance and
// appends it to the ledger. Debits that would overdraw the balance fail
// with ErrInsufficientCredits and change nothing.
func (s *CreditService) RecordTransaction(ctx context.Context, userID string, amount int64, messageID *string, description string) (*models.CreditTransaction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("transaction amount must be non-zero: %w", ErrInvalidAmount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	now := s.clock()
	credit, err := applyDelta(ctx, uow, userID, amount, now)
	if err != nil {
		return nil, err
	}

	tx, err := recordCreditChange(ctx, uow, ledgerEntry{
		userID:          userID,
		amount:          amount,
		balanceAfter:    credit.Balance,
		transactionType: models.TransactionTypeForAmount(amount),
		messageID:       messageID,
		description:     description,
		createdAt:       now,
	})
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit transaction", err)
	}

	log.WithFields(log.Fields{
		"userID":  userID,
		"amount":  amount,
		"balance": credit.Balance,
	}).Debug("Recorded credit transaction")

	return tx, nil
}

// HasSufficientCredits reports whether the balance covers required. The
// answer is advisory: RecordTransaction re-checks when it debits.
func (s *CreditService) HasSufficientCredits(ctx context.Context, userID string, required int64) (bool, error) {
	if required < 0 {
		return false, fmt.Errorf("required amount %d: %w", required, ErrInvalidAmount)
	}

	credit, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return credit.Balance >= required, nil
}

// RefreshIfDue resets the balance to dailyAmount when the refresh interval
// has elapsed since the last refresh. The ledger receives the difference
// between the old and new balance so the balance stays equal to the ledger sum.
func (s *CreditService) RefreshIfDue(ctx context.Context, userID string, dailyAmount int64) (bool, error) {
	if dailyAmount < 0 {
		return false, fmt.Errorf("daily amount %d: %w", dailyAmount, ErrInvalidAmount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	now := s.clock()
	if _, err := ensureBalance(ctx, uow, userID, s.policy.StartingBalance, now); err != nil {
		return false, err
	}

	repo := uow.UserCreditRepository()
	credit, err := repo.GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return false, storeError("lock balance", err)
	}
	if credit == nil {
		return false, fmt.Errorf("no credit balance for user %s: %w", userID, ErrNotFound)
	}

	if !credit.RefreshDue(now, s.policy.RefreshInterval) {
		if err := uow.Commit(); err != nil {
			return false, storeError("commit transaction", err)
		}
		return false, nil
	}

	previous := credit.Balance
	updated, err := repo.Reset(ctx, userID, dailyAmount, now)
	if err != nil {
		return false, storeError("reset balance", err)
	}

	if delta := dailyAmount - previous; delta != 0 {
		_, err := recordCreditChange(ctx, uow, ledgerEntry{
			userID:          userID,
			amount:          delta,
			balanceAfter:    updated.Balance,
			transactionType: models.TransactionTypeRefresh,
			description:     models.DescriptionDailyRefresh,
			createdAt:       now,
		})
		if err != nil {
			return false, err
		}
	}

	uow.EventBus().Publish(events.CreditsRefreshedEvent{
		UserID:          userID,
		PreviousBalance: previous,
		NewBalance:      updated.Balance,
		RefreshedAt:     now,
	})

	if err := uow.Commit(); err != nil {
		return false, storeError("commit transaction", err)
	}

	log.WithFields(log.Fields{
		"userID":          userID,
		"previousBalance": previous,
		"newBalance":      updated.Balance,
	}).Info("Refreshed free credits")

	return true, nil
}

// ListTransactions returns the newest ledger entries of the user
func (s *CreditService) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.CreditTransaction, error) {
	return s.listTransactions(ctx, userID, nil, limit)
}

// ListTransactionsBefore returns the page of entries older than the cursor
func (s *CreditService) ListTransactionsBefore(ctx context.Context, userID string, before models.HistoryCursor, limit int) ([]*models.CreditTransaction, error) {
	return s.listTransactions(ctx, userID, &before, limit)
}

func (s *CreditService) listTransactions(ctx context.Context, userID string, before *models.HistoryCursor, limit int) ([]*models.CreditTransaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	txs, err := uow.CreditTransactionRepository().ListByUser(ctx, userID, before, normalizeLimit(limit, s.policy.DefaultHistoryLimit))
	if err != nil {
		return nil, storeError("list credit transactions", err)
	}
	return txs, nil
}

// ListDueForRefresh returns up to limit users whose refresh interval has elapsed
func (s *CreditService) ListDueForRefresh(ctx context.Context, limit int) ([]string, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	cutoff := s.clock().Add(-s.policy.RefreshInterval)
	userIDs, err := uow.UserCreditRepository().ListDueForRefresh(ctx, cutoff, limit)
	if err != nil {
		return nil, storeError("list balances due for refresh", err)
	}
	return userIDs, nil
}

// VerifyLedger checks the stored balance against the sum of the ledger
func (s *CreditService) VerifyLedger(ctx context.Context, userID string) (*LedgerAudit, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	credit, err := uow.UserCreditRepository().GetByUserID(ctx, userID)
	if err != nil {
		return nil, storeError("get balance", err)
	}
	if credit == nil {
		return nil, fmt.Errorf("no credit balance for user %s: %w", userID, ErrNotFound)
	}

	sum, err := uow.CreditTransactionRepository().SumByUser(ctx, userID)
	if err != nil {
		return nil, storeError("sum credit transactions", err)
	}

	audit := &LedgerAudit{
		UserID:     userID,
		Balance:    credit.Balance,
		LedgerSum:  sum,
		Consistent: credit.Balance == sum,
	}
	if !audit.Consistent {
		log.WithFields(log.Fields{
			"userID":    userID,
			"balance":   credit.Balance,
			"ledgerSum": sum,
		}).Warn("Credit balance does not match ledger")
	}
	return audit, nil
}
