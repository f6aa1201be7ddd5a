package repository

import (
	"context"
	"fmt"
	"time"

	"creditledger/database"
	"creditledger/models"
	"creditledger/service"

	"github.com/jackc/pgx/v5"
)

// CreditTransactionRepository implements the CreditTransactionRepository interface.
// Ledger rows are never updated or deleted through it.
type CreditTransactionRepository struct {
	q queryable
}

// NewCreditTransactionRepository creates a repository on the connection pool
func NewCreditTransactionRepository(db *database.DB) *CreditTransactionRepository {
	return &CreditTransactionRepository{q: db.Pool}
}

func newCreditTransactionRepositoryWithTx(tx queryable) *CreditTransactionRepository {
	return &CreditTransactionRepository{q: tx}
}

// Record appends a ledger row. A zero CreatedAt is stamped by the database.
func (r *CreditTransactionRepository) Record(ctx context.Context, tx *models.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (
			user_id, amount, balance_after, transaction_type, message_id, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING id, created_at
	`

	var createdAt *time.Time
	if !tx.CreatedAt.IsZero() {
		createdAt = &tx.CreatedAt
	}

	err := r.q.QueryRow(ctx, query,
		tx.UserID,
		tx.Amount,
		tx.BalanceAfter,
		tx.TransactionType,
		tx.MessageID,
		tx.Description,
		createdAt,
	).Scan(&tx.ID, &tx.CreatedAt)

	if isForeignKeyViolation(err) {
		return fmt.Errorf("user %s or referenced message does not exist: %w", tx.UserID, service.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to record credit transaction for user %s: %w", tx.UserID, err)
	}
	return nil
}

// ListByUser returns up to limit rows newest first. Rows sharing a
// timestamp are ordered by id, and the cursor compares on the same pair so
// no row is skipped between pages.
func (r *CreditTransactionRepository) ListByUser(ctx context.Context, userID string, before *models.HistoryCursor, limit int) ([]*models.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, balance_after, transaction_type, message_id, description, created_at
		FROM credit_transactions
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR (created_at, id) < ($2::timestamptz, $3::bigint))
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`

	var (
		beforeTime *time.Time
		beforeID   int64
	)
	if before != nil {
		beforeTime = &before.CreatedAt
		beforeID = before.ID
	}

	rows, err := r.q.Query(ctx, query, userID, beforeTime, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions for user %s: %w", userID, err)
	}

	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.CreditTransaction, error) {
		var tx models.CreditTransaction
		err := row.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Amount,
			&tx.BalanceAfter,
			&tx.TransactionType,
			&tx.MessageID,
			&tx.Description,
			&tx.CreatedAt,
		)
		return &tx, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan credit transactions for user %s: %w", userID, err)
	}
	return txs, nil
}

// SumByUser returns the sum of all amounts recorded for the user
func (r *CreditTransactionRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::bigint FROM credit_transactions WHERE user_id = $1`

	var sum int64
	if err := r.q.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum credit transactions for user %s: %w", userID, err)
	}
	return sum, nil
}
