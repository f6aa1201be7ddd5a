package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creditledger/database"
	"creditledger/models"
	"creditledger/service"

	"github.com/jackc/pgx/v5"
)

const userCreditColumns = `id, user_id, balance, last_refresh, created_at, updated_at`

// UserCreditRepository implements the UserCreditRepository interface
type UserCreditRepository struct {
	q queryable
}

// NewUserCreditRepository creates a repository on the connection pool
func NewUserCreditRepository(db *database.DB) *UserCreditRepository {
	return &UserCreditRepository{q: db.Pool}
}

func newUserCreditRepositoryWithTx(tx queryable) *UserCreditRepository {
	return &UserCreditRepository{q: tx}
}

func scanUserCredit(row pgx.Row) (*models.UserCredit, error) {
	var credit models.UserCredit
	err := row.Scan(
		&credit.ID,
		&credit.UserID,
		&credit.Balance,
		&credit.LastRefresh,
		&credit.CreatedAt,
		&credit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &credit, nil
}

// GetByUserID returns the balance row, or nil when the user has none
func (r *UserCreditRepository) GetByUserID(ctx context.Context, userID string) (*models.UserCredit, error) {
	query := `SELECT ` + userCreditColumns + ` FROM user_credits WHERE user_id = $1`

	credit, err := scanUserCredit(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credits for user %s: %w", userID, err)
	}
	return credit, nil
}

// GetByUserIDForUpdate locks the balance row until the transaction ends
func (r *UserCreditRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*models.UserCredit, error) {
	query := `SELECT ` + userCreditColumns + ` FROM user_credits WHERE user_id = $1 FOR UPDATE`

	credit, err := scanUserCredit(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock credits for user %s: %w", userID, err)
	}
	return credit, nil
}

// InsertIfAbsent creates the balance row with last_refresh set to now. If a
// row already exists it is returned with created == false.
func (r *UserCreditRepository) InsertIfAbsent(ctx context.Context, userID string, balance int64, now time.Time) (*models.UserCredit, bool, error) {
	query := `
		INSERT INTO user_credits (user_id, balance, last_refresh, created_at, updated_at)
		VALUES ($1, $2, $3, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + userCreditColumns

	credit, err := scanUserCredit(r.q.QueryRow(ctx, query, userID, balance, now))
	if err == nil {
		return credit, true, nil
	}
	if isForeignKeyViolation(err) {
		return nil, false, fmt.Errorf("user %s does not exist: %w", userID, service.ErrNotFound)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert credits for user %s: %w", userID, err)
	}

	existing, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("credits for user %s vanished after conflicting insert", userID)
	}
	return existing, false, nil
}

// ApplyDelta adds amount to the balance in one statement. The WHERE clause
// keeps the balance non-negative, so a debit that cannot be covered updates
// nothing and nil is returned. Concurrent calls serialize on the row lock.
func (r *UserCreditRepository) ApplyDelta(ctx context.Context, userID string, amount int64, now time.Time) (*models.UserCredit, error) {
	query := `
		UPDATE user_credits
		SET balance = balance + $2, updated_at = $3
		WHERE user_id = $1 AND balance + $2 >= 0
		RETURNING ` + userCreditColumns

	credit, err := scanUserCredit(r.q.QueryRow(ctx, query, userID, amount, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply %d credits for user %s: %w", amount, userID, err)
	}
	return credit, nil
}

// Reset sets the balance to an absolute value and records the refresh time
func (r *UserCreditRepository) Reset(ctx context.Context, userID string, balance int64, now time.Time) (*models.UserCredit, error) {
	query := `
		UPDATE user_credits
		SET balance = $2, last_refresh = $3, updated_at = $3
		WHERE user_id = $1
		RETURNING ` + userCreditColumns

	credit, err := scanUserCredit(r.q.QueryRow(ctx, query, userID, balance, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no credits to reset for user %s: %w", userID, service.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reset credits for user %s: %w", userID, err)
	}
	return credit, nil
}

// ListDueForRefresh returns users never refreshed or last refreshed at or
// before cutoff, oldest first
func (r *UserCreditRepository) ListDueForRefresh(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	query := `
		SELECT user_id
		FROM user_credits
		WHERE last_refresh IS NULL OR last_refresh <= $1
		ORDER BY last_refresh ASC NULLS FIRST, id ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits due for refresh: %w", err)
	}

	userIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan credits due for refresh: %w", err)
	}
	return userIDs, nil
}
