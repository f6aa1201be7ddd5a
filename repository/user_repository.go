package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creditledger/database"
	"creditledger/models"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, external_id, email, display_name, avatar_url, created_at, updated_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Email,
		&user.DisplayName,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by primary key
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user, nil
}

// GetByExternalID retrieves a user by identity-provider id
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	user, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by external ID %s: %w", externalID, err)
	}
	return user, nil
}

// Upsert inserts the user or refreshes the profile fields of the user with
// the same external id. xmax is zero only for a freshly inserted row.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (bool, error) {
	query := `
		INSERT INTO users (id, external_id, email, display_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (external_id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.q.QueryRow(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		time.Now().UTC(),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert user %s: %w", user.ExternalID, err)
	}
	return inserted, nil
}

// DeleteByExternalID deletes the user and returns the removed row, or nil if
// there was none. Credits, ledger rows, conversations and messages cascade.
func (r *UserRepository) DeleteByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := `DELETE FROM users WHERE external_id = $1 RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete user %s: %w", externalID, err)
	}
	return user, nil
}
