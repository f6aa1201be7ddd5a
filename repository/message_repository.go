package repository

import (
	"context"
	"errors"
	"fmt"

	"creditledger/database"
	"creditledger/models"
	"creditledger/service"

	"github.com/jackc/pgx/v5"
)

// MessageRepository implements the MessageRepository interface
type MessageRepository struct {
	q queryable
}

// NewMessageRepository creates a repository on the connection pool
func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{q: db.Pool}
}

func newMessageRepositoryWithTx(tx queryable) *MessageRepository {
	return &MessageRepository{q: tx}
}

// CreateConversation inserts a conversation owned by conversation.UserID
func (r *MessageRepository) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	query := `
		INSERT INTO conversations (id, user_id, title, domain)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		conversation.ID,
		conversation.UserID,
		conversation.Title,
		conversation.Domain,
	).Scan(&conversation.CreatedAt, &conversation.UpdatedAt)

	if isForeignKeyViolation(err) {
		return fmt.Errorf("user %s does not exist: %w", conversation.UserID, service.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetConversation returns nil when the conversation does not exist
func (r *MessageRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, domain, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	var c models.Conversation
	err := r.q.QueryRow(ctx, query, id).Scan(&c.ID, &c.UserID, &c.Title, &c.Domain, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return &c, nil
}

// Create inserts a message into an existing conversation
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, role, content, tokens_used)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		message.ID,
		message.ConversationID,
		message.Role,
		message.Content,
		message.TokensUsed,
	).Scan(&message.CreatedAt)

	if isForeignKeyViolation(err) {
		return fmt.Errorf("conversation %s does not exist: %w", message.ConversationID, service.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID returns nil when the message does not exist
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, tokens_used, created_at
		FROM messages
		WHERE id = $1
	`

	var m models.Message
	err := r.q.QueryRow(ctx, query, id).Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.TokensUsed, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return &m, nil
}

// Delete removes a message. Ledger rows referencing it keep their amount
// with message_id set to NULL.
func (r *MessageRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}
