package testutil

import (
	"context"
	"fmt"
	"testing"

	"creditledger/database"
	"creditledger/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// CreateTestUser builds an unsaved user with unique identifiers
func CreateTestUser(name string) *models.User {
	suffix := uuid.NewString()[:8]
	return &models.User{
		ID:          uuid.NewString(),
		ExternalID:  fmt.Sprintf("user_%s_%s", name, suffix),
		Email:       fmt.Sprintf("%s-%s@example.com", name, suffix),
		DisplayName: &name,
	}
}

// InsertTestUser stores a user directly, bypassing the service layer
func InsertTestUser(t *testing.T, db *database.DB, name string) *models.User {
	t.Helper()
	user := CreateTestUser(name)
	err := db.QueryRow(context.Background(), `
		INSERT INTO users (id, external_id, email, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, user.ID, user.ExternalID, user.Email, user.DisplayName).Scan(&user.CreatedAt, &user.UpdatedAt)
	require.NoError(t, err)
	return user
}

// InsertTestMessage stores a conversation and one message owned by userID
func InsertTestMessage(t *testing.T, db *database.DB, userID string) *models.Message {
	t.Helper()
	ctx := context.Background()

	conversationID := uuid.NewString()
	_, err := db.Exec(ctx, `INSERT INTO conversations (id, user_id, title) VALUES ($1, $2, 'test')`, conversationID, userID)
	require.NoError(t, err)

	message := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.MessageRoleUser,
		Content:        "hello",
	}
	err = db.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, message.ID, message.ConversationID, message.Role, message.Content).Scan(&message.CreatedAt)
	require.NoError(t, err)
	return message
}
