package service

import (
	"context"
	"fmt"

	"creditledger/models"

	"github.com/google/uuid"
)

// NewMessage is a message to be stored and charged to the conversation owner
type NewMessage struct {
	ConversationID string
	Role           models.MessageRole
	Content        string
	TokensUsed     int
	Cost           int64
}

// MessageService stores messages and charges their cost against the ledger.
// The HTTP layer exposes it to the chat backend under /internal.
type MessageService struct {
	uowFactory UnitOfWorkFactory
	clock      Clock
}

// NewMessageService creates a new message service
func NewMessageService(uowFactory UnitOfWorkFactory) *MessageService {
	return &MessageService{
		uowFactory: uowFactory,
		clock:      SystemClock,
	}
}

// WithClock replaces the time source
func (s *MessageService) WithClock(clock Clock) *MessageService {
	s.clock = clock
	return s
}

// CreateConversation opens a conversation for userID
func (s *MessageService) CreateConversation(ctx context.Context, userID, title, domain string) (*models.Conversation, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	conversation := &models.Conversation{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
		Domain: domain,
	}
	if err := uow.MessageRepository().CreateConversation(ctx, conversation); err != nil {
		return nil, storeError("create conversation", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, storeError("commit transaction", err)
	}
	return conversation, nil
}

// RecordMessage stores the message and debits its cost from the
// conversation owner in one transaction. When the balance cannot cover the
// cost nothing is stored and ErrInsufficientCredits is returned.
func (s *MessageService) RecordMessage(ctx context.Context, msg NewMessage) (*models.Message, *models.CreditTransaction, error) {
	if msg.Cost < 0 {
		return nil, nil, fmt.Errorf("message cost %d: %w", msg.Cost, ErrInvalidAmount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, storeError("begin transaction", err)
	}
	defer uow.Rollback()

	repo := uow.MessageRepository()
	conversation, err := repo.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, nil, storeError("get conversation", err)
	}
	if conversation == nil {
		return nil, nil, fmt.Errorf("conversation %s: %w", msg.ConversationID, ErrNotFound)
	}

	message := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		Role:           msg.Role,
		Content:        msg.Content,
		TokensUsed:     msg.TokensUsed,
	}
	if err := repo.Create(ctx, message); err != nil {
		return nil, nil, storeError("create message", err)
	}

	var charge *models.CreditTransaction
	if msg.Cost > 0 {
		now := s.clock()
		credit, err := applyDelta(ctx, uow, conversation.UserID, -msg.Cost, now)
		if err != nil {
			return nil, nil, err
		}
		charge, err = recordCreditChange(ctx, uow, ledgerEntry{
			userID:          conversation.UserID,
			amount:          -msg.Cost,
			balanceAfter:    credit.Balance,
			transactionType: models.TransactionTypeDebit,
			messageID:       &message.ID,
			description:     fmt.Sprintf("Message in conversation %s", conversation.ID),
			createdAt:       now,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, nil, storeError("commit transaction", err)
	}
	return message, charge, nil
}

// DeleteMessage removes a message. Ledger entries that referenced it keep
// their amount and lose the link.
func (s *MessageService) DeleteMessage(ctx context.Context, id string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return storeError("begin transaction", err)
	}
	defer uow.Rollback()

	deleted, err := uow.MessageRepository().Delete(ctx, id)
	if err != nil {
		return storeError("delete message", err)
	}
	if !deleted {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}

	if err := uow.Commit(); err != nil {
		return storeError("commit transaction", err)
	}
	return nil
}
