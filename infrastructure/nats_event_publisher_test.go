package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"creditledger/events"
	"creditledger/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessagePublisher struct {
	mock.Mock
}

func (m *mockMessagePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func TestNATSEventPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	msgPublisher := &mockMessagePublisher{}
	publisher := NewNATSEventPublisher(msgPublisher, NewEventSubjectMapper())
	publisher.now = func() time.Time { return fixed }

	var sent []byte
	msgPublisher.On("Publish", ctx, "credits.balance_changed", mock.AnythingOfType("[]uint8")).
		Run(func(args mock.Arguments) { sent = args.Get(2).([]byte) }).
		Return(nil).Once()

	event := events.CreditBalanceChangedEvent{
		UserID:          "user-1",
		TransactionID:   42,
		OldBalance:      10,
		NewBalance:      9,
		Amount:          -1,
		TransactionType: models.TransactionTypeDebit,
	}
	require.NoError(t, publisher.Publish(ctx, event))

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(sent, &envelope))
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "credit_balance_changed", envelope.EventType)
	assert.Equal(t, "creditledger", envelope.SourceService)
	assert.True(t, envelope.Timestamp.Equal(fixed))

	var payload events.CreditBalanceChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, event, payload)

	msgPublisher.AssertExpectations(t)
}

func TestNATSEventPublisher_PublishError(t *testing.T) {
	ctx := context.Background()
	msgPublisher := &mockMessagePublisher{}
	publisher := NewNATSEventPublisher(msgPublisher, NewEventSubjectMapper())

	msgPublisher.On("Publish", ctx, "users.deleted", mock.Anything).Return(errors.New("no responders")).Once()

	err := publisher.Publish(ctx, events.UserDeletedEvent{UserID: "u", ExternalID: "ext"})
	assert.ErrorContains(t, err, "no responders")
	msgPublisher.AssertExpectations(t)
}

func TestNATSEventPublisher_AttachForwardsBusEvents(t *testing.T) {
	msgPublisher := &mockMessagePublisher{}
	publisher := NewNATSEventPublisher(msgPublisher, NewEventSubjectMapper())

	delivered := make(chan string, 1)
	msgPublisher.On("Publish", mock.Anything, "credits.refreshed", mock.Anything).
		Run(func(args mock.Arguments) { delivered <- args.String(1) }).
		Return(nil).Once()

	bus := events.NewBus()
	publisher.Attach(bus)
	bus.Emit(context.Background(), events.CreditsRefreshedEvent{UserID: "u", NewBalance: 10})

	select {
	case subject := <-delivered:
		assert.Equal(t, "credits.refreshed", subject)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not forwarded")
	}
}
