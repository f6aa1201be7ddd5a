package events

import (
	"context"
	"sync"
	"time"

	"creditledger/models"

	log "github.com/sirupsen/logrus"
)

// EventType names a kind of domain event
type EventType string

const (
	EventTypeCreditBalanceChanged EventType = "credit_balance_changed"
	EventTypeCreditsRefreshed     EventType = "credits_refreshed"
	EventTypeUserCreated          EventType = "user_created"
	EventTypeUserDeleted          EventType = "user_deleted"
)

// AllEventTypes lists every event type the ledger emits.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeCreditBalanceChanged,
		EventTypeCreditsRefreshed,
		EventTypeUserCreated,
		EventTypeUserDeleted,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// CreditBalanceChangedEvent is emitted for every ledger entry written
type CreditBalanceChangedEvent struct {
	UserID          string                 `json:"userId"`
	TransactionID   int64                  `json:"transactionId"`
	OldBalance      int64                  `json:"oldBalance"`
	NewBalance      int64                  `json:"newBalance"`
	Amount          int64                  `json:"amount"`
	TransactionType models.TransactionType `json:"transactionType"`
	MessageID       *string                `json:"messageId,omitempty"`
}

func (e CreditBalanceChangedEvent) Type() EventType {
	return EventTypeCreditBalanceChanged
}

// CreditsRefreshedEvent is emitted when the refresh policy resets a balance
type CreditsRefreshedEvent struct {
	UserID          string    `json:"userId"`
	PreviousBalance int64     `json:"previousBalance"`
	NewBalance      int64     `json:"newBalance"`
	RefreshedAt     time.Time `json:"refreshedAt"`
}

func (e CreditsRefreshedEvent) Type() EventType {
	return EventTypeCreditsRefreshed
}

// UserCreatedEvent is emitted when a user is first synced from the identity provider
type UserCreatedEvent struct {
	UserID         string `json:"userId"`
	ExternalID     string `json:"externalId"`
	InitialBalance int64  `json:"initialBalance"`
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// UserDeletedEvent is emitted after a user and their ledger are removed
type UserDeletedEvent struct {
	UserID     string `json:"userId"`
	ExternalID string `json:"externalId"`
}

func (e UserDeletedEvent) Type() EventType {
	return EventTypeUserDeleted
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus dispatches events to subscribers asynchronously
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds handler for every event type in AllEventTypes.
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Emit hands event to every registered handler, each on its own goroutine.
// A panicking handler is logged and does not affect the others.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type()]...)
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Queued event until commit")
}

// Pending returns the number of queued events
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush emits the queued events. It is called after a successful commit, so
// handlers get a fresh context rather than the request's.
func (b *TransactionalBus) Flush() {
	if len(b.pending) == 0 {
		return
	}
	ctx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(ctx, ev)
	}
	log.WithField("eventCount", len(b.pending)).Debug("Flushed pending events")
	b.pending = nil
}

// Discard drops the queued events after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
