package infrastructure

import (
	"fmt"

	"creditledger/events"
)

// CreditEventStream is the JetStream stream holding every ledger event
const CreditEventStream = "credit_events"

// EventSubjectMapper maps ledger events to NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts an event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeCreditBalanceChanged:
		return "credits.balance_changed"
	case events.EventTypeCreditsRefreshed:
		return "credits.refreshed"
	case events.EventTypeUserCreated:
		return "users.created"
	case events.EventTypeUserDeleted:
		return "users.deleted"
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case "credits.balance_changed":
		return events.EventTypeCreditBalanceChanged
	case "credits.refreshed":
		return events.EventTypeCreditsRefreshed
	case "users.created":
		return events.EventTypeUserCreated
	case "users.deleted":
		return events.EventTypeUserDeleted
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"credits.balance_changed",
		"credits.refreshed",
		"users.created",
		"users.deleted",
	}
}
