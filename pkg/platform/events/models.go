// Package events captures domain events emitted by circulation, patron, and
// notification flows. Events are transport-agnostic; stores decide whether
// they land in memory, Postgres, or Kafka.
package events

import (
	"context"
	"time"

	id "libripal/pkg/domain"
)

// Event is emitted from domain logic to capture key library actions.
type Event struct {
	Type      EventType
	Timestamp time.Time
	PatronID  id.PatronID
	// Subject identifies the entity the event is about, such as a book
	// title for loan events or a channel name for notification events.
	Subject string
	// Detail carries the event-specific outcome, such as "renewed" or
	// "denied_limit_reached".
	Detail    string
	RequestID string
}

// EventType names every event the service emits.
type EventType string

const (
	// Circulation events
	EventLoanIssued   EventType = "loan_issued"
	EventLoanRenewed  EventType = "loan_renewed"
	EventLoanReturned EventType = "loan_returned"
	EventLoanDenied   EventType = "loan_denied"

	// Patron events
	EventPatronCreated     EventType = "patron_created"
	EventPatronDeactivated EventType = "patron_deactivated"

	// Notification events
	EventNotificationSent   EventType = "notification_sent"
	EventNotificationFailed EventType = "notification_failed"
	EventReminderSwept      EventType = "reminder_swept"
)

// Store persists events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByPatron(ctx context.Context, patronID id.PatronID) ([]Event, error)
}
