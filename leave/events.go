package leave

import (
	"context"
	"log"
	"time"
)

// =============================================================================
// DOMAIN EVENTS - Emitted on every transition for the external notifier
// =============================================================================

type EventType string

const (
	EventRequestCreated   EventType = "request.created"
	EventRequestApproved  EventType = "request.approved"
	EventRequestDenied    EventType = "request.denied"
	EventRequestCancelled EventType = "request.cancelled"
)

// Event describes a completed transition. The balance snapshot reflects the
// state after the transition so the notifier never has to query back.
type Event struct {
	Type       EventType
	RequestID  RequestID
	EmployeeID EmployeeID
	ActorID    EmployeeID
	OccurredAt time.Time
	Snapshot   BalanceSnapshot
}

// Dispatcher receives domain events. Delivery and retry are entirely the
// dispatcher's concern; the engine fires and forgets after the transition
// has been persisted.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event)
}

// NoopDispatcher drops all events. Used when no notifier is wired.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(context.Context, Event) {}

// LogDispatcher writes events to the standard logger.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, e Event) {
	log.Printf("event %s request=%s employee=%s remaining=%d",
		e.Type, e.RequestID, e.EmployeeID, e.Snapshot.Remaining)
}
