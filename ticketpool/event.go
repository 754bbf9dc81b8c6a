package ticketpool

import (
	"time"
)

// EventKind distinguishes the two observable pool mutations.
type EventKind string

const (
	EventKindProduced EventKind = "produced"
	EventKindSold     EventKind = "sold"
)

// Event describes one successful pool mutation.
// ActorID is the vendor id for produced events and the customer id for sold events.
// VIP is only meaningful for sold events.
type Event struct {
	Kind       EventKind
	TicketID   uint64
	ActorID    string
	VIP        bool
	OccurredAt time.Time
}

// EventSink receives pool events.
//
// Emit is called outside the pool's critical section. It may read Statistics but must not call
// AddTicket or RemoveTicket. Implementations must be safe for concurrent use and should return quickly.
// A panic in Emit is recovered by the pool: the event is dropped, logged and counted.
type EventSink interface {
	Emit(event Event)
}

// EventSinkFunc adapts a plain function to EventSink.
type EventSinkFunc func(event Event)

// Emit calls f(event).
func (f EventSinkFunc) Emit(event Event) {
	f(event)
}

// discardSink is used when no sink is configured.
type discardSink struct{}

func (discardSink) Emit(Event) {}
