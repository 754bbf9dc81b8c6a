package helper

import (
	"sync"

	"github.com/ticketpool/ticketpool-simulation-go/ticketpool"
)

// EventSinkSpy is a ticketpool.EventSink that records every emitted event.
type EventSinkSpy struct {
	events []ticketpool.Event
	mu     sync.Mutex
}

// NewEventSinkSpy creates an empty EventSinkSpy.
func NewEventSinkSpy() *EventSinkSpy {
	return &EventSinkSpy{events: make([]ticketpool.Event, 0)}
}

// Emit implements ticketpool.EventSink.
func (s *EventSinkSpy) Emit(event ticketpool.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
}

// Events returns a copy of the recorded events in emission order.
func (s *EventSinkSpy) Events() []ticketpool.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]ticketpool.Event, len(s.events))
	copy(events, s.events)

	return events
}

// CountByKind returns how many events of kind were recorded.
func (s *EventSinkSpy) CountByKind(kind ticketpool.EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, event := range s.events {
		if event.Kind == kind {
			count++
		}
	}

	return count
}
