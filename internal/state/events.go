package state

import (
	"sync"

	"github.com/talktojer/ge-sub000/internal/events"
)

// EventDiff contains the batch of events ready for broadcast.
type EventDiff struct {
	Events []events.Event `json:"events,omitempty"`
}

// EventStore buffers events until the next diff publishes them.
type EventStore struct {
	mu     sync.Mutex
	events []events.Event
}

// NewEventStore constructs an event buffer.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Add enqueues events for the next diff.
func (s *EventStore) Add(batch ...events.Event) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	//1.- Append clones while holding the mutex to keep the publication order.
	for _, event := range batch {
		s.events = append(s.events, event.Clone())
	}
	s.mu.Unlock()
}

// ConsumeDiff flushes and returns the queued events.
func (s *EventStore) ConsumeDiff() EventDiff {
	s.mu.Lock()
	//1.- Swap out the current slice with a fresh buffer for the next tick.
	pending := s.events
	s.events = nil
	s.mu.Unlock()
	if len(pending) == 0 {
		return EventDiff{}
	}
	return EventDiff{Events: pending}
}

// Len reports the number of buffered events.
func (s *EventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
