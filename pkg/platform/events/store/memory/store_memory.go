package memory

import (
	"context"
	"sync"

	id "libripal/pkg/domain"
	"libripal/pkg/platform/events"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.PatronID][]events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.PatronID][]events.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.PatronID][]events.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.PatronID] = append(s.events[event.PatronID], event)
	return nil
}

func (s *InMemoryStore) ListByPatron(_ context.Context, patronID id.PatronID) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.events[patronID]...), nil
}
