package memory

import (
	"context"
	"sync"

	audit "lexicon/pkg/platform/audit"
)

// InMemoryStore records published change events per resource. It implements audit.Publisher
// for tests and single-process runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event
	order  []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]audit.Event)
	s.order = nil
}

func (s *InMemoryStore) Publish(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ResourceID] = append(s.events[event.ResourceID], event)
	s.order = append(s.order, event)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

// ListByResource returns the events of one resource in publish order.
func (s *InMemoryStore) ListByResource(_ context.Context, resourceID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[resourceID]...), nil
}

// ListRecent returns the most recent limit events, newest last.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.order) - limit
	if start < 0 || limit <= 0 {
		start = 0
	}
	return append([]audit.Event{}, s.order[start:]...), nil
}
