package storage

import (
	"context"
	"slices"
	"sync"

	"mercator-hq/switchboard/pkg/audit"
)

// MemoryStorage implements audit.Storage using an in-memory map.
type MemoryStorage struct {
	events map[string]*audit.Event
	mu     sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		events: make(map[string]*audit.Event),
	}
}

// Store persists a copy of the event. A repeated id is ignored.
func (s *MemoryStorage) Store(ctx context.Context, event *audit.Event) error {
	if err := ctx.Err(); err != nil {
		return audit.NewStorageError("memory", "store", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; ok {
		return nil
	}
	s.events[event.ID] = copyEvent(event)
	return nil
}

// Query returns copies of matching events ordered by timestamp.
func (s *MemoryStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Event, error) {
	s.mu.RLock()
	results := s.filterLocked(query)
	s.mu.RUnlock()

	asc := ascending(query)
	slices.SortFunc(results, func(a, b *audit.Event) int {
		c := a.Timestamp.Compare(b.Timestamp)
		if !asc {
			c = -c
		}
		return c
	})

	if query != nil {
		if query.Offset > 0 {
			if query.Offset >= len(results) {
				return []*audit.Event{}, nil
			}
			results = results[query.Offset:]
		}
		if query.Limit > 0 && query.Limit < len(results) {
			results = results[:query.Limit]
		}
	}

	for i, e := range results {
		results[i] = copyEvent(e)
	}
	return results, nil
}

// Count returns the number of matching events.
func (s *MemoryStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.filterLocked(query))), nil
}

// Delete removes matching events.
func (s *MemoryStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, e := range s.events {
		if matches(e, query) {
			delete(s.events, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) filterLocked(query *audit.Query) []*audit.Event {
	results := []*audit.Event{}
	for _, e := range s.events {
		if matches(e, query) {
			results = append(results, e)
		}
	}
	return results
}

func copyEvent(e *audit.Event) *audit.Event {
	c := *e
	c.Attempts = slices.Clone(e.Attempts)
	return &c
}
