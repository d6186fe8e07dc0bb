package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// memoryEntry is a cached value with its expiry.
type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero = no expiry
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process Store with TTL expiry and LRU eviction.
//
// Expired entries are invisible to Get immediately and are removed by a
// background sweep. When the store holds maxEntries, Set evicts the least
// recently used entry in constant time.
type MemoryStore struct {
	entries    map[string]*list.Element // values are *memoryEntry
	lru        *list.List               // front = most recently used
	defaultTTL time.Duration
	maxEntries int
	now        func() time.Time
	mu         sync.Mutex

	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates a memory store. defaultTTL applies to Set calls with a
// non-positive ttl (0 = never expire). maxEntries of 0 means unlimited.
func NewMemoryStore(defaultTTL time.Duration, maxEntries int) *MemoryStore {
	return newMemoryStore(defaultTTL, maxEntries, time.Now, sweepInterval(defaultTTL))
}

func newMemoryStore(defaultTTL time.Duration, maxEntries int, now func() time.Time, sweep time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		now:        now,
		stopCh:     make(chan struct{}),
	}
	if sweep > 0 {
		go s.sweepLoop(sweep)
	}
	return s
}

// sweepInterval is half the TTL, clamped to at least 10 seconds, or one minute
// when entries do not expire by default.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Minute
	}
	return max(ttl/2, 10*time.Second)
}

// Get returns a copy of the value stored under key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	entry := el.Value.(*memoryEntry)
	if entry.expired(s.now()) {
		s.removeLocked(el)
		return nil, false, nil
	}
	s.lru.MoveToFront(el)

	return append([]byte(nil), entry.value...), true, nil
}

// Set stores a copy of value under key.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &memoryEntry{key: key, value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	if el, ok := s.entries[key]; ok {
		el.Value = entry
		s.lru.MoveToFront(el)
		return nil
	}

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.removeLocked(s.lru.Back())
	}
	s.entries[key] = s.lru.PushFront(entry)
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.removeLocked(el)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included until the
// next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the background sweep.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCh) })
	return nil
}

// removeLocked drops el from the map and the list. Caller must hold the lock.
func (s *MemoryStore) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	s.lru.Remove(el)
	delete(s.entries, el.Value.(*memoryEntry).key)
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCh:
			return
		}
	}
}

// removeExpired deletes every expired entry.
func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for el := s.lru.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*memoryEntry).expired(now) {
			s.removeLocked(el)
		}
		el = prev
	}
}
