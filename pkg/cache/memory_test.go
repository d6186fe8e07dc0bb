package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemoryStore(t *testing.T, ttl time.Duration, maxEntries int, clock *fakeClock) *MemoryStore {
	t.Helper()
	s := newMemoryStore(ttl, maxEntries, clock.Now, 0)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, time.Minute, 0, newFakeClock())

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("Get() on empty store hit")
	}

	value := []byte("v1")
	if err := s.Set(ctx, "k", value, 0); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	value[0] = 'x'

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want hit", ok, err)
	}
	if string(got) != "v1" {
		t.Errorf("Get() = %q, want %q", got, "v1")
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("Get() after Delete() hit")
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemoryStore(t, time.Minute, 0, clock)

	s.Set(ctx, "default", []byte("a"), 0)
	s.Set(ctx, "short", []byte("b"), 10*time.Second)

	clock.Advance(9 * time.Second)
	if _, ok, _ := s.Get(ctx, "short"); !ok {
		t.Error("short entry expired early")
	}

	clock.Advance(time.Second)
	if _, ok, _ := s.Get(ctx, "short"); ok {
		t.Error("short entry alive at its ttl")
	}
	if _, ok, _ := s.Get(ctx, "default"); !ok {
		t.Error("default entry expired early")
	}

	clock.Advance(time.Minute)
	s.removeExpired()
	if s.Len() != 0 {
		t.Errorf("Len() after sweep = %d, want 0", s.Len())
	}
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemoryStore(t, 0, 2, clock)

	s.Set(ctx, "a", []byte("1"), 0)
	clock.Advance(time.Second)
	s.Set(ctx, "b", []byte("2"), 0)
	clock.Advance(time.Second)

	// Touch a so b becomes least recently used.
	s.Get(ctx, "a")
	clock.Advance(time.Second)

	s.Set(ctx, "c", []byte("3"), 0)

	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Error("least recently used entry b survived eviction")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok, _ := s.Get(ctx, k); !ok {
			t.Errorf("entry %s evicted, want kept", k)
		}
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestMemoryStore_LRUOrderWithoutClockMovement(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, 0, 3, newFakeClock())

	for _, k := range []string{"a", "b", "c"} {
		s.Set(ctx, k, []byte(k), 0)
	}
	s.Get(ctx, "a")
	s.Set(ctx, "b", []byte("b2"), 0)

	// c is now the least recently used, then a.
	s.Set(ctx, "d", []byte("d"), 0)
	s.Set(ctx, "e", []byte("e"), 0)

	tests := []struct {
		key  string
		want bool
	}{
		{"a", false},
		{"b", true},
		{"c", false},
		{"d", true},
		{"e", true},
	}
	for _, tt := range tests {
		if _, ok, _ := s.Get(ctx, tt.key); ok != tt.want {
			t.Errorf("Get(%s) found = %v, want %v", tt.key, ok, tt.want)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestMemoryStore_DeleteAndSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemoryStore(t, time.Minute, 0, clock)

	s.Set(ctx, "short", []byte("1"), time.Second)
	s.Set(ctx, "long", []byte("2"), 0)
	s.Set(ctx, "gone", []byte("3"), 0)
	s.Delete(ctx, "gone")

	clock.Advance(2 * time.Second)
	s.removeExpired()

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if _, ok, _ := s.Get(ctx, "long"); !ok {
		t.Error("Get(long) missed, want hit")
	}
}

func TestMemoryStore_OverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, 0, 2, newFakeClock())

	s.Set(ctx, "a", []byte("1"), 0)
	s.Set(ctx, "b", []byte("2"), 0)
	s.Set(ctx, "a", []byte("3"), 0)

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	got, _, _ := s.Get(ctx, "a")
	if string(got) != "3" {
		t.Errorf("Get(a) = %q, want %q", got, "3")
	}
}

func TestSweepInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{0, time.Minute},
		{5 * time.Second, 10 * time.Second},
		{10 * time.Minute, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := sweepInterval(tt.ttl); got != tt.want {
			t.Errorf("sweepInterval(%v) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}
