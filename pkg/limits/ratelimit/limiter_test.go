package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ============================================================================
// Token Bucket Tests
// ============================================================================

func TestTokenBucket_Basic(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 10, clock.Now)

	if !bucket.TryAcquire(5) {
		t.Error("Expected to take 5 tokens from full bucket")
	}

	if got := bucket.Remaining(); got != 5 {
		t.Errorf("Remaining() = %v, want 5", got)
	}

	if !bucket.TryAcquire(5) {
		t.Error("Expected to take remaining 5 tokens")
	}

	if bucket.TryAcquire(1) {
		t.Error("Expected bucket to be empty")
	}
}

func TestTokenBucket_DeniesIffBelowCost(t *testing.T) {
	tests := []struct {
		name     string
		capacity float64
		take     float64
		cost     float64
		want     bool
	}{
		{"exact balance admits", 5, 2, 3, true},
		{"one short denies", 5, 3, 3, false},
		{"cost above capacity denies", 5, 0, 6, false},
		{"zero capacity denies", 0, 0, 1, false},
		{"zero cost counts as one", 1, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			bucket := newTokenBucket(tt.capacity, 1, clock.Now)
			if tt.take > 0 && !bucket.TryAcquire(tt.take) {
				t.Fatalf("setup TryAcquire(%v) failed", tt.take)
			}
			before := bucket.Remaining()

			got := bucket.TryAcquire(tt.cost)
			if got != tt.want {
				t.Errorf("TryAcquire(%v) = %v, want %v", tt.cost, got, tt.want)
			}
			if !got && bucket.Remaining() != before {
				t.Errorf("denied TryAcquire changed balance: %v -> %v", before, bucket.Remaining())
			}
		})
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 2, clock.Now) // 2 tokens/sec

	bucket.TryAcquire(10)
	if bucket.TryAcquire(1) {
		t.Fatal("Expected bucket to be empty")
	}

	clock.Advance(250 * time.Millisecond)
	if got := bucket.Remaining(); got != 0.5 {
		t.Errorf("Remaining() after 250ms = %v, want 0.5", got)
	}
	if bucket.TryAcquire(1) {
		t.Error("Expected half a token to be insufficient")
	}

	clock.Advance(250 * time.Millisecond)
	if !bucket.TryAcquire(1) {
		t.Error("Expected bucket to have refilled one token")
	}
}

func TestTokenBucket_CapacityLimit(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 10, clock.Now)

	clock.Advance(time.Hour)

	if got := bucket.Remaining(); got != 10 {
		t.Errorf("Remaining() = %v, want capacity 10", got)
	}
}

func TestTokenBucket_ClockBackwards(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 10, clock.Now)
	bucket.TryAcquire(10)

	clock.Advance(-time.Minute)

	if got := bucket.Remaining(); got != 0 {
		t.Errorf("Remaining() after clock skew = %v, want 0", got)
	}
}

func TestTokenBucket_TimeUntilAvailable(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 10, clock.Now)

	bucket.TryAcquire(10)

	if got := bucket.TimeUntilAvailable(5); got != 500*time.Millisecond {
		t.Errorf("TimeUntilAvailable(5) = %v, want 500ms", got)
	}
	if got := bucket.TimeUntilAvailable(11); got != -1 {
		t.Errorf("TimeUntilAvailable(11) = %v, want -1", got)
	}

	bucket.Reset()
	if got := bucket.TimeUntilAvailable(5); got != 0 {
		t.Errorf("TimeUntilAvailable(5) after reset = %v, want 0", got)
	}
}

func TestTokenBucket_Drain(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(3, 1, clock.Now)

	bucket.Drain()

	if bucket.TryAcquire(1) {
		t.Error("Expected drained bucket to deny")
	}
}

func TestTokenBucket_ConcurrentNeverNegative(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(50, 0, clock.Now)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if bucket.TryAcquire(1) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 50 {
		t.Errorf("admitted = %d, want 50", got)
	}
	if got := bucket.Remaining(); got != 0 {
		t.Errorf("Remaining() = %v, want 0", got)
	}
}

// ============================================================================
// Limiter Tests
// ============================================================================

func TestLimiter_IndependentBuckets(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(Config{Capacity: 2, RefillRate: 1}, WithClock(clock.Now))

	limiter.TryAcquire("a", 1)
	limiter.TryAcquire("a", 1)

	if limiter.TryAcquire("a", 1) {
		t.Error("Expected backend a to be exhausted")
	}
	if !limiter.TryAcquire("b", 1) {
		t.Error("Expected backend b to be unaffected by a")
	}
}

func TestLimiter_Configure(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(Config{Capacity: 1, RefillRate: 1}, WithClock(clock.Now))
	limiter.Configure("big", Config{Capacity: 100, RefillRate: 10})

	snap := limiter.Snapshot("big")
	if snap.Capacity != 100 || snap.RefillRate != 10 {
		t.Errorf("Snapshot() = %+v, want capacity 100 refill 10", snap)
	}
	if snap.Occupancy() != 1 {
		t.Errorf("Occupancy() = %v, want 1", snap.Occupancy())
	}

	limiter.TryAcquire("big", 100)
	limiter.Configure("big", Config{Capacity: 5, RefillRate: 1})
	if got := limiter.Snapshot("big").Tokens; got != 0 {
		t.Errorf("Tokens after reconfigure = %v, want 0", got)
	}
}

func TestLimiter_ConfigureKeepsBalance(t *testing.T) {
	tests := []struct {
		name       string
		consume    float64
		advance    time.Duration
		next       Config
		wantTokens float64
	}{
		{
			name:       "drained bucket stays drained",
			consume:    10,
			next:       Config{Capacity: 50, RefillRate: 1},
			wantTokens: 0,
		},
		{
			name:       "balance capped at smaller capacity",
			consume:    2,
			next:       Config{Capacity: 5, RefillRate: 1},
			wantTokens: 5,
		},
		{
			name:       "balance kept under larger capacity",
			consume:    6,
			next:       Config{Capacity: 100, RefillRate: 1},
			wantTokens: 4,
		},
		{
			name:       "old rate credited before the switch",
			consume:    10,
			advance:    3 * time.Second,
			next:       Config{Capacity: 10, RefillRate: 0},
			wantTokens: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			limiter := NewLimiter(Config{Capacity: 10, RefillRate: 1}, WithClock(clock.Now))

			if !limiter.TryAcquire("a", tt.consume) {
				t.Fatalf("TryAcquire(%v) = false on a full bucket", tt.consume)
			}
			clock.Advance(tt.advance)
			limiter.Configure("a", tt.next)

			snap := limiter.Snapshot("a")
			if snap.Tokens != tt.wantTokens {
				t.Errorf("Tokens = %v, want %v", snap.Tokens, tt.wantTokens)
			}
			if snap.Capacity != tt.next.Capacity || snap.RefillRate != tt.next.RefillRate {
				t.Errorf("Snapshot() = %+v, want capacity %v refill %v", snap, tt.next.Capacity, tt.next.RefillRate)
			}
		})
	}
}

func TestLimiter_CallerDimension(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(
		Config{Capacity: 10, RefillRate: 0},
		WithClock(clock.Now),
		WithCallerLimit(Config{Capacity: 1, RefillRate: 0}),
	)

	if !limiter.TryAcquireFor("a", "alice", 1) {
		t.Fatal("Expected first caller request to be admitted")
	}
	if limiter.TryAcquireFor("a", "alice", 1) {
		t.Error("Expected alice's second request to be denied")
	}
	if !limiter.TryAcquireFor("a", "bob", 1) {
		t.Error("Expected bob to have an independent bucket")
	}
	// Both caller checks consumed backend tokens, including alice's denial.
	if got := limiter.Snapshot("a").Tokens; got != 7 {
		t.Errorf("backend tokens = %v, want 7", got)
	}
}

func TestLimiter_CallerDimensionDisabled(t *testing.T) {
	limiter := NewLimiter(Config{Capacity: 2, RefillRate: 0})

	for i := 0; i < 2; i++ {
		if !limiter.TryAcquireFor("a", "alice", 1) {
			t.Fatalf("request %d denied with caller dimension disabled", i)
		}
	}
}

func TestLimiter_ConcurrentFirstUse(t *testing.T) {
	limiter := NewLimiter(Config{Capacity: 100, RefillRate: 0})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.TryAcquire("shared", 1)
		}()
	}
	wg.Wait()

	if got := limiter.Snapshot("shared").Tokens; got != 0 {
		t.Errorf("Tokens = %v, want 0 (one bucket shared by all goroutines)", got)
	}
}
