package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket admission algorithm for a single
// backend.
//
// The bucket allows bursts up to its capacity while holding the long-run
// admission rate to the refill rate. Tokens are fractional so that slow refill
// rates (for example 0.5 tokens/sec) accumulate correctly between calls.
//
// # Algorithm
//
//  1. tokens = min(capacity, tokens + elapsed_seconds * refill_rate)
//  2. If tokens >= cost: subtract cost and admit
//  3. Otherwise: deny immediately
//
// Denial never blocks and never queues. Tokens are never refunded and the
// balance never drops below zero.
//
// # Thread Safety
//
// TokenBucket is safe for concurrent use; every operation runs under the
// bucket's own mutex.
type TokenBucket struct {
	capacity   float64          // Maximum tokens in bucket
	tokens     float64          // Current available tokens
	refillRate float64          // Tokens added per second
	lastRefill time.Time        // Last time tokens were refilled
	now        func() time.Time // Clock, replaceable in tests
	mu         sync.Mutex
}

// NewTokenBucket creates a full token bucket.
//
// Parameters:
//   - capacity: Maximum number of tokens in the bucket (burst size)
//   - refillRate: Number of tokens added per second (average rate)
//
// Example:
//
//	// 10 requests/sec average, burst up to 50
//	bucket := NewTokenBucket(50, 10)
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity, refillRate float64, now func() time.Time) *TokenBucket {
	if capacity < 0 {
		capacity = 0
	}
	if refillRate < 0 {
		refillRate = 0
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity, // Start with full bucket
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// TryAcquire refills the bucket and then consumes cost tokens if at least
// cost tokens are available. It returns false without changing the balance
// otherwise. A non-positive cost is treated as 1.
func (tb *TokenBucket) TryAcquire(cost float64) bool {
	if cost <= 0 {
		cost = 1
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens < cost {
		return false
	}
	tb.tokens -= cost
	return true
}

// Remaining returns the number of tokens currently available after a refill.
func (tb *TokenBucket) Remaining() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return tb.tokens
}

// Capacity returns the maximum bucket capacity.
func (tb *TokenBucket) Capacity() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.capacity
}

// RefillRate returns the refill rate in tokens per second.
func (tb *TokenBucket) RefillRate() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.refillRate
}

// Reset resets the bucket to full capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// Reconfigure changes the bucket's capacity and refill rate in place. Tokens
// accrued under the old rate are credited first, and the balance carries over
// capped at the new capacity, so a reconfiguration never refunds tokens.
func (tb *TokenBucket) Reconfigure(capacity, refillRate float64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	tb.capacity = max(capacity, 0)
	tb.refillRate = max(refillRate, 0)
	tb.tokens = min(tb.tokens, tb.capacity)
}

// Drain empties the bucket. Used by operators to shed load from a backend
// and by tests to put a backend into the rate-limited state.
func (tb *TokenBucket) Drain() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	tb.tokens = 0
}

// TimeUntilAvailable returns how long until cost tokens will be available.
// Returns 0 if tokens are immediately available and -1 if they never will be
// (cost above capacity or a zero refill rate).
func (tb *TokenBucket) TimeUntilAvailable(cost float64) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= cost {
		return 0
	}
	if cost > tb.capacity || tb.refillRate == 0 {
		return -1
	}

	secondsNeeded := (cost - tb.tokens) / tb.refillRate
	return time.Duration(secondsNeeded * float64(time.Second))
}

// refillLocked adds tokens based on elapsed time since last refill.
// Caller must hold lock.
func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		// Clock went backwards or no time passed; never mint tokens.
		return
	}

	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	if tb.tokens < 0 {
		tb.tokens = 0
	}
	tb.lastRefill = now
}
