package ratelimit

import (
	"sync"
	"time"
)

// Limiter holds one TokenBucket per key.
//
// Buckets are created on first use from the per-backend Config registered with
// Configure, falling back to the Limiter's default Config.
type Limiter struct {
	defaults  Config
	caller    *Config
	overrides sync.Map // backend id -> Config
	buckets   sync.Map // key -> *TokenBucket
	now       func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithCallerLimit enables the nested per-caller dimension used by
// TryAcquireFor.
func WithCallerLimit(cfg Config) Option {
	return func(l *Limiter) {
		l.caller = &cfg
	}
}

// NewLimiter creates a Limiter with the given default bucket parameters.
func NewLimiter(defaults Config, opts ...Option) *Limiter {
	l := &Limiter{
		defaults: defaults,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Configure sets the bucket parameters for a backend. An existing bucket keeps
// its balance, capped at the new capacity.
func (l *Limiter) Configure(backend string, cfg Config) {
	l.overrides.Store(backend, cfg)
	if b, ok := l.buckets.Load(backend); ok {
		b.(*TokenBucket).Reconfigure(cfg.Capacity, cfg.RefillRate)
	}
}

// TryAcquire consumes cost tokens from the backend's bucket. It never blocks.
func (l *Limiter) TryAcquire(backend string, cost float64) bool {
	return l.Bucket(backend).TryAcquire(cost)
}

// TryAcquireFor checks the backend bucket and, when the caller dimension is
// enabled, a nested "backend/caller" bucket. The backend bucket is consulted
// first; a token taken there is not returned if the caller bucket denies.
func (l *Limiter) TryAcquireFor(backend, caller string, cost float64) bool {
	if !l.TryAcquire(backend, cost) {
		return false
	}
	if l.caller == nil || caller == "" {
		return true
	}
	return l.callerBucket(backend, caller).TryAcquire(cost)
}

// Bucket returns the backend's bucket, creating it on first use.
func (l *Limiter) Bucket(backend string) *TokenBucket {
	if b, ok := l.buckets.Load(backend); ok {
		return b.(*TokenBucket)
	}
	cfg := l.configFor(backend)
	b, _ := l.buckets.LoadOrStore(backend, newTokenBucket(cfg.Capacity, cfg.RefillRate, l.now))
	return b.(*TokenBucket)
}

// Snapshot returns the current occupancy of the backend's bucket.
func (l *Limiter) Snapshot(backend string) Snapshot {
	b := l.Bucket(backend)
	return Snapshot{
		Key:        backend,
		Tokens:     b.Remaining(),
		Capacity:   b.Capacity(),
		RefillRate: b.RefillRate(),
		RetryAfter: b.TimeUntilAvailable(1),
	}
}

// Reset refills every bucket to capacity.
func (l *Limiter) Reset() {
	l.buckets.Range(func(_, value any) bool {
		value.(*TokenBucket).Reset()
		return true
	})
}

func (l *Limiter) configFor(backend string) Config {
	if cfg, ok := l.overrides.Load(backend); ok {
		return cfg.(Config)
	}
	return l.defaults
}

func (l *Limiter) callerBucket(backend, caller string) *TokenBucket {
	key := backend + "/" + caller
	if b, ok := l.buckets.Load(key); ok {
		return b.(*TokenBucket)
	}
	b, _ := l.buckets.LoadOrStore(key, newTokenBucket(l.caller.Capacity, l.caller.RefillRate, l.now))
	return b.(*TokenBucket)
}
