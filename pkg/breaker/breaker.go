package breaker

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"mercator-hq/switchboard/pkg/backends"
)

// Breaker is the circuit breaker for a single backend.
type Breaker struct {
	backend string
	cfg     Config
	now     func() time.Time
	notify  TransitionFunc

	mu            sync.Mutex
	state         State
	failures      []time.Time // transient failures inside the window, oldest first
	openedAt      time.Time
	cooldown      time.Duration
	probeInFlight bool
	cooldowns     *backoff.ExponentialBackOff
}

// New creates a Closed breaker for backend.
func New(backend string, cfg Config, opts ...Option) *Breaker {
	cfg = cfg.withDefaults()

	b := &Breaker{
		backend: backend,
		cfg:     cfg,
		now:     time.Now,
		state:   Closed,
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.now != nil {
		b.now = o.now
	}
	b.notify = o.notify

	b.cooldowns = backoff.NewExponentialBackOff()
	b.cooldowns.InitialInterval = cfg.Cooldown
	b.cooldowns.MaxInterval = cfg.MaxCooldown
	b.cooldowns.Multiplier = cfg.Multiplier
	b.cooldowns.RandomizationFactor = 0
	b.cooldowns.Reset()

	return b
}

// Backend returns the backend id this breaker protects.
func (b *Breaker) Backend() string {
	return b.backend
}

// Allow reports whether a request may be dispatched now.
//
// In Open it returns false until the cooldown has elapsed; the first caller
// after that moves the breaker to HalfOpen and becomes the probe. In HalfOpen
// every caller except the probe is denied.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Before(b.openedAt.Add(b.cooldown)) {
			return false
		}
		b.transitionLocked(HalfOpen)
		b.probeInFlight = true
		return true
	case HalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful dispatch. A successful probe closes the
// breaker, clears the failure window and resets the cooldown.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != HalfOpen {
		// Successes while Closed leave the rolling window alone; a late
		// success while Open does not override the trip.
		return
	}

	b.failures = b.failures[:0]
	b.probeInFlight = false
	b.cooldown = 0
	b.cooldowns.Reset()
	b.transitionLocked(Closed)
}

// RecordFailure records a failed dispatch. Non-transient kinds never count;
// if such a failure ends the probe, the probe slot is released instead.
func (b *Breaker) RecordFailure(kind backends.Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !kind.Transient() {
		b.releaseLocked()
		return
	}

	now := b.now()

	switch b.state {
	case Closed:
		b.failures = append(b.failures, now)
		b.pruneLocked(now)
		if len(b.failures) >= b.cfg.Threshold {
			b.openLocked(now)
		}
	case HalfOpen:
		b.failures = append(b.failures, now)
		b.openLocked(now)
	case Open:
		// Straggler from a request admitted before the trip.
	}
}

// Release frees the probe slot when the probe ended without a verdict on the
// backend's health (caller cancelled, upstream 429, terminal request error).
// The breaker returns to Open with the same cooldown, so the next caller may
// probe immediately.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a consistent view of the breaker.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Closed {
		b.pruneLocked(b.now())
	}
	return Snapshot{
		Backend:       b.backend,
		State:         b.state,
		Failures:      len(b.failures),
		Threshold:     b.cfg.Threshold,
		OpenedAt:      b.openedAt,
		Cooldown:      b.cooldown,
		ProbeInFlight: b.probeInFlight,
	}
}

// Reset forces the breaker Closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = b.failures[:0]
	b.probeInFlight = false
	b.openedAt = time.Time{}
	b.cooldown = 0
	b.cooldowns.Reset()
	b.transitionLocked(Closed)
}

// openLocked trips the breaker. The first trip after a close uses the base
// cooldown; each later trip without an intervening close doubles it.
func (b *Breaker) openLocked(now time.Time) {
	b.openedAt = now
	b.cooldown = b.cooldowns.NextBackOff()
	b.probeInFlight = false
	b.transitionLocked(Open)
}

func (b *Breaker) releaseLocked() {
	if b.state != HalfOpen || !b.probeInFlight {
		return
	}
	b.probeInFlight = false
	b.transitionLocked(Open)
}

func (b *Breaker) pruneLocked(now time.Time) {
	if b.cfg.Window <= 0 {
		return
	}
	cutoff := now.Add(-b.cfg.Window)
	i := 0
	for i < len(b.failures) && !b.failures[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.failures = append(b.failures[:0], b.failures[i:]...)
	}
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.notify != nil {
		b.notify(b.backend, from, to)
	}
}
