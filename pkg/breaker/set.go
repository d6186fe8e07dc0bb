package breaker

import (
	"sort"
	"sync"
	"time"

	"mercator-hq/switchboard/pkg/backends"
)

type options struct {
	now    func() time.Time
	notify TransitionFunc
}

// Option configures a Breaker or a Set.
type Option func(*options)

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithTransitionFunc registers an observer for state changes.
func WithTransitionFunc(fn TransitionFunc) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// Set holds one Breaker per backend id. Breakers are created lazily on first
// use from the Config registered with Configure, or the Set's defaults.
type Set struct {
	defaults  Config
	opts      []Option
	overrides sync.Map // backend id -> Config
	breakers  sync.Map // backend id -> *Breaker
}

// NewSet creates an empty Set. opts are applied to every breaker it creates.
func NewSet(defaults Config, opts ...Option) *Set {
	return &Set{
		defaults: defaults,
		opts:     opts,
	}
}

// Configure sets breaker parameters for a backend. It only affects a breaker
// that has not been created yet.
func (s *Set) Configure(backend string, cfg Config) {
	s.overrides.Store(backend, cfg)
}

// Get returns the backend's breaker, creating it on first use.
func (s *Set) Get(backend string) *Breaker {
	if b, ok := s.breakers.Load(backend); ok {
		return b.(*Breaker)
	}
	cfg := s.defaults
	if o, ok := s.overrides.Load(backend); ok {
		cfg = o.(Config)
	}
	b, _ := s.breakers.LoadOrStore(backend, New(backend, cfg, s.opts...))
	return b.(*Breaker)
}

// Allow reports whether backend may be dispatched to now.
func (s *Set) Allow(backend string) bool {
	return s.Get(backend).Allow()
}

// RecordSuccess records a successful dispatch to backend.
func (s *Set) RecordSuccess(backend string) {
	s.Get(backend).RecordSuccess()
}

// RecordFailure records a failed dispatch to backend.
func (s *Set) RecordFailure(backend string, kind backends.Kind) {
	s.Get(backend).RecordFailure(kind)
}

// Release frees backend's probe slot without a verdict.
func (s *Set) Release(backend string) {
	s.Get(backend).Release()
}

// State returns backend's current state.
func (s *Set) State(backend string) State {
	return s.Get(backend).State()
}

// Snapshot returns backend's breaker snapshot.
func (s *Set) Snapshot(backend string) Snapshot {
	return s.Get(backend).Snapshot()
}

// Snapshots returns snapshots of every breaker created so far, sorted by id.
func (s *Set) Snapshots() []Snapshot {
	var out []Snapshot
	s.breakers.Range(func(_, value any) bool {
		out = append(out, value.(*Breaker).Snapshot())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Backend < out[j].Backend })
	return out
}
