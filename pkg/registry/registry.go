// Package registry holds the configured backends and the per-backend circuit
// breakers and token buckets that guard them.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/breaker"
	"mercator-hq/switchboard/pkg/limits/ratelimit"
)

type entry struct {
	desc    Descriptor
	adapter backends.Adapter
	models  map[string]struct{}
	enabled atomic.Bool
	health  atomic.Pointer[backends.Health]
}

func (e *entry) serves(model string) bool {
	if len(e.models) == 0 || model == "" {
		return true
	}
	_, ok := e.models[model]
	return ok
}

// Registry is the set of configured backends in priority order.
//
// The backend list is immutable after New; only enabled flags change, and
// they are atomics, so Candidates never takes a lock.
type Registry struct {
	ordered  []*entry // priority ascending, ties in configuration order
	byID     map[string]*entry
	breakers *breaker.Set
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

type options struct {
	breakerDefaults breaker.Config
	limitDefaults   ratelimit.Config
	breakerOpts     []breaker.Option
	limiterOpts     []ratelimit.Option
}

// Option configures a Registry.
type Option func(*options)

// WithBreakerDefaults sets breaker parameters for backends without overrides.
func WithBreakerDefaults(cfg breaker.Config, opts ...breaker.Option) Option {
	return func(o *options) {
		o.breakerDefaults = cfg
		o.breakerOpts = append(o.breakerOpts, opts...)
	}
}

// WithRateLimitDefaults sets bucket parameters for backends without overrides.
func WithRateLimitDefaults(cfg ratelimit.Config, opts ...ratelimit.Option) Option {
	return func(o *options) {
		o.limitDefaults = cfg
		o.limiterOpts = append(o.limiterOpts, opts...)
	}
}

// New builds a registry from descriptors and their adapters. Every descriptor
// needs an adapter whose Name() equals the descriptor id.
func New(descriptors []Descriptor, adapters []backends.Adapter, opts ...Option) (*Registry, error) {
	o := options{
		breakerDefaults: breaker.DefaultConfig(),
		limitDefaults:   ratelimit.Config{Capacity: 60, RefillRate: 1},
	}
	for _, opt := range opts {
		opt(&o)
	}

	byAdapter := make(map[string]backends.Adapter, len(adapters))
	for _, a := range adapters {
		byAdapter[a.Name()] = a
	}

	r := &Registry{
		byID:     make(map[string]*entry, len(descriptors)),
		breakers: breaker.NewSet(o.breakerDefaults, o.breakerOpts...),
		limiter:  ratelimit.NewLimiter(o.limitDefaults, o.limiterOpts...),
		logger:   slog.Default().With("component", "registry"),
	}

	for _, d := range descriptors {
		if _, dup := r.byID[d.ID]; dup {
			return nil, &BackendError{Backend: d.ID, Err: ErrDuplicateBackend}
		}
		adapter, ok := byAdapter[d.ID]
		if !ok {
			return nil, &BackendError{Backend: d.ID, Err: ErrMissingAdapter}
		}

		e := &entry{desc: d, adapter: adapter, models: make(map[string]struct{}, len(d.Models))}
		for _, m := range d.Models {
			e.models[m] = struct{}{}
		}
		e.enabled.Store(d.Enabled)

		if d.Breaker != (breaker.Config{}) {
			r.breakers.Configure(d.ID, mergeBreaker(d.Breaker, o.breakerDefaults))
		}
		if d.RateLimit != (ratelimit.Config{}) {
			r.limiter.Configure(d.ID, mergeRateLimit(d.RateLimit, o.limitDefaults))
		}

		r.byID[d.ID] = e
		r.ordered = append(r.ordered, e)
	}

	sort.SliceStable(r.ordered, func(i, j int) bool {
		return r.ordered[i].desc.Priority < r.ordered[j].desc.Priority
	})

	return r, nil
}

// Candidates returns the eligible backends for req in priority order.
//
// An "auto" request is eligible for every enabled backend. A request naming a
// backend id is eligible only for that backend, and only if it is enabled and
// serves the requested model.
func (r *Registry) Candidates(req *backends.Request) []Candidate {
	if !req.IsAuto() {
		e, ok := r.byID[req.Target]
		if !ok {
			r.logger.Debug("target backend not found", "request_id", req.RequestID, "target", req.Target)
			return nil
		}
		if !e.enabled.Load() || !e.serves(req.Model) {
			r.logger.Debug("target backend not eligible",
				"request_id", req.RequestID,
				"target", req.Target,
				"enabled", e.enabled.Load(),
				"model", req.Model,
			)
			return nil
		}
		return []Candidate{{Descriptor: e.desc, Adapter: e.adapter}}
	}

	out := make([]Candidate, 0, len(r.ordered))
	for _, e := range r.ordered {
		if !e.enabled.Load() {
			continue
		}
		out = append(out, Candidate{Descriptor: e.desc, Adapter: e.adapter})
	}

	r.logger.Debug("built candidate list",
		"request_id", req.RequestID,
		"total", len(r.ordered),
		"eligible", len(out),
	)
	return out
}

// Get returns the backend with the given id.
func (r *Registry) Get(id string) (Candidate, bool) {
	e, ok := r.byID[id]
	if !ok {
		return Candidate{}, false
	}
	return Candidate{Descriptor: e.desc, Adapter: e.adapter}, true
}

// IDs returns backend ids in priority order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ordered))
	for i, e := range r.ordered {
		ids[i] = e.desc.ID
	}
	return ids
}

// SetEnabled toggles a backend at runtime.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	e, ok := r.byID[id]
	if !ok {
		return &BackendError{Backend: id, Err: ErrUnknownBackend}
	}
	if prev := e.enabled.Swap(enabled); prev != enabled {
		r.logger.Info("backend toggled", "backend", id, "enabled", enabled)
	}
	return nil
}

// Enabled reports whether a backend is currently enabled.
func (r *Registry) Enabled(id string) bool {
	e, ok := r.byID[id]
	return ok && e.enabled.Load()
}

// Breakers returns the per-backend circuit breakers.
func (r *Registry) Breakers() *breaker.Set {
	return r.breakers
}

// Limiter returns the per-backend token buckets.
func (r *Registry) Limiter() *ratelimit.Limiter {
	return r.limiter
}

// Status returns breaker state and bucket occupancy for every backend, in
// priority order, together with the last health probe result if any.
func (r *Registry) Status() []BackendStatus {
	out := make([]BackendStatus, 0, len(r.ordered))
	for _, e := range r.ordered {
		out = append(out, BackendStatus{
			ID:       e.desc.ID,
			Priority: e.desc.Priority,
			Enabled:  e.enabled.Load(),
			Models:   e.desc.Models,
			Breaker:  r.breakers.Snapshot(e.desc.ID),
			Bucket:   r.limiter.Snapshot(e.desc.ID),
			Health:   e.health.Load(),
		})
	}
	return out
}

// CheckHealth probes every backend concurrently, each bounded by timeout, and
// stores the results for Status.
func (r *Registry) CheckHealth(ctx context.Context, timeout time.Duration) map[string]backends.Health {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]backends.Health, len(r.ordered))
	)

	for _, e := range r.ordered {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			h := e.adapter.HealthCheck(probeCtx)
			e.health.Store(&h)

			if !h.Healthy {
				r.logger.Warn("backend health check failed", "backend", e.desc.ID, "message", h.Message)
			}

			mu.Lock()
			results[e.desc.ID] = h
			mu.Unlock()
		}(e)
	}
	wg.Wait()

	return results
}

// mergeBreaker fills the unset fields of a per-backend override from def.
func mergeBreaker(c, def breaker.Config) breaker.Config {
	if c.Threshold == 0 {
		c.Threshold = def.Threshold
	}
	if c.Window == 0 {
		c.Window = def.Window
	}
	if c.Cooldown == 0 {
		c.Cooldown = def.Cooldown
	}
	if c.MaxCooldown == 0 {
		c.MaxCooldown = def.MaxCooldown
	}
	if c.Multiplier == 0 {
		c.Multiplier = def.Multiplier
	}
	return c
}

func mergeRateLimit(c, def ratelimit.Config) ratelimit.Config {
	if c.Capacity == 0 {
		c.Capacity = def.Capacity
	}
	if c.RefillRate == 0 {
		c.RefillRate = def.RefillRate
	}
	return c
}
