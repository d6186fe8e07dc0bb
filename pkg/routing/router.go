package routing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/cache"
	"mercator-hq/switchboard/pkg/registry"
	"mercator-hq/switchboard/pkg/telemetry/tracing"
)

// Config contains router settings.
type Config struct {
	// DefaultTimeout bounds a dispatch to a backend whose descriptor has no
	// timeout.
	// Default: 30 seconds
	DefaultTimeout time.Duration

	// MaxDispatches caps the number of network calls per request.
	// 0 means every candidate may be dispatched.
	MaxDispatches int
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{DefaultTimeout: 30 * time.Second}
}

// AuditSink receives the single audit event of each request.
// *recorder.Recorder satisfies it.
type AuditSink interface {
	Record(ctx context.Context, event *audit.Event) error
}

// Observer receives per-attempt and per-request outcomes, typically to export
// metrics.
type Observer interface {
	AttemptCompleted(backend string, outcome audit.Outcome, latency time.Duration)
	RouteCompleted(status audit.FinalStatus, cacheHit bool, duration time.Duration)
}

// Option configures a Router.
type Option func(*Router)

// WithConfig overrides the router configuration.
func WithConfig(cfg Config) Option {
	return func(r *Router) {
		if cfg.DefaultTimeout <= 0 {
			cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
		}
		r.config = cfg
	}
}

// WithCache puts a response cache in front of the chain.
func WithCache(c *cache.Cache) Option {
	return func(r *Router) { r.cache = c }
}

// WithAuditSink sets where audit events go.
func WithAuditSink(s AuditSink) Option {
	return func(r *Router) { r.audit = s }
}

// WithObserver registers an outcome observer.
func WithObserver(o Observer) Option {
	return func(r *Router) { r.observer = o }
}

// WithTracer sets the tracer for route and attempt spans. The global
// OpenTelemetry tracer is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) { r.tracer = t }
}

// WithLogger overrides the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// Router runs the fallback chain over a registry.
//
// Router holds no lock of its own; the only shared mutable state it touches is
// the per-backend breaker and bucket, each guarded independently.
type Router struct {
	registry *registry.Registry
	cache    *cache.Cache
	audit    AuditSink
	observer Observer
	tracer   trace.Tracer
	config   Config
	stats    *atomicStats
	logger   *slog.Logger
}

// New creates a router over reg.
func New(reg *registry.Registry, opts ...Option) *Router {
	r := &Router{
		registry: reg,
		config:   DefaultConfig(),
		stats:    newAtomicStats(),
		tracer:   otel.Tracer(tracing.InstrumentationName),
		logger:   slog.Default().With("component", "routing"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route serves req from the cache or the first backend that answers.
//
// On failure the error is one of *ExhaustedError, *TerminalError,
// *CancelledError, *NoCandidatesError or, for a malformed envelope,
// *backends.InvalidRequestError. Exactly one audit event is emitted either
// way. A missing request id is filled in.
func (r *Router) Route(ctx context.Context, req *backends.Request) (*backends.Response, error) {
	if req == nil {
		return nil, &backends.InvalidRequestError{Message: "request is nil"}
	}
	start := time.Now()

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	ctx, span := r.tracer.Start(ctx, tracing.SpanRoute, trace.WithAttributes(
		tracing.RequestAttributes(req.RequestID, req.Target, req.Model, req.Caller, req.Sensitive)...,
	))
	defer span.End()

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	ev := &audit.Event{
		RequestID: req.RequestID,
		Timestamp: start,
		Target:    req.Target,
		Model:     req.Model,
		Caller:    req.Caller,
		Sensitive: req.Sensitive,
	}
	if ev.Target == "" {
		ev.Target = backends.TargetAuto
	}

	resp, err := r.route(ctx, req, ev)

	r.finish(ctx, span, ev, start, resp, err)
	return resp, err
}

// route runs validation, the cache lookup and the chain, appending to
// ev.Attempts as it goes.
func (r *Router) route(ctx context.Context, req *backends.Request, ev *audit.Event) (*backends.Response, error) {
	if err := backends.Validate(req); err != nil {
		return nil, err
	}

	if key, err := cache.Key(req); err == nil {
		ev.RequestHash = key
	}

	if r.cache != nil {
		if resp, ok := r.cache.Get(ctx, req); ok {
			ev.CacheHit = true
			return resp, nil
		}
	}

	candidates := r.registry.Candidates(req)
	if len(candidates) == 0 {
		return nil, &NoCandidatesError{RequestID: req.RequestID, Target: ev.Target, Model: req.Model}
	}

	tried := make(map[string]struct{}, len(candidates))
	dispatches := 0

	for _, c := range candidates {
		id := c.ID()
		if _, dup := tried[id]; dup {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if r.config.MaxDispatches > 0 && dispatches >= r.config.MaxDispatches {
			r.logger.Debug("dispatch limit reached", "request_id", req.RequestID, "limit", r.config.MaxDispatches)
			break
		}
		tried[id] = struct{}{}

		att := audit.Attempt{Backend: id, StartedAt: time.Now()}

		if !r.acquire(id, req.Caller) {
			att.Outcome = audit.OutcomeRateLimited
			r.recordAttempt(ev, att)
			continue
		}
		if !r.allow(id) {
			att.Outcome = audit.OutcomeCircuitOpen
			r.recordAttempt(ev, att)
			continue
		}

		dispatches++
		resp, kind, err := r.dispatch(ctx, req, c)
		att.Latency = time.Since(att.StartedAt)

		if err == nil {
			r.registry.Breakers().RecordSuccess(id)
			att.Outcome = audit.OutcomeSuccess
			r.recordAttempt(ev, att)

			r.finalizeResponse(req, c, resp, att.Latency)
			if r.cache != nil {
				r.cache.Put(ctx, req, resp)
			}
			return resp, nil
		}

		// Non-transient kinds only release a held probe slot.
		r.registry.Breakers().RecordFailure(id, kind)

		att.Outcome = audit.OutcomeFor(kind)
		att.Error = err.Error()
		r.recordAttempt(ev, att)

		r.logger.Warn("backend attempt failed",
			"request_id", req.RequestID,
			"backend", id,
			"outcome", att.Outcome,
			"latency", att.Latency,
			"error", err,
		)

		switch {
		case kind == backends.KindCancelled:
			return nil, &CancelledError{RequestID: req.RequestID, Attempts: ev.Attempts, Cause: context.Cause(ctx)}
		case kind.Terminal():
			return nil, &TerminalError{RequestID: req.RequestID, Backend: id, Kind: kind, Attempts: ev.Attempts, Err: err}
		}
	}

	if ctx.Err() != nil {
		return nil, &CancelledError{RequestID: req.RequestID, Attempts: ev.Attempts, Cause: context.Cause(ctx)}
	}
	return nil, &ExhaustedError{RequestID: req.RequestID, Attempts: ev.Attempts}
}

// dispatch sends req to one backend under its timeout and classifies the
// failure. A panicking adapter is reported as a server error.
func (r *Router) dispatch(ctx context.Context, req *backends.Request, c registry.Candidate) (resp *backends.Response, kind backends.Kind, err error) {
	id := c.ID()
	timeout := c.Descriptor.Timeout
	if timeout <= 0 {
		timeout = r.config.DefaultTimeout
	}

	ctx, span := r.tracer.Start(ctx, tracing.SpanAttempt, trace.WithAttributes(
		tracing.AttemptAttributes(req.RequestID, id)...,
	))
	defer func() {
		outcome := audit.OutcomeSuccess
		if err != nil {
			outcome = audit.OutcomeFor(kind)
		}
		tracing.SetStatus(span, err, string(outcome))
		tracing.SetOutcome(span, string(outcome))
		span.End()
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err = r.send(attemptCtx, req, c.Adapter)
	if err == nil && resp == nil {
		err = &backends.ServerError{Backend: id, Message: "adapter returned no response"}
	}
	if err == nil {
		return resp, backends.KindUnknown, nil
	}

	switch {
	case ctx.Err() != nil:
		// The caller's context ended, not the backend's budget.
		return nil, backends.KindCancelled, err
	case attemptCtx.Err() == context.DeadlineExceeded:
		return nil, backends.KindTimeout, &backends.TimeoutError{Backend: id, Timeout: timeout}
	}

	kind = backends.Classify(err)
	if kind == backends.KindCancelled {
		// A cancellation the caller did not ask for is the backend's fault.
		kind = backends.KindServerError
	}
	return nil, kind, err
}

// send calls the adapter, converting a panic into a server error.
func (r *Router) send(ctx context.Context, req *backends.Request, a backends.Adapter) (resp *backends.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("adapter panicked", "backend", a.Name(), "request_id", req.RequestID, "panic", rec)
			resp = nil
			err = &backends.ServerError{Backend: a.Name(), Message: fmt.Sprintf("adapter panic: %v", rec)}
		}
	}()
	return a.Send(ctx, req)
}

// acquire takes a token from the backend's bucket, and from the caller's
// bucket when that dimension is enabled. A panic denies.
func (r *Router) acquire(backend, caller string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("rate limiter panicked, denying", "backend", backend, "panic", rec)
			ok = false
		}
	}()
	return r.registry.Limiter().TryAcquireFor(backend, caller, 1)
}

// allow asks the backend's breaker for admission. A panic denies.
func (r *Router) allow(backend string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("circuit breaker panicked, denying", "backend", backend, "panic", rec)
			ok = false
		}
	}()
	return r.registry.Breakers().Allow(backend)
}

func (r *Router) recordAttempt(ev *audit.Event, att audit.Attempt) {
	ev.Attempts = append(ev.Attempts, att)
	if r.observer != nil {
		r.observer.AttemptCompleted(att.Backend, att.Outcome, att.Latency)
	}
}

// finalizeResponse fills the fields the router owns.
func (r *Router) finalizeResponse(req *backends.Request, c registry.Candidate, resp *backends.Response, latency time.Duration) {
	resp.RequestID = req.RequestID
	if resp.Backend == "" {
		resp.Backend = c.ID()
	}
	if resp.Status == "" {
		resp.Status = backends.StatusOK
	}
	if resp.Latency == 0 {
		resp.Latency = latency
	}
	if resp.Cost == 0 {
		resp.Cost = c.Descriptor.Pricing.Estimate(resp.Usage)
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now()
	}
}

// finish completes the audit event and emits it exactly once.
func (r *Router) finish(ctx context.Context, span trace.Span, ev *audit.Event, start time.Time, resp *backends.Response, err error) {
	ev.FinalStatus = StatusOf(err)
	ev.Latency = time.Since(start)

	if resp != nil {
		ev.Backend = resp.Backend
		ev.Usage = resp.Usage
		ev.Cost = resp.Cost
	}
	if err != nil {
		ev.Error = err.Error()
	}
	tracing.SetStatus(span, err, string(ev.FinalStatus))
	tracing.SetRouteResult(span, string(ev.FinalStatus), ev.Backend, len(ev.Attempts), ev.CacheHit)
	tracing.SetUsage(span, ev.Usage.PromptTokens, ev.Usage.CompletionTokens, ev.Cost)

	r.stats.record(ev)
	if r.observer != nil {
		r.observer.RouteCompleted(ev.FinalStatus, ev.CacheHit, ev.Latency)
	}

	if r.audit != nil {
		if aerr := r.audit.Record(ctx, ev); aerr != nil {
			r.logger.Error("audit event not recorded", "request_id", ev.RequestID, "error", aerr)
		}
	}

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "request routed",
		"request_id", ev.RequestID,
		"status", ev.FinalStatus,
		"backend", ev.Backend,
		"cache_hit", ev.CacheHit,
		"attempts", len(ev.Attempts),
		"latency", ev.Latency,
	)
}

// Stats returns a snapshot of router statistics.
func (r *Router) Stats() Stats {
	return r.stats.snapshot()
}

// ResetStats zeroes router statistics.
func (r *Router) ResetStats() {
	r.stats.reset()
}

// Registry returns the registry the router runs over.
func (r *Router) Registry() *registry.Registry {
	return r.registry
}
