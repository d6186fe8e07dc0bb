package metrics

import (
	"context"
	"sync"
	"time"

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/breaker"
	"mercator-hq/switchboard/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// maxCallerCardinality bounds the distinct caller label values on cost
// metrics. Callers past the limit are reported as "other".
const maxCallerCardinality = 1000

// Collector is the main orchestrator for all Prometheus metrics in the
// gateway. It satisfies the observer interfaces of the router, the response
// cache and the audit recorder, so each component reports into it without
// importing Prometheus.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	routeMetrics   *RouteMetrics
	backendMetrics *BackendMetrics
	breakerMetrics *BreakerMetrics
	cacheMetrics   *CacheMetrics
	auditMetrics   *AuditMetrics
	costMetrics    *CostMetrics

	// Cardinality tracking for caller labels
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a private registry is created.
// Missing namespace and buckets take the config package defaults.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	router := routing.New(reg, routing.WithObserver(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = append([]float64(nil), config.DefaultLatencyBuckets...)
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(maxCallerCardinality),
	}

	c.routeMetrics = NewRouteMetrics(cfg, registry)
	c.backendMetrics = NewBackendMetrics(cfg, registry)
	c.breakerMetrics = NewBreakerMetrics(cfg, registry)
	c.cacheMetrics = NewCacheMetrics(cfg, registry)
	c.auditMetrics = NewAuditMetrics(cfg, registry)
	c.costMetrics = NewCostMetrics(cfg, registry)

	return c
}

// AttemptCompleted records one dispatch or denial against a backend.
func (c *Collector) AttemptCompleted(backend string, outcome audit.Outcome, latency time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.backendMetrics.RecordAttempt(backend, string(outcome), latency)
}

// RouteCompleted records the final result of a routed request.
func (c *Collector) RouteCompleted(status audit.FinalStatus, cacheHit bool, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.routeMetrics.RecordRoute(string(status), cacheHit, duration)
}

// BreakerTransition records a circuit breaker state change. Its signature
// matches breaker.TransitionFunc.
func (c *Collector) BreakerTransition(backend string, from, to breaker.State) {
	if !c.config.Enabled {
		return
	}

	c.breakerMetrics.RecordTransition(backend, to)
}

// CacheLookup records a response cache lookup ("hit", "miss", "bypass" or
// "error").
func (c *Collector) CacheLookup(result string) {
	if !c.config.Enabled {
		return
	}

	c.cacheMetrics.RecordLookup(result)
}

// QueueDepth records the audit recorder's current queue depth.
func (c *Collector) QueueDepth(depth int) {
	if !c.config.Enabled {
		return
	}

	c.auditMetrics.SetQueueDepth(depth)
}

// SyncWrite records an audit event written synchronously because the queue
// was full.
func (c *Collector) SyncWrite() {
	if !c.config.Enabled {
		return
	}

	c.auditMetrics.RecordSyncWrite()
}

// WriteError records an audit event that could not be persisted.
func (c *Collector) WriteError() {
	if !c.config.Enabled {
		return
	}

	c.auditMetrics.RecordWriteError()
}

// RecordEvent records cost and token usage of a finished audit event.
func (c *Collector) RecordEvent(event *audit.Event) {
	if !c.config.Enabled || event == nil {
		return
	}
	if event.FinalStatus != audit.StatusSuccess || event.CacheHit {
		return
	}

	caller := event.Caller
	if caller == "" {
		caller = "anonymous"
	}
	if !c.cardinalityLimiter.Allow(caller) {
		caller = "other"
	}

	c.costMetrics.RecordCost(event.Backend, caller, event.Cost)
	c.costMetrics.RecordTokens(event.Backend, event.Usage.PromptTokens, event.Usage.CompletionTokens)
}

// EventSink is the audit sink interface the router writes to.
type EventSink interface {
	Record(ctx context.Context, event *audit.Event) error
}

// AuditSink wraps next so every event is also counted by the collector before
// it is handed on.
func (c *Collector) AuditSink(next EventSink) EventSink {
	return &meteredSink{collector: c, next: next}
}

type meteredSink struct {
	collector *Collector
	next      EventSink
}

func (s *meteredSink) Record(ctx context.Context, event *audit.Event) error {
	s.collector.RecordEvent(event)
	return s.next.Record(ctx, event)
}

// WatchStatus registers gauges that read breaker state, bucket balance, and
// health from source on every scrape.
func (c *Collector) WatchStatus(source StatusSource) error {
	return c.registry.Register(newStatusCollector(c.config.Namespace, source))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
