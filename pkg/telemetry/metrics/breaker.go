package metrics

import (
	"mercator-hq/switchboard/pkg/breaker"
	"mercator-hq/switchboard/pkg/config"
	"mercator-hq/switchboard/pkg/registry"

	"github.com/prometheus/client_golang/prometheus"
)

// BreakerMetrics counts circuit breaker transitions.
//
// Metrics:
//   - switchboard_breaker_transitions_total: Transitions by backend and target state
type BreakerMetrics struct {
	transitions *prometheus.CounterVec
}

// NewBreakerMetrics creates and registers breaker metrics with the provided registry.
func NewBreakerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BreakerMetrics {
	bm := &BreakerMetrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker transitions by target state",
			},
			[]string{"backend", "to"},
		),
	}

	registry.MustRegister(bm.transitions)

	return bm
}

// RecordTransition counts a transition into state to.
func (bm *BreakerMetrics) RecordTransition(backend string, to breaker.State) {
	bm.transitions.WithLabelValues(backend, to.String()).Inc()
}

// StatusSource reports the live state of every backend.
type StatusSource interface {
	Status() []registry.BackendStatus
}

// statusCollector exports breaker, bucket, and health gauges read from a
// StatusSource at scrape time, so the values are never stale.
//
// Metrics:
//   - switchboard_breaker_state: 0=closed, 1=open, 2=half-open
//   - switchboard_breaker_failures: Failures counted in the current window
//   - switchboard_bucket_tokens: Current token bucket balance
//   - switchboard_bucket_capacity: Token bucket capacity
//   - switchboard_backend_enabled: 1 if the backend is enabled
//   - switchboard_backend_healthy: Last health check result (only after a check)
type statusCollector struct {
	source StatusSource

	breakerState    *prometheus.Desc
	breakerFailures *prometheus.Desc
	bucketTokens    *prometheus.Desc
	bucketCapacity  *prometheus.Desc
	enabled         *prometheus.Desc
	healthy         *prometheus.Desc
}

func newStatusCollector(namespace string, source StatusSource) *statusCollector {
	labels := []string{"backend"}
	return &statusCollector{
		source: source,
		breakerState: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "breaker_state"),
			"Circuit breaker state (0=closed, 1=open, 2=half-open)",
			labels, nil,
		),
		breakerFailures: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "breaker_failures"),
			"Failures counted in the current breaker window",
			labels, nil,
		),
		bucketTokens: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bucket_tokens"),
			"Current token bucket balance",
			labels, nil,
		),
		bucketCapacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bucket_capacity"),
			"Token bucket capacity",
			labels, nil,
		),
		enabled: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "backend_enabled"),
			"Whether the backend is enabled (1) or disabled (0)",
			labels, nil,
		),
		healthy: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "backend_healthy"),
			"Result of the last health check (1=healthy, 0=unhealthy)",
			labels, nil,
		),
	}
}

func (sc *statusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sc.breakerState
	ch <- sc.breakerFailures
	ch <- sc.bucketTokens
	ch <- sc.bucketCapacity
	ch <- sc.enabled
	ch <- sc.healthy
}

func (sc *statusCollector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range sc.source.Status() {
		ch <- prometheus.MustNewConstMetric(sc.breakerState, prometheus.GaugeValue, float64(st.Breaker.State), st.ID)
		ch <- prometheus.MustNewConstMetric(sc.breakerFailures, prometheus.GaugeValue, float64(st.Breaker.Failures), st.ID)
		ch <- prometheus.MustNewConstMetric(sc.bucketTokens, prometheus.GaugeValue, st.Bucket.Tokens, st.ID)
		ch <- prometheus.MustNewConstMetric(sc.bucketCapacity, prometheus.GaugeValue, st.Bucket.Capacity, st.ID)
		ch <- prometheus.MustNewConstMetric(sc.enabled, prometheus.GaugeValue, boolValue(st.Enabled), st.ID)
		if st.Health != nil {
			ch <- prometheus.MustNewConstMetric(sc.healthy, prometheus.GaugeValue, boolValue(st.Health.Healthy), st.ID)
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
