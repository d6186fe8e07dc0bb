package metrics

import (
	"time"

	"mercator-hq/switchboard/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// BackendMetrics tracks per-backend attempt outcomes.
//
// Metrics:
//   - switchboard_backend_attempts_total: Attempts by backend and outcome
//   - switchboard_backend_latency_seconds: Dispatch latency by backend
//
// Local denials (rate_limited, circuit_open) are counted but not observed in
// the latency histogram since nothing was sent upstream.
type BackendMetrics struct {
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewBackendMetrics creates and registers backend metrics with the provided registry.
func NewBackendMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BackendMetrics {
	bm := &BackendMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "backend_attempts_total",
				Help:      "Total number of backend attempts by outcome",
			},
			[]string{"backend", "outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "backend_latency_seconds",
				Help:      "Latency of dispatched backend calls in seconds",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(bm.attempts, bm.latency)

	return bm
}

// RecordAttempt records one attempt against a backend.
func (bm *BackendMetrics) RecordAttempt(backend, outcome string, latency time.Duration) {
	bm.attempts.WithLabelValues(backend, outcome).Inc()
	if outcome == "rate_limited" || outcome == "circuit_open" {
		return
	}
	bm.latency.WithLabelValues(backend).Observe(latency.Seconds())
}
