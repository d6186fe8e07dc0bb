package metrics

import (
	"strconv"
	"time"

	"mercator-hq/switchboard/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RouteMetrics tracks end-to-end routing results.
//
// Metrics:
//   - switchboard_route_requests_total: Routed requests by final status and cache hit
//   - switchboard_route_duration_seconds: Route latency by final status
type RouteMetrics struct {
	requestsTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewRouteMetrics creates and registers route metrics with the provided registry.
func NewRouteMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RouteMetrics {
	rm := &RouteMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "route_requests_total",
				Help:      "Total number of routed requests by final status",
			},
			[]string{"status", "cache_hit"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "route_duration_seconds",
				Help:      "End-to-end route latency in seconds",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.duration)

	return rm
}

// RecordRoute records one routed request.
func (rm *RouteMetrics) RecordRoute(status string, cacheHit bool, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(status, strconv.FormatBool(cacheHit)).Inc()
	rm.duration.WithLabelValues(status).Observe(duration.Seconds())
}
