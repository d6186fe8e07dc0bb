package metrics

import (
	"mercator-hq/switchboard/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks response cache lookups.
//
// Metrics:
//   - switchboard_cache_lookups_total: Lookups by result (hit, miss, bypass, error)
//
// Hit rate is a PromQL concern:
//
//	rate(switchboard_cache_lookups_total{result="hit"}[5m]) /
//	sum(rate(switchboard_cache_lookups_total{result=~"hit|miss"}[5m]))
type CacheMetrics struct {
	lookupsTotal *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_lookups_total",
				Help:      "Total number of response cache lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(cm.lookupsTotal)

	return cm
}

// RecordLookup records one cache lookup.
func (cm *CacheMetrics) RecordLookup(result string) {
	cm.lookupsTotal.WithLabelValues(result).Inc()
}
