package metrics

import (
	"mercator-hq/switchboard/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks the audit recorder.
//
// Metrics:
//   - switchboard_audit_queue_depth: Events waiting in the recorder queue
//   - switchboard_audit_sync_writes_total: Events written on the caller's goroutine
//   - switchboard_audit_write_errors_total: Events that could not be persisted
type AuditMetrics struct {
	queueDepth  prometheus.Gauge
	syncWrites  prometheus.Counter
	writeErrors prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics with the provided registry.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_queue_depth",
				Help:      "Number of audit events waiting to be written",
			},
		),

		syncWrites: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_sync_writes_total",
				Help:      "Total number of audit events written synchronously because the queue was full",
			},
		),

		writeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_write_errors_total",
				Help:      "Total number of audit events that could not be persisted",
			},
		),
	}

	registry.MustRegister(am.queueDepth, am.syncWrites, am.writeErrors)

	return am
}

// SetQueueDepth sets the current queue depth.
func (am *AuditMetrics) SetQueueDepth(depth int) {
	am.queueDepth.Set(float64(depth))
}

// RecordSyncWrite counts a synchronous fallback write.
func (am *AuditMetrics) RecordSyncWrite() {
	am.syncWrites.Inc()
}

// RecordWriteError counts a failed write.
func (am *AuditMetrics) RecordWriteError() {
	am.writeErrors.Inc()
}
