package metrics

import (
	"mercator-hq/switchboard/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CostMetrics tracks spend and token usage of successful upstream calls.
//
// Metrics:
//   - switchboard_cost_usd_total: Total cost in USD by backend and caller
//   - switchboard_cost_per_request_usd: Cost distribution per request
//   - switchboard_tokens_total: Tokens by backend and type (prompt, completion)
type CostMetrics struct {
	costTotal      *prometheus.CounterVec
	costPerRequest *prometheus.HistogramVec
	tokensTotal    *prometheus.CounterVec
}

// NewCostMetrics creates and registers cost metrics with the provided registry.
func NewCostMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CostMetrics {
	cm := &CostMetrics{
		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cost_usd_total",
				Help:      "Total cost in USD by backend and caller",
			},
			[]string{"backend", "caller"},
		),

		costPerRequest: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "cost_per_request_usd",
				Help:      "Cost distribution per request in USD",
				// $0.001 to $10
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"backend"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "tokens_total",
				Help:      "Total tokens by backend and type",
			},
			[]string{"backend", "type"},
		),
	}

	registry.MustRegister(cm.costTotal, cm.costPerRequest, cm.tokensTotal)

	return cm
}

// RecordCost records the cost of a single request. Negative costs are ignored.
func (cm *CostMetrics) RecordCost(backend, caller string, costUSD float64) {
	if costUSD < 0 {
		return
	}
	cm.costTotal.WithLabelValues(backend, caller).Add(costUSD)
	cm.costPerRequest.WithLabelValues(backend).Observe(costUSD)
}

// RecordTokens records prompt and completion token counts.
func (cm *CostMetrics) RecordTokens(backend string, prompt, completion int) {
	if prompt > 0 {
		cm.tokensTotal.WithLabelValues(backend, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		cm.tokensTotal.WithLabelValues(backend, "completion").Add(float64(completion))
	}
}
