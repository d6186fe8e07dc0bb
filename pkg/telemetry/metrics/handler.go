package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxConcurrentScrapes bounds simultaneous /metrics requests; the status
// gauges walk every backend on each scrape.
const maxConcurrentScrapes = 4

// Handler returns an HTTP handler for the Prometheus metrics endpoint. The
// admin server mounts it at telemetry.metrics.path. Scrapes of the handler
// itself are counted in promhttp_metric_handler_requests_total.
func (c *Collector) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(c.registry, promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics:   true,
			MaxRequestsInFlight: maxConcurrentScrapes,
			ErrorHandling:       promhttp.ContinueOnError,
			ErrorLog:            slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		},
	))
}
