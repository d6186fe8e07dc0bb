// Package telemetry groups the gateway's observability packages.
//
//   - logging: slog setup, request-scoped fields and credential redaction
//   - metrics: Prometheus collector for routes, attempts, breakers, buckets, cache, audit queue and cost
//   - tracing: OpenTelemetry tracer with OTLP export and W3C propagation
//   - health: liveness, readiness and version endpoints
//
// Every package degrades to a no-op when disabled in configuration, so the
// router and registry call into them unconditionally.
package telemetry
