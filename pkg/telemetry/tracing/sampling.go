package tracing

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// createSampler builds a parent-based sampler from a ratio.
//
// A ratio of 1 or more samples every trace, 0 or less samples none, and
// anything between samples by trace ID hash so every service that sees the
// same trace makes the same decision. Wrapping in ParentBased makes a remote
// caller's sampling decision, carried in traceparent, win over the ratio.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sample_ratio: 0.1  # sample 10% of traces
func createSampler(ratio float64) sdktrace.Sampler {
	var base sdktrace.Sampler
	switch {
	case ratio >= 1:
		base = sdktrace.AlwaysSample()
	case ratio <= 0:
		base = sdktrace.NeverSample()
	default:
		base = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(base)
}
