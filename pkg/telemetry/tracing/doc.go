// Package tracing provides OpenTelemetry distributed tracing for the
// Switchboard gateway.
//
// # Overview
//
// Every routed request produces one switchboard.route span with one
// switchboard.attempt child per backend tried, including local denials.
// Spans are exported over OTLP gRPC when telemetry.tracing.enabled is set;
// otherwise a noop provider is used and span creation costs almost nothing.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(version))
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	router := routing.New(reg, routing.WithTracer(tracer.Tracer()))
//
// # Sampling
//
// telemetry.tracing.sample_ratio selects the fraction of new traces that are
// recorded. A sampled parent in an inbound traceparent header is always
// honoured.
//
// # Attributes
//
// Attribute keys live under the switchboard.* namespace; see attributes.go.
package tracing
