package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanRoute   = "switchboard.route"
	SpanAttempt = "switchboard.attempt"
)

// Attribute keys use the "switchboard.*" namespace.
const (
	// Request attributes
	AttrRequestID = "switchboard.request.id"
	AttrTarget    = "switchboard.request.target"
	AttrModel     = "switchboard.request.model"
	AttrSensitive = "switchboard.request.sensitive"
	AttrCaller    = "switchboard.request.caller"

	// Attempt attributes
	AttrBackend = "switchboard.backend.id"
	AttrOutcome = "switchboard.attempt.outcome"

	// Route result attributes
	AttrStatus   = "switchboard.route.status"
	AttrAttempts = "switchboard.route.attempts"
	AttrCacheHit = "switchboard.route.cache_hit"

	// Usage attributes
	AttrTokensPrompt     = "switchboard.tokens.prompt"
	AttrTokensCompletion = "switchboard.tokens.completion"
	AttrCost             = "switchboard.cost.usd"
)

// RequestAttributes returns the start attributes of a route span.
func RequestAttributes(requestID, target, model, caller string, sensitive bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrTarget, target),
		attribute.String(AttrModel, model),
		attribute.Bool(AttrSensitive, sensitive),
	}
	if caller != "" {
		attrs = append(attrs, attribute.String(AttrCaller, caller))
	}
	return attrs
}

// AttemptAttributes returns the start attributes of an attempt span.
func AttemptAttributes(requestID, backend string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrBackend, backend),
	}
}

// SetOutcome records an attempt's outcome.
func SetOutcome(span trace.Span, outcome string) {
	span.SetAttributes(attribute.String(AttrOutcome, outcome))
}

// SetRouteResult records the final result of a route span.
func SetRouteResult(span trace.Span, status, backend string, attempts int, cacheHit bool) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrStatus, status),
		attribute.Int(AttrAttempts, attempts),
		attribute.Bool(AttrCacheHit, cacheHit),
	}
	if backend != "" {
		attrs = append(attrs, attribute.String(AttrBackend, backend))
	}
	span.SetAttributes(attrs...)
}

// SetUsage records token usage and cost on a span. Zero values are skipped.
func SetUsage(span trace.Span, promptTokens, completionTokens int, cost float64) {
	var attrs []attribute.KeyValue
	if promptTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrTokensPrompt, promptTokens))
	}
	if completionTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrTokensCompletion, completionTokens))
	}
	if cost > 0 {
		attrs = append(attrs, attribute.Float64(AttrCost, cost))
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}
