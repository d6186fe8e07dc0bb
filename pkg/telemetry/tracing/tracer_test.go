package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/switchboard/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func enabledConfig(ratio float64) *config.TracingConfig {
	return &config.TracingConfig{
		Enabled:     true,
		Endpoint:    "localhost:4317",
		SampleRatio: ratio,
		ServiceName: "switchboard-test",
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) error = nil, want error")
	}
}

func TestNew_Disabled(t *testing.T) {
	tr, err := New(&config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Enabled() {
		t.Error("Enabled() = true, want false")
	}

	ctx, span := tr.Start(context.Background(), "noop")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled tracer produced a valid span context")
	}
	if TraceID(ctx) != "" {
		t.Errorf("TraceID() = %q, want empty", TraceID(ctx))
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_ExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tr, err := New(enabledConfig(1), WithExporter(exp), WithoutGlobal(), WithServiceVersion("1.2.3"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer tr.Shutdown(context.Background())

	ctx, root := tr.Start(context.Background(), SpanRoute,
		trace.WithAttributes(RequestAttributes("req-1", "auto", "small", "team-x", true)...))
	_, child := tr.Start(ctx, SpanAttempt, trace.WithAttributes(AttemptAttributes("req-1", "a")...))
	SetStatus(child, errors.New("boom"), "server_error")
	SetOutcome(child, "server_error")
	child.End()
	SetRouteResult(root, "exhausted", "", 1, false)
	root.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("len(spans) = %d, want 2", len(spans))
	}

	attempt, route := spans[0], spans[1]
	if attempt.Name != SpanAttempt || route.Name != SpanRoute {
		t.Fatalf("span names = %q, %q, want %q, %q", attempt.Name, route.Name, SpanAttempt, SpanRoute)
	}
	if attempt.Parent.SpanID() != route.SpanContext.SpanID() {
		t.Error("attempt span is not a child of the route span")
	}
	if attempt.Status.Code != codes.Error || attempt.Status.Description != "server_error" {
		t.Errorf("attempt status = %+v, want Error/server_error", attempt.Status)
	}
	if len(attempt.Events) == 0 {
		t.Error("attempt span has no recorded error event")
	}

	want := map[attribute.Key]attribute.Value{
		AttrRequestID: attribute.StringValue("req-1"),
		AttrCaller:    attribute.StringValue("team-x"),
		AttrSensitive: attribute.BoolValue(true),
		AttrStatus:    attribute.StringValue("exhausted"),
		AttrAttempts:  attribute.IntValue(1),
	}
	got := make(map[attribute.Key]attribute.Value)
	for _, kv := range route.Attributes {
		got[kv.Key] = kv.Value
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("route attribute %s = %v, want %v", k, got[k].Emit(), v.Emit())
		}
	}
	if _, ok := got[AttrBackend]; ok {
		t.Error("route span has a backend attribute after exhaustion")
	}

	var version string
	for _, kv := range route.Resource.Attributes() {
		if kv.Key == "service.version" {
			version = kv.Value.AsString()
		}
	}
	if version != "1.2.3" {
		t.Errorf("service.version = %q, want 1.2.3", version)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  sdktrace.SamplingDecision
	}{
		{"always", 1, sdktrace.RecordAndSample},
		{"above one", 2, sdktrace.RecordAndSample},
		{"never", 0, sdktrace.Drop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createSampler(tt.ratio)
			res := s.ShouldSample(sdktrace.SamplingParameters{
				ParentContext: context.Background(),
				TraceID:       trace.TraceID{1},
				Name:          "x",
			})
			if res.Decision != tt.want {
				t.Errorf("Decision = %v, want %v", res.Decision, tt.want)
			}
		})
	}
}

func TestCreateSampler_HonoursSampledParent(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)

	res := createSampler(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: ctx,
		TraceID:       parent.TraceID(),
		Name:          "x",
	})
	if res.Decision != sdktrace.RecordAndSample {
		t.Errorf("Decision = %v, want RecordAndSample", res.Decision)
	}
}

func TestSetUsage_SkipsZero(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tr, err := New(enabledConfig(1), WithExporter(exp), WithoutGlobal())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer tr.Shutdown(context.Background())

	_, span := tr.Start(context.Background(), "usage")
	SetUsage(span, 10, 0, 0)
	span.End()

	attrs := exp.GetSpans()[0].Attributes
	if len(attrs) != 1 || attrs[0].Key != AttrTokensPrompt {
		t.Errorf("attributes = %v, want only %s", attrs, AttrTokensPrompt)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var seen string
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/route", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	const want = "4bf92f3577b34da6a3ce929d0e0e4736"
	if seen != want {
		t.Errorf("TraceID in handler = %q, want %q", seen, want)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != want {
		t.Errorf("X-Trace-ID = %q, want %q", got, want)
	}

	// Round trip through Inject.
	headers := http.Header{}
	Inject(trace.ContextWithRemoteSpanContext(context.Background(),
		trace.SpanContextFromContext(Extract(context.Background(), req.Header))), headers)
	if headers.Get("traceparent") == "" {
		t.Error("Inject() wrote no traceparent header")
	}
}
