package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/switchboard/internal/backendtest"
	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/audit/storage"
	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/breaker"
	"mercator-hq/switchboard/pkg/config"
	"mercator-hq/switchboard/pkg/limits/ratelimit"
	"mercator-hq/switchboard/pkg/registry"
	"mercator-hq/switchboard/pkg/routing"
	"mercator-hq/switchboard/pkg/telemetry/health"
)

func testConfig() *config.Config {
	cfg := config.NewDefault()
	cfg.Backends = []config.BackendConfig{
		{ID: "primary", Priority: 1, URL: "http://primary.invalid"},
		{ID: "fallback", Priority: 2, URL: "http://fallback.invalid"},
	}
	cfg.Audit.Backend = "memory"
	config.ApplyDefaults(cfg)
	return cfg
}

func newRequest(id string) *backends.Request {
	return &backends.Request{
		RequestID: id,
		Target:    backends.TargetAuto,
		Messages:  []backends.Message{{Role: "user", Content: "hello"}},
	}
}

func newTestGateway(t *testing.T, cfg *config.Config, opts ...Option) *Gateway {
	t.Helper()
	g, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = g.Close(context.Background()) })
	return g
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) error = nil, want error")
	}
}

func TestGateway_RouteFallback(t *testing.T) {
	primary := backendtest.NewMockAdapter("primary").FailWith(backendtest.ServerError("primary"))
	fallback := backendtest.NewMockAdapter("fallback")
	store := storage.NewMemoryStorage()

	g := newTestGateway(t, testConfig(), WithAdapters(primary, fallback), WithAuditStorage(store))

	resp, err := g.Route(context.Background(), newRequest("req-1"))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if resp.Backend != "fallback" {
		t.Errorf("Backend = %q, want fallback", resp.Backend)
	}

	if err := g.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events, err := store.Query(context.Background(), &audit.Query{RequestID: "req-1"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.FinalStatus != audit.StatusSuccess || ev.Backend != "fallback" {
		t.Errorf("event = %s/%s, want success/fallback", ev.FinalStatus, ev.Backend)
	}
	if len(ev.Attempts) != 2 || ev.Attempts[0].Outcome != audit.OutcomeServerError {
		t.Errorf("attempts = %+v, want server_error then success", ev.Attempts)
	}
}

func TestGateway_SetEnabled(t *testing.T) {
	primary := backendtest.NewMockAdapter("primary")
	fallback := backendtest.NewMockAdapter("fallback")
	g := newTestGateway(t, testConfig(), WithAdapters(primary, fallback))

	if err := g.SetEnabled("primary", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	resp, err := g.Route(context.Background(), newRequest("req-2"))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if resp.Backend != "fallback" {
		t.Errorf("Backend = %q, want fallback", resp.Backend)
	}
	if primary.Calls() != 0 {
		t.Errorf("primary calls = %d, want 0", primary.Calls())
	}

	err = g.SetEnabled("missing", true)
	if !errors.Is(err, registry.ErrUnknownBackend) {
		t.Errorf("SetEnabled(missing) error = %v, want ErrUnknownBackend", err)
	}
}

func TestGateway_ApplyConfig(t *testing.T) {
	g := newTestGateway(t, testConfig(),
		WithAdapters(backendtest.NewMockAdapter("primary"), backendtest.NewMockAdapter("fallback")))

	prev := testConfig()
	next := testConfig()
	disabled := false
	next.Backends[1].Enabled = &disabled

	g.ApplyConfig(prev, next)

	if g.Registry().Enabled("fallback") {
		t.Error("fallback enabled after reload, want disabled")
	}
	if !g.Registry().Enabled("primary") {
		t.Error("primary disabled after reload, want enabled")
	}
}

func TestGateway_Exhausted(t *testing.T) {
	g := newTestGateway(t, testConfig(), WithAdapters(
		backendtest.NewMockAdapter("primary").FailWith(backendtest.ServerError("primary")),
		backendtest.NewMockAdapter("fallback").FailWith(backendtest.ServerError("fallback")),
	))

	_, err := g.Route(context.Background(), newRequest("req-3"))
	var exhausted *routing.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Route() error = %v, want *ExhaustedError", err)
	}
	if got := len(exhausted.Reasons()); got != 2 {
		t.Errorf("len(Reasons()) = %d, want 2", got)
	}
}

func TestGateway_Cache(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Enabled = true
	cfg.Cache.Backend = "memory"

	primary := backendtest.NewMockAdapter("primary")
	g := newTestGateway(t, cfg, WithAdapters(primary, backendtest.NewMockAdapter("fallback")))

	for _, id := range []string{"req-a", "req-b"} {
		if _, err := g.Route(context.Background(), newRequest(id)); err != nil {
			t.Fatalf("Route(%s) error = %v", id, err)
		}
	}
	if primary.Calls() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.Calls())
	}

	sensitive := newRequest("req-c")
	sensitive.Sensitive = true
	if _, err := g.Route(context.Background(), sensitive); err != nil {
		t.Fatalf("Route(sensitive) error = %v", err)
	}
	if primary.Calls() != 2 {
		t.Errorf("primary calls after sensitive request = %d, want 2", primary.Calls())
	}
}

func TestGateway_Status(t *testing.T) {
	primary := backendtest.NewMockAdapter("primary")
	primary.SetHealthy(false)
	g := newTestGateway(t, testConfig(), WithAdapters(primary, backendtest.NewMockAdapter("fallback")))

	if _, err := g.Route(context.Background(), newRequest("req-4")); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	unprobed := g.Status(context.Background(), false)
	if unprobed.Backends[0].Health != nil {
		t.Errorf("Backends[0].Health = %+v, want nil without probe", unprobed.Backends[0].Health)
	}

	st := g.Status(context.Background(), true)
	if len(st.Backends) != 2 {
		t.Fatalf("len(Backends) = %d, want 2", len(st.Backends))
	}
	first := st.Backends[0]
	if first.ID != "primary" || first.Breaker.State != breaker.Closed {
		t.Errorf("Backends[0] = %s/%s, want primary/closed", first.ID, first.Breaker.State)
	}
	if first.Health == nil || first.Health.Healthy {
		t.Errorf("Backends[0].Health = %+v, want unhealthy", first.Health)
	}
	if st.Router.TotalRequests != 1 {
		t.Errorf("Router.TotalRequests = %d, want 1", st.Router.TotalRequests)
	}
}

func TestGateway_Readiness(t *testing.T) {
	g := newTestGateway(t, testConfig(),
		WithAdapters(backendtest.NewMockAdapter("primary"), backendtest.NewMockAdapter("fallback")))

	if got := g.Health().CheckReadiness(context.Background()).Status; got != health.StatusReady {
		t.Errorf("readiness = %q, want %q", got, health.StatusReady)
	}

	_ = g.SetEnabled("primary", false)
	_ = g.SetEnabled("fallback", false)

	st := g.Health().CheckReadiness(context.Background())
	if st.Status != health.StatusDegraded {
		t.Errorf("readiness = %q, want %q", st.Status, health.StatusDegraded)
	}
	if st.Checks["backends"].Status != health.StatusUnhealthy {
		t.Errorf("backends check = %q, want %q", st.Checks["backends"].Status, health.StatusUnhealthy)
	}
}

func TestGateway_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := newTestGateway(t, testConfig(),
		WithAdapters(backendtest.NewMockAdapter("primary"), backendtest.NewMockAdapter("fallback")),
		WithPrometheusRegistry(reg))

	if _, err := g.Route(context.Background(), newRequest("req-5")); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := make(map[string]bool)
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		"switchboard_route_requests_total",
		"switchboard_backend_attempts_total",
		"switchboard_breaker_state",
		"switchboard_bucket_tokens",
	} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestGateway_SQLiteStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Backend = "sqlite"
	cfg.Audit.SQLite.Path = filepath.Join(t.TempDir(), "nested", "audit.db")

	g := newTestGateway(t, cfg,
		WithAdapters(backendtest.NewMockAdapter("primary"), backendtest.NewMockAdapter("fallback")))

	if _, err := g.Route(context.Background(), newRequest("req-6")); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := g.Storage().Count(context.Background(), &audit.Query{RequestID: "req-6"})
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Count() = %d, want 1", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGateway_Prune(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Retention.Days = 1
	store := storage.NewMemoryStorage()

	old := &audit.Event{ID: "old", RequestID: "old", Timestamp: time.Now().Add(-72 * time.Hour)}
	if err := store.Store(context.Background(), old); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	g := newTestGateway(t, cfg,
		WithAdapters(backendtest.NewMockAdapter("primary"), backendtest.NewMockAdapter("fallback")),
		WithAuditStorage(store))

	deleted, err := g.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() = %d, want 1", deleted)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unsupported cache backend", func(c *config.Config) {
			c.Cache.Enabled = true
			c.Cache.Backend = "memcached"
		}},
		{"unsupported audit backend", func(c *config.Config) { c.Audit.Backend = "postgres" }},
		{"missing credential", func(c *config.Config) {
			c.Backends[0].CredentialRef = "env:SWITCHBOARD_TEST_MISSING_KEY"
		}},
		{"unsupported backend type", func(c *config.Config) { c.Backends[0].Type = "grpc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestNew_BuildsHTTPAdapters(t *testing.T) {
	t.Setenv("SWITCHBOARD_TEST_PRIMARY_KEY", "sk-test-primary")
	cfg := testConfig()
	cfg.Backends[0].CredentialRef = "env:SWITCHBOARD_TEST_PRIMARY_KEY"

	g := newTestGateway(t, cfg)
	if got := g.Registry().IDs(); len(got) != 2 {
		t.Errorf("IDs() = %v, want 2 backends", got)
	}
}

func TestDescriptor(t *testing.T) {
	gw := config.GatewayConfig{DefaultTimeout: 30 * time.Second}
	defaults := config.NewDefault().Defaults

	tests := []struct {
		name        string
		backend     config.BackendConfig
		wantTimeout time.Duration
		wantBreaker int
		wantBucket  float64
		wantEnabled bool
	}{
		{
			name:        "defaults",
			backend:     config.BackendConfig{ID: "a"},
			wantTimeout: 30 * time.Second,
			wantEnabled: true,
		},
		{
			name: "overrides",
			backend: config.BackendConfig{
				ID:        "b",
				Timeout:   5 * time.Second,
				Breaker:   config.BreakerConfig{Threshold: 2, Cooldown: time.Second},
				RateLimit: config.RateLimitConfig{Capacity: 10, RefillRate: 2},
			},
			wantTimeout: 5 * time.Second,
			wantBreaker: 2,
			wantBucket:  10,
			wantEnabled: true,
		},
		{
			name:        "disabled",
			backend:     config.BackendConfig{ID: "c", Enabled: new(bool)},
			wantTimeout: 30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Descriptor(tt.backend, gw, defaults)
			if d.Timeout != tt.wantTimeout {
				t.Errorf("Timeout = %v, want %v", d.Timeout, tt.wantTimeout)
			}
			if d.Breaker.Threshold != tt.wantBreaker {
				t.Errorf("Breaker.Threshold = %d, want %d", d.Breaker.Threshold, tt.wantBreaker)
			}
			if d.RateLimit.Capacity != tt.wantBucket {
				t.Errorf("RateLimit.Capacity = %v, want %v", d.RateLimit.Capacity, tt.wantBucket)
			}
			if d.Enabled != tt.wantEnabled {
				t.Errorf("Enabled = %v, want %v", d.Enabled, tt.wantEnabled)
			}
		})
	}
}

func TestDescriptor_PartialOverride(t *testing.T) {
	defaults := config.DefaultsConfig{
		Breaker:   config.BreakerConfig{Threshold: 5, Window: time.Minute, Cooldown: 10 * time.Second, MaxCooldown: 2 * time.Minute, Multiplier: 3},
		RateLimit: config.RateLimitConfig{Capacity: 60, RefillRate: 4},
	}
	b := config.BackendConfig{
		ID:        "a",
		Breaker:   config.BreakerConfig{Threshold: 2},
		RateLimit: config.RateLimitConfig{Capacity: 2},
	}

	d := Descriptor(b, config.GatewayConfig{DefaultTimeout: time.Second}, defaults)

	wantBreaker := breaker.Config{Threshold: 2, Window: time.Minute, Cooldown: 10 * time.Second, MaxCooldown: 2 * time.Minute, Multiplier: 3}
	if d.Breaker != wantBreaker {
		t.Errorf("Breaker = %+v, want %+v", d.Breaker, wantBreaker)
	}
	wantBucket := ratelimit.Config{Capacity: 2, RefillRate: 4}
	if d.RateLimit != wantBucket {
		t.Errorf("RateLimit = %+v, want %+v", d.RateLimit, wantBucket)
	}
}
