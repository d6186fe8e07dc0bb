package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/switchboard/internal/backendtest"
	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/config"
	"mercator-hq/switchboard/pkg/gateway"
	"mercator-hq/switchboard/pkg/server"
)

// newTestGateway serves a gateway over httptest and returns a client for it.
func newTestGateway(t *testing.T, adapters ...backends.Adapter) *adminClient {
	t.Helper()

	cfg := config.NewDefault()
	for i, a := range adapters {
		cfg.Backends = append(cfg.Backends, config.BackendConfig{ID: a.Name(), Priority: i + 1})
	}
	cfg.Audit.Backend = "memory"
	config.ApplyDefaults(cfg)

	gw, err := gateway.New(cfg, gateway.WithAdapters(adapters...))
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}
	t.Cleanup(func() { _ = gw.Close(context.Background()) })

	ts := httptest.NewServer(server.NewServer(&cfg.Admin, gw, server.WithHealth(gw.Health())).Handler())
	t.Cleanup(ts.Close)

	client, err := newAdminClient(ts.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("newAdminClient() error = %v", err)
	}
	return client
}

func hello(id string) *backends.Request {
	return &backends.Request{
		RequestID: id,
		Messages:  []backends.Message{{Role: "user", Content: "hi"}},
	}
}

func TestNewAdminClient(t *testing.T) {
	tests := []struct {
		addr    string
		want    string
		wantErr bool
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080", false},
		{"http://gw.internal:9000/", "http://gw.internal:9000", false},
		{"https://gw.example.com", "https://gw.example.com", false},
		{"http://", "", true},
	}
	for _, tt := range tests {
		c, err := newAdminClient(tt.addr, time.Second)
		if (err != nil) != tt.wantErr {
			t.Errorf("newAdminClient(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			continue
		}
		if err == nil && c.baseURL != tt.want {
			t.Errorf("newAdminClient(%q).baseURL = %q, want %q", tt.addr, c.baseURL, tt.want)
		}
	}
}

func TestAdminClient_RouteAndStatus(t *testing.T) {
	client := newTestGateway(t,
		backendtest.NewMockAdapter("primary").FailWith(backendtest.ServerError("primary")),
		backendtest.NewMockAdapter("fallback"),
	)
	ctx := context.Background()

	resp, err := client.Route(ctx, hello("r-1"))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if resp.Backend != "fallback" {
		t.Errorf("Backend = %q, want %q", resp.Backend, "fallback")
	}

	st, err := client.Status(ctx, false)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(st.Backends) != 2 || st.Backends[0].ID != "primary" {
		t.Fatalf("Backends = %+v, want primary first", st.Backends)
	}
	if st.Backends[0].Breaker.Failures != 1 {
		t.Errorf("primary failures = %d, want 1", st.Backends[0].Breaker.Failures)
	}
	if st.Router.Fallbacks != 1 {
		t.Errorf("Fallbacks = %d, want 1", st.Router.Fallbacks)
	}
}

func TestAdminClient_SetEnabled(t *testing.T) {
	client := newTestGateway(t, backendtest.NewMockAdapter("a"))
	ctx := context.Background()

	if err := client.SetEnabled(ctx, "a", false); err != nil {
		t.Fatalf("SetEnabled(a, false) error = %v", err)
	}

	_, err := client.Route(ctx, hello("r-2"))
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Route() error = %v, want *apiError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusNotFound)
	}
	if apiErr.Body.Error.Code != string(audit.StatusNoCandidates) {
		t.Errorf("Code = %q, want %q", apiErr.Body.Error.Code, audit.StatusNoCandidates)
	}

	err = client.SetEnabled(ctx, "missing", true)
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("SetEnabled(missing) error = %v, want 404", err)
	}
}

func TestAdminClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	client, err := newAdminClient(addr, time.Second)
	if err != nil {
		t.Fatalf("newAdminClient() error = %v", err)
	}
	if _, err := client.Status(context.Background(), false); err == nil {
		t.Error("Status() error = nil against a closed server")
	}
}
