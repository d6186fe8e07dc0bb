package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"mercator-hq/switchboard/internal/backendtest"
	"mercator-hq/switchboard/pkg/backends"
)

func testRequest() *backends.Request {
	return &backends.Request{
		RequestID: "req-1",
		Target:    backends.TargetAuto,
		Model:     "mock-model",
		Messages:  []backends.Message{{Role: "user", Content: "hello"}},
	}
}

func newTestAdapter(t *testing.T, url string) *Adapter {
	t.Helper()
	a, err := New(Config{Name: "sidecar", BaseURL: url + "/", APIKey: "secret", Headers: map[string]string{"X-Team": "core"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{BaseURL: "http://x"}); err == nil {
		t.Error("New() without name: want error")
	}
	if _, err := New(Config{Name: "x"}); err == nil {
		t.Error("New() without base url: want error")
	}
}

func TestSend_Success(t *testing.T) {
	server := backendtest.NewMockServer()
	defer server.Close()
	server.SetResponse("/v1/complete", backendtest.MockCompletion("hi there"))

	a := newTestAdapter(t, server.URL())
	resp, err := a.Send(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if resp.Content != "hi there" {
		t.Errorf("Content = %q, want %q", resp.Content, "hi there")
	}
	if resp.Backend != "sidecar" || resp.RequestID != "req-1" {
		t.Errorf("Backend/RequestID = %q/%q, want sidecar/req-1", resp.Backend, resp.RequestID)
	}
	if resp.Status != backends.StatusOK {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("TotalTokens = %d, want 20", resp.Usage.TotalTokens)
	}

	httpReq, body := server.LastRequest()
	if got := httpReq.Header.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
	if got := httpReq.Header.Get("X-Team"); got != "core" {
		t.Errorf("X-Team = %q, want core", got)
	}
	if got := httpReq.Header.Get("X-Request-ID"); got != "req-1" {
		t.Errorf("X-Request-ID = %q, want req-1", got)
	}
	var sent backends.Request
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("request body is not an envelope: %v", err)
	}
	if sent.RequestID != "req-1" || len(sent.Messages) != 1 {
		t.Errorf("sent envelope = %+v", sent)
	}
}

func TestSend_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		response backendtest.MockResponse
		want     backends.Kind
	}{
		{"401", backendtest.MockErrorResponse(http.StatusUnauthorized, "bad key"), backends.KindAuth},
		{"403", backendtest.MockErrorResponse(http.StatusForbidden, "forbidden"), backends.KindAuth},
		{"400", backendtest.MockErrorResponse(http.StatusBadRequest, "bad"), backends.KindInvalidRequest},
		{"422", backendtest.MockErrorResponse(http.StatusUnprocessableEntity, "bad"), backends.KindInvalidRequest},
		{"429", backendtest.MockRateLimitError(3), backends.KindRateLimited},
		{"500", backendtest.MockErrorResponse(http.StatusInternalServerError, "boom"), backends.KindServerError},
		{"503", backendtest.MockErrorResponse(http.StatusServiceUnavailable, "down"), backends.KindServerError},
		{"504", backendtest.MockErrorResponse(http.StatusGatewayTimeout, "slow"), backends.KindTimeout},
		{"garbage body", backendtest.MockResponse{StatusCode: http.StatusOK, Body: "not json"}, backends.KindServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := backendtest.NewMockServer()
			defer server.Close()
			server.SetResponse("/v1/complete", tt.response)

			a := newTestAdapter(t, server.URL())
			_, err := a.Send(context.Background(), testRequest())
			if got := backends.Classify(err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", err, got, tt.want)
			}
			if server.RequestCount() != 1 {
				t.Errorf("RequestCount() = %d, want 1 (no retries)", server.RequestCount())
			}
		})
	}
}

func TestSend_RetryAfter(t *testing.T) {
	server := backendtest.NewMockServer()
	defer server.Close()
	server.SetResponse("/v1/complete", backendtest.MockRateLimitError(7))

	a := newTestAdapter(t, server.URL())
	_, err := a.Send(context.Background(), testRequest())

	var rl *backends.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("Send() error = %v, want *RateLimitError", err)
	}
	if rl.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", rl.RetryAfter)
	}
	if rl.Message != "rate limit exceeded" {
		t.Errorf("Message = %q", rl.Message)
	}
}

func TestSend_DeadlineIsTimeout(t *testing.T) {
	server := backendtest.NewMockServer()
	defer server.Close()
	slow := backendtest.MockCompletion("late")
	slow.Delay = time.Second
	server.SetResponse("/v1/complete", slow)

	a := newTestAdapter(t, server.URL())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Send(ctx, testRequest())
	if got := backends.Classify(err); got != backends.KindTimeout {
		t.Errorf("Classify(%v) = %v, want timeout", err, got)
	}
}

func TestSend_CancelPassesThrough(t *testing.T) {
	server := backendtest.NewMockServer()
	defer server.Close()
	slow := backendtest.MockCompletion("late")
	slow.Delay = time.Second
	server.SetResponse("/v1/complete", slow)

	a := newTestAdapter(t, server.URL())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := a.Send(ctx, testRequest())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
}

func TestSend_ConnectionRefused(t *testing.T) {
	server := backendtest.NewMockServer()
	url := server.URL()
	server.Close()

	a := newTestAdapter(t, url)
	_, err := a.Send(context.Background(), testRequest())
	if got := backends.Classify(err); got != backends.KindConnection {
		t.Errorf("Classify(%v) = %v, want connection_error", err, got)
	}
}

func TestHealthCheck(t *testing.T) {
	server := backendtest.NewMockServer()
	defer server.Close()

	a := newTestAdapter(t, server.URL())

	if h := a.HealthCheck(context.Background()); h.Healthy {
		t.Error("HealthCheck() healthy on 404")
	}

	server.SetResponse("/health", backendtest.MockResponse{StatusCode: http.StatusOK, Body: `{"status":"ok"}`})
	h := a.HealthCheck(context.Background())
	if !h.Healthy {
		t.Errorf("HealthCheck() = %+v, want healthy", h)
	}
	if h.CheckedAt.IsZero() {
		t.Error("CheckedAt not set")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := map[string]time.Duration{
		"":     0,
		"5":    5 * time.Second,
		"-1":   0,
		"junk": 0,
	}
	for in, want := range tests {
		if got := parseRetryAfter(in); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}
