// Package httpjson implements a backends.Adapter for upstreams that accept the
// gateway's normalized envelope as JSON over HTTP, typically a per-vendor
// translation sidecar.
//
// The adapter never retries: one Send is one upstream call, and fallback is
// the router's job.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/telemetry/tracing"
)

// Config configures an Adapter.
type Config struct {
	// Name is the backend id.
	Name string

	// BaseURL is the upstream root, e.g. "http://openai-sidecar:9000".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// CompletePath is the completion endpoint (default "/v1/complete").
	CompletePath string

	// HealthPath is the health endpoint (default "/health").
	HealthPath string

	// Timeout caps a single HTTP exchange. The router's per-backend timeout
	// normally fires first.
	Timeout time.Duration

	// MaxIdleConns sizes the connection pool.
	MaxIdleConns int

	// Headers are added to every request.
	Headers map[string]string
}

// Adapter sends requests to an HTTP JSON upstream.
type Adapter struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates an Adapter with a pooled HTTP client.
func New(cfg Config) (*Adapter, error) {
	if cfg.Name == "" {
		return nil, errors.New("httpjson: name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("httpjson: backend %q: base url is required", cfg.Name)
	}
	if cfg.CompletePath == "" {
		cfg.CompletePath = "/v1/complete"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 32
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Adapter{
		config: cfg,
		client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		logger: slog.Default().With("component", "backends.httpjson", "backend", cfg.Name),
	}, nil
}

// Name returns the backend id.
func (a *Adapter) Name() string {
	return a.config.Name
}

// Send posts the request envelope and decodes the response envelope.
func (a *Adapter) Send(ctx context.Context, req *backends.Request) (*backends.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &backends.InvalidRequestError{Backend: a.config.Name, Message: fmt.Sprintf("encode request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+a.config.CompletePath, bytes.NewReader(body))
	if err != nil {
		return nil, &backends.InvalidRequestError{Backend: a.config.Name, Message: err.Error()}
	}
	a.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", req.RequestID)

	a.logger.Debug("sending request to backend", "request_id", req.RequestID)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, a.transportError(ctx, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, a.transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, a.statusError(resp, payload)
	}

	var out backends.Response
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &backends.ServerError{
			Backend:    a.config.Name,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decode response: %v", err),
		}
	}

	out.RequestID = req.RequestID
	out.Backend = a.config.Name
	if out.Status == "" {
		out.Status = backends.StatusOK
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now()
	}
	if out.Usage.TotalTokens == 0 {
		out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens
	}
	return &out, nil
}

// HealthCheck issues a GET against the health endpoint.
func (a *Adapter) HealthCheck(ctx context.Context) backends.Health {
	start := time.Now()
	health := backends.Health{}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+a.config.HealthPath, nil)
	if err != nil {
		health.Message = err.Error()
		health.CheckedAt = time.Now()
		return health
	}
	a.setHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	health.Latency = time.Since(start)
	health.CheckedAt = time.Now()
	if err != nil {
		health.Message = err.Error()
		return health
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		health.Healthy = true
	} else {
		health.Message = fmt.Sprintf("health endpoint returned status %d", resp.StatusCode)
	}
	return health
}

// Close releases idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

func (a *Adapter) setHeaders(req *http.Request) {
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}
	if a.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}
	tracing.Inject(req.Context(), req.Header)
}

// transportError maps a failed exchange. Caller cancellation is passed
// through untouched so the router can tell it apart from a backend timeout.
func (a *Adapter) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &backends.TimeoutError{Backend: a.config.Name, Timeout: a.config.Timeout}
		}
		return ctxErr
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return &backends.TimeoutError{Backend: a.config.Name, Timeout: a.config.Timeout}
	}
	return &backends.ConnectionError{Backend: a.config.Name, Cause: err}
}

func (a *Adapter) statusError(resp *http.Response, payload []byte) error {
	msg := errorMessage(payload)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &backends.AuthError{Backend: a.config.Name, Message: msg}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &backends.RateLimitError{
			Backend:    a.config.Name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    msg,
		}
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusGatewayTimeout:
		return &backends.TimeoutError{Backend: a.config.Name, Timeout: a.config.Timeout}
	case resp.StatusCode >= 500:
		return &backends.ServerError{Backend: a.config.Name, StatusCode: resp.StatusCode, Message: msg}
	default:
		return &backends.InvalidRequestError{Backend: a.config.Name, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, msg)}
	}
}

// errorMessage extracts {"error":{"message":...}} or falls back to the raw body.
func errorMessage(payload []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	msg := strings.TrimSpace(string(payload))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
