// Package backendtest provides a scriptable backends.Adapter for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mercator-hq/switchboard/pkg/backends"
)

// Result is one scripted outcome of MockAdapter.Send.
type Result struct {
	// Err is returned instead of a response when non-nil.
	Err error

	// Content overrides the default response content.
	Content string

	// Usage is reported on success.
	Usage backends.Usage

	// Delay is waited before answering; ctx cancellation cuts it short.
	Delay time.Duration
}

// MockAdapter is a backends.Adapter whose answers are scripted per call.
type MockAdapter struct {
	name string

	mu       sync.Mutex
	script   []Result
	fallback Result
	requests []*backends.Request
	healthy  bool
	gate     chan struct{}
}

// NewMockAdapter creates an adapter that succeeds with "response from <name>".
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{
		name:    name,
		healthy: true,
		fallback: Result{
			Usage: backends.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}
}

// Name returns the backend id.
func (m *MockAdapter) Name() string {
	return m.name
}

// Always sets the result used once the script is exhausted.
func (m *MockAdapter) Always(r Result) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = r
	return m
}

// FailWith makes every unscripted call return err.
func (m *MockAdapter) FailWith(err error) *MockAdapter {
	return m.Always(Result{Err: err})
}

// Then queues results consumed one per call, before the fallback.
func (m *MockAdapter) Then(results ...Result) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, results...)
	return m
}

// Hold makes every Send block until the returned release func is called or
// the request context ends.
func (m *MockAdapter) Hold() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetHealthy sets the result of HealthCheck.
func (m *MockAdapter) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
}

// Calls returns how many times Send was invoked.
func (m *MockAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// RequestIDs returns the request ids Send received, in order.
func (m *MockAdapter) RequestIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.requests))
	for i, r := range m.requests {
		ids[i] = r.RequestID
	}
	return ids
}

// Send records the call and answers with the next scripted result.
func (m *MockAdapter) Send(ctx context.Context, req *backends.Request) (*backends.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	r := m.fallback
	if len(m.script) > 0 {
		r = m.script[0]
		m.script = m.script[1:]
	}
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if r.Err != nil {
		return nil, r.Err
	}

	content := r.Content
	if content == "" {
		content = fmt.Sprintf("response from %s", m.name)
	}
	return &backends.Response{
		RequestID:    req.RequestID,
		Backend:      m.name,
		Model:        req.Model,
		Content:      content,
		FinishReason: "stop",
		Usage:        r.Usage,
		Status:       backends.StatusOK,
		CreatedAt:    time.Now(),
	}, nil
}

// HealthCheck reports the configured health.
func (m *MockAdapter) HealthCheck(ctx context.Context) backends.Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := backends.Health{Healthy: m.healthy, CheckedAt: time.Now()}
	if !m.healthy {
		h.Message = fmt.Sprintf("backend %s is unhealthy", m.name)
	}
	return h
}

// ServerError returns a transient 503 error for name.
func ServerError(name string) error {
	return &backends.ServerError{Backend: name, StatusCode: 503, Message: "service unavailable"}
}

// AuthError returns a terminal authentication error for name.
func AuthError(name string) error {
	return &backends.AuthError{Backend: name, Message: "invalid api key"}
}

// InvalidRequest returns a terminal request error for name.
func InvalidRequest(name string) error {
	return &backends.InvalidRequestError{Backend: name, Message: "malformed messages"}
}
