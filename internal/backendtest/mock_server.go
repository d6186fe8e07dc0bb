package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"mercator-hq/switchboard/pkg/backends"
)

// MockServer is an HTTP upstream speaking the gateway's JSON envelope, used to
// test the httpjson adapter.
type MockServer struct {
	server    *httptest.Server
	responses map[string]MockResponse
	requests  []*http.Request
	bodies    [][]byte
	mu        sync.Mutex
}

// MockResponse defines a canned answer for one path.
type MockResponse struct {
	StatusCode int
	Body       interface{}
	Delay      time.Duration
	Headers    map[string]string
}

// NewMockServer starts a mock upstream.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]MockResponse),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the server's base URL.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close shuts the server down.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse sets the answer for path.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// RequestCount returns the number of requests received.
func (ms *MockServer) RequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.requests)
}

// LastRequest returns the most recent request and its body.
func (ms *MockServer) LastRequest() (*http.Request, []byte) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.requests) == 0 {
		return nil, nil
	}
	n := len(ms.requests) - 1
	return ms.requests[n], ms.bodies[n]
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		var raw json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		body = raw
	}

	ms.mu.Lock()
	ms.requests = append(ms.requests, r)
	ms.bodies = append(ms.bodies, body)
	response, ok := ms.responses[r.URL.Path]
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.StatusCode)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

// MockCompletion returns a 200 answer carrying a normalized response.
func MockCompletion(content string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: backends.Response{
			Content:      content,
			Model:        "mock-model",
			FinishReason: "stop",
			Usage:        backends.Usage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20},
		},
	}
}

// MockErrorResponse returns an error answer with the given status.
func MockErrorResponse(statusCode int, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body: map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
				"code":    statusCode,
			},
		},
	}
}

// MockRateLimitError returns a 429 answer with a Retry-After header.
func MockRateLimitError(retryAfter int) MockResponse {
	response := MockErrorResponse(http.StatusTooManyRequests, "rate limit exceeded")
	response.Headers = map[string]string{
		"Retry-After": fmt.Sprintf("%d", retryAfter),
	}
	return response
}
