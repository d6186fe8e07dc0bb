package backends

import (
	"context"
	"time"
)

// Adapter is implemented once per upstream service.
//
// Implementations must honor ctx cancellation: the router bounds every Send
// with a per-backend timeout and the caller's own deadline, and it never holds
// a lock while Send runs.
//
// Example:
//
//	resp, err := adapter.Send(ctx, &backends.Request{
//	    RequestID: "req-1",
//	    Target:    "auto",
//	    Messages:  []backends.Message{{Role: "user", Content: "Hello!"}},
//	})
//	if err != nil {
//	    switch backends.Classify(err) { ... }
//	}
type Adapter interface {
	// Name returns the backend id this adapter serves.
	Name() string

	// Send dispatches the request and returns the normalized response.
	// Failures are reported with the typed errors of this package.
	Send(ctx context.Context, req *Request) (*Response, error)

	// HealthCheck probes the upstream without sending a completion.
	HealthCheck(ctx context.Context) Health
}

// Health is the result of an adapter health probe.
type Health struct {
	// Healthy reports whether the upstream answered the probe.
	Healthy bool `json:"healthy"`

	// Latency is how long the probe took.
	Latency time.Duration `json:"latency"`

	// Message carries the failure reason when Healthy is false.
	Message string `json:"message,omitempty"`

	// CheckedAt is when the probe completed.
	CheckedAt time.Time `json:"checked_at"`
}
