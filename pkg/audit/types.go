package audit

import (
	"context"
	"io"
	"time"

	"mercator-hq/switchboard/pkg/backends"
)

// Outcome is the result of one attempt against one backend.
type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeRateLimited         Outcome = "rate_limited"
	OutcomeCircuitOpen         Outcome = "circuit_open"
	OutcomeTimeout             Outcome = "timeout"
	OutcomeServerError         Outcome = "server_error"
	OutcomeConnectionError     Outcome = "connection_error"
	OutcomeUpstreamRateLimited Outcome = "upstream_rate_limited"
	OutcomeAuthError           Outcome = "auth_error"
	OutcomeInvalidRequest      Outcome = "invalid_request"
	OutcomeClientCancelled     Outcome = "client_cancelled"
)

// OutcomeFor maps a failure kind to its attempt outcome.
func OutcomeFor(kind backends.Kind) Outcome {
	switch kind {
	case backends.KindTimeout:
		return OutcomeTimeout
	case backends.KindConnection:
		return OutcomeConnectionError
	case backends.KindRateLimited:
		return OutcomeUpstreamRateLimited
	case backends.KindAuth:
		return OutcomeAuthError
	case backends.KindInvalidRequest:
		return OutcomeInvalidRequest
	case backends.KindCancelled:
		return OutcomeClientCancelled
	default:
		return OutcomeServerError
	}
}

// Dispatched reports whether the outcome implies a network call was made.
func (o Outcome) Dispatched() bool {
	return o != OutcomeRateLimited && o != OutcomeCircuitOpen
}

// FinalStatus is the outcome the caller received.
type FinalStatus string

const (
	StatusSuccess         FinalStatus = "success"
	StatusExhausted       FinalStatus = "exhausted"
	StatusTerminal        FinalStatus = "terminal"
	StatusClientCancelled FinalStatus = "client_cancelled"
	StatusNoCandidates    FinalStatus = "no_candidates"
	StatusInvalidRequest  FinalStatus = "invalid_request"
)

// Attempt is one entry of the attempt trail.
type Attempt struct {
	Backend   string        `json:"backend"`    // Backend id
	Outcome   Outcome       `json:"outcome"`    // What happened
	Error     string        `json:"error"`      // Error message for failures
	StartedAt time.Time     `json:"started_at"` // When the attempt began
	Latency   time.Duration `json:"latency"`    // Dispatch latency (0 when skipped)
}

// Event is the audit record of one routed request.
type Event struct {
	// Identity
	ID        string    `json:"id"`         // UUID v4
	RequestID string    `json:"request_id"` // From the request envelope
	Timestamp time.Time `json:"timestamp"`  // When the request arrived

	// Request
	Target      string `json:"target"`       // Requested target ("auto" or backend id)
	Model       string `json:"model"`        // Requested model
	Caller      string `json:"caller"`       // Caller identity, if known
	Sensitive   bool   `json:"sensitive"`    // Sensitivity flag
	RequestHash string `json:"request_hash"` // SHA-256 of the normalized request

	// Routing
	Attempts    []Attempt   `json:"attempts"`     // Ordered attempt trail
	FinalStatus FinalStatus `json:"final_status"` // What the caller received
	Backend     string      `json:"backend"`      // Backend that answered (success only)
	CacheHit    bool        `json:"cache_hit"`    // Served from the response cache
	Error       string      `json:"error"`        // Error surfaced to the caller

	// Outcome
	Usage   backends.Usage `json:"usage"`   // Token usage
	Cost    float64        `json:"cost"`    // Estimated cost in USD
	Latency time.Duration  `json:"latency"` // End-to-end route latency
}

// AttemptedBackends returns the backend ids of the trail, in order.
func (e *Event) AttemptedBackends() []string {
	ids := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		ids[i] = a.Backend
	}
	return ids
}

// Query filters audit events. Zero-valued fields do not filter.
type Query struct {
	StartTime   *time.Time  `json:"start_time,omitempty"`   // Inclusive start time
	EndTime     *time.Time  `json:"end_time,omitempty"`     // Inclusive end time
	RequestID   string      `json:"request_id,omitempty"`   // Exact request id
	Backend     string      `json:"backend,omitempty"`      // Any attempt touched this backend
	FinalStatus FinalStatus `json:"final_status,omitempty"` // Exact final status
	Caller      string      `json:"caller,omitempty"`       // Exact caller
	CacheHit    *bool       `json:"cache_hit,omitempty"`    // Cache hits only / misses only

	Limit     int    `json:"limit,omitempty"`      // Max events to return (0 = storage default, negative = all)
	Offset    int    `json:"offset,omitempty"`     // Skip N events
	SortOrder string `json:"sort_order,omitempty"` // "asc" or "desc" by timestamp (default desc)
}

// Storage is a durable audit sink.
type Storage interface {
	// Store persists an event. Storing an id that already exists is a no-op.
	Store(ctx context.Context, event *Event) error

	// Query returns events matching the filter.
	Query(ctx context.Context, query *Query) ([]*Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes events matching the filter and returns how many.
	// Used only by retention.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases resources.
	Close() error
}

// Exporter writes events in an external format.
type Exporter interface {
	Export(ctx context.Context, events []*Event, w io.Writer) error
}
