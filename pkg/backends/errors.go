package backends

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	ErrTimeout        = errors.New("backend timeout")
	ErrConnection     = errors.New("backend connection failure")
	ErrServer         = errors.New("backend server error")
	ErrRateLimited    = errors.New("backend rate limited")
	ErrAuth           = errors.New("backend authentication failed")
	ErrInvalidRequest = errors.New("invalid request")
)

// Kind classifies a dispatch failure.
type Kind int

const (
	// KindUnknown is never returned by Classify for a non-nil error.
	KindUnknown Kind = iota
	KindTimeout
	KindConnection
	KindServerError
	KindRateLimited
	KindAuth
	KindInvalidRequest
	KindCancelled
)

// String returns the kind name used in attempt trails and metrics.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection_error"
	case KindServerError:
		return "server_error"
	case KindRateLimited:
		return "upstream_rate_limited"
	case KindAuth:
		return "auth_error"
	case KindInvalidRequest:
		return "invalid_request"
	case KindCancelled:
		return "client_cancelled"
	default:
		return "unknown"
	}
}

// Transient reports whether the failure counts toward the circuit breaker.
func (k Kind) Transient() bool {
	return k == KindTimeout || k == KindConnection || k == KindServerError
}

// Terminal reports whether the failure travels with the request, so no other
// backend can fix it.
func (k Kind) Terminal() bool {
	return k == KindAuth || k == KindInvalidRequest
}

// Classify maps an adapter error to a Kind. Unrecognized errors are treated as
// server errors so they fall back and count toward the breaker.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrConnection):
		return KindConnection
	case errors.Is(err, ErrServer):
		return KindServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}

	return KindServerError
}

// TimeoutError reports that the backend did not answer in time.
type TimeoutError struct {
	// Backend is the id of the backend that timed out
	Backend string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %q request timeout after %s", e.Backend, e.Timeout)
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ConnectionError reports a transport-level failure (refused, reset, DNS).
type ConnectionError struct {
	// Backend is the id of the unreachable backend
	Backend string

	// Cause is the underlying transport error
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("backend %q connection failed: %v", e.Backend, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is matches ErrConnection.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// ServerError reports an upstream 5xx or an unparseable response.
type ServerError struct {
	// Backend is the id of the failing backend
	Backend string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %q server error (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %q server error: %s", e.Backend, e.Message)
}

// Is matches ErrServer.
func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

// RateLimitError reports an upstream 429.
type RateLimitError struct {
	// Backend is the id of the backend that rate limited the request
	Backend string

	// RetryAfter is the upstream's suggested wait (0 if not provided)
	RetryAfter time.Duration

	// Message is the error message from the backend
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("backend %q rate limit exceeded (retry after %s): %s",
			e.Backend, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("backend %q rate limit exceeded: %s", e.Backend, e.Message)
}

// Is matches ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// AuthError reports that the backend rejected the configured credentials.
type AuthError struct {
	// Backend is the id of the backend that rejected authentication
	Backend string

	// Message is the error message from the backend
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("backend %q authentication failed: %s", e.Backend, e.Message)
}

// Is matches ErrAuth.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// InvalidRequestError reports a malformed request, either caught by envelope
// validation (Backend empty) or rejected by the upstream.
type InvalidRequestError struct {
	// Backend is the id of the rejecting backend, empty for local validation
	Backend string

	// Field is the offending field, if known
	Field string

	// Message describes what is invalid
	Message string
}

// Error implements the error interface.
func (e *InvalidRequestError) Error() string {
	switch {
	case e.Backend != "" && e.Field != "":
		return fmt.Sprintf("backend %q rejected request field %q: %s", e.Backend, e.Field, e.Message)
	case e.Backend != "":
		return fmt.Sprintf("backend %q rejected request: %s", e.Backend, e.Message)
	case e.Field != "":
		return fmt.Sprintf("invalid request field %q: %s", e.Field, e.Message)
	default:
		return fmt.Sprintf("invalid request: %s", e.Message)
	}
}

// Is matches ErrInvalidRequest.
func (e *InvalidRequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}
