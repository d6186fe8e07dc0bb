package routing

import (
	"errors"
	"fmt"
	"strings"

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/backends"
)

// Routing errors that can be checked with errors.Is().
var (
	// ErrExhausted is returned when every candidate failed or was skipped.
	ErrExhausted = errors.New("all backends exhausted")

	// ErrTerminal is returned when a backend rejected the request itself.
	ErrTerminal = errors.New("request rejected by backend")

	// ErrCancelled is returned when the caller cancelled or the request
	// deadline passed.
	ErrCancelled = errors.New("request cancelled")

	// ErrNoCandidates is returned when no backend is eligible.
	ErrNoCandidates = errors.New("no eligible backends")
)

// ExhaustedError carries every attempt's reason after the whole chain failed.
type ExhaustedError struct {
	// RequestID is the request that was routed.
	RequestID string

	// Attempts is the full attempt trail in order.
	Attempts []audit.Attempt
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all backends exhausted for request %s: %s", e.RequestID, formatTrail(e.Attempts))
}

// Is implements error matching for errors.Is().
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Reasons returns the outcome of each attempted backend keyed by backend id.
func (e *ExhaustedError) Reasons() map[string]audit.Outcome {
	out := make(map[string]audit.Outcome, len(e.Attempts))
	for _, a := range e.Attempts {
		out[a.Backend] = a.Outcome
	}
	return out
}

// TerminalError is returned when a backend failure travels with the request
// (auth rejected, malformed request). The chain stops at that backend.
type TerminalError struct {
	// RequestID is the request that was routed.
	RequestID string

	// Backend is the backend that rejected the request.
	Backend string

	// Kind is KindAuth or KindInvalidRequest.
	Kind backends.Kind

	// Attempts is the attempt trail up to and including the rejection.
	Attempts []audit.Attempt

	// Err is the adapter error.
	Err error
}

// Error implements the error interface.
func (e *TerminalError) Error() string {
	return fmt.Sprintf("backend %s rejected request %s (%s): %v", e.Backend, e.RequestID, e.Kind, e.Err)
}

// Is implements error matching for errors.Is().
func (e *TerminalError) Is(target error) bool {
	return target == ErrTerminal
}

// Unwrap returns the adapter error.
func (e *TerminalError) Unwrap() error {
	return e.Err
}

// CancelledError is returned when the caller's context ended mid-route.
type CancelledError struct {
	// RequestID is the request that was routed.
	RequestID string

	// Attempts is the attempt trail up to the cancellation.
	Attempts []audit.Attempt

	// Cause is the context error.
	Cause error
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	return fmt.Sprintf("request %s cancelled after %d attempt(s): %v", e.RequestID, len(e.Attempts), e.Cause)
}

// Is implements error matching for errors.Is().
func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

// Unwrap returns the context error.
func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// NoCandidatesError is returned when the registry yields no eligible backend.
type NoCandidatesError struct {
	RequestID string
	Target    string
	Model     string
}

// Error implements the error interface.
func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("no eligible backends for request %s (target %q, model %q)", e.RequestID, e.Target, e.Model)
}

// Is implements error matching for errors.Is().
func (e *NoCandidatesError) Is(target error) bool {
	return target == ErrNoCandidates
}

// StatusOf maps a Route result to the final status recorded in the audit
// trail.
func StatusOf(err error) audit.FinalStatus {
	switch {
	case err == nil:
		return audit.StatusSuccess
	case errors.Is(err, ErrCancelled):
		return audit.StatusClientCancelled
	case errors.Is(err, ErrTerminal):
		return audit.StatusTerminal
	case errors.Is(err, ErrNoCandidates):
		return audit.StatusNoCandidates
	case errors.Is(err, backends.ErrInvalidRequest):
		return audit.StatusInvalidRequest
	default:
		return audit.StatusExhausted
	}
}

func formatTrail(attempts []audit.Attempt) string {
	if len(attempts) == 0 {
		return "no attempts"
	}
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		if a.Error != "" {
			parts[i] = fmt.Sprintf("%s: %s (%s)", a.Backend, a.Outcome, a.Error)
		} else {
			parts[i] = fmt.Sprintf("%s: %s", a.Backend, a.Outcome)
		}
	}
	return strings.Join(parts, "; ")
}
