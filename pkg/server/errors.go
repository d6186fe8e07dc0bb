package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/routing"
)

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes what went wrong.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Code is the final status of a routed request, when there is one.
	Code string `json:"code,omitempty"`

	// RequestID identifies the routed request.
	RequestID string `json:"request_id,omitempty"`

	// Attempts is the reason each backend was passed over, keyed by id.
	Attempts map[string]audit.Outcome `json:"attempts,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeNotFound           = "not_found"
	ErrorTypeBadGateway         = "bad_gateway"
	ErrorTypeServiceUnavailable = "service_unavailable"
	ErrorTypeGatewayTimeout     = "gateway_timeout"
	ErrorTypeClientClosed       = "client_closed_request"
	ErrorTypeServerError        = "server_error"
)

// StatusClientClosedRequest is the non-standard status for a caller that went
// away before the route finished.
const StatusClientClosedRequest = 499

// routeError maps a Route error to an HTTP status and body.
func routeError(requestID string, err error) (int, ErrorResponse) {
	detail := ErrorDetail{
		Message:   err.Error(),
		Code:      string(routing.StatusOf(err)),
		RequestID: requestID,
	}

	var (
		exhausted *routing.ExhaustedError
		terminal  *routing.TerminalError
		cancelled *routing.CancelledError
	)

	switch {
	case errors.As(err, &cancelled):
		detail.Attempts = reasons(cancelled.Attempts)
		if errors.Is(cancelled.Cause, context.DeadlineExceeded) {
			detail.Type = ErrorTypeGatewayTimeout
			return http.StatusGatewayTimeout, ErrorResponse{Error: detail}
		}
		detail.Type = ErrorTypeClientClosed
		return StatusClientClosedRequest, ErrorResponse{Error: detail}

	case errors.As(err, &terminal):
		detail.Attempts = reasons(terminal.Attempts)
		if terminal.Kind == backends.KindInvalidRequest {
			detail.Type = ErrorTypeInvalidRequest
			return http.StatusBadRequest, ErrorResponse{Error: detail}
		}
		detail.Type = ErrorTypeBadGateway
		return http.StatusBadGateway, ErrorResponse{Error: detail}

	case errors.Is(err, routing.ErrNoCandidates):
		detail.Type = ErrorTypeNotFound
		return http.StatusNotFound, ErrorResponse{Error: detail}

	case errors.Is(err, backends.ErrInvalidRequest):
		detail.Type = ErrorTypeInvalidRequest
		return http.StatusBadRequest, ErrorResponse{Error: detail}

	case errors.As(err, &exhausted):
		detail.Type = ErrorTypeServiceUnavailable
		detail.Attempts = exhausted.Reasons()
		return http.StatusServiceUnavailable, ErrorResponse{Error: detail}

	default:
		detail.Type = ErrorTypeServerError
		return http.StatusInternalServerError, ErrorResponse{Error: detail}
	}
}

func reasons(attempts []audit.Attempt) map[string]audit.Outcome {
	if len(attempts) == 0 {
		return nil
	}
	out := make(map[string]audit.Outcome, len(attempts))
	for _, a := range attempts {
		out[a.Backend] = a.Outcome
	}
	return out
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Message: message, Type: errType}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
