package backends

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"timeout", &TimeoutError{Backend: "a", Timeout: time.Second}, KindTimeout},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), KindTimeout},
		{"cancelled", context.Canceled, KindCancelled},
		{"connection", &ConnectionError{Backend: "a", Cause: errors.New("refused")}, KindConnection},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindConnection},
		{"server", &ServerError{Backend: "a", StatusCode: 502}, KindServerError},
		{"upstream 429", &RateLimitError{Backend: "a"}, KindRateLimited},
		{"auth", &AuthError{Backend: "a"}, KindAuth},
		{"invalid", &InvalidRequestError{Field: "messages"}, KindInvalidRequest},
		{"wrapped auth", fmt.Errorf("dispatch: %w", &AuthError{Backend: "a"}), KindAuth},
		{"unknown", errors.New("boom"), KindServerError},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		kind      Kind
		transient bool
		terminal  bool
	}{
		{KindTimeout, true, false},
		{KindConnection, true, false},
		{KindServerError, true, false},
		{KindRateLimited, false, false},
		{KindAuth, false, true},
		{KindInvalidRequest, false, true},
		{KindCancelled, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Transient(); got != tt.transient {
				t.Errorf("Transient() = %v, want %v", got, tt.transient)
			}
			if got := tt.kind.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ServerError{Backend: "a", StatusCode: 503, Message: "down"}, `backend "a" server error (status 503): down`},
		{&RateLimitError{Backend: "a", RetryAfter: 2 * time.Second, Message: "slow"}, `backend "a" rate limit exceeded (retry after 2s): slow`},
		{&InvalidRequestError{Field: "messages", Message: "is required"}, `invalid request field "messages": is required`},
		{&InvalidRequestError{Backend: "a", Message: "bad"}, `backend "a" rejected request: bad`},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
