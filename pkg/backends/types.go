package backends

import "time"

// TargetAuto lets the router pick any enabled backend by priority.
const TargetAuto = "auto"

// Message is a single message in a conversation.
type Message struct {
	// Role identifies the message sender (system, user, assistant, tool)
	Role string `json:"role" validate:"required,oneof=system user assistant tool"`

	// Content is the message text
	Content string `json:"content" validate:"required"`

	// Name is an optional sender name
	Name string `json:"name,omitempty"`
}

// Params holds sampling parameters. Pointer fields distinguish "unset" from
// an explicit zero so the cache key does not conflate the two.
type Params struct {
	// Temperature controls randomness (0.0 to 2.0)
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`

	// TopP controls nucleus sampling (0.0 to 1.0)
	TopP *float64 `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`

	// MaxTokens is the maximum number of tokens to generate (0 = backend default)
	MaxTokens int `json:"max_tokens,omitempty" validate:"gte=0"`

	// Stop sequences that halt generation
	Stop []string `json:"stop,omitempty"`

	// Seed requests deterministic sampling where supported
	Seed *int64 `json:"seed,omitempty"`
}

// Request is the normalized request envelope.
type Request struct {
	// RequestID uniquely identifies the request across attempts and audit.
	RequestID string `json:"request_id" validate:"required"`

	// Target is a backend id, or "auto" (or empty) for priority routing.
	Target string `json:"target,omitempty"`

	// Model is the requested model name.
	Model string `json:"model,omitempty"`

	// Messages is the conversation history.
	Messages []Message `json:"messages" validate:"required,min=1,dive"`

	// Params are the sampling parameters.
	Params Params `json:"params"`

	// Sensitive requests never touch the response cache.
	Sensitive bool `json:"sensitive,omitempty"`

	// Deadline bounds the whole route when non-zero.
	Deadline time.Time `json:"deadline,omitempty"`

	// Caller identifies the client for logging and audit.
	Caller string `json:"caller,omitempty"`

	// Metadata is passed through to adapters and not part of the cache key.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsAuto reports whether the request lets the router choose the backend.
func (r *Request) IsAuto() bool {
	return r.Target == "" || r.Target == TargetAuto
}

// Usage tracks token consumption for a request.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is prompt + completion
	TotalTokens int `json:"total_tokens"`
}

// Response statuses.
const (
	StatusOK = "ok"
)

// Response is the normalized response envelope.
type Response struct {
	// RequestID echoes the request's id.
	RequestID string `json:"request_id"`

	// Backend is the id of the backend that produced the response.
	Backend string `json:"backend"`

	// Model is the model that generated the response.
	Model string `json:"model,omitempty"`

	// Content is the generated text.
	Content string `json:"content"`

	// FinishReason indicates why generation stopped.
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage contains token consumption.
	Usage Usage `json:"usage"`

	// Cost is the estimated cost in USD.
	Cost float64 `json:"cost"`

	// Latency is the dispatch latency of the successful attempt.
	Latency time.Duration `json:"latency"`

	// Status is "ok" for a completed response.
	Status string `json:"status"`

	// Cached is true when the response was served from the response cache.
	Cached bool `json:"cached,omitempty"`

	// CreatedAt is when the backend produced the response.
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy of r that shares no mutable state.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
