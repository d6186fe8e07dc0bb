package registry

import (
	"time"

	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/breaker"
	"mercator-hq/switchboard/pkg/limits/ratelimit"
)

// Descriptor describes one configured backend. Everything but the enabled
// flag is fixed once the registry is built.
type Descriptor struct {
	// ID is the unique backend id; adapters are matched by Name() == ID.
	ID string

	// Priority orders candidates; lower values are tried first.
	Priority int

	// Enabled is the initial enabled flag. It may be toggled at runtime.
	Enabled bool

	// Models is the served model set. Empty means every model.
	Models []string

	// CredentialRef points at the backend's credential (e.g. "env:OPENAI_KEY").
	// The registry never resolves it.
	CredentialRef string

	// Timeout bounds a single dispatch to this backend.
	Timeout time.Duration

	// Pricing is used to estimate response cost.
	Pricing Pricing

	// Breaker overrides the default breaker parameters when Threshold > 0.
	Breaker breaker.Config

	// RateLimit overrides the default bucket parameters when Capacity > 0.
	RateLimit ratelimit.Config
}

// Pricing is the per-1K-token price of a backend in USD.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// Estimate returns the cost of usage under p.
func (p Pricing) Estimate(u backends.Usage) float64 {
	return float64(u.PromptTokens)/1000*p.PromptPer1K + float64(u.CompletionTokens)/1000*p.CompletionPer1K
}

// Candidate is an eligible backend handed to the router.
type Candidate struct {
	Descriptor Descriptor
	Adapter    backends.Adapter
}

// ID returns the candidate's backend id.
func (c Candidate) ID() string {
	return c.Descriptor.ID
}

// BackendStatus is the status query result for one backend.
type BackendStatus struct {
	ID       string             `json:"id"`
	Priority int                `json:"priority"`
	Enabled  bool               `json:"enabled"`
	Models   []string           `json:"models,omitempty"`
	Breaker  breaker.Snapshot   `json:"breaker"`
	Bucket   ratelimit.Snapshot `json:"bucket"`
	Health   *backends.Health   `json:"health,omitempty"`
}
