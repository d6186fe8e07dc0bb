package breaker

import (
	"fmt"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "closed":
		*s = Closed
	case "open":
		*s = Open
	case "half-open":
		*s = HalfOpen
	default:
		return fmt.Errorf("unknown breaker state %q", text)
	}
	return nil
}

// Config holds breaker parameters for one backend.
type Config struct {
	// Threshold is the number of transient failures within Window that opens
	// the breaker.
	Threshold int

	// Window is the rolling window failures are counted in. Zero counts every
	// failure since the breaker last closed.
	Window time.Duration

	// Cooldown is the first Open period.
	Cooldown time.Duration

	// MaxCooldown caps the cooldown growth on repeated probe failures.
	MaxCooldown time.Duration

	// Multiplier is the cooldown growth factor (default 2).
	Multiplier float64
}

// DefaultConfig returns the breaker defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:   5,
		Window:      time.Minute,
		Cooldown:    30 * time.Second,
		MaxCooldown: 5 * time.Minute,
		Multiplier:  2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.MaxCooldown < c.Cooldown {
		c.MaxCooldown = c.Cooldown
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Backend       string        `json:"backend"`
	State         State         `json:"state"`
	Failures      int           `json:"failures"`
	Threshold     int           `json:"threshold"`
	OpenedAt      time.Time     `json:"opened_at"`
	Cooldown      time.Duration `json:"cooldown"`
	ProbeInFlight bool          `json:"probe_in_flight"`
}

// ReopensAt returns when an Open breaker will admit its next probe.
func (s Snapshot) ReopensAt() time.Time {
	if s.State != Open {
		return time.Time{}
	}
	return s.OpenedAt.Add(s.Cooldown)
}

// TransitionFunc observes state changes. It is called with the breaker's
// lock held and must not call back into the breaker.
type TransitionFunc func(backend string, from, to State)
