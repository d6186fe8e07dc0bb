package ratelimit

import "time"

// Config holds token bucket parameters for one backend (or caller).
type Config struct {
	// Capacity is the burst size. A bucket with zero capacity admits nothing.
	Capacity float64

	// RefillRate is the number of tokens added per second.
	RefillRate float64
}

// Snapshot is a point-in-time view of a bucket's occupancy.
type Snapshot struct {
	// Key is the bucket key (backend id, or "backend/caller" for the caller dimension).
	Key string `json:"key"`

	// Tokens is the current balance after refill.
	Tokens float64 `json:"tokens"`

	// Capacity is the maximum balance.
	Capacity float64 `json:"capacity"`

	// RefillRate is tokens per second.
	RefillRate float64 `json:"refill_rate"`

	// RetryAfter is how long until one token is available (0 if available now).
	RetryAfter time.Duration `json:"retry_after"`
}

// Occupancy returns the fill ratio in [0, 1].
func (s Snapshot) Occupancy() float64 {
	if s.Capacity <= 0 {
		return 0
	}
	return s.Tokens / s.Capacity
}
