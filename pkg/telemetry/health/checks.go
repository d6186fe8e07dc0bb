package health

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/breaker"
	"mercator-hq/switchboard/pkg/registry"
)

// ErrNoRoutableBackend is returned by BackendsCheck when every backend is
// disabled or has an open circuit.
var ErrNoRoutableBackend = errors.New("no routable backend")

// StatusSource reports the live state of every backend.
type StatusSource interface {
	Status() []registry.BackendStatus
}

// BackendsCheck passes while at least one enabled backend has a circuit that
// is not open. A half-open circuit counts: it will admit a probe.
func BackendsCheck(source StatusSource) CheckFunc {
	return func(ctx context.Context) error {
		statuses := source.Status()
		for _, st := range statuses {
			if st.Enabled && st.Breaker.State != breaker.Open {
				return nil
			}
		}
		return fmt.Errorf("%w: %d backends disabled or open", ErrNoRoutableBackend, len(statuses))
	}
}

// AuditStorageCheck passes while the audit store answers a one-row query.
func AuditStorageCheck(storage audit.Storage) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := storage.Query(ctx, &audit.Query{Limit: 1}); err != nil {
			return fmt.Errorf("audit storage: %w", err)
		}
		return nil
	}
}

// Pinger is implemented by stores that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps a Pinger.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("health check panicked: %v", e.value)
}
