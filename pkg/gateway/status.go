package gateway

import (
	"context"
	"time"

	"mercator-hq/switchboard/pkg/audit/recorder"
	"mercator-hq/switchboard/pkg/registry"
	"mercator-hq/switchboard/pkg/routing"
)

// Status is the answer to a status query.
type Status struct {
	Backends  []registry.BackendStatus `json:"backends"`
	Router    routing.Stats            `json:"router"`
	Audit     recorder.Stats           `json:"audit"`
	Timestamp time.Time                `json:"timestamp"`
}

// Status reports every backend's enabled flag, breaker and bucket together
// with router and audit counters. With probe set, each adapter's health check
// runs first, bounded by gateway.health_check_timeout.
func (g *Gateway) Status(ctx context.Context, probe bool) Status {
	if probe {
		g.registry.CheckHealth(ctx, g.config.Gateway.HealthCheckTimeout)
	}

	return Status{
		Backends:  g.registry.Status(),
		Router:    g.router.Stats(),
		Audit:     g.recorder.Stats(),
		Timestamp: time.Now(),
	}
}
