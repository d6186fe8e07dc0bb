package main

import (
	"strings"
	"testing"
	"time"

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/breaker"
	"mercator-hq/switchboard/pkg/gateway"
	"mercator-hq/switchboard/pkg/limits/ratelimit"
	"mercator-hq/switchboard/pkg/registry"
	"mercator-hq/switchboard/pkg/routing"
)

func TestStatusTable(t *testing.T) {
	opened := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	st := &gateway.Status{
		Backends: []registry.BackendStatus{
			{
				ID: "primary", Priority: 1, Enabled: true,
				Breaker: breaker.Snapshot{State: breaker.Open, Failures: 5, Threshold: 5, OpenedAt: opened, Cooldown: 30 * time.Second},
				Bucket:  ratelimit.Snapshot{Tokens: 12.5, Capacity: 60},
				Health:  &backends.Health{Healthy: false, Message: "connection refused"},
			},
			{
				ID: "fallback", Priority: 2, Enabled: false,
				Breaker: breaker.Snapshot{State: breaker.Closed, Threshold: 5},
				Bucket:  ratelimit.Snapshot{Tokens: 60, Capacity: 60},
			},
		},
		Router: routing.Stats{
			TotalRequests: 10,
			Fallbacks:     3,
			ByStatus:      map[audit.FinalStatus]int64{audit.StatusSuccess: 9, audit.StatusExhausted: 1},
		},
	}

	rows := statusTable{st}.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if !strings.HasPrefix(rows[0][3], "open (probe at ") {
		t.Errorf("breaker column = %q, want open with probe time", rows[0][3])
	}
	if rows[0][4] != "5/5" || rows[0][5] != "12.5/60" {
		t.Errorf("failures/tokens = %q/%q", rows[0][4], rows[0][5])
	}
	if rows[0][6] != "unhealthy: connection refused" {
		t.Errorf("health column = %q", rows[0][6])
	}
	if rows[1][2] != "false" || rows[1][6] != "-" {
		t.Errorf("fallback row = %v", rows[1])
	}

	summary := routerSummary(st)
	for _, want := range []string{"Requests: 10", "Fallbacks: 3", "exhausted=1 success=9"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary %q missing %q", summary, want)
		}
	}
}
