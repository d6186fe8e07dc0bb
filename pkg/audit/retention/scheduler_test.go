package retention

import (
	"context"
	"testing"
	"time"

	"mercator-hq/switchboard/pkg/audit/storage"
)

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantErr     bool
	}{
		{name: "daily", schedule: "0 3 * * *", wantRunning: true},
		{name: "every five minutes", schedule: "*/5 * * * *", wantRunning: true},
		{name: "disabled", schedule: ""},
		{name: "invalid", schedule: "every tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPruner(storage.NewMemoryStorage(), &Config{RetentionDays: 30, PruneSchedule: tt.schedule})
			s := NewScheduler(p)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Start() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := s.IsRunning(); got != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", got, tt.wantRunning)
			}

			next := s.NextRun()
			if tt.wantRunning {
				if next == nil {
					t.Fatal("NextRun() = nil for a running scheduler")
				}
				if !next.After(time.Now()) {
					t.Errorf("NextRun() = %v, want a future time", next)
				}
			} else if next != nil {
				t.Errorf("NextRun() = %v, want nil", next)
			}

			s.Stop()
			if s.IsRunning() {
				t.Error("IsRunning() = true after Stop()")
			}
		})
	}
}

func TestScheduler_StopsWithContext(t *testing.T) {
	p := NewPruner(storage.NewMemoryStorage(), &Config{RetentionDays: 1, PruneSchedule: "0 * * * *"})
	s := NewScheduler(p)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("scheduler still running after context cancellation")
	}
}
