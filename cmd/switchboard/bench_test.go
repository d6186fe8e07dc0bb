package main

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/switchboard/pkg/backends"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}

	tests := []struct {
		q    float64
		want time.Duration
	}{
		{0, 1 * time.Millisecond},
		{0.5, 50 * time.Millisecond},
		{0.95, 95 * time.Millisecond},
		{0.99, 99 * time.Millisecond},
		{1, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.q); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.q, got, tt.want)
		}
	}

	if got := percentile(nil, 0.5); got != 0 {
		t.Errorf("percentile(nil) = %v, want 0", got)
	}
}

func TestRunLoad(t *testing.T) {
	var calls atomic.Int64
	route := func(ctx context.Context, req *backends.Request) (*backends.Response, error) {
		n := calls.Add(1)
		switch {
		case n%5 == 0:
			return nil, &apiError{StatusCode: http.StatusServiceUnavailable}
		case n%2 == 0:
			return &backends.Response{Backend: "fallback", Cached: true}, nil
		default:
			return &backends.Response{Backend: "primary"}, nil
		}
	}

	var progressed atomic.Int64
	res := runLoad(context.Background(), route, loadSpec{
		requests:    20,
		concurrency: 4,
		newRequest:  func() *backends.Request { return &backends.Request{} },
	}, func(n int64) {
		for {
			cur := progressed.Load()
			if n <= cur || progressed.CompareAndSwap(cur, n) {
				return
			}
		}
	})

	if res.sent != 20 || len(res.latencies) != 20 {
		t.Fatalf("sent = %d, latencies = %d, want 20", res.sent, len(res.latencies))
	}
	if res.outcomes["503"] != 4 || res.outcomes["ok"] != 16 {
		t.Errorf("outcomes = %v, want 16 ok and 4 503", res.outcomes)
	}
	if res.served["primary"]+res.served["fallback"] != 16 {
		t.Errorf("served = %v", res.served)
	}
	if progressed.Load() != 20 {
		t.Errorf("progress = %d, want 20", progressed.Load())
	}

	var buf bytes.Buffer
	writeBenchResults(&buf, res)
	for _, want := range []string{"20 sent, 16 ok", "p95:", "503:", "primary:"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("results missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRunLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	route := func(ctx context.Context, req *backends.Request) (*backends.Response, error) {
		return &backends.Response{}, nil
	}
	res := runLoad(ctx, route, loadSpec{
		requests:    1000,
		rate:        1,
		concurrency: 2,
		newRequest:  func() *backends.Request { return &backends.Request{} },
	}, nil)

	if res.sent != 0 {
		t.Errorf("sent = %d after cancellation, want 0", res.sent)
	}
}
