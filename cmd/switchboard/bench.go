package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/cli"
)

var benchFlags struct {
	addr        string
	requests    int
	rate        int
	concurrency int
	target      string
	prompt      string
	sensitive   bool
	timeout     time.Duration
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load test a running gateway",
	Long: `Send a fixed number of route requests to a running gateway at a steady
rate and report latency percentiles, outcomes and which backends served.

Requests share the same prompt, so with the cache enabled all but the first
are cache hits unless --sensitive is set.

Examples:
  switchboard bench --requests 500 --rate 50 --concurrency 8
  switchboard bench --target anthropic --sensitive`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVar(&benchFlags.addr, "addr", "http://127.0.0.1:8080", "gateway admin address")
	benchCmd.Flags().IntVarP(&benchFlags.requests, "requests", "n", 100, "total requests")
	benchCmd.Flags().IntVar(&benchFlags.rate, "rate", 10, "requests per second (0 = as fast as possible)")
	benchCmd.Flags().IntVar(&benchFlags.concurrency, "concurrency", 4, "concurrent clients")
	benchCmd.Flags().StringVar(&benchFlags.target, "target", backends.TargetAuto, "backend id or auto")
	benchCmd.Flags().StringVar(&benchFlags.prompt, "prompt", "Reply with the word pong.", "user message")
	benchCmd.Flags().BoolVar(&benchFlags.sensitive, "sensitive", false, "bypass the response cache")
	benchCmd.Flags().DurationVar(&benchFlags.timeout, "timeout", time.Minute, "per-request timeout")
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFlags.requests <= 0 || benchFlags.concurrency <= 0 || benchFlags.rate < 0 {
		return fmt.Errorf("--requests and --concurrency must be positive and --rate not negative")
	}

	client, err := newAdminClient(benchFlags.addr, benchFlags.timeout)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Switchboard Benchmark")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintf(out, "Gateway: %s\n", benchFlags.addr)
	fmt.Fprintf(out, "Requests: %d  Rate: %d req/s  Concurrency: %d\n\n",
		benchFlags.requests, benchFlags.rate, benchFlags.concurrency)

	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "req")
	progress.Start(int64(benchFlags.requests))

	res := runLoad(ctx, client.Route, loadSpec{
		requests:    benchFlags.requests,
		rate:        benchFlags.rate,
		concurrency: benchFlags.concurrency,
		newRequest: func() *backends.Request {
			return &backends.Request{
				RequestID: uuid.New().String(),
				Target:    benchFlags.target,
				Messages:  []backends.Message{{Role: "user", Content: benchFlags.prompt}},
				Sensitive: benchFlags.sensitive,
				Caller:    "switchboard-bench",
			}
		},
	}, progress.Update)
	progress.Finish()

	writeBenchResults(out, res)
	return nil
}

type routeFunc func(ctx context.Context, req *backends.Request) (*backends.Response, error)

type loadSpec struct {
	requests    int
	rate        int
	concurrency int
	newRequest  func() *backends.Request
}

type benchResults struct {
	sent      int
	duration  time.Duration
	latencies []time.Duration
	outcomes  map[string]int // "ok", HTTP status, or "error"
	served    map[string]int
	cached    int
}

// runLoad issues spec.requests calls to route from spec.concurrency workers,
// paced at spec.rate per second.
func runLoad(ctx context.Context, route routeFunc, spec loadSpec, onProgress func(int64)) *benchResults {
	res := &benchResults{
		outcomes:  make(map[string]int),
		served:    make(map[string]int),
		latencies: make([]time.Duration, 0, spec.requests),
	}

	jobs := make(chan struct{})
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done int64
	)

	for range spec.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				start := time.Now()
				resp, err := route(ctx, spec.newRequest())
				latency := time.Since(start)

				mu.Lock()
				res.latencies = append(res.latencies, latency)
				switch {
				case err == nil:
					res.outcomes["ok"]++
					res.served[resp.Backend]++
					if resp.Cached {
						res.cached++
					}
				default:
					var apiErr *apiError
					if errors.As(err, &apiErr) {
						res.outcomes[strconv.Itoa(apiErr.StatusCode)]++
					} else {
						res.outcomes["error"]++
					}
				}
				done++
				n := done
				mu.Unlock()

				if onProgress != nil {
					onProgress(n)
				}
			}
		}()
	}

	var tick <-chan time.Time
	if spec.rate > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(spec.rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	start := time.Now()
dispatch:
	for res.sent < spec.requests {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				break dispatch
			}
		}
		select {
		case jobs <- struct{}{}:
			res.sent++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	res.duration = time.Since(start)
	return res
}

// percentile returns the q-quantile (0..1) of sorted latencies using the
// nearest-rank method.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted))*q+0.5) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func writeBenchResults(w io.Writer, res *benchResults) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Results:")
	fmt.Fprintln(w, "--------")
	fmt.Fprintf(w, "Requests:    %d sent, %d ok\n", res.sent, res.outcomes["ok"])
	fmt.Fprintf(w, "Duration:    %.1fs\n", res.duration.Seconds())
	if res.duration > 0 {
		fmt.Fprintf(w, "Throughput:  %.2f req/s\n", float64(len(res.latencies))/res.duration.Seconds())
	}

	if len(res.latencies) > 0 {
		sorted := slices.Clone(res.latencies)
		slices.Sort(sorted)

		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}

		ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
		fmt.Fprintln(w, "\nLatency:")
		fmt.Fprintf(w, "  Min:     %.1fms\n", ms(sorted[0]))
		fmt.Fprintf(w, "  Mean:    %.1fms\n", ms(sum/time.Duration(len(sorted))))
		fmt.Fprintf(w, "  Median:  %.1fms\n", ms(percentile(sorted, 0.50)))
		fmt.Fprintf(w, "  p95:     %.1fms\n", ms(percentile(sorted, 0.95)))
		fmt.Fprintf(w, "  p99:     %.1fms\n", ms(percentile(sorted, 0.99)))
		fmt.Fprintf(w, "  Max:     %.1fms\n", ms(sorted[len(sorted)-1]))
	}

	fmt.Fprintln(w, "\nOutcomes:")
	for _, k := range sortedKeys(res.outcomes) {
		fmt.Fprintf(w, "  %-8s %d\n", k+":", res.outcomes[k])
	}

	if len(res.served) > 0 {
		fmt.Fprintln(w, "\nServed By:")
		ids := make([]string, 0, len(res.served))
		for id := range res.served {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "  %s: %d\n", id, res.served[id])
		}
		fmt.Fprintf(w, "  (cache hits: %d)\n", res.cached)
	}
}
