package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/breaker"
	"mercator-hq/switchboard/pkg/cli"
	"mercator-hq/switchboard/pkg/gateway"
)

var statusFlags struct {
	addr    string
	probe   bool
	format  string
	timeout time.Duration
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend status of a running gateway",
	Long: `Show each backend's enabled flag, breaker state and bucket level,
followed by router and audit counters.

Examples:
  # Status of a local gateway
  switchboard status

  # Run adapter health checks first
  switchboard status --probe

  # Machine-readable output
  switchboard status --format json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlags.addr, "addr", "http://127.0.0.1:8080", "gateway admin address")
	statusCmd.Flags().BoolVar(&statusFlags.probe, "probe", false, "run adapter health checks before reporting")
	statusCmd.Flags().StringVar(&statusFlags.format, "format", "text", "output format: text, json, csv")
	statusCmd.Flags().DurationVar(&statusFlags.timeout, "timeout", 10*time.Second, "request timeout")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(statusFlags.format)
	if err != nil {
		return err
	}

	client, err := newAdminClient(statusFlags.addr, statusFlags.timeout)
	if err != nil {
		return err
	}

	st, err := client.Status(cmd.Context(), statusFlags.probe)
	if err != nil {
		return cli.NewCommandError("status", err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(out, st)
	}
	if err := cli.NewFormatter(format).FormatTo(out, statusTable{st}); err != nil {
		return err
	}
	if format == cli.FormatText {
		fmt.Fprintln(out)
		fmt.Fprintln(out, routerSummary(st))
	}
	return nil
}

// statusTable renders one row per backend.
type statusTable struct {
	st *gateway.Status
}

func (t statusTable) Header() []string {
	return []string{"id", "priority", "enabled", "breaker", "failures", "tokens", "health"}
}

func (t statusTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.st.Backends))
	for _, b := range t.st.Backends {
		breakerCol := b.Breaker.State.String()
		if b.Breaker.State == breaker.Open {
			if reopens := b.Breaker.ReopensAt(); !reopens.IsZero() {
				breakerCol += " (probe at " + reopens.Format(time.TimeOnly) + ")"
			}
		}

		health := "-"
		if b.Health != nil {
			health = "healthy"
			if !b.Health.Healthy {
				health = "unhealthy"
				if b.Health.Message != "" {
					health += ": " + b.Health.Message
				}
			}
		}

		rows = append(rows, []string{
			b.ID,
			strconv.Itoa(b.Priority),
			strconv.FormatBool(b.Enabled),
			breakerCol,
			fmt.Sprintf("%d/%d", b.Breaker.Failures, b.Breaker.Threshold),
			fmt.Sprintf("%.1f/%.0f", b.Bucket.Tokens, b.Bucket.Capacity),
			health,
		})
	}
	return rows
}

func routerSummary(st *gateway.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Requests: %d  Fallbacks: %d  Cache hits: %d\n",
		st.Router.TotalRequests, st.Router.Fallbacks, st.Router.CacheHits)

	statuses := make([]string, 0, len(st.Router.ByStatus))
	for status, n := range st.Router.ByStatus {
		statuses = append(statuses, fmt.Sprintf("%s=%d", status, n))
	}
	sort.Strings(statuses)
	if len(statuses) > 0 {
		fmt.Fprintf(&b, "By status: %s\n", strings.Join(statuses, " "))
	}

	fmt.Fprintf(&b, "Audit: written=%d sync=%d redelivered=%d failed=%d dead_lettered=%d queued=%d",
		st.Audit.Written, st.Audit.SyncWrites, st.Audit.Redelivered, st.Audit.Failed, st.Audit.DeadLettered, st.Audit.QueueDepth)
	return b.String()
}
