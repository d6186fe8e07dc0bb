package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/audit/export"
	"mercator-hq/switchboard/pkg/audit/retention"
	"mercator-hq/switchboard/pkg/cli"
	"mercator-hq/switchboard/pkg/config"
	"mercator-hq/switchboard/pkg/gateway"
)

var auditFlags struct {
	timeRange string
	since     time.Duration
	requestID string
	backend   string
	status    string
	caller    string
	cacheHit  string
	limit     int
	offset    int
	format    string
	exportFmt string
	output    string
	pageSize  int
	days      int
	maxRecs   int64
	dryRun    bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query, export and prune the audit store",
	Long: `Work with the audit events written for every routed request.

The store is opened from the audit section of the configuration file. Use
these commands against a SQLite store; a memory store is always empty.

Subcommands:
  query   - Show events matching filters
  export  - Stream every matching event as CSV or JSON Lines
  report  - Summarize events by backend and final status
  prune   - Apply the retention policy once
  import  - Load events from a JSON Lines file, such as the recorder's dead letter file`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit events",
	Long: `Query audit events with filters, newest first.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-10-01T00:00:00Z/2026-10-02T00:00:00Z"

Examples:
  # Everything that fell through every backend in the last day
  switchboard audit query --status exhausted --since 24h

  # Every event that touched one backend
  switchboard audit query --backend anthropic --format csv`,
	RunE: queryAudit,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit events",
	Long: `Export every matching event, oldest first, paging through the store.

Examples:
  switchboard audit export --format csv --output audit.csv
  switchboard audit export --since 168h --format jsonl > week.jsonl`,
	RunE: exportAudit,
}

var auditReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize audit events",
	RunE:  reportAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy once",
	Long: `Delete events older than the retention period and the oldest events beyond
the configured maximum, archiving them first when configured.

Examples:
  switchboard audit prune
  switchboard audit prune --days 30 --dry-run`,
	RunE: pruneAudit,
}

var auditImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load events from a JSON Lines file",
	Long: `Store every event in a JSON Lines file. Events already present (same id) are
skipped, so a file can be imported more than once. Use - to read stdin.

Examples:
  switchboard audit import /var/lib/switchboard/audit-dead-letter.jsonl
  switchboard audit export --format jsonl | switchboard audit import -c other.yaml -`,
	Args: cobra.ExactArgs(1),
	RunE: importAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditExportCmd, auditReportCmd, auditPruneCmd, auditImportCmd)

	for _, c := range []*cobra.Command{auditQueryCmd, auditExportCmd, auditReportCmd} {
		c.Flags().StringVar(&auditFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
		c.Flags().DurationVar(&auditFlags.since, "since", 0, "only events newer than this (e.g. 24h)")
		c.Flags().StringVar(&auditFlags.backend, "backend", "", "filter by attempted backend")
		c.Flags().StringVar(&auditFlags.status, "status", "", "filter by final status (success, exhausted, terminal, client_cancelled, no_candidates, invalid_request)")
		c.Flags().StringVar(&auditFlags.caller, "caller", "", "filter by caller")
		c.Flags().StringVar(&auditFlags.cacheHit, "cache-hit", "", "filter by cache hit (true or false)")
		c.MarkFlagsMutuallyExclusive("time-range", "since")
	}

	auditQueryCmd.Flags().StringVar(&auditFlags.requestID, "request-id", "", "filter by request id")
	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", 100, "max results")
	auditQueryCmd.Flags().IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
	auditQueryCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json, csv")

	auditExportCmd.Flags().StringVar(&auditFlags.exportFmt, "format", "jsonl", "output format: jsonl, csv")
	auditExportCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (default: stdout)")
	auditExportCmd.Flags().IntVar(&auditFlags.pageSize, "page-size", 500, "events fetched per page")

	auditPruneCmd.Flags().IntVar(&auditFlags.days, "days", -1, "override retention days (0 keeps events forever)")
	auditPruneCmd.Flags().Int64Var(&auditFlags.maxRecs, "max-records", -1, "override the maximum number of events kept")
	auditPruneCmd.Flags().BoolVar(&auditFlags.dryRun, "dry-run", false, "report what would be deleted by age without deleting")
}

// openAuditStore loads the configuration and opens its audit store.
func openAuditStore() (*config.Config, audit.Storage, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	store, err := gateway.OpenStorage(&cfg.Audit)
	if err != nil {
		return nil, nil, cli.NewCommandError("audit", err)
	}
	return cfg, store, nil
}

// buildAuditQuery turns the shared filter flags into a query.
func buildAuditQuery(now time.Time) (*audit.Query, error) {
	query := &audit.Query{
		RequestID:   auditFlags.requestID,
		Backend:     auditFlags.backend,
		FinalStatus: audit.FinalStatus(auditFlags.status),
		Caller:      auditFlags.caller,
	}

	if auditFlags.timeRange != "" {
		start, end, err := parseTimeRange(auditFlags.timeRange)
		if err != nil {
			return nil, err
		}
		query.StartTime, query.EndTime = &start, &end
	}
	if auditFlags.since > 0 {
		start := now.Add(-auditFlags.since)
		query.StartTime = &start
	}

	if auditFlags.cacheHit != "" {
		hit, err := strconv.ParseBool(auditFlags.cacheHit)
		if err != nil {
			return nil, fmt.Errorf("invalid --cache-hit value %q", auditFlags.cacheHit)
		}
		query.CacheHit = &hit
	}

	return query, nil
}

func parseTimeRange(s string) (start, end time.Time, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return start, end, fmt.Errorf("invalid time range format (expected: start/end)")
	}

	start, err = time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return start, end, fmt.Errorf("invalid start time: %w", err)
	}
	end, err = time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return start, end, fmt.Errorf("invalid end time: %w", err)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("time range ends before it starts")
	}
	return start, end, nil
}

func queryAudit(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditFlags.format)
	if err != nil {
		return err
	}
	query, err := buildAuditQuery(time.Now())
	if err != nil {
		return err
	}
	query.Limit = auditFlags.limit
	query.Offset = auditFlags.offset

	_, store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	events, err := store.Query(ctx, query)
	if err != nil {
		return cli.NewCommandError("audit", fmt.Errorf("query failed: %w", err))
	}

	out := cmd.OutOrStdout()
	switch format {
	case cli.FormatJSON:
		return cli.NewFormatter(format).FormatTo(out, map[string]any{
			"total_events": len(events),
			"events":       events,
		})
	case cli.FormatCSV:
		return export.NewCSVExporter(true).Export(ctx, events, out)
	default:
		if len(events) == 0 {
			fmt.Fprintln(out, "No events found.")
			return nil
		}
		return cli.NewFormatter(format).FormatTo(out, eventTable(events))
	}
}

// eventTable renders one audit event per row.
type eventTable []*audit.Event

func (t eventTable) Header() []string {
	return []string{"timestamp", "request_id", "status", "backend", "trail", "tokens", "cost", "latency"}
}

func (t eventTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		backend := e.Backend
		if e.CacheHit {
			backend += " (cache)"
		}
		if backend == "" {
			backend = "-"
		}
		rows = append(rows, []string{
			e.Timestamp.Local().Format(time.DateTime),
			e.RequestID,
			string(e.FinalStatus),
			backend,
			export.Trail(e.Attempts),
			strconv.Itoa(e.Usage.TotalTokens),
			fmt.Sprintf("$%.4f", e.Cost),
			e.Latency.Round(time.Millisecond).String(),
		})
	}
	return rows
}

type streamExporter interface {
	ExportStream(ctx context.Context, ch <-chan *audit.Event, w io.Writer) error
}

func exportAudit(cmd *cobra.Command, args []string) error {
	var exporter streamExporter
	switch auditFlags.exportFmt {
	case "jsonl", "json":
		exporter = export.NewJSONLinesExporter()
	case "csv":
		exporter = export.NewCSVExporter(true)
	default:
		return fmt.Errorf("unsupported export format %q (supported: jsonl, csv)", auditFlags.exportFmt)
	}
	if auditFlags.pageSize <= 0 {
		return fmt.Errorf("--page-size must be positive")
	}

	query, err := buildAuditQuery(time.Now())
	if err != nil {
		return err
	}
	query.SortOrder = "asc"

	_, store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if auditFlags.output != "" {
		f, err := os.Create(auditFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	ctx := cmd.Context()
	total, err := store.Count(ctx, query)
	if err != nil {
		return cli.NewCommandError("audit", fmt.Errorf("count failed: %w", err))
	}

	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "events")
	progress.Start(total)

	n, err := exportPages(ctx, store, query, auditFlags.pageSize, exporter, out, progress.Update)
	if err != nil {
		progress.Error(err)
		return cli.NewCommandError("audit", err)
	}
	progress.Finish()

	if auditFlags.output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d events to %s\n", n, auditFlags.output)
	}
	return nil
}

// exportPages feeds query results page by page into exporter and returns the
// number of events exported.
func exportPages(ctx context.Context, store audit.Storage, query *audit.Query, pageSize int, exporter streamExporter, w io.Writer, onProgress func(int64)) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan *audit.Event, pageSize)
	fetchErr := make(chan error, 1)
	var sent int64

	go func() {
		defer close(ch)
		page := *query
		page.Limit = pageSize
		for offset := 0; ; offset += pageSize {
			page.Offset = offset
			events, err := store.Query(ctx, &page)
			if err != nil {
				fetchErr <- fmt.Errorf("query failed at offset %d: %w", offset, err)
				return
			}
			for _, e := range events {
				select {
				case ch <- e:
					sent++
				case <-ctx.Done():
					return
				}
			}
			if onProgress != nil {
				onProgress(sent)
			}
			if len(events) < pageSize {
				return
			}
		}
	}()

	if err := exporter.ExportStream(ctx, ch, w); err != nil {
		cancel()
		return 0, err
	}

	select {
	case err := <-fetchErr:
		return 0, err
	default:
	}
	return sent, nil
}

func reportAudit(cmd *cobra.Command, args []string) error {
	query, err := buildAuditQuery(time.Now())
	if err != nil {
		return err
	}
	query.Limit = -1

	_, store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.Query(cmd.Context(), query)
	if err != nil {
		return cli.NewCommandError("audit", fmt.Errorf("query failed: %w", err))
	}

	writeReport(cmd.OutOrStdout(), summarize(events), query, time.Now())
	return nil
}

type auditSummary struct {
	total     int
	cost      float64
	tokens    int
	cacheHits int
	fallbacks int
	byStatus  map[string]int
	served    map[string]int
	outcomes  map[string]map[string]int
}

func summarize(events []*audit.Event) auditSummary {
	s := auditSummary{
		byStatus: make(map[string]int),
		served:   make(map[string]int),
		outcomes: make(map[string]map[string]int),
	}
	for _, e := range events {
		s.total++
		s.cost += e.Cost
		s.tokens += e.Usage.TotalTokens
		s.byStatus[string(e.FinalStatus)]++
		if e.CacheHit {
			s.cacheHits++
		}
		if e.Backend != "" {
			s.served[e.Backend]++
		}
		if len(e.Attempts) > 1 && e.FinalStatus == audit.StatusSuccess {
			s.fallbacks++
		}
		for _, a := range e.Attempts {
			if s.outcomes[a.Backend] == nil {
				s.outcomes[a.Backend] = make(map[string]int)
			}
			s.outcomes[a.Backend][string(a.Outcome)]++
		}
	}
	return s
}

func writeReport(w io.Writer, s auditSummary, query *audit.Query, now time.Time) {
	fmt.Fprintln(w, "Audit Report")
	fmt.Fprintln(w, "============")
	if query.StartTime != nil {
		end := now
		if query.EndTime != nil {
			end = *query.EndTime
		}
		fmt.Fprintf(w, "Time Range: %s to %s\n", query.StartTime.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Generated: %s\n\n", now.Format(time.RFC3339))

	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Total Requests: %d\n", s.total)
	fmt.Fprintf(w, "  Total Cost: $%.4f\n", s.cost)
	fmt.Fprintf(w, "  Total Tokens: %d\n", s.tokens)
	fmt.Fprintf(w, "  Cache Hits: %d\n", s.cacheHits)
	fmt.Fprintf(w, "  Served After Fallback: %d\n", s.fallbacks)
	if s.total == 0 {
		return
	}

	fmt.Fprintln(w, "\nBy Final Status:")
	for _, k := range sortedKeys(s.byStatus) {
		n := s.byStatus[k]
		fmt.Fprintf(w, "  %s: %d (%.0f%%)\n", k, n, float64(n)/float64(s.total)*100)
	}

	fmt.Fprintln(w, "\nServed By Backend:")
	for _, k := range sortedKeys(s.served) {
		fmt.Fprintf(w, "  %s: %d\n", k, s.served[k])
	}

	fmt.Fprintln(w, "\nAttempt Outcomes:")
	backendIDs := make([]string, 0, len(s.outcomes))
	for id := range s.outcomes {
		backendIDs = append(backendIDs, id)
	}
	sort.Strings(backendIDs)
	for _, id := range backendIDs {
		parts := make([]string, 0, len(s.outcomes[id]))
		for _, k := range sortedKeys(s.outcomes[id]) {
			parts = append(parts, fmt.Sprintf("%s=%d", k, s.outcomes[id][k]))
		}
		fmt.Fprintf(w, "  %s: %s\n", id, strings.Join(parts, " "))
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	cfg, store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	retentionCfg := gateway.RetentionConfig(&cfg.Audit.Retention)
	if auditFlags.days >= 0 {
		retentionCfg.RetentionDays = auditFlags.days
	}
	if auditFlags.maxRecs >= 0 {
		retentionCfg.MaxRecords = auditFlags.maxRecs
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if auditFlags.dryRun {
		if retentionCfg.RetentionDays == 0 {
			fmt.Fprintln(out, "Retention is unlimited; nothing would be deleted by age.")
			return nil
		}
		cutoff := time.Now().AddDate(0, 0, -retentionCfg.RetentionDays)
		n, err := store.Count(ctx, &audit.Query{EndTime: &cutoff})
		if err != nil {
			return cli.NewCommandError("audit", err)
		}
		fmt.Fprintf(out, "%d events older than %s would be deleted\n", n, cutoff.Format(time.RFC3339))
		return nil
	}

	deleted, err := retention.NewPruner(store, retentionCfg).Prune(ctx)
	if err != nil {
		return cli.NewCommandError("audit", err)
	}
	fmt.Fprintf(out, "✓ Pruned %d events\n", deleted)
	return nil
}

func importAudit(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return cli.NewCommandError("audit", err)
		}
		defer f.Close()
		in = f
	}

	_, store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := importEvents(cmd.Context(), store, in)
	if err != nil {
		return cli.NewCommandError("audit", fmt.Errorf("imported %d events before failing: %w", n, err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d events\n", n)
	return nil
}

// importEvents stores each JSON object read from r. Blank lines are skipped.
func importEvents(ctx context.Context, store audit.Storage, r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	n := 0
	for {
		var ev audit.Event
		err := dec.Decode(&ev)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("event %d: %w", n+1, err)
		}
		if ev.ID == "" {
			return n, fmt.Errorf("event %d: missing id", n+1)
		}
		if err := store.Store(ctx, &ev); err != nil {
			return n, err
		}
		n++
	}
}
