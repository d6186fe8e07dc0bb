package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"
	"time"

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/audit/export"
	"mercator-hq/switchboard/pkg/audit/storage"
	"mercator-hq/switchboard/pkg/backends"
)

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid", "2026-10-01T00:00:00Z/2026-10-02T00:00:00Z", false},
		{"missing end", "2026-10-01T00:00:00Z", true},
		{"bad start", "yesterday/2026-10-02T00:00:00Z", true},
		{"bad end", "2026-10-01T00:00:00Z/tomorrow", true},
		{"reversed", "2026-10-02T00:00:00Z/2026-10-01T00:00:00Z", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := parseTimeRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimeRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && end.Sub(start) != 24*time.Hour {
				t.Errorf("range = %v..%v, want one day", start, end)
			}
		})
	}
}

func TestBuildAuditQuery(t *testing.T) {
	saved := auditFlags
	defer func() { auditFlags = saved }()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	auditFlags.since = 2 * time.Hour
	auditFlags.status = "exhausted"
	auditFlags.backend = "primary"
	auditFlags.cacheHit = "false"

	q, err := buildAuditQuery(now)
	if err != nil {
		t.Fatalf("buildAuditQuery() error = %v", err)
	}
	if q.StartTime == nil || !q.StartTime.Equal(now.Add(-2*time.Hour)) {
		t.Errorf("StartTime = %v, want %v", q.StartTime, now.Add(-2*time.Hour))
	}
	if q.FinalStatus != audit.StatusExhausted || q.Backend != "primary" {
		t.Errorf("query = %+v", q)
	}
	if q.CacheHit == nil || *q.CacheHit {
		t.Errorf("CacheHit = %v, want false", q.CacheHit)
	}

	auditFlags.cacheHit = "maybe"
	if _, err := buildAuditQuery(now); err == nil {
		t.Error("buildAuditQuery() with --cache-hit=maybe error = nil")
	}
}

func seedStore(t *testing.T, n int) *storage.MemoryStorage {
	t.Helper()
	store := storage.NewMemoryStorage()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := range n {
		ev := &audit.Event{
			ID:          fmt.Sprintf("ev-%03d", i),
			RequestID:   "req",
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			FinalStatus: audit.StatusSuccess,
			Backend:     "primary",
			Attempts:    []audit.Attempt{{Backend: "primary", Outcome: audit.OutcomeSuccess}},
		}
		if err := store.Store(context.Background(), ev); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}
	return store
}

func TestExportPages(t *testing.T) {
	tests := []struct {
		name     string
		events   int
		pageSize int
	}{
		{"empty", 0, 10},
		{"partial page", 7, 10},
		{"exact pages", 20, 10},
		{"many pages", 23, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seedStore(t, tt.events)

			var buf bytes.Buffer
			var lastProgress int64
			n, err := exportPages(context.Background(), store, &audit.Query{SortOrder: "asc"}, tt.pageSize,
				export.NewCSVExporter(false), &buf, func(p int64) { lastProgress = p })
			if err != nil {
				t.Fatalf("exportPages() error = %v", err)
			}
			if n != int64(tt.events) {
				t.Errorf("exported %d, want %d", n, tt.events)
			}

			rows, err := csv.NewReader(&buf).ReadAll()
			if err != nil {
				t.Fatalf("output is not CSV: %v", err)
			}
			if len(rows) != tt.events {
				t.Fatalf("rows = %d, want %d", len(rows), tt.events)
			}
			for i := 1; i < len(rows); i++ {
				if rows[i][2] < rows[i-1][2] {
					t.Fatalf("row %d timestamp %s before %s, want ascending", i, rows[i][2], rows[i-1][2])
				}
			}
			if lastProgress != int64(tt.events) {
				t.Errorf("last progress = %d, want %d", lastProgress, tt.events)
			}
		})
	}
}

func TestSummarizeAndReport(t *testing.T) {
	events := []*audit.Event{
		{FinalStatus: audit.StatusSuccess, Backend: "b", Cost: 0.5, Usage: backends.Usage{TotalTokens: 10},
			Attempts: []audit.Attempt{{Backend: "a", Outcome: audit.OutcomeCircuitOpen}, {Backend: "b", Outcome: audit.OutcomeSuccess}}},
		{FinalStatus: audit.StatusSuccess, Backend: "a", CacheHit: true},
		{FinalStatus: audit.StatusExhausted,
			Attempts: []audit.Attempt{{Backend: "a", Outcome: audit.OutcomeServerError}, {Backend: "b", Outcome: audit.OutcomeTimeout}}},
	}

	s := summarize(events)
	if s.total != 3 || s.cacheHits != 1 || s.fallbacks != 1 || s.tokens != 10 {
		t.Errorf("summary = %+v", s)
	}
	if s.byStatus["success"] != 2 || s.byStatus["exhausted"] != 1 {
		t.Errorf("byStatus = %v", s.byStatus)
	}
	if s.outcomes["a"]["circuit_open"] != 1 || s.outcomes["b"]["timeout"] != 1 {
		t.Errorf("outcomes = %v", s.outcomes)
	}

	var buf bytes.Buffer
	writeReport(&buf, s, &audit.Query{}, time.Now())
	for _, want := range []string{
		"Total Requests: 3",
		"Served After Fallback: 1",
		"exhausted: 1 (33%)",
		"a: circuit_open=1 server_error=1",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report missing %q:\n%s", want, buf.String())
		}
	}
}

func TestEventTable(t *testing.T) {
	rows := eventTable{
		{RequestID: "r1", FinalStatus: audit.StatusSuccess, Backend: "a", CacheHit: true, Latency: 1500 * time.Microsecond},
		{RequestID: "r2", FinalStatus: audit.StatusNoCandidates},
	}.Rows()

	if rows[0][3] != "a (cache)" {
		t.Errorf("backend column = %q, want %q", rows[0][3], "a (cache)")
	}
	if rows[1][3] != "-" {
		t.Errorf("backend column = %q, want %q", rows[1][3], "-")
	}
	if rows[0][7] != "2ms" {
		t.Errorf("latency column = %q, want %q", rows[0][7], "2ms")
	}
}

func TestImportEvents(t *testing.T) {
	src := seedStore(t, 5)
	events, err := src.Query(context.Background(), &audit.Query{SortOrder: "asc"})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	var buf bytes.Buffer
	if err := export.NewJSONLinesExporter().Export(context.Background(), events, &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	data := buf.String()

	dst := storage.NewMemoryStorage()
	for round := range 2 {
		n, err := importEvents(context.Background(), dst, strings.NewReader(data))
		if err != nil {
			t.Fatalf("round %d: importEvents() error = %v", round, err)
		}
		if n != 5 {
			t.Errorf("round %d: imported = %d, want 5", round, n)
		}
	}

	total, err := dst.Count(context.Background(), &audit.Query{})
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if total != 5 {
		t.Errorf("stored events = %d, want 5 after importing twice", total)
	}
}

func TestImportEvents_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"malformed second line", `{"id":"a","request_id":"r"}` + "\n{not json\n", 1},
		{"missing id", `{"request_id":"r"}` + "\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := importEvents(context.Background(), storage.NewMemoryStorage(), strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("importEvents() error = nil, want an error")
			}
			if n != tt.want {
				t.Errorf("imported = %d, want %d", n, tt.want)
			}
		})
	}
}
