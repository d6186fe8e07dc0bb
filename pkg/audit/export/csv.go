package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/switchboard/pkg/audit"
)

// CSVExporter exports audit events as CSV, one row per event. The attempt
// trail is flattened to "backend:outcome" pairs joined by "|".
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

var header = []string{
	"id", "request_id", "timestamp",
	"target", "model", "caller", "sensitive",
	"final_status", "backend", "cache_hit", "trail", "error",
	"prompt_tokens", "completion_tokens", "total_tokens", "cost", "latency_ms",
}

// Export writes events to w.
func (e *CSVExporter) Export(ctx context.Context, events []*audit.Event, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(header); err != nil {
			return &audit.ExportError{Format: "csv", Count: 0, Cause: err}
		}
	}

	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return &audit.ExportError{Format: "csv", Count: i, Cause: err}
		}
		if err := writer.Write(row(event)); err != nil {
			return &audit.ExportError{Format: "csv", Count: i, Cause: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &audit.ExportError{Format: "csv", Count: len(events), Cause: err}
	}
	return nil
}

// ExportStream writes events from ch until it is closed, flushing every 100
// rows so long exports show up incrementally.
func (e *CSVExporter) ExportStream(ctx context.Context, ch <-chan *audit.Event, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(header); err != nil {
			return &audit.ExportError{Format: "csv", Count: 0, Cause: err}
		}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return &audit.ExportError{Format: "csv", Count: count, Cause: ctx.Err()}

		case event, ok := <-ch:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return &audit.ExportError{Format: "csv", Count: count, Cause: err}
				}
				return nil
			}

			if err := writer.Write(row(event)); err != nil {
				return &audit.ExportError{Format: "csv", Count: count, Cause: err}
			}
			count++

			if count%100 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return &audit.ExportError{Format: "csv", Count: count, Cause: err}
				}
			}
		}
	}
}

// Trail renders an attempt trail as "a:circuit_open|b:success".
func Trail(attempts []audit.Attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = a.Backend + ":" + string(a.Outcome)
	}
	return strings.Join(parts, "|")
}

func row(e *audit.Event) []string {
	return []string{
		e.ID,
		e.RequestID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Target,
		e.Model,
		e.Caller,
		strconv.FormatBool(e.Sensitive),
		string(e.FinalStatus),
		e.Backend,
		strconv.FormatBool(e.CacheHit),
		Trail(e.Attempts),
		e.Error,
		strconv.Itoa(e.Usage.PromptTokens),
		strconv.Itoa(e.Usage.CompletionTokens),
		strconv.Itoa(e.Usage.TotalTokens),
		strconv.FormatFloat(e.Cost, 'f', 6, 64),
		strconv.FormatInt(e.Latency.Milliseconds(), 10),
	}
}
