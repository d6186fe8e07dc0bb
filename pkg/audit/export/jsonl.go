package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/switchboard/pkg/audit"
)

// JSONLinesExporter writes one JSON object per line. Unlike JSONExporter its
// output can be produced and consumed incrementally.
type JSONLinesExporter struct{}

// NewJSONLinesExporter creates a new JSON Lines exporter.
func NewJSONLinesExporter() *JSONLinesExporter {
	return &JSONLinesExporter{}
}

// Export writes events to w.
func (e *JSONLinesExporter) Export(ctx context.Context, events []*audit.Event, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return &audit.ExportError{Format: "jsonl", Count: i, Cause: err}
		}
		if err := enc.Encode(event); err != nil {
			return &audit.ExportError{Format: "jsonl", Count: i, Cause: err}
		}
	}
	return nil
}

// ExportStream writes events from ch until it is closed.
func (e *JSONLinesExporter) ExportStream(ctx context.Context, ch <-chan *audit.Event, w io.Writer) error {
	enc := json.NewEncoder(w)
	count := 0
	for {
		select {
		case <-ctx.Done():
			return &audit.ExportError{Format: "jsonl", Count: count, Cause: ctx.Err()}
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if err := enc.Encode(event); err != nil {
				return &audit.ExportError{Format: "jsonl", Count: count, Cause: err}
			}
			count++
		}
	}
}
