package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/switchboard/pkg/audit"
)

// JSONExporter exports audit events as a JSON array.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{
		Pretty: pretty,
	}
}

// Export writes events to w. An empty slice produces "[]".
func (e *JSONExporter) Export(ctx context.Context, events []*audit.Event, w io.Writer) error {
	if events == nil {
		events = []*audit.Event{}
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(events); err != nil {
		return &audit.ExportError{Format: "json", Count: 0, Cause: err}
	}
	return nil
}
