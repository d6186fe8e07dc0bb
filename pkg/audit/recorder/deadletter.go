package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/audit/export"
)

// deadLetter appends events that never reached storage to the dead letter
// file so they can be replayed with `switchboard audit import`. Without a
// file, or when the file cannot be written, each event is logged in full.
func (r *Recorder) deadLetter(events []*audit.Event) {
	if path := r.config.DeadLetterPath; path != "" {
		err := appendJSONLines(path, events)
		if err == nil {
			r.deadLettered.Add(uint64(len(events)))
			r.logger.Error("audit storage unavailable at shutdown, events written to dead letter file",
				"path", path,
				"count", len(events),
			)
			return
		}
		r.logger.Error("failed to write dead letter file", "path", path, "error", err)
	}

	for _, event := range events {
		raw, _ := json.Marshal(event)
		r.logger.Error("audit event lost",
			"event_id", event.ID,
			"request_id", event.RequestID,
			"event", string(raw),
		)
	}
}

func appendJSONLines(path string, events []*audit.Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create dead letter directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open dead letter file: %w", err)
	}
	if err := export.NewJSONLinesExporter().Export(context.Background(), events, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
