// Package audit defines the audit trail written for every routed request.
//
// Each request produces exactly one Event. The Event carries the ordered list
// of per-backend Attempts (causal order: attempt 1 precedes attempt 2 precedes
// the final outcome) and the FinalStatus the caller actually received.
//
// Events are append-only and write-once: a Storage must treat a second Store
// of the same Event.ID as a no-op, so the recorder's at-least-once delivery
// never produces duplicates.
//
// Subpackages:
//   - recorder: bounded queue + background drain with synchronous fallback
//   - storage: SQLite and in-memory sinks
//   - retention: scheduled pruning of old events
//   - export: JSON and CSV exporters
package audit
