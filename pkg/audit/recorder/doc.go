// Package recorder delivers audit events to durable storage without blocking
// the routing path.
//
// Events are placed on a bounded queue drained by one background worker. When
// the queue is full, or the recorder has been closed, Record falls back to a
// synchronous write on the caller's goroutine instead of dropping the event.
// Each write is retried a bounded number of times; because storage treats a
// repeated event id as a no-op, retries give at-least-once delivery without
// duplicates.
//
// A queued event whose attempts are all rejected is not dropped. The worker
// holds it and redelivers with exponential backoff, capped at
// MaxRedeliveryInterval, until the store accepts it. Events behind it wait on
// the queue, and once the queue fills, callers write synchronously and see
// the storage error. Events still undelivered at Close are appended to
// DeadLetterPath as JSON Lines for replay with `switchboard audit import`.
//
// # Usage
//
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig())
//	defer rec.Close()
//
//	if err := rec.Record(ctx, event); err != nil {
//		logger.Error("audit write failed", "error", err)
//	}
package recorder
