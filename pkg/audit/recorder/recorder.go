package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"mercator-hq/switchboard/pkg/audit"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// QueueSize is the capacity of the async write queue.
	// Default: 1000
	QueueSize int

	// WriteTimeout bounds a single event write, retries included.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// MaxAttempts is the number of storage attempts per event.
	// Default: 3
	MaxAttempts int

	// RetryInterval is the initial delay between storage attempts.
	// Default: 50 milliseconds
	RetryInterval time.Duration

	// MaxRedeliveryInterval caps the wait between redelivery rounds for a
	// queued event whose attempts were all rejected.
	// Default: 30 seconds
	MaxRedeliveryInterval time.Duration

	// DeadLetterPath is a JSON Lines file that receives events still
	// undelivered when the recorder closes. Empty logs them instead.
	DeadLetterPath string
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		QueueSize:     1000,
		WriteTimeout:  5 * time.Second,
		MaxAttempts:           3,
		RetryInterval:         50 * time.Millisecond,
		MaxRedeliveryInterval: 30 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.QueueSize <= 0 {
		out.QueueSize = d.QueueSize
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = d.MaxAttempts
	}
	if out.RetryInterval <= 0 {
		out.RetryInterval = d.RetryInterval
	}
	if out.MaxRedeliveryInterval <= 0 {
		out.MaxRedeliveryInterval = d.MaxRedeliveryInterval
	}
	return &out
}

// Observer receives recorder activity, typically to export metrics.
type Observer interface {
	QueueDepth(depth int)
	SyncWrite()
	WriteError()
}

// Stats is a point-in-time view of recorder activity.
type Stats struct {
	Queued       uint64 `json:"queued"`        // Events accepted onto the queue
	SyncWrites   uint64 `json:"sync_writes"`   // Events written on the caller's goroutine
	Written      uint64 `json:"written"`       // Events persisted successfully
	Redelivered  uint64 `json:"redelivered"`   // Queued events stored after a failed round
	Failed       uint64 `json:"failed"`        // Events that never reached storage
	DeadLettered uint64 `json:"dead_lettered"` // Failed events saved to the dead letter file
	QueueDepth   int    `json:"queue_depth"`   // Events currently waiting
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithObserver registers an observer for queue and write activity.
func WithObserver(o Observer) Option {
	return func(r *Recorder) {
		r.observer = o
	}
}

// WithLogger overrides the recorder's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = l
	}
}

// Recorder writes audit events to storage asynchronously.
type Recorder struct {
	storage  audit.Storage
	config   *Config
	events   chan *audit.Event
	wg       sync.WaitGroup
	done     chan struct{}
	observer Observer
	logger   *slog.Logger

	// mu guards closed; senders hold the read lock so Close never races a
	// send on the queue.
	mu     sync.RWMutex
	closed bool

	queued       atomic.Uint64
	syncWrites   atomic.Uint64
	written      atomic.Uint64
	redelivered  atomic.Uint64
	failed       atomic.Uint64
	deadLettered atomic.Uint64
}

// NewRecorder creates a recorder and starts its background worker.
func NewRecorder(storage audit.Storage, config *Config, opts ...Option) *Recorder {
	config = config.withDefaults()

	r := &Recorder{
		storage: storage,
		config:  config,
		events:  make(chan *audit.Event, config.QueueSize),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "audit.recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"queue_size", config.QueueSize,
		"write_timeout", config.WriteTimeout,
		"max_attempts", config.MaxAttempts,
	)

	return r
}

// Record submits an event for persistence.
//
// Record returns immediately when the queue has room. When it does not, the
// event is written synchronously and any storage error is returned. An event
// without an id receives a fresh UUID; a zero timestamp is set to now.
func (r *Recorder) Record(ctx context.Context, event *audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	r.mu.RLock()
	if !r.closed {
		select {
		case r.events <- event:
			r.mu.RUnlock()
			r.queued.Add(1)
			r.observeDepth()
			return nil
		default:
		}
	}
	closed := r.closed
	r.mu.RUnlock()

	r.syncWrites.Add(1)
	if r.observer != nil {
		r.observer.SyncWrite()
	}
	if !closed {
		r.logger.Warn("audit queue full, writing synchronously",
			"request_id", event.RequestID,
			"queue_size", r.config.QueueSize,
		)
	}

	// The caller may already be cancelled; the event must still land.
	if err := r.write(context.WithoutCancel(ctx), event); err != nil {
		r.failed.Add(1)
		return err
	}
	return nil
}

// Close stops accepting queued events, drains the queue and waits for the
// worker to exit. Later Record calls write synchronously.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("audit recorder closed",
		"written", r.written.Load(),
		"failed", r.failed.Load(),
	)
	return nil
}

// Stats returns a snapshot of recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Queued:       r.queued.Load(),
		SyncWrites:   r.syncWrites.Load(),
		Written:      r.written.Load(),
		Redelivered:  r.redelivered.Load(),
		Failed:       r.failed.Load(),
		DeadLettered: r.deadLettered.Load(),
		QueueDepth:   len(r.events),
	}
}

// worker drains the queue until Close, then flushes what is left. Events the
// storage could not take during shutdown go to the dead letter file.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.events:
			r.observeDepth()
			if !r.deliver(event) {
				r.drain([]*audit.Event{event})
				return
			}

		case <-r.done:
			r.drain(nil)
			return
		}
	}
}

// deliver stores a queued event, redelivering with capped backoff while the
// storage keeps rejecting it. It returns false when Close interrupted the
// redelivery and the event is still unstored.
func (r *Recorder) deliver(event *audit.Event) bool {
	var wait *backoff.ExponentialBackOff

	for round := 0; ; round++ {
		if err := r.write(context.Background(), event); err == nil {
			if round > 0 {
				r.redelivered.Add(1)
				r.logger.Info("audit event redelivered",
					"event_id", event.ID,
					"request_id", event.RequestID,
					"rounds", round+1,
				)
			}
			return true
		}

		if wait == nil {
			wait = backoff.NewExponentialBackOff()
			wait.InitialInterval = r.config.RetryInterval
			wait.MaxInterval = r.config.MaxRedeliveryInterval
		}
		delay := wait.NextBackOff()
		r.logger.Warn("audit storage unavailable, holding event for redelivery",
			"event_id", event.ID,
			"request_id", event.RequestID,
			"retry_in", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-r.done:
			timer.Stop()
			return false
		}
	}
}

// drain flushes held and queued events after Close. Once a write fails the
// storage is treated as down and the remaining events are dead-lettered
// without further attempts.
func (r *Recorder) drain(held []*audit.Event) {
	r.logger.Info("draining audit queue before shutdown",
		"pending_count", len(r.events)+len(held),
	)

	// Close has already stopped new sends, so the queue only shrinks.
	pending := held
	for len(r.events) > 0 {
		pending = append(pending, <-r.events)
	}
	r.observeDepth()

	var undelivered []*audit.Event
	for i, event := range pending {
		if err := r.write(context.Background(), event); err != nil {
			undelivered = append(undelivered, pending[i:]...)
			break
		}
	}
	if len(undelivered) == 0 {
		return
	}

	r.failed.Add(uint64(len(undelivered)))
	r.deadLetter(undelivered)
}

// write stores one event with bounded retries.
func (r *Recorder) write(ctx context.Context, event *audit.Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.WriteTimeout)
	defer cancel()

	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.RetryInterval
	b.MaxInterval = r.config.WriteTimeout

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, r.storage.Store(ctx, event)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
	)
	if err != nil {
		if r.observer != nil {
			r.observer.WriteError()
		}
		r.logger.Error("failed to store audit event",
			"event_id", event.ID,
			"request_id", event.RequestID,
			"final_status", event.FinalStatus,
			"error", err,
		)
		return &audit.RecorderError{EventID: event.ID, RequestID: event.RequestID, Cause: err}
	}

	r.written.Add(1)
	duration := time.Since(start)
	r.logger.Debug("audit event recorded",
		"event_id", event.ID,
		"request_id", event.RequestID,
		"final_status", event.FinalStatus,
		"attempts", len(event.Attempts),
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow audit write",
			"event_id", event.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
	return nil
}

func (r *Recorder) observeDepth() {
	if r.observer != nil {
		r.observer.QueueDepth(len(r.events))
	}
}
