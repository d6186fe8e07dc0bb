package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period before a changed file is
// reloaded.
const DefaultDebounceInterval = 200 * time.Millisecond

// ChangeFunc is called after a successful reload with the previous and the
// new configuration.
type ChangeFunc func(prev, next *Config)

// Watcher reloads the configuration file when it changes on disk.
//
// The containing directory is watched rather than the file itself, so editors
// that save by renaming a temporary file are picked up. Rapid successive
// events are collapsed into one reload. A file that fails to load or validate
// is logged and the current configuration stays in place.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc
	logger   *slog.Logger

	watcher  *fsnotify.Watcher
	debounce *debouncer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the configuration file at path. A zero
// interval uses DefaultDebounceInterval.
func NewWatcher(path string, interval time.Duration, onChange ChangeFunc) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		interval: interval,
		onChange: onChange,
		logger:   slog.Default().With("component", "config.watcher"),
		watcher:  fw,
		debounce: newDebouncer(interval),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called, reloading the file
// after each change.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.doneCh)

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("config watcher started", "path", w.path, "debounce", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("config file event", "path", event.Name, "op", event.Op.String())
			w.debounce.trigger(w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and releases its resources. It is safe to call more
// than once and before Watch.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	select {
	case <-w.stopCh:
		w.mu.Unlock()
		return nil
	default:
		close(w.stopCh)
	}
	w.mu.Unlock()

	if running {
		<-w.doneCh
	}
	w.debounce.stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == w.path
}

func (w *Watcher) reload() {
	prev, next, err := ReloadConfig(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping current configuration", "path", w.path, "error", err)
		return
	}

	w.logger.Info("configuration reloaded", "path", w.path, "backends", len(next.Backends))
	if w.onChange != nil {
		w.onChange(prev, next)
	}
}

// debouncer collects rapid events and runs the last callback after a quiet
// period.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// EnabledChanges returns the backends whose enabled flag differs between prev
// and next, keyed by id with the new value. Backends added or removed are not
// reported; the registry is fixed at startup.
func EnabledChanges(prev, next *Config) map[string]bool {
	changes := make(map[string]bool)
	if prev == nil || next == nil {
		return changes
	}

	before := make(map[string]bool, len(prev.Backends))
	for _, b := range prev.Backends {
		before[b.ID] = b.IsEnabled()
	}
	for _, b := range next.Backends {
		old, ok := before[b.ID]
		if ok && old != b.IsEnabled() {
			changes[b.ID] = b.IsEnabled()
		}
	}
	return changes
}
