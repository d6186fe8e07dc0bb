package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"mercator-hq/switchboard/pkg/audit"
	"mercator-hq/switchboard/pkg/audit/recorder"
	"mercator-hq/switchboard/pkg/audit/retention"
	"mercator-hq/switchboard/pkg/audit/storage"
	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/breaker"
	"mercator-hq/switchboard/pkg/cache"
	"mercator-hq/switchboard/pkg/config"
	"mercator-hq/switchboard/pkg/limits/ratelimit"
	"mercator-hq/switchboard/pkg/registry"
	"mercator-hq/switchboard/pkg/routing"
	"mercator-hq/switchboard/pkg/telemetry/health"
	"mercator-hq/switchboard/pkg/telemetry/metrics"
	"mercator-hq/switchboard/pkg/telemetry/tracing"
)

// Gateway owns every long-lived component of a running switchboard.
type Gateway struct {
	config   *config.Config
	registry *registry.Registry
	router   *routing.Router
	cache    *cache.Cache
	storage  audit.Storage
	recorder *recorder.Recorder
	pruner   *retention.Pruner
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	health   *health.Checker
	adapters []backends.Adapter
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	adapters     []backends.Adapter
	storage      audit.Storage
	promRegistry *prometheus.Registry
	tracingOpts  []tracing.Option
	version      string
}

// Option configures a Gateway.
type Option func(*options)

// WithAdapters supplies adapters instead of building them from the backend
// configuration. Adapters are matched to backends by Name().
func WithAdapters(adapters ...backends.Adapter) Option {
	return func(o *options) {
		o.adapters = append(o.adapters, adapters...)
	}
}

// WithAuditStorage supplies the audit store instead of opening the one named
// in configuration. The gateway closes it on Close.
func WithAuditStorage(s audit.Storage) Option {
	return func(o *options) {
		o.storage = s
	}
}

// WithPrometheusRegistry registers metrics on reg instead of a private
// registry.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.promRegistry = reg
	}
}

// WithTracingOptions passes options to the tracer.
func WithTracingOptions(opts ...tracing.Option) Option {
	return func(o *options) {
		o.tracingOpts = append(o.tracingOpts, opts...)
	}
}

// WithVersion sets the version reported in traces.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// New builds a gateway from a validated configuration. Components already
// built are closed again if a later one fails.
func New(cfg *config.Config, opts ...Option) (g *Gateway, err error) {
	if cfg == nil {
		return nil, errors.New("gateway: config is nil")
	}

	o := &options{version: "dev"}
	for _, opt := range opts {
		opt(o)
	}

	g = &Gateway{
		config: cfg,
		logger: slog.Default().With("component", "gateway"),
	}
	defer func() {
		if err != nil {
			_ = g.Close(context.Background())
			g = nil
		}
	}()

	g.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, o.promRegistry)

	g.tracer, err = tracing.New(&cfg.Telemetry.Tracing,
		append([]tracing.Option{tracing.WithServiceVersion(o.version)}, o.tracingOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	g.adapters = o.adapters
	if len(g.adapters) == 0 {
		g.adapters, err = buildAdapters(cfg)
		if err != nil {
			return nil, err
		}
	}

	g.registry, err = buildRegistry(cfg, g.adapters, g.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}
	if cfg.Telemetry.Metrics.Enabled {
		if err = g.metrics.WatchStatus(g.registry); err != nil {
			return nil, fmt.Errorf("failed to register status metrics: %w", err)
		}
	}

	g.health = health.New(cfg.Gateway.HealthCheckTimeout)
	g.health.RegisterCheck("backends", health.BackendsCheck(g.registry))

	if cfg.Cache.Enabled {
		g.cache, err = g.buildCache(&cfg.Cache)
		if err != nil {
			return nil, err
		}
	}

	g.storage = o.storage
	if g.storage == nil {
		g.storage, err = OpenStorage(&cfg.Audit)
		if err != nil {
			return nil, err
		}
	}
	g.health.RegisterCheck("audit_storage", health.AuditStorageCheck(g.storage))

	g.recorder = recorder.NewRecorder(g.storage, &recorder.Config{
		QueueSize:             cfg.Audit.Recorder.QueueSize,
		WriteTimeout:          cfg.Audit.Recorder.WriteTimeout,
		MaxAttempts:           cfg.Audit.Recorder.MaxAttempts,
		MaxRedeliveryInterval: cfg.Audit.Recorder.MaxRedeliveryInterval,
		DeadLetterPath:        cfg.Audit.Recorder.DeadLetterPath,
	}, recorder.WithObserver(g.metrics))

	g.pruner = retention.NewPruner(g.storage, RetentionConfig(&cfg.Audit.Retention))

	routerOpts := []routing.Option{
		routing.WithConfig(routing.Config{
			DefaultTimeout: cfg.Gateway.DefaultTimeout,
			MaxDispatches:  cfg.Gateway.MaxDispatches,
		}),
		routing.WithTracer(g.tracer.Tracer()),
		routing.WithObserver(g.metrics),
		routing.WithAuditSink(g.metrics.AuditSink(g.recorder)),
	}
	if g.cache != nil {
		routerOpts = append(routerOpts, routing.WithCache(g.cache))
	}
	g.router = routing.New(g.registry, routerOpts...)

	g.logger.Info("gateway initialized",
		"backends", len(cfg.Backends),
		"cache_enabled", cfg.Cache.Enabled,
		"audit_backend", cfg.Audit.Backend,
		"tracing_enabled", g.tracer.Enabled(),
	)

	return g, nil
}

// Start starts background work: the retention scheduler when a prune schedule
// is configured.
func (g *Gateway) Start(ctx context.Context) error {
	if g.config.Audit.Retention.PruneSchedule == "" {
		return nil
	}
	if err := g.pruner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start retention scheduler: %w", err)
	}
	if next := g.pruner.NextPruning(); next != nil {
		g.logger.Debug("retention scheduler started", "next_pruning", next)
	}
	return nil
}

// Route serves one request through the cache and the fallback chain.
func (g *Gateway) Route(ctx context.Context, req *backends.Request) (*backends.Response, error) {
	return g.router.Route(ctx, req)
}

// SetEnabled toggles a backend at runtime.
func (g *Gateway) SetEnabled(id string, enabled bool) error {
	return g.registry.SetEnabled(id, enabled)
}

// ApplyConfig applies the enabled flags that changed between prev and next.
// Other changes need a restart.
func (g *Gateway) ApplyConfig(prev, next *config.Config) {
	for id, enabled := range config.EnabledChanges(prev, next) {
		if err := g.SetEnabled(id, enabled); err != nil {
			g.logger.Warn("ignoring enabled change for unknown backend", "backend", id, "error", err)
		}
	}
}

// Watch reloads the configuration file at path whenever it changes and applies
// backend enabled toggles. It blocks until ctx is cancelled.
func (g *Gateway) Watch(ctx context.Context, path string) error {
	w, err := config.NewWatcher(path, 0, g.ApplyConfig)
	if err != nil {
		return err
	}
	defer w.Stop()
	return w.Watch(ctx)
}

// Prune runs the retention policy once.
func (g *Gateway) Prune(ctx context.Context) (int64, error) {
	return g.pruner.Prune(ctx)
}

// Close stops background work, drains the audit queue and releases every
// resource. It is safe to call more than once.
func (g *Gateway) Close(ctx context.Context) error {
	g.closeOnce.Do(func() {
		var errs []error

		if g.pruner != nil {
			g.pruner.Stop()
		}
		if g.recorder != nil {
			errs = append(errs, g.recorder.Close())
		}
		if g.storage != nil {
			errs = append(errs, g.storage.Close())
		}
		if g.cache != nil {
			errs = append(errs, g.cache.Close())
		}
		for _, a := range g.adapters {
			if c, ok := a.(io.Closer); ok {
				errs = append(errs, c.Close())
			}
		}
		if g.tracer != nil {
			errs = append(errs, g.tracer.Shutdown(ctx))
		}

		g.closeErr = errors.Join(errs...)
		g.logger.Info("gateway closed")
	})
	return g.closeErr
}

// Config returns the configuration the gateway was built from.
func (g *Gateway) Config() *config.Config { return g.config }

// Registry returns the backend registry.
func (g *Gateway) Registry() *registry.Registry { return g.registry }

// Router returns the router.
func (g *Gateway) Router() *routing.Router { return g.router }

// Metrics returns the metrics collector.
func (g *Gateway) Metrics() *metrics.Collector { return g.metrics }

// Health returns the health checker.
func (g *Gateway) Health() *health.Checker { return g.health }

// Storage returns the audit store.
func (g *Gateway) Storage() audit.Storage { return g.storage }

func (g *Gateway) buildCache(cfg *config.CacheConfig) (*cache.Cache, error) {
	var store cache.Store

	switch cfg.Backend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rs := cache.NewRedisStore(client,
			cache.WithKeyPrefix(cfg.Redis.KeyPrefix),
			cache.WithDefaultTTL(cfg.TTL),
		)
		g.health.RegisterCheck("cache", health.PingCheck(rs))
		store = rs
	case "memory", "":
		store = cache.NewMemoryStore(cfg.TTL, cfg.MaxEntries)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}

	return cache.New(store, cfg.TTL, cache.WithObserver(g.metrics)), nil
}

// RetentionConfig converts the retention section for the pruner.
func RetentionConfig(cfg *config.RetentionConfig) *retention.Config {
	return &retention.Config{
		RetentionDays:       cfg.Days,
		PruneSchedule:       cfg.PruneSchedule,
		ArchiveBeforeDelete: cfg.ArchiveBeforeDelete,
		ArchivePath:         cfg.ArchivePath,
		MaxRecords:          cfg.MaxRecords,
	}
}

// OpenStorage opens the configured audit store. For SQLite the parent
// directory of the database file is created if missing.
func OpenStorage(cfg *config.AuditConfig) (audit.Storage, error) {
	switch cfg.Backend {
	case "sqlite", "":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create audit directory: %w", err)
			}
		}
		s, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			WALMode:     true,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		return s, nil
	case "memory":
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Backend)
	}
}

func buildRegistry(cfg *config.Config, adapters []backends.Adapter, collector *metrics.Collector) (*registry.Registry, error) {
	descriptors := make([]registry.Descriptor, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		descriptors = append(descriptors, Descriptor(b, cfg.Gateway, cfg.Defaults))
	}

	var limiterOpts []ratelimit.Option
	if cfg.Defaults.CallerRateLimit.Capacity > 0 {
		limiterOpts = append(limiterOpts, ratelimit.WithCallerLimit(rateLimitConfig(cfg.Defaults.CallerRateLimit)))
	}

	return registry.New(descriptors, adapters,
		registry.WithBreakerDefaults(breakerConfig(cfg.Defaults.Breaker),
			breaker.WithTransitionFunc(collector.BreakerTransition)),
		registry.WithRateLimitDefaults(rateLimitConfig(cfg.Defaults.RateLimit), limiterOpts...),
	)
}

// Descriptor converts a backend's configuration into a registry descriptor.
// Unset breaker and rate limit overrides leave the defaults in force, and a
// partial override takes its missing fields from defaults.
func Descriptor(b config.BackendConfig, gw config.GatewayConfig, defaults config.DefaultsConfig) registry.Descriptor {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = gw.DefaultTimeout
	}

	d := registry.Descriptor{
		ID:            b.ID,
		Priority:      b.Priority,
		Enabled:       b.IsEnabled(),
		Models:        append([]string(nil), b.Models...),
		CredentialRef: b.CredentialRef,
		Timeout:       timeout,
		Pricing: registry.Pricing{
			PromptPer1K:     b.Pricing.PromptPer1K,
			CompletionPer1K: b.Pricing.CompletionPer1K,
		},
	}
	if !b.Breaker.IsZero() {
		d.Breaker = breakerConfig(b.Breaker.Merge(defaults.Breaker))
	}
	if !b.RateLimit.IsZero() {
		d.RateLimit = rateLimitConfig(b.RateLimit.Merge(defaults.RateLimit))
	}
	return d
}

func breakerConfig(c config.BreakerConfig) breaker.Config {
	return breaker.Config{
		Threshold:   c.Threshold,
		Window:      c.Window,
		Cooldown:    c.Cooldown,
		MaxCooldown: c.MaxCooldown,
		Multiplier:  c.Multiplier,
	}
}

func rateLimitConfig(c config.RateLimitConfig) ratelimit.Config {
	return ratelimit.Config{Capacity: c.Capacity, RefillRate: c.RefillRate}
}
