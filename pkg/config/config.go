package config

import "time"

// Config is the root configuration structure for Switchboard.
// It contains the backend list, per-backend protection defaults, the response
// cache, the audit trail, the admin HTTP surface and telemetry.
type Config struct {
	// Gateway contains router-wide settings.
	Gateway GatewayConfig `yaml:"gateway"`

	// Defaults contains breaker and rate limit parameters applied to every
	// backend that does not override them.
	Defaults DefaultsConfig `yaml:"defaults"`

	// Backends is the ordered list of upstream backends.
	Backends []BackendConfig `yaml:"backends"`

	// Cache contains response cache configuration.
	Cache CacheConfig `yaml:"cache"`

	// Audit contains audit trail storage, recorder and retention settings.
	Audit AuditConfig `yaml:"audit"`

	// Admin contains the admin/status HTTP server configuration.
	Admin AdminConfig `yaml:"admin"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GatewayConfig contains router-wide settings.
type GatewayConfig struct {
	// DefaultTimeout bounds a dispatch to a backend without its own timeout.
	// Default: 30s
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// MaxDispatches caps the network calls made for one request.
	// 0 means every eligible backend may be dispatched.
	// Default: 0
	MaxDispatches int `yaml:"max_dispatches"`

	// HealthCheckTimeout bounds each adapter probe of the status query.
	// Default: 5s
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout"`
}

// DefaultsConfig contains the protection parameters shared by all backends.
type DefaultsConfig struct {
	// Breaker contains default circuit breaker parameters.
	Breaker BreakerConfig `yaml:"breaker"`

	// RateLimit contains default token bucket parameters.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// CallerRateLimit enables a nested per-caller bucket under each backend
	// bucket when Capacity > 0.
	// Default: disabled
	CallerRateLimit RateLimitConfig `yaml:"caller_rate_limit"`
}

// BreakerConfig contains circuit breaker parameters.
type BreakerConfig struct {
	// Threshold is the number of transient failures that opens the breaker.
	// Default: 5
	Threshold int `yaml:"threshold"`

	// Window is the rolling window failures are counted in (0 = unbounded).
	// Default: 60s
	Window time.Duration `yaml:"window"`

	// Cooldown is how long the breaker stays open before admitting a probe.
	// Default: 30s
	Cooldown time.Duration `yaml:"cooldown"`

	// MaxCooldown caps cooldown growth after repeated failed probes.
	// Default: 5m
	MaxCooldown time.Duration `yaml:"max_cooldown"`

	// Multiplier is the cooldown growth factor.
	// Default: 2
	Multiplier float64 `yaml:"multiplier"`
}

// RateLimitConfig contains token bucket parameters.
type RateLimitConfig struct {
	// Capacity is the burst size in requests.
	// Default: 60
	Capacity float64 `yaml:"capacity"`

	// RefillRate is the number of tokens added per second.
	// Default: 1
	RefillRate float64 `yaml:"refill_rate"`
}

// IsZero reports whether no breaker field is set.
func (c BreakerConfig) IsZero() bool {
	return c == BreakerConfig{}
}

// Merge returns c with every unset field taken from def.
func (c BreakerConfig) Merge(def BreakerConfig) BreakerConfig {
	if c.Threshold == 0 {
		c.Threshold = def.Threshold
	}
	if c.Window == 0 {
		c.Window = def.Window
	}
	if c.Cooldown == 0 {
		c.Cooldown = def.Cooldown
	}
	if c.MaxCooldown == 0 {
		c.MaxCooldown = def.MaxCooldown
	}
	if c.Multiplier == 0 {
		c.Multiplier = def.Multiplier
	}
	return c
}

// IsZero reports whether no bucket field is set.
func (c RateLimitConfig) IsZero() bool {
	return c == RateLimitConfig{}
}

// Merge returns c with every unset field taken from def.
func (c RateLimitConfig) Merge(def RateLimitConfig) RateLimitConfig {
	if c.Capacity == 0 {
		c.Capacity = def.Capacity
	}
	if c.RefillRate == 0 {
		c.RefillRate = def.RefillRate
	}
	return c
}

// BackendConfig describes one upstream backend.
type BackendConfig struct {
	// ID is the unique backend id used in routing targets and the audit trail.
	ID string `yaml:"id"`

	// Priority orders the fallback chain; lower values are tried first.
	Priority int `yaml:"priority"`

	// Enabled is the initial enabled flag. Omitted means enabled.
	Enabled *bool `yaml:"enabled"`

	// Models is the set of models the backend serves. Empty serves every model.
	Models []string `yaml:"models"`

	// Type selects the adapter implementation.
	// Options: "http"
	// Default: "http"
	Type string `yaml:"type"`

	// URL is the endpoint of the adapter sidecar for type "http".
	URL string `yaml:"url"`

	// CredentialRef points at the backend credential: "env:NAME",
	// "file:/path" or empty for none.
	CredentialRef string `yaml:"credential_ref"`

	// Timeout bounds a single dispatch to this backend.
	// Default: gateway.default_timeout
	Timeout time.Duration `yaml:"timeout"`

	// Pricing is used to estimate response cost.
	Pricing PricingConfig `yaml:"pricing"`

	// Breaker overrides defaults.breaker when threshold > 0.
	Breaker BreakerConfig `yaml:"breaker"`

	// RateLimit overrides defaults.rate_limit when capacity > 0.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// IsEnabled reports the backend's configured enabled flag.
func (b BackendConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// PricingConfig is the per-1K-token price of a backend in USD.
type PricingConfig struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k"`
	CompletionPer1K float64 `yaml:"completion_per_1k"`
}

// CacheConfig contains response cache configuration.
type CacheConfig struct {
	// Enabled controls whether successful responses are cached.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the cache store.
	// Options: "memory", "redis"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// TTL is the lifetime of a cached response.
	// Default: 5m
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries bounds the in-memory store (0 = unbounded).
	// Default: 10000
	MaxEntries int `yaml:"max_entries"`

	// Redis contains Redis store configuration.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings for the cache.
type RedisConfig struct {
	// Addr is the Redis server address.
	// Default: "localhost:6379"
	Addr string `yaml:"addr"`

	// Password is the optional Redis password.
	Password string `yaml:"password"`

	// DB is the Redis database number.
	// Default: 0
	DB int `yaml:"db"`

	// KeyPrefix namespaces cache keys.
	// Default: "switchboard:cache:"
	KeyPrefix string `yaml:"key_prefix"`
}

// AuditConfig contains audit trail configuration.
type AuditConfig struct {
	// Backend selects the audit storage.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite storage configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains the non-blocking recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains retention policy configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains audit recorder configuration.
type RecorderConfig struct {
	// QueueSize is the capacity of the async write queue.
	// Default: 1000
	QueueSize int `yaml:"queue_size"`

	// WriteTimeout is the timeout for one storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxAttempts is the number of storage attempts per event.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// MaxRedeliveryInterval caps the wait between redelivery rounds while
	// the store rejects a queued event.
	// Default: 30s
	MaxRedeliveryInterval time.Duration `yaml:"max_redelivery_interval"`

	// DeadLetterPath receives events still undelivered at shutdown, one
	// JSON object per line, for `switchboard audit import`.
	// Default: "data/audit-dead-letter.jsonl"
	DeadLetterPath string `yaml:"dead_letter_path"`
}

// RetentionConfig contains retention policy configuration.
type RetentionConfig struct {
	// Days is the number of days to retain audit events.
	// 0 means keep events forever.
	// Default: 90
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression for scheduled pruning.
	// Empty disables scheduled pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete writes pruned events to ArchivePath first.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the directory for archived events.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords is the maximum number of events to keep (0 = unlimited).
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`
}

// AdminConfig contains configuration for the admin/status HTTP server.
type AdminConfig struct {
	// ListenAddress is the address and port for the admin server.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It should exceed the longest expected route.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits the size of a route request body.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are served.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "switchboard"
	Namespace string `yaml:"namespace"`

	// LatencyBuckets defines histogram buckets for route and backend latency
	// (seconds).
	// Default: [0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30]
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service name in traces.
	// Default: "switchboard"
	ServiceName string `yaml:"service_name"`
}
