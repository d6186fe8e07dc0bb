package config

import "time"

// Default values for configuration fields.
const (
	// Gateway defaults
	DefaultGatewayTimeout     = 30 * time.Second
	DefaultHealthCheckTimeout = 5 * time.Second

	// Breaker defaults
	DefaultBreakerThreshold   = 5
	DefaultBreakerWindow      = time.Minute
	DefaultBreakerCooldown    = 30 * time.Second
	DefaultBreakerMaxCooldown = 5 * time.Minute
	DefaultBreakerMultiplier  = 2.0

	// Rate limit defaults
	DefaultRateLimitCapacity   = 60.0
	DefaultRateLimitRefillRate = 1.0

	// Backend defaults
	DefaultBackendType = "http"

	// Cache defaults
	DefaultCacheBackend    = "memory"
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 10000
	DefaultRedisAddr       = "localhost:6379"
	DefaultRedisKeyPrefix  = "switchboard:cache:"

	// Audit defaults
	DefaultAuditBackend           = "sqlite"
	DefaultAuditSQLitePath        = "data/audit.db"
	DefaultAuditSQLiteBusyTimeout = 5 * time.Second
	DefaultAuditQueueSize         = 1000
	DefaultAuditWriteTimeout      = 5 * time.Second
	DefaultAuditMaxAttempts       = 3
	DefaultAuditMaxRedelivery     = 30 * time.Second
	DefaultAuditDeadLetterPath    = "data/audit-dead-letter.jsonl"
	DefaultRetentionDays          = 90
	DefaultRetentionSchedule      = "0 3 * * *"
	DefaultRetentionArchivePath   = "data/archives/"

	// Admin defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = int64(1048576) // 1MB
	DefaultCORSMaxAge      = 3600           // 1 hour

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "switchboard"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "switchboard"
)

// DefaultLatencyBuckets are the histogram buckets for route and backend
// latency in seconds.
var DefaultLatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// NewDefault returns a configuration with every default applied and no
// backends. Metrics are enabled.
func NewDefault() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{Metrics: MetricsConfig{Enabled: true}},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Gateway defaults
	if cfg.Gateway.DefaultTimeout == 0 {
		cfg.Gateway.DefaultTimeout = DefaultGatewayTimeout
	}
	if cfg.Gateway.HealthCheckTimeout == 0 {
		cfg.Gateway.HealthCheckTimeout = DefaultHealthCheckTimeout
	}

	// Protection defaults
	applyBreakerDefaults(&cfg.Defaults.Breaker)
	if cfg.Defaults.RateLimit.Capacity == 0 {
		cfg.Defaults.RateLimit.Capacity = DefaultRateLimitCapacity
	}
	if cfg.Defaults.RateLimit.RefillRate == 0 {
		cfg.Defaults.RateLimit.RefillRate = DefaultRateLimitRefillRate
	}

	// Backend defaults - applied to each backend
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		if b.Type == "" {
			b.Type = DefaultBackendType
		}
		if b.Timeout == 0 {
			b.Timeout = cfg.Gateway.DefaultTimeout
		}
		// A partial override inherits the rest from the defaults section.
		if !b.Breaker.IsZero() {
			b.Breaker = b.Breaker.Merge(cfg.Defaults.Breaker)
		}
		if !b.RateLimit.IsZero() {
			b.RateLimit = b.RateLimit.Merge(cfg.Defaults.RateLimit)
		}
	}

	applyCacheDefaults(&cfg.Cache)
	applyAuditDefaults(&cfg.Audit)
	applyAdminDefaults(&cfg.Admin)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyBreakerDefaults(b *BreakerConfig) {
	if b.Threshold == 0 {
		b.Threshold = DefaultBreakerThreshold
	}
	if b.Window == 0 {
		b.Window = DefaultBreakerWindow
	}
	if b.Cooldown == 0 {
		b.Cooldown = DefaultBreakerCooldown
	}
	if b.MaxCooldown == 0 {
		b.MaxCooldown = DefaultBreakerMaxCooldown
	}
	if b.Multiplier == 0 {
		b.Multiplier = DefaultBreakerMultiplier
	}
}

func applyCacheDefaults(c *CacheConfig) {
	if c.Backend == "" {
		c.Backend = DefaultCacheBackend
	}
	if c.TTL == 0 {
		c.TTL = DefaultCacheTTL
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = DefaultCacheMaxEntries
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
}

func applyAuditDefaults(a *AuditConfig) {
	if a.Backend == "" {
		a.Backend = DefaultAuditBackend
	}
	if a.SQLite.Path == "" {
		a.SQLite.Path = DefaultAuditSQLitePath
	}
	if a.SQLite.BusyTimeout == 0 {
		a.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if a.Recorder.QueueSize == 0 {
		a.Recorder.QueueSize = DefaultAuditQueueSize
	}
	if a.Recorder.WriteTimeout == 0 {
		a.Recorder.WriteTimeout = DefaultAuditWriteTimeout
	}
	if a.Recorder.MaxAttempts == 0 {
		a.Recorder.MaxAttempts = DefaultAuditMaxAttempts
	}
	if a.Recorder.MaxRedeliveryInterval == 0 {
		a.Recorder.MaxRedeliveryInterval = DefaultAuditMaxRedelivery
	}
	if a.Recorder.DeadLetterPath == "" {
		a.Recorder.DeadLetterPath = DefaultAuditDeadLetterPath
	}
	if a.Retention.Days == 0 {
		a.Retention.Days = DefaultRetentionDays
	}
	if a.Retention.PruneSchedule == "" {
		a.Retention.PruneSchedule = DefaultRetentionSchedule
	}
	if a.Retention.ArchivePath == "" {
		a.Retention.ArchivePath = DefaultRetentionArchivePath
	}
}

func applyAdminDefaults(a *AdminConfig) {
	if a.ListenAddress == "" {
		a.ListenAddress = DefaultListenAddress
	}
	if a.ReadTimeout == 0 {
		a.ReadTimeout = DefaultReadTimeout
	}
	if a.WriteTimeout == 0 {
		a.WriteTimeout = DefaultWriteTimeout
	}
	if a.IdleTimeout == 0 {
		a.IdleTimeout = DefaultIdleTimeout
	}
	if a.ShutdownTimeout == 0 {
		a.ShutdownTimeout = DefaultShutdownTimeout
	}
	if a.MaxBodyBytes == 0 {
		a.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// CORS lists are only filled in when CORS is on.
	if !a.CORS.Enabled {
		return
	}
	if len(a.CORS.AllowedOrigins) == 0 {
		a.CORS.AllowedOrigins = []string{"*"}
	}
	if len(a.CORS.AllowedMethods) == 0 {
		a.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(a.CORS.AllowedHeaders) == 0 {
		a.CORS.AllowedHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if a.CORS.MaxAge == 0 {
		a.CORS.MaxAge = DefaultCORSMaxAge
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(t.Metrics.LatencyBuckets) == 0 {
		t.Metrics.LatencyBuckets = append([]float64(nil), DefaultLatencyBuckets...)
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
}
