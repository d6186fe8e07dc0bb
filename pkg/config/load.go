package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "SWITCHBOARD_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SWITCHBOARD_SECTION_FIELD (e.g., SWITCHBOARD_ADMIN_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load a .env file next to the config file, then one in the working directory, if present
// 2. Load YAML from file
// 3. Apply environment variable overrides
// 4. Apply default values
// 5. Validate final configuration
//
// Variables already present in the process environment are never replaced by
// .env values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	loadDotEnv(path)

	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration from data without defaults or validation.
func Parse(data []byte) (*Config, error) {
	// Metrics default to on; yaml only overwrites fields present in the file.
	cfg := &Config{
		Telemetry: TelemetryConfig{Metrics: MetricsConfig{Enabled: true}},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

func loadDotEnv(configPath string) {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format SWITCHBOARD_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Gateway overrides
	envDuration("GATEWAY_DEFAULT_TIMEOUT", &cfg.Gateway.DefaultTimeout)
	envInt("GATEWAY_MAX_DISPATCHES", &cfg.Gateway.MaxDispatches)
	envDuration("GATEWAY_HEALTH_CHECK_TIMEOUT", &cfg.Gateway.HealthCheckTimeout)

	// Protection defaults
	envInt("DEFAULTS_BREAKER_THRESHOLD", &cfg.Defaults.Breaker.Threshold)
	envDuration("DEFAULTS_BREAKER_COOLDOWN", &cfg.Defaults.Breaker.Cooldown)
	envFloat("DEFAULTS_RATE_LIMIT_CAPACITY", &cfg.Defaults.RateLimit.Capacity)
	envFloat("DEFAULTS_RATE_LIMIT_REFILL_RATE", &cfg.Defaults.RateLimit.RefillRate)

	// Backend overrides are keyed by id
	for i := range cfg.Backends {
		applyBackendEnvOverrides(&cfg.Backends[i])
	}

	// Cache overrides
	envBool("CACHE_ENABLED", &cfg.Cache.Enabled)
	envString("CACHE_BACKEND", &cfg.Cache.Backend)
	envDuration("CACHE_TTL", &cfg.Cache.TTL)
	envString("CACHE_REDIS_ADDR", &cfg.Cache.Redis.Addr)
	envString("CACHE_REDIS_PASSWORD", &cfg.Cache.Redis.Password)
	envInt("CACHE_REDIS_DB", &cfg.Cache.Redis.DB)

	// Audit overrides
	envString("AUDIT_BACKEND", &cfg.Audit.Backend)
	envString("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	envInt("AUDIT_RECORDER_QUEUE_SIZE", &cfg.Audit.Recorder.QueueSize)
	envString("AUDIT_RECORDER_DEAD_LETTER_PATH", &cfg.Audit.Recorder.DeadLetterPath)
	envInt("AUDIT_RETENTION_DAYS", &cfg.Audit.Retention.Days)
	envString("AUDIT_RETENTION_PRUNE_SCHEDULE", &cfg.Audit.Retention.PruneSchedule)

	// Admin overrides
	envString("ADMIN_LISTEN_ADDRESS", &cfg.Admin.ListenAddress)
	envDuration("ADMIN_READ_TIMEOUT", &cfg.Admin.ReadTimeout)
	envDuration("ADMIN_WRITE_TIMEOUT", &cfg.Admin.WriteTimeout)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

// applyBackendEnvOverrides applies SWITCHBOARD_BACKENDS_<ID>_<FIELD> where ID
// is the upper-cased backend id with '-' and '.' replaced by '_'.
func applyBackendEnvOverrides(b *BackendConfig) {
	if b.ID == "" {
		return
	}
	key := strings.NewReplacer("-", "_", ".", "_").Replace(strings.ToUpper(b.ID))
	prefix := "BACKENDS_" + key + "_"

	if val, ok := lookupEnv(prefix + "ENABLED"); ok {
		if enabled, err := strconv.ParseBool(val); err == nil {
			b.Enabled = &enabled
		}
	}
	envString(prefix+"URL", &b.URL)
	envString(prefix+"CREDENTIAL_REF", &b.CredentialRef)
	envInt(prefix+"PRIORITY", &b.Priority)
	envDuration(prefix+"TIMEOUT", &b.Timeout)
}

func lookupEnv(name string) (string, bool) {
	val := os.Getenv(EnvPrefix + name)
	return val, val != ""
}

func envString(name string, dst *string) {
	if val, ok := lookupEnv(name); ok {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val, ok := lookupEnv(name); ok {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if val, ok := lookupEnv(name); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(name string, dst *bool) {
	if val, ok := lookupEnv(name); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val, ok := lookupEnv(name); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
