package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "admin.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateGateway(&cfg.Gateway)...)
	errs = append(errs, validateBreaker("defaults.breaker", &cfg.Defaults.Breaker, true)...)
	errs = append(errs, validateRateLimit("defaults.rate_limit", &cfg.Defaults.RateLimit, true)...)
	errs = append(errs, validateRateLimit("defaults.caller_rate_limit", &cfg.Defaults.CallerRateLimit, false)...)
	errs = append(errs, validateBackends(cfg.Backends)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateAdmin(&cfg.Admin)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateGateway(cfg *GatewayConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "gateway.default_timeout",
			Message: "default timeout must be positive",
		})
	}
	if cfg.MaxDispatches < 0 {
		errs = append(errs, FieldError{
			Field:   "gateway.max_dispatches",
			Message: "max dispatches must be non-negative",
		})
	}
	if cfg.HealthCheckTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "gateway.health_check_timeout",
			Message: "health check timeout must be positive",
		})
	}

	return errs
}

// validateBreaker checks breaker parameters. An override (required false) with
// a zero threshold is "not set" and skipped.
func validateBreaker(prefix string, cfg *BreakerConfig, required bool) []FieldError {
	var errs []FieldError

	if !required && cfg.Threshold == 0 {
		return nil
	}
	if cfg.Threshold <= 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".threshold",
			Message: "threshold must be positive",
		})
	}
	if cfg.Window < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".window",
			Message: "window must be non-negative",
		})
	}
	if required && cfg.Cooldown <= 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".cooldown",
			Message: "cooldown must be positive",
		})
	}
	if cfg.MaxCooldown != 0 && cfg.MaxCooldown < cfg.Cooldown {
		errs = append(errs, FieldError{
			Field:   prefix + ".max_cooldown",
			Message: fmt.Sprintf("max cooldown %s is below cooldown %s", cfg.MaxCooldown, cfg.Cooldown),
		})
	}
	if cfg.Multiplier != 0 && cfg.Multiplier < 1 {
		errs = append(errs, FieldError{
			Field:   prefix + ".multiplier",
			Message: "multiplier must be at least 1",
		})
	}

	return errs
}

// validateRateLimit checks bucket parameters. An unset optional bucket (zero
// capacity) is skipped.
func validateRateLimit(prefix string, cfg *RateLimitConfig, required bool) []FieldError {
	var errs []FieldError

	if !required && cfg.Capacity == 0 && cfg.RefillRate == 0 {
		return nil
	}
	if cfg.Capacity <= 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".capacity",
			Message: "capacity must be positive",
		})
	}
	if cfg.RefillRate < 0 {
		errs = append(errs, FieldError{
			Field:   prefix + ".refill_rate",
			Message: "refill rate must be non-negative",
		})
	}

	return errs
}

func validateBackends(backends []BackendConfig) []FieldError {
	var errs []FieldError

	if len(backends) == 0 {
		errs = append(errs, FieldError{
			Field:   "backends",
			Message: "at least one backend is required",
		})
		return errs
	}

	seen := make(map[string]bool, len(backends))
	for i, b := range backends {
		prefix := fmt.Sprintf("backends[%d]", i)

		if b.ID == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".id",
				Message: "backend id is required",
			})
		} else {
			if b.ID == "auto" {
				errs = append(errs, FieldError{
					Field:   prefix + ".id",
					Message: `"auto" is reserved for priority routing`,
				})
			}
			if seen[b.ID] {
				errs = append(errs, FieldError{
					Field:   prefix + ".id",
					Message: fmt.Sprintf("duplicate backend id %q", b.ID),
				})
			}
			seen[b.ID] = true
		}

		switch b.Type {
		case "http":
			if b.URL == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".url",
					Message: "url is required for http backends",
				})
			} else if u, err := url.Parse(b.URL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".url",
					Message: fmt.Sprintf("invalid url %q", b.URL),
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("unsupported backend type %q: must be 'http'", b.Type),
			})
		}

		if b.CredentialRef != "" {
			if _, _, err := ParseCredentialRef(b.CredentialRef); err != nil {
				errs = append(errs, FieldError{
					Field:   prefix + ".credential_ref",
					Message: err.Error(),
				})
			}
		}

		if b.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".timeout",
				Message: "timeout must be non-negative",
			})
		}
		if b.Pricing.PromptPer1K < 0 || b.Pricing.CompletionPer1K < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".pricing",
				Message: "prices must be non-negative",
			})
		}

		errs = append(errs, validateBreaker(prefix+".breaker", &b.Breaker, false)...)
		errs = append(errs, validateRateLimit(prefix+".rate_limit", &b.RateLimit, false)...)
	}

	return errs
}

func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}

	switch cfg.Backend {
	case "memory":
		if cfg.MaxEntries < 0 {
			errs = append(errs, FieldError{
				Field:   "cache.max_entries",
				Message: "max entries must be non-negative",
			})
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "cache.redis.addr",
				Message: "redis address is required when backend is 'redis'",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "cache.backend",
			Message: fmt.Sprintf("invalid cache backend %q: must be 'memory' or 'redis'", cfg.Backend),
		})
	}

	if cfg.TTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "cache.ttl",
			Message: "ttl must be positive",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.path",
				Message: "sqlite path is required when backend is 'sqlite'",
			})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("invalid audit backend %q: must be 'sqlite' or 'memory'", cfg.Backend),
		})
	}

	if cfg.Recorder.QueueSize < 1 {
		errs = append(errs, FieldError{
			Field:   "audit.recorder.queue_size",
			Message: "queue size must be at least 1",
		})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "audit.recorder.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.Recorder.MaxAttempts < 1 {
		errs = append(errs, FieldError{
			Field:   "audit.recorder.max_attempts",
			Message: "max attempts must be at least 1",
		})
	}
	if cfg.Recorder.MaxRedeliveryInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.recorder.max_redelivery_interval",
			Message: "max redelivery interval must be non-negative",
		})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.max_records",
			Message: "max records must be non-negative",
		})
	}
	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Retention.PruneSchedule, err),
			})
		}
	}
	if cfg.Retention.ArchiveBeforeDelete && cfg.Retention.ArchivePath == "" {
		errs = append(errs, FieldError{
			Field:   "audit.retention.archive_path",
			Message: "archive path is required when archive_before_delete is set",
		})
	}

	return errs
}

func validateAdmin(cfg *AdminConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "admin.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "admin.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "admin.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "admin.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "admin.max_body_bytes",
			Message: "max body bytes must be non-negative",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
