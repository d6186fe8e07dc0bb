// Package config provides configuration management for the Switchboard
// gateway.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("switchboard.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("switchboard.yaml")
//
// The second form also reads a .env file next to the configuration file and
// one in the working directory. Variables already set in the process
// environment win over .env values.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SWITCHBOARD_SECTION_FIELD.
// For example:
//
//   - SWITCHBOARD_ADMIN_LISTEN_ADDRESS overrides admin.listen_address
//   - SWITCHBOARD_CACHE_ENABLED overrides cache.enabled
//   - SWITCHBOARD_BACKENDS_PRIMARY_ENABLED overrides enabled on the backend "primary"
//
// Backend ids are upper-cased and '-' and '.' become '_', so the backend
// "eu-west.fallback" is addressed as SWITCHBOARD_BACKENDS_EU_WEST_FALLBACK_URL.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Values from YAML file
//  2. Environment variable overrides
//  3. Default values for anything still unset
//  4. Validation (fails fast if invalid)
//
// # Credentials
//
// Backend secrets are never stored in the file. A backend names its secret
// with credential_ref, either "env:NAME" or "file:/path", and ResolveCredential
// reads it when the gateway builds the backend's adapter.
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton:
//
//	if err := config.Initialize("switchboard.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// Watcher reloads the file on change and hands the previous and the new
// configuration to a callback. Only the enabled flag of existing backends is
// applied at runtime; EnabledChanges computes that delta.
//
// # Example Configuration
//
//	gateway:
//	  default_timeout: 30s
//
//	defaults:
//	  breaker:
//	    threshold: 5
//	    cooldown: 30s
//	  rate_limit:
//	    capacity: 60
//	    refill_rate: 1
//
//	backends:
//	  - id: primary
//	    priority: 1
//	    url: "https://llm-primary.internal/v1/chat"
//	    credential_ref: "env:PRIMARY_API_KEY"
//	    pricing:
//	      prompt_per_1k: 0.01
//	      completion_per_1k: 0.03
//	  - id: fallback
//	    priority: 2
//	    url: "https://llm-fallback.internal/v1/chat"
//
//	audit:
//	  backend: sqlite
//	  sqlite:
//	    path: data/audit.db
//
// # Thread Safety
//
// All singleton access is thread-safe. Reads take a read lock; Initialize and
// ReloadConfig take the write lock only to swap the pointer.
package config
