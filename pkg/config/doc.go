// Package config provides configuration management for interpose.
//
// Configuration is loaded from YAML with environment variable overrides:
//
//	cfg, err := config.LoadConfig("interpose.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("interpose.yaml")
//
// # Environment Variable Overrides
//
// Variables are named INTERPOSE_SECTION_FIELD and parsed with
// github.com/caarlos0/env:
//
//   - INTERPOSE_STATE_DRIVER overrides state.driver
//   - INTERPOSE_DISPATCH_CLEAR_SCHEDULE overrides dispatch.clear_schedule
//   - INTERPOSE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast, reporting every invalid field)
//
// # Singleton
//
// The command line keeps the loaded configuration in a process-wide
// singleton (Initialize, GetConfig). Library packages never read it.
package config
