package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "state.driver").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
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
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// listing every failed rule, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateDispatch(&cfg.Dispatch)...)
	errs = append(errs, validateManifest(&cfg.Manifest)...)
	errs = append(errs, validateState(&cfg.State)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateDispatch(cfg *DispatchConfig) []FieldError {
	var errs []FieldError
	if cfg.ClearSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ClearSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "dispatch.clear_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.ClearSchedule, err),
			})
		}
	}
	return errs
}

func validateManifest(cfg *ManifestConfig) []FieldError {
	var errs []FieldError
	if cfg.Watch && cfg.Path == "" && cfg.Git.Repository == "" {
		errs = append(errs, FieldError{
			Field:   "manifest.path",
			Message: "path is required when watch is enabled",
		})
	}
	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "manifest.debounce_interval",
			Message: "must not be negative",
		})
	}
	if cfg.Git.Repository != "" {
		errs = append(errs, validateGit(&cfg.Git)...)
	}
	return errs
}

func validateGit(cfg *GitSourceConfig) []FieldError {
	var errs []FieldError
	if cfg.Branch == "" {
		errs = append(errs, FieldError{Field: "manifest.git.branch", Message: "branch is required"})
	}
	if !filepath.IsLocal(cfg.File) {
		errs = append(errs, FieldError{
			Field:   "manifest.git.file",
			Message: fmt.Sprintf("must be a relative path inside the repository, got %q", cfg.File),
		})
	}
	if cfg.Depth < 0 {
		errs = append(errs, FieldError{Field: "manifest.git.depth", Message: "must not be negative"})
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, FieldError{Field: "manifest.git.poll_interval", Message: "must be positive"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "manifest.git.timeout", Message: "must be positive"})
	}
	switch cfg.Auth.Type {
	case "", "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "manifest.git.auth.token", Message: "token auth requires a token"})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "manifest.git.auth.ssh_key_path", Message: "ssh auth requires a key path"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "manifest.git.auth.type",
			Message: fmt.Sprintf("unsupported auth type %q (valid: none, token, ssh)", cfg.Auth.Type),
		})
	}
	return errs
}

func validateState(cfg *StateConfig) []FieldError {
	var errs []FieldError
	switch cfg.Driver {
	case "sqlite", "sqlite3":
	default:
		errs = append(errs, FieldError{
			Field:   "state.driver",
			Message: fmt.Sprintf("unsupported driver %q (valid: sqlite, sqlite3)", cfg.Driver),
		})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "state.busy_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.Retention < 0 {
		errs = append(errs, FieldError{
			Field:   "state.retention",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (valid: debug, info, warn, error)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (valid: json, text, console)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "must start with /",
			})
		}
		for i, b := range cfg.Metrics.ResolveDurationBuckets {
			if b <= 0 || (i > 0 && b <= cfg.Metrics.ResolveDurationBuckets[i-1]) {
				errs = append(errs, FieldError{
					Field:   "telemetry.metrics.resolve_duration_buckets",
					Message: "buckets must be positive and strictly increasing",
				})
				break
			}
		}
	}

	t := cfg.Tracing
	switch t.Sampler {
	case "always", "never", "ratio", "parent_based":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (valid: always, never, ratio, parent_based)", t.Sampler),
		})
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "must be between 0.0 and 1.0",
		})
	}
	if t.Enabled && t.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}
	return errs
}
