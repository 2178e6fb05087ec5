package config

import "time"

// Config is the root configuration structure for interpose.
type Config struct {
	// Dispatch contains dispatcher and cache settings.
	Dispatch DispatchConfig `yaml:"dispatch" envPrefix:"DISPATCH_"`

	// Manifest contains the recipe manifest location and reload settings.
	Manifest ManifestConfig `yaml:"manifest" envPrefix:"MANIFEST_"`

	// State selects the backing store for dispatcher state.
	State StateConfig `yaml:"state" envPrefix:"STATE_"`

	// Telemetry contains configuration for logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// DispatchConfig contains dispatcher configuration.
type DispatchConfig struct {
	// Builtins installs the built-in rules (state access, string and
	// equality, default bodies) around every rule set.
	// Default: true
	Builtins bool `yaml:"builtins" env:"BUILTINS"`

	// CacheMetrics reports cache lookups and resolutions to the metrics
	// collector.
	// Default: true
	CacheMetrics bool `yaml:"cache_metrics" env:"CACHE_METRICS"`

	// ClearSchedule is a cron expression on which the dispatch cache is
	// cleared. Empty disables scheduled clears.
	// Example: "@every 1h", "0 3 * * *"
	ClearSchedule string `yaml:"clear_schedule" env:"CLEAR_SCHEDULE"`
}

// ManifestConfig contains recipe manifest configuration.
type ManifestConfig struct {
	// Path is the manifest file. Empty means no manifest is loaded.
	Path string `yaml:"path" env:"PATH"`

	// Watch reloads the manifest when the file changes.
	// Default: false
	Watch bool `yaml:"watch" env:"WATCH"`

	// DebounceInterval coalesces bursts of file events into one reload.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval" env:"DEBOUNCE_INTERVAL"`

	// Git loads the manifest from a Git repository. When Git.Repository is
	// set, Path is ignored and the manifest is read from the clone.
	Git GitSourceConfig `yaml:"git" envPrefix:"GIT_"`
}

// GitSourceConfig contains Git manifest source configuration.
type GitSourceConfig struct {
	// Repository is the clone URL or a local repository path.
	// Example: "https://github.com/acme/recipes.git"
	Repository string `yaml:"repository" env:"REPOSITORY"`

	// Branch is the branch to track.
	// Default: "main"
	Branch string `yaml:"branch" env:"BRANCH"`

	// File is the manifest path relative to the repository root.
	// Default: "recipes.yaml"
	File string `yaml:"file" env:"FILE"`

	// LocalPath is where the repository is cloned. Empty uses a directory
	// under the system temp dir.
	LocalPath string `yaml:"local_path" env:"LOCAL_PATH"`

	// Depth limits clone history. Zero clones everything.
	Depth int `yaml:"depth" env:"DEPTH"`

	// PollInterval is how often the remote is checked for new commits.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// Auth selects how to authenticate to the remote.
	Auth GitAuthConfig `yaml:"auth" envPrefix:"AUTH_"`
}

// GitAuthConfig contains Git authentication settings.
type GitAuthConfig struct {
	// Type is the authentication method.
	// Options: "none", "token", "ssh"
	// Default: "none"
	Type string `yaml:"type" env:"TYPE"`

	// Token is a personal access token for HTTPS remotes.
	Token string `yaml:"token" env:"TOKEN"`

	// SSHKeyPath is the private key file for SSH remotes.
	SSHKeyPath string `yaml:"ssh_key_path" env:"SSH_KEY_PATH"`

	// SSHKeyPassphrase unlocks an encrypted SSH key.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase" env:"SSH_KEY_PASSPHRASE"`
}

// StateConfig contains state store configuration.
type StateConfig struct {
	// Driver is the SQLite driver: "sqlite" (modernc.org/sqlite) or
	// "sqlite3" (github.com/mattn/go-sqlite3).
	// Default: "sqlite"
	Driver string `yaml:"driver" env:"DRIVER"`

	// Path is the database file. Empty keeps state in memory.
	Path string `yaml:"path" env:"PATH"`

	// BusyTimeout is how long to wait for database locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode" env:"WAL_MODE"`

	// Retention removes properties not written for longer than this on the
	// maintenance schedule. Zero keeps them forever.
	// Example: "720h"
	Retention time.Duration `yaml:"retention" env:"RETENTION"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing" envPrefix:"TRACING_"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level" env:"LEVEL"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format" env:"FORMAT"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source" env:"ADD_SOURCE"`

	// RedactKeys lists attribute keys whose values are never logged.
	RedactKeys []string `yaml:"redact_keys" env:"REDACT_KEYS"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Namespace is the metric name prefix.
	// Default: "interpose"
	Namespace string `yaml:"namespace" env:"NAMESPACE"`

	// Subsystem is the metric subsystem name.
	// Default: "dispatch"
	Subsystem string `yaml:"subsystem" env:"SUBSYSTEM"`

	// ListenAddress serves the metrics endpoint when set.
	// Example: ":9090"
	ListenAddress string `yaml:"listen_address" env:"LISTEN_ADDRESS"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path" env:"PATH"`

	// ResolveDurationBuckets defines histogram buckets for chain
	// resolution latency (seconds).
	// Default: [0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01]
	ResolveDurationBuckets []float64 `yaml:"resolve_duration_buckets" env:"RESOLVE_DURATION_BUCKETS"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// ServiceName is the service name in traces.
	// Default: "interpose"
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio", "parent_based"
	// Default: "parent_based"
	Sampler string `yaml:"sampler" env:"SAMPLER"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure" env:"INSECURE"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}
