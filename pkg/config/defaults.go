package config

import "time"

// Default values for configuration fields.
const (
	// Dispatch defaults
	DefaultDispatchBuiltins     = true
	DefaultDispatchCacheMetrics = true

	// Manifest defaults
	DefaultManifestWatch            = false
	DefaultManifestDebounceInterval = 100 * time.Millisecond
	DefaultGitBranch                = "main"
	DefaultGitFile                  = "recipes.yaml"
	DefaultGitPollInterval          = 30 * time.Second
	DefaultGitTimeout               = 30 * time.Second
	DefaultGitAuthType              = "none"

	// State defaults
	DefaultStateDriver      = "sqlite"
	DefaultStateBusyTimeout = 5 * time.Second
	DefaultStateWALMode     = true

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsNamespace   = "interpose"
	DefaultMetricsSubsystem   = "dispatch"
	DefaultMetricsPath        = "/metrics"
	DefaultTracingEnabled     = false
	DefaultTracingServiceName = "interpose"
	DefaultTracingSampler     = "parent_based"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingInsecure    = true
	DefaultTracingTimeout     = 10 * time.Second
)

// DefaultResolveDurationBuckets are histogram buckets for resolution
// latency, from 10µs to 10ms.
var DefaultResolveDurationBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			Builtins:     DefaultDispatchBuiltins,
			CacheMetrics: DefaultDispatchCacheMetrics,
		},
		Manifest: ManifestConfig{
			Watch:            DefaultManifestWatch,
			DebounceInterval: DefaultManifestDebounceInterval,
			Git: GitSourceConfig{
				Branch:       DefaultGitBranch,
				File:         DefaultGitFile,
				PollInterval: DefaultGitPollInterval,
				Timeout:      DefaultGitTimeout,
				Auth:         GitAuthConfig{Type: DefaultGitAuthType},
			},
		},
		State: StateConfig{
			Driver:      DefaultStateDriver,
			BusyTimeout: DefaultStateBusyTimeout,
			WALMode:     DefaultStateWALMode,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  DefaultLoggingLevel,
				Format: DefaultLoggingFormat,
			},
			Metrics: MetricsConfig{
				Enabled:                DefaultMetricsEnabled,
				Namespace:              DefaultMetricsNamespace,
				Subsystem:              DefaultMetricsSubsystem,
				Path:                   DefaultMetricsPath,
				ResolveDurationBuckets: append([]float64(nil), DefaultResolveDurationBuckets...),
			},
			Tracing: TracingConfig{
				Enabled:     DefaultTracingEnabled,
				ServiceName: DefaultTracingServiceName,
				Sampler:     DefaultTracingSampler,
				SampleRatio: DefaultTracingSampleRatio,
				Insecure:    DefaultTracingInsecure,
				Timeout:     DefaultTracingTimeout,
			},
		},
	}
}

// ApplyDefaults fills zero-valued string, duration and slice fields with
// their defaults. Booleans cannot be told apart from an explicit false, so
// they are only defaulted by Default. ApplyDefaults is idempotent.
func ApplyDefaults(cfg *Config) {
	if cfg.Manifest.DebounceInterval == 0 {
		cfg.Manifest.DebounceInterval = DefaultManifestDebounceInterval
	}

	git := &cfg.Manifest.Git
	if git.Branch == "" {
		git.Branch = DefaultGitBranch
	}
	if git.File == "" {
		git.File = DefaultGitFile
	}
	if git.PollInterval == 0 {
		git.PollInterval = DefaultGitPollInterval
	}
	if git.Timeout == 0 {
		git.Timeout = DefaultGitTimeout
	}
	if git.Auth.Type == "" {
		git.Auth.Type = DefaultGitAuthType
	}

	if cfg.State.Driver == "" {
		cfg.State.Driver = DefaultStateDriver
	}
	if cfg.State.BusyTimeout == 0 {
		cfg.State.BusyTimeout = DefaultStateBusyTimeout
	}

	logging := &cfg.Telemetry.Logging
	if logging.Level == "" {
		logging.Level = DefaultLoggingLevel
	}
	if logging.Format == "" {
		logging.Format = DefaultLoggingFormat
	}

	metrics := &cfg.Telemetry.Metrics
	if metrics.Namespace == "" {
		metrics.Namespace = DefaultMetricsNamespace
	}
	if metrics.Subsystem == "" {
		metrics.Subsystem = DefaultMetricsSubsystem
	}
	if metrics.Path == "" {
		metrics.Path = DefaultMetricsPath
	}
	if len(metrics.ResolveDurationBuckets) == 0 {
		metrics.ResolveDurationBuckets = append([]float64(nil), DefaultResolveDurationBuckets...)
	}

	tracing := &cfg.Telemetry.Tracing
	if tracing.ServiceName == "" {
		tracing.ServiceName = DefaultTracingServiceName
	}
	if tracing.Sampler == "" {
		tracing.Sampler = DefaultTracingSampler
	}
	if tracing.Timeout == 0 {
		tracing.Timeout = DefaultTracingTimeout
	}
}
