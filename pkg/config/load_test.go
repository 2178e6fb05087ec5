package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "interpose.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
dispatch:
  builtins: false
  clear_schedule: "@every 1h"

manifest:
  path: ./recipes.yaml
  watch: true
  debounce_interval: 250ms

state:
  driver: sqlite3
  path: ./state.db

telemetry:
  logging:
    level: debug
    format: console
  tracing:
    enabled: true
    endpoint: localhost:4317
    sampler: ratio
    sample_ratio: 0.25
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Dispatch.Builtins {
		t.Error("dispatch.builtins = true, want false from file")
	}
	if cfg.Dispatch.ClearSchedule != "@every 1h" {
		t.Errorf("dispatch.clear_schedule = %q", cfg.Dispatch.ClearSchedule)
	}
	if !cfg.Manifest.Watch || cfg.Manifest.DebounceInterval != 250*time.Millisecond {
		t.Errorf("manifest = %+v", cfg.Manifest)
	}
	if cfg.State.Driver != "sqlite3" || cfg.State.Path != "./state.db" {
		t.Errorf("state = %+v", cfg.State)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Telemetry.Logging)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.25 {
		t.Errorf("tracing.sample_ratio = %v, want 0.25", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestLoadConfig_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, "state:\n  path: ./state.db\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if !cfg.Dispatch.Builtins || !cfg.Dispatch.CacheMetrics {
		t.Errorf("dispatch booleans lost their defaults: %+v", cfg.Dispatch)
	}
	if !cfg.State.WALMode || cfg.State.Driver != DefaultStateDriver {
		t.Errorf("state = %+v", cfg.State)
	}
	if !cfg.Telemetry.Metrics.Enabled || cfg.Telemetry.Metrics.Namespace != DefaultMetricsNamespace {
		t.Errorf("metrics = %+v", cfg.Telemetry.Metrics)
	}
	if !reflect.DeepEqual(cfg.Telemetry.Metrics.ResolveDurationBuckets, DefaultResolveDurationBuckets) {
		t.Errorf("buckets = %v", cfg.Telemetry.Metrics.ResolveDurationBuckets)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		path    string
		want    string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "missing.yaml"), want: "failed to read"},
		{name: "invalid yaml", content: "dispatch: [unclosed", want: "failed to parse"},
		{name: "invalid values", content: "state:\n  driver: postgres\n", want: "state.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = writeConfig(t, tt.content)
			}
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("LoadConfig() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "telemetry:\n  logging:\n    level: info\n")

	t.Setenv("INTERPOSE_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("INTERPOSE_STATE_DRIVER", "sqlite3")
	t.Setenv("INTERPOSE_MANIFEST_DEBOUNCE_INTERVAL", "2s")
	t.Setenv("INTERPOSE_DISPATCH_BUILTINS", "false")
	t.Setenv("INTERPOSE_MANIFEST_GIT_BRANCH", "release")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("logging.level = %q, want warn", cfg.Telemetry.Logging.Level)
	}
	if cfg.State.Driver != "sqlite3" {
		t.Errorf("state.driver = %q, want sqlite3", cfg.State.Driver)
	}
	if cfg.Manifest.DebounceInterval != 2*time.Second {
		t.Errorf("manifest.debounce_interval = %v, want 2s", cfg.Manifest.DebounceInterval)
	}
	if cfg.Dispatch.Builtins {
		t.Error("dispatch.builtins = true, want false from env")
	}
	if cfg.Manifest.Git.Branch != "release" {
		t.Errorf("manifest.git.branch = %q, want release", cfg.Manifest.Git.Branch)
	}
	if cfg.Manifest.Git.File != DefaultGitFile {
		t.Errorf("manifest.git.file = %q, want default %q", cfg.Manifest.Git.File, DefaultGitFile)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	t.Setenv("INTERPOSE_TELEMETRY_TRACING_SAMPLE_RATIO", "2")

	_, err := LoadConfigWithEnvOverrides("")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v, want ValidationError", err)
	}
	if verr.Errors[0].Field != "telemetry.tracing.sample_ratio" {
		t.Errorf("field = %q", verr.Errors[0].Field)
	}
}

func TestParseEnv(t *testing.T) {
	var target struct {
		Name  string        `env:"NAME"`
		Every time.Duration `env:"EVERY"`
		Tags  []string      `env:"TAGS"`
	}
	err := ParseEnv(&target, "APP_", map[string]string{
		"APP_NAME":  "bench",
		"APP_EVERY": "1m",
		"APP_TAGS":  "a,b",
	})
	if err != nil {
		t.Fatalf("ParseEnv() error = %v", err)
	}
	if target.Name != "bench" || target.Every != time.Minute || !reflect.DeepEqual(target.Tags, []string{"a", "b"}) {
		t.Errorf("ParseEnv() = %+v", target)
	}

	var bad struct {
		N int `env:"N"`
	}
	if err := ParseEnv(&bad, "", map[string]string{"N": "x"}); err == nil {
		t.Error("ParseEnv(non-numeric int) error = nil")
	}
}
