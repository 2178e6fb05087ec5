package config

import (
	"sync"
	"testing"
)

func resetSingleton() {
	SetConfig(nil)
	initOnce = sync.Once{}
}

func TestInitialize(t *testing.T) {
	resetSingleton()
	t.Cleanup(resetSingleton)

	path := writeConfig(t, "telemetry:\n  logging:\n    level: debug\n")
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	cfg := GetConfig()
	if cfg == nil || cfg.Telemetry.Logging.Level != "debug" {
		t.Fatalf("GetConfig() = %+v", cfg)
	}

	other := writeConfig(t, "telemetry:\n  logging:\n    level: error\n")
	if err := Initialize(other); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if GetConfig().Telemetry.Logging.Level != "debug" {
		t.Error("second Initialize() replaced the configuration")
	}

	if err := ReloadConfig(other); err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if GetConfig().Telemetry.Logging.Level != "error" {
		t.Error("ReloadConfig() did not replace the configuration")
	}

	bad := writeConfig(t, "state:\n  driver: nope\n")
	if err := ReloadConfig(bad); err == nil {
		t.Error("ReloadConfig(invalid) error = nil")
	}
	if GetConfig().Telemetry.Logging.Level != "error" {
		t.Error("failed ReloadConfig() changed the configuration")
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	resetSingleton()
	t.Cleanup(resetSingleton)

	defer func() {
		if recover() == nil {
			t.Error("MustGetConfig() did not panic before Initialize")
		}
	}()
	MustGetConfig()
}
