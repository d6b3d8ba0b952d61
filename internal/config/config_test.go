package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPAddr == "" {
		t.Error("HTTPAddr default missing")
	}
	if cfg.EmptyDeviceBackoff != 30*time.Second {
		t.Errorf("EmptyDeviceBackoff = %s, want 30s", cfg.EmptyDeviceBackoff)
	}
	if cfg.QRTokenTTL != 25*time.Second {
		t.Errorf("QRTokenTTL = %s, want 25s", cfg.QRTokenTTL)
	}
	if cfg.DeviceInactivityTimeout != time.Hour {
		t.Errorf("DeviceInactivityTimeout = %s, want 1h", cfg.DeviceInactivityTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("EMPTY_DEVICE_BACKOFF_SECONDS", "7")
	t.Setenv("SIMULATOR_FAILURE_RATE", "0.25")

	cfg := Load()
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %s, want :9999", cfg.HTTPAddr)
	}
	if cfg.EmptyDeviceBackoff != 7*time.Second {
		t.Errorf("EmptyDeviceBackoff = %s, want 7s", cfg.EmptyDeviceBackoff)
	}
	if cfg.SimulatorFailureRate != 0.25 {
		t.Errorf("SimulatorFailureRate = %v, want 0.25", cfg.SimulatorFailureRate)
	}
}

func TestGetEnvSecondsIgnoresGarbage(t *testing.T) {
	t.Setenv("EMPTY_DEVICE_BACKOFF_SECONDS", "not-a-number")
	if got := getEnvSeconds("EMPTY_DEVICE_BACKOFF_SECONDS", 30); got != 30*time.Second {
		t.Errorf("got %s, want the 30s default", got)
	}
	t.Setenv("EMPTY_DEVICE_BACKOFF_SECONDS", "-5")
	if got := getEnvSeconds("EMPTY_DEVICE_BACKOFF_SECONDS", 30); got != 30*time.Second {
		t.Errorf("negative values must fall back to the default, got %s", got)
	}
}
