package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Source.Kind != SourceSimulated {
		t.Fatalf("Source.Kind = %q, want %q", cfg.Source.Kind, SourceSimulated)
	}
	if cfg.Source.Interval != 2*time.Second {
		t.Fatalf("Source.Interval = %v, want 2s", cfg.Source.Interval)
	}
	if cfg.Source.DeviceID != "0098" {
		t.Fatalf("Source.DeviceID = %q, want 0098", cfg.Source.DeviceID)
	}
	if !strings.HasPrefix(cfg.Log.File, home) {
		t.Fatalf("Log.File = %q, want it under HOME %q", cfg.Log.File, home)
	}
	if cfg.Metrics.Listen != "" {
		t.Fatalf("Metrics.Listen = %q, want empty", cfg.Metrics.Listen)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
[source]
kind = " MQTT "
interval = "500ms"
device_id = "  1234 "

[mqtt]
broker = " tcp://broker:1883 "
topic = "ward/3/o2ring"
qos = 1

[ble]
scan_duration = "8s"
retries = 2
name_prefix = " O2Ring "

[log]
level = "DEBUG"
file = "~/logs/o2.log"

[metrics]
listen = " :9108 "
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Source.Kind != SourceMQTT {
		t.Fatalf("Source.Kind = %q", cfg.Source.Kind)
	}
	if cfg.Source.Interval != 500*time.Millisecond {
		t.Fatalf("Source.Interval = %v", cfg.Source.Interval)
	}
	if cfg.Source.DeviceID != "1234" {
		t.Fatalf("Source.DeviceID = %q", cfg.Source.DeviceID)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" || cfg.MQTT.Topic != "ward/3/o2ring" || cfg.MQTT.QoS != 1 {
		t.Fatalf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.MQTT.ClientID != defaultClientID {
		t.Fatalf("MQTT.ClientID = %q, want default", cfg.MQTT.ClientID)
	}
	if cfg.BLE.ScanDuration != 8*time.Second || cfg.BLE.Retries != 2 || cfg.BLE.NamePrefix != "O2Ring" {
		t.Fatalf("BLE = %+v", cfg.BLE)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Log.File != filepath.Join(home, "logs/o2.log") {
		t.Fatalf("Log.File = %q", cfg.Log.File)
	}
	if cfg.Metrics.Listen != ":9108" {
		t.Fatalf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(writeConfig(t, `
[source]
kind = "   "
device_id = ""
[mqtt]
topic = " "
`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Source.Kind != SourceSimulated || cfg.Source.DeviceID != defaultDeviceID || cfg.MQTT.Topic != defaultTopic {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad toml", `kind = [`, "parse config"},
		{"unknown kind", "[source]\nkind = \"serial\"", "unknown source kind"},
		{"bad interval", "[source]\ninterval = \"soon\"", "source.interval"},
		{"negative interval", "[source]\ninterval = \"-2s\"", "must be positive"},
		{"file without path", "[source]\nkind = \"file\"", "source.path"},
		{"command without argv", "[source]\nkind = \"command\"", "source.command"},
		{"qos", "[mqtt]\nqos = 3", "mqtt.qos"},
		{"device id with dash", "[source]\ndevice_id = \"00-98\"", "source.device_id"},
		{"device id with space", "[source]\ndevice_id = \"O2 98\"", "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("Load returned nil error, want %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %q, want it to mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	if want := filepath.Join(home, "a/b"); got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
