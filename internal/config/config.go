// Package config loads the monitor's TOML configuration, falling back to
// defaults for anything missing.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/luki/o2ring/internal/reading"
)

// Source kinds.
const (
	SourceSimulated = "simulated"
	SourceStdin     = "stdin"
	SourceFile      = "file"
	SourceCommand   = "command"
	SourceMQTT      = "mqtt"
	SourceBLE       = "ble"
)

var sourceKinds = []string{SourceSimulated, SourceStdin, SourceFile, SourceCommand, SourceMQTT, SourceBLE}

// Config is the resolved configuration.
type Config struct {
	Source  Source
	MQTT    MQTT
	BLE     BLE
	Log     Log
	Metrics Metrics
}

type Source struct {
	Kind     string
	Interval time.Duration
	DeviceID string
	Path     string
	Command  []string
}

type MQTT struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
}

type BLE struct {
	ScanDuration time.Duration
	Retries      int
	NamePrefix   string
}

type Log struct {
	Level string
	File  string
}

type Metrics struct {
	Listen string
}

const (
	defaultConfigPath = "~/.config/o2ring/config.toml"
	defaultLogFile    = "~/.local/state/o2ring/monitor.log"
	defaultInterval   = 2 * time.Second
	defaultDeviceID   = "0098"
	defaultBroker     = "tcp://127.0.0.1:1883"
	defaultTopic      = "o2ring/status"
	defaultClientID   = "o2ring-monitor"
	defaultScan       = 5 * time.Second
	defaultRetries    = 5
	defaultLogLevel   = "info"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Source: Source{
			Kind:     SourceSimulated,
			Interval: defaultInterval,
			DeviceID: defaultDeviceID,
		},
		MQTT: MQTT{
			Broker:   defaultBroker,
			Topic:    defaultTopic,
			ClientID: defaultClientID,
		},
		BLE: BLE{
			ScanDuration: defaultScan,
			Retries:      defaultRetries,
		},
		Log: Log{
			Level: defaultLogLevel,
			File:  mustExpand(defaultLogFile),
		},
	}
}

type rawConfig struct {
	Source struct {
		Kind     string   `toml:"kind"`
		Interval string   `toml:"interval"`
		DeviceID string   `toml:"device_id"`
		Path     string   `toml:"path"`
		Command  []string `toml:"command"`
	} `toml:"source"`
	MQTT struct {
		Broker   string `toml:"broker"`
		Topic    string `toml:"topic"`
		ClientID string `toml:"client_id"`
		Username string `toml:"username"`
		Password string `toml:"password"`
		QoS      int    `toml:"qos"`
	} `toml:"mqtt"`
	BLE struct {
		ScanDuration string `toml:"scan_duration"`
		Retries      int    `toml:"retries"`
		NamePrefix   string `toml:"name_prefix"`
	} `toml:"ble"`
	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
	Metrics struct {
		Listen string `toml:"listen"`
	} `toml:"metrics"`
}

// Load locates and parses the config file. A missing file yields Default().
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) (Config, error) {
	cfg := Default()

	if kind := strings.TrimSpace(raw.Source.Kind); kind != "" {
		cfg.Source.Kind = strings.ToLower(kind)
	}
	if err := ValidateKind(cfg.Source.Kind); err != nil {
		return Config{}, err
	}
	if s := strings.TrimSpace(raw.Source.Interval); s != "" {
		d, err := parsePositiveDuration("source.interval", s)
		if err != nil {
			return Config{}, err
		}
		cfg.Source.Interval = d
	}
	cfg.Source.DeviceID = orDefault(raw.Source.DeviceID, defaultDeviceID)
	if !reading.ValidDeviceID(cfg.Source.DeviceID) {
		return Config{}, fmt.Errorf("source.device_id must be alphanumeric, got %q", cfg.Source.DeviceID)
	}
	if p := strings.TrimSpace(raw.Source.Path); p != "" {
		cfg.Source.Path = mustExpand(p)
	}
	for _, arg := range raw.Source.Command {
		cfg.Source.Command = append(cfg.Source.Command, strings.TrimSpace(arg))
	}
	if cfg.Source.Kind == SourceFile && cfg.Source.Path == "" {
		return Config{}, fmt.Errorf("source.path is required for the file source")
	}
	if cfg.Source.Kind == SourceCommand && (len(cfg.Source.Command) == 0 || cfg.Source.Command[0] == "") {
		return Config{}, fmt.Errorf("source.command is required for the command source")
	}

	cfg.MQTT.Broker = orDefault(raw.MQTT.Broker, defaultBroker)
	cfg.MQTT.Topic = orDefault(raw.MQTT.Topic, defaultTopic)
	cfg.MQTT.ClientID = orDefault(raw.MQTT.ClientID, defaultClientID)
	cfg.MQTT.Username = strings.TrimSpace(raw.MQTT.Username)
	cfg.MQTT.Password = raw.MQTT.Password
	if raw.MQTT.QoS < 0 || raw.MQTT.QoS > 2 {
		return Config{}, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", raw.MQTT.QoS)
	}
	cfg.MQTT.QoS = byte(raw.MQTT.QoS)

	if s := strings.TrimSpace(raw.BLE.ScanDuration); s != "" {
		d, err := parsePositiveDuration("ble.scan_duration", s)
		if err != nil {
			return Config{}, err
		}
		cfg.BLE.ScanDuration = d
	}
	if raw.BLE.Retries > 0 {
		cfg.BLE.Retries = raw.BLE.Retries
	}
	cfg.BLE.NamePrefix = strings.TrimSpace(raw.BLE.NamePrefix)

	cfg.Log.Level = strings.ToLower(orDefault(raw.Log.Level, defaultLogLevel))
	if f := strings.TrimSpace(raw.Log.File); f != "" {
		cfg.Log.File = mustExpand(f)
	}

	cfg.Metrics.Listen = strings.TrimSpace(raw.Metrics.Listen)
	return cfg, nil
}

// ValidateKind reports whether kind names a known source.
func ValidateKind(kind string) error {
	for _, k := range sourceKinds {
		if k == kind {
			return nil
		}
	}
	return fmt.Errorf("unknown source kind %q (want one of %s)", kind, strings.Join(sourceKinds, ", "))
}

func parsePositiveDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, s)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if t := strings.TrimSpace(v); t != "" {
		return t
	}
	return def
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
