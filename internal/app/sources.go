package app

import (
	"fmt"
	"io"
	"os"

	"github.com/luki/o2ring/internal/config"
	"github.com/luki/o2ring/internal/o2ring"
	"github.com/luki/o2ring/internal/source"
)

// BuildSource creates the source selected by cfg. stdin backs the stdin
// source.
func BuildSource(cfg config.Config, stdin io.Reader) (source.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceSimulated:
		return &source.Simulated{
			DeviceID: cfg.Source.DeviceID,
			Interval: cfg.Source.Interval,
		}, nil

	case config.SourceStdin:
		return &source.Lines{Label: "stdin", Reader: stdin}, nil

	case config.SourceFile:
		if cfg.Source.Path == "" {
			return nil, fmt.Errorf("file source: no path configured")
		}
		f, err := os.Open(cfg.Source.Path)
		if err != nil {
			return nil, fmt.Errorf("file source: %w", err)
		}
		return &fileSource{Lines: source.Lines{Label: cfg.Source.Path, Reader: f}, file: f}, nil

	case config.SourceCommand:
		return &source.Command{
			Argv:     cfg.Source.Command,
			Interval: cfg.Source.Interval,
		}, nil

	case config.SourceMQTT:
		return &source.MQTT{Options: source.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      cfg.MQTT.QoS,
		}}, nil

	case config.SourceBLE:
		return &source.BLE{
			Scanner: o2ring.Scanner{
				ScanDuration: cfg.BLE.ScanDuration,
				Retries:      cfg.BLE.Retries,
				NamePrefix:   cfg.BLE.NamePrefix,
			},
			Interval: cfg.Source.Interval,
		}, nil
	}
	return nil, config.ValidateKind(cfg.Source.Kind)
}
