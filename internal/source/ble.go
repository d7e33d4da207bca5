package source

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/luki/o2ring/internal/feed"
	"github.com/luki/o2ring/internal/o2ring"
)

const maxReadFailures = 3

// BLE polls a ring directly over Bluetooth LE. Only the first matching ring
// found by a scan is used.
type BLE struct {
	Scanner  o2ring.Scanner
	Interval time.Duration
}

func (b *BLE) Name() string { return "ble" }

func (b *BLE) Run(ctx context.Context, sink feed.Sink) error {
	if err := o2ring.OpenAdapter(); err != nil {
		sink.Deliver(feed.StateEvent(feed.StateError, "Bluetooth unavailable", err))
		return err
	}
	defer o2ring.CloseAdapter()

	failures := 0
	for ctx.Err() == nil {
		sink.Deliver(feed.StateEvent(feed.StateScanning, "Scanning for O2Ring devices...", nil))
		found, err := b.Scanner.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			wait := calculateBackoff(failures, b.Interval)
			failures++
			log.WithError(err).Warn("scan failed")
			sink.Deliver(feed.StateEvent(feed.StateError, fmt.Sprintf("No device found, retrying in %s", wait), err))
			if !sleep(ctx, wait) {
				break
			}
			continue
		}

		dev := found[0]
		if err := b.session(ctx, sink, dev); err != nil && ctx.Err() == nil {
			wait := calculateBackoff(failures, b.Interval)
			failures++
			log.WithError(err).WithField("device", dev.Name).Warn("session ended")
			sink.Deliver(feed.StateEvent(feed.StateDisconnected, fmt.Sprintf("Device disconnected, retrying in %s", wait), err))
			if !sleep(ctx, wait) {
				break
			}
			continue
		}
		failures = 0
	}

	sink.Deliver(feed.StateEvent(feed.StateDisconnected, "Disconnected", nil))
	return nil
}

// session connects to one ring and polls it until the connection fails.
func (b *BLE) session(ctx context.Context, sink feed.Sink, dev o2ring.Found) error {
	sink.Deliver(feed.StateEvent(feed.StateConnecting, fmt.Sprintf("Connecting to %s", dev.Name), nil))

	timeout := b.Scanner.ScanDuration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	conn, err := o2ring.Connect(cctx, dev.Addr)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	log.WithFields(log.Fields{"device": dev.Name, "addr": dev.Addr}).Info("connected")
	sink.Deliver(feed.StateEvent(feed.StateConnected, fmt.Sprintf("Connected to %s", dev.Name), nil))

	interval := b.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	id := dev.DeviceID
	if id == "" {
		id = "0000"
	}

	readFailures := 0
	for {
		data, err := conn.ReadSensors(ctx)
		switch {
		case err == nil:
			readFailures = 0
			ev := feed.ReadingEvent(data.Reading(id), time.Now())
			ev.Charge = data.Charge()
			sink.Deliver(ev)
		case ctx.Err() != nil:
			return nil
		default:
			readFailures++
			log.WithError(err).WithField("failures", readFailures).Debug("sensor read failed")
			if readFailures >= maxReadFailures {
				return fmt.Errorf("read sensors: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-conn.Disconnected():
			return fmt.Errorf("%s dropped the connection", dev.Name)
		case <-ticker.C:
		}
	}
}
