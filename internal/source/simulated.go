package source

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/luki/o2ring/internal/feed"
	"github.com/luki/o2ring/internal/reading"
)

// Simulated emits random but plausible readings on a fixed interval.
type Simulated struct {
	DeviceID string
	Interval time.Duration
	Rand     *rand.Rand // nil uses the global generator
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Run(ctx context.Context, sink feed.Sink) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	sink.Deliver(feed.StateEvent(feed.StateConnected, "Connected (Simulation Mode)", nil))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sink.Deliver(feed.ReadingEvent(s.Next(), time.Now()))
		select {
		case <-ctx.Done():
			sink.Deliver(feed.StateEvent(feed.StateDisconnected, "Simulation stopped", nil))
			return nil
		case <-ticker.C:
		}
	}
}

// Next generates one reading.
func (s *Simulated) Next() reading.Reading {
	id := s.DeviceID
	if id == "" {
		id = "0098"
	}
	return reading.Reading{
		DeviceID:       id,
		SpO2:           s.between(90, 100),
		HeartRate:      s.between(60, 100),
		PerfusionIndex: s.between(10, 50),
		Motion:         s.between(0, 3),
		BatteryPercent: s.between(0, 100),
	}
}

// between returns a uniform integer in [lo, hi].
func (s *Simulated) between(lo, hi int) int {
	if s.Rand != nil {
		return lo + s.Rand.IntN(hi-lo+1)
	}
	return lo + rand.IntN(hi-lo+1)
}
