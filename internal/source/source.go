// Package source produces feed events from the places an O2Ring reading can
// come from: a simulator, a stream of status lines, an external bridge
// process, an MQTT topic, or the ring itself over BLE.
package source

import (
	"context"
	"time"

	"github.com/luki/o2ring/internal/feed"
)

const (
	// DefaultInterval is the reading cadence of the ring and the simulator.
	DefaultInterval = 2 * time.Second

	maxBackoff = 30 * time.Second
)

// Source emits events into sink until ctx is cancelled or it runs out of
// input.
type Source interface {
	Name() string
	Run(ctx context.Context, sink feed.Sink) error
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultInterval
	}
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// sleep waits for d or until ctx is done, reporting whether the wait
// completed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
