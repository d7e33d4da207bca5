package feed

import (
	"fmt"
	"io"
	"sync"
)

// PlainSink writes one text row per event, for terminals without TUI
// support or for piping.
type PlainSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlainSink writes rows to w.
func NewPlainSink(w io.Writer) *PlainSink {
	return &PlainSink{w: w}
}

func (p *PlainSink) Deliver(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, FormatRow(e))
}

// FormatRow renders e as a single line.
func FormatRow(e Event) string {
	ts := e.Time.Format("15:04:05")
	switch {
	case e.HasReading:
		r := e.Reading
		batt := fmt.Sprintf("%d%%", r.BatteryPercent)
		if c := e.Charge.String(); c != "" {
			batt += " (" + c + ")"
		}
		return fmt.Sprintf("%s [%s] SpO2: %d%%  HR: %d bpm  Perfusion Index: %d  Motion: %d  Battery: %s",
			ts, r.DeviceID, r.SpO2, r.HeartRate, r.PerfusionIndex, r.Motion, batt)
	case e.Err != nil && e.Line != "":
		return fmt.Sprintf("%s no data: %v", ts, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s status: %s (%v)", ts, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s status: %s", ts, e.Status)
	}
}
