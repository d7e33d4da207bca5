// Package reading defines a single pulse-oximetry sample from an O2Ring and
// the parser for the ring's fixed-format status line.
package reading

import (
	"fmt"
	"strings"
)

// Reading is one structured sample of the tracked metrics.
type Reading struct {
	DeviceID       string // e.g. "0098"
	SpO2           int    // oxygen saturation, percent
	HeartRate      int    // beats per minute
	PerfusionIndex int    // signal quality, unitless
	Motion         int
	BatteryPercent int
}

// Line renders the reading as a canonical status line.
func (r Reading) Line() string {
	return fmt.Sprintf("[O2Ring %s] SpO2  %d%%, HR  %d bpm, Perfusion Idx  %d, motion   %d, batt  %d%%",
		r.DeviceID, r.SpO2, r.HeartRate, r.PerfusionIndex, r.Motion, r.BatteryPercent)
}

// Charge is the charger state a live ring reports next to its battery level.
type Charge int

const (
	ChargeNone Charge = iota
	ChargeCharging
	ChargeFull
)

func (c Charge) String() string {
	switch c {
	case ChargeCharging:
		return "charging"
	case ChargeFull:
		return "charged"
	default:
		return ""
	}
}

// RangeError lists the fields of a reading that fall outside their
// real-world range.
type RangeError struct {
	Fields []string
}

func (e *RangeError) Error() string {
	return "out of range: " + strings.Join(e.Fields, ", ")
}

// Validate checks the reading against declared ranges. The parser accepts
// any integer, so callers that care about plausibility call this.
func (r Reading) Validate() error {
	var bad []string
	if r.SpO2 < 0 || r.SpO2 > 100 {
		bad = append(bad, fmt.Sprintf("spo2=%d", r.SpO2))
	}
	if r.HeartRate < 0 || r.HeartRate > 300 {
		bad = append(bad, fmt.Sprintf("hr=%d", r.HeartRate))
	}
	if r.PerfusionIndex < 0 {
		bad = append(bad, fmt.Sprintf("pi=%d", r.PerfusionIndex))
	}
	if r.Motion < 0 {
		bad = append(bad, fmt.Sprintf("motion=%d", r.Motion))
	}
	if r.BatteryPercent < 0 || r.BatteryPercent > 100 {
		bad = append(bad, fmt.Sprintf("batt=%d", r.BatteryPercent))
	}
	if len(bad) == 0 {
		return nil
	}
	return &RangeError{Fields: bad}
}
