// Package gauge classifies vital-sign values into alert levels and renders
// them with lipgloss colours, including a small scale bar for percentages.
package gauge

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Metric identifies one tracked field of a reading.
type Metric string

const (
	SpO2           Metric = "spo2"
	HeartRate      Metric = "hr"
	PerfusionIndex Metric = "pi"
	Motion         Metric = "motion"
	Battery        Metric = "battery"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{SpO2, HeartRate, PerfusionIndex, Motion, Battery}

// Level is an alert level.
type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelCrit
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelCrit:
		return "crit"
	default:
		return "ok"
	}
}

// Classify returns the alert level for v.
func Classify(m Metric, v int) Level {
	switch m {
	case SpO2:
		switch {
		case v < 90:
			return LevelCrit
		case v < 94:
			return LevelWarn
		}
	case HeartRate:
		switch {
		case v < 40 || v > 150:
			return LevelCrit
		case v < 50 || v > 120:
			return LevelWarn
		}
	case Battery:
		switch {
		case v < 10:
			return LevelCrit
		case v < 20:
			return LevelWarn
		}
	case Motion:
		if v >= 3 {
			return LevelWarn
		}
	}
	return LevelOK
}

// Color returns the colour for a level.
func Color(l Level) lipgloss.Color {
	switch l {
	case LevelCrit:
		return lipgloss.Color("196") // red
	case LevelWarn:
		return lipgloss.Color("220") // yellow
	default:
		return lipgloss.Color("78") // soft green
	}
}

// RenderValue renders v with its unit, coloured by level. Critical values
// are bold.
func RenderValue(m Metric, v int, unit string) string {
	l := Classify(m, v)
	style := lipgloss.NewStyle().Foreground(Color(l))
	if l == LevelCrit {
		style = style.Bold(true)
	}
	return style.Render(fmt.Sprintf("%d%s", v, unit))
}

// RenderScale renders a bar showing v's position between lo and hi.
func RenderScale(m Metric, v, lo, hi, width int) string {
	if width <= 0 {
		return ""
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	filled := (v - lo) * width / span
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	on := lipgloss.NewStyle().Foreground(Color(Classify(m, v)))
	off := lipgloss.NewStyle().Foreground(lipgloss.Color("236"))

	var sb strings.Builder
	sb.WriteString(on.Render(strings.Repeat("█", filled)))
	sb.WriteString(off.Render(strings.Repeat("·", width-filled)))
	return sb.String()
}
