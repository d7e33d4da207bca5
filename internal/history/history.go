// Package history keeps per-metric session statistics for the readings shown
// in the monitor: the lowest and highest value seen since the last reset and
// an average over a rolling window of recent samples.
package history

import (
	"github.com/luki/o2ring/internal/gauge"
	"github.com/luki/o2ring/internal/reading"
)

// Stat summarises one metric over the session.
type Stat struct {
	Lo, Peak int
	Count    int // samples since the last reset

	window []int
	next   int
	sum    int
}

func newStat(window int) *Stat {
	return &Stat{window: make([]int, 0, window)}
}

func (s *Stat) add(v int) {
	if s.Count == 0 || v < s.Lo {
		s.Lo = v
	}
	if s.Count == 0 || v > s.Peak {
		s.Peak = v
	}
	s.Count++

	if len(s.window) < cap(s.window) {
		s.window = append(s.window, v)
	} else {
		s.sum -= s.window[s.next]
		s.window[s.next] = v
		s.next = (s.next + 1) % len(s.window)
	}
	s.sum += v
}

// Avg is the mean of the samples still in the window.
func (s *Stat) Avg() float64 {
	if len(s.window) == 0 {
		return 0
	}
	return float64(s.sum) / float64(len(s.window))
}

// Session holds a Stat per metric.
type Session struct {
	window int
	stats  map[gauge.Metric]*Stat
}

// NewSession creates an empty session averaging over the last window samples.
func NewSession(window int) *Session {
	if window < 1 {
		window = 1
	}
	return &Session{window: window, stats: make(map[gauge.Metric]*Stat)}
}

// Record adds every metric of r.
func (s *Session) Record(r reading.Reading) {
	for _, m := range gauge.Metrics {
		st, ok := s.stats[m]
		if !ok {
			st = newStat(s.window)
			s.stats[m] = st
		}
		st.add(Value(m, r))
	}
}

// Get returns the stats for m, or nil before the first reading.
func (s *Session) Get(m gauge.Metric) *Stat {
	return s.stats[m]
}

// Reset drops all statistics.
func (s *Session) Reset() {
	s.stats = make(map[gauge.Metric]*Stat)
}

// Value extracts metric m from r.
func Value(m gauge.Metric, r reading.Reading) int {
	switch m {
	case gauge.SpO2:
		return r.SpO2
	case gauge.HeartRate:
		return r.HeartRate
	case gauge.PerfusionIndex:
		return r.PerfusionIndex
	case gauge.Motion:
		return r.Motion
	case gauge.Battery:
		return r.BatteryPercent
	}
	return 0
}
