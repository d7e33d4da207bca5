package history

import (
	"testing"

	"github.com/luki/o2ring/internal/gauge"
	"github.com/luki/o2ring/internal/reading"
)

func sample(spo2, hr int) reading.Reading {
	return reading.Reading{DeviceID: "0098", SpO2: spo2, HeartRate: hr, PerfusionIndex: 30, Motion: 1, BatteryPercent: 80}
}

func TestSessionRollingWindow(t *testing.T) {
	s := NewSession(5)
	for i := 0; i < 7; i++ {
		s.Record(sample(90+i, 60))
	}

	st := s.Get(gauge.SpO2)
	if st == nil {
		t.Fatal("no SpO2 stats")
	}
	if st.Count != 7 {
		t.Errorf("Count: got %d, want 7", st.Count)
	}
	// Lo and Peak cover the whole session, Avg only the window (92..96).
	if st.Lo != 90 {
		t.Errorf("Lo: got %d, want 90", st.Lo)
	}
	if st.Peak != 96 {
		t.Errorf("Peak: got %d, want 96", st.Peak)
	}
	if st.Avg() != 94.0 {
		t.Errorf("Avg(): got %f, want 94.0", st.Avg())
	}
}

func TestSessionTracksEveryMetric(t *testing.T) {
	s := NewSession(10)
	s.Record(sample(97, 70))
	s.Record(sample(95, 110))

	for _, m := range gauge.Metrics {
		if s.Get(m) == nil {
			t.Errorf("missing stats for %s", m)
		}
	}
	hr := s.Get(gauge.HeartRate)
	if hr.Lo != 70 || hr.Peak != 110 || hr.Avg() != 90 {
		t.Errorf("hr = %+v avg %f", hr, hr.Avg())
	}
	if b := s.Get(gauge.Battery); b.Lo != 80 || b.Peak != 80 {
		t.Errorf("battery = %+v", b)
	}
}

func TestSessionReset(t *testing.T) {
	s := NewSession(0)
	if s.window != 1 {
		t.Errorf("window: got %d, want 1", s.window)
	}
	s.Record(sample(97, 70))
	s.Reset()
	if s.Get(gauge.SpO2) != nil {
		t.Error("Reset did not drop stats")
	}
}

func TestEmptyStatAvg(t *testing.T) {
	if avg := newStat(3).Avg(); avg != 0 {
		t.Errorf("empty Avg = %f", avg)
	}
}
