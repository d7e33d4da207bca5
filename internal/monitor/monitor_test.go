package monitor

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luki/o2ring/internal/feed"
	"github.com/luki/o2ring/internal/gauge"
	"github.com/luki/o2ring/internal/reading"
)

var sample = reading.Reading{DeviceID: "0098", SpO2: 96, HeartRate: 99, PerfusionIndex: 34, Motion: 1, BatteryPercent: 100}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok, "Update returned %T", next)
	return nm, cmd
}

func sized(t *testing.T, m Model) Model {
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestViewBeforeData(t *testing.T) {
	m := sized(t, New(Options{SourceName: "simulated"}))
	v := m.View()
	assert.Contains(t, v, "O2RING MONITOR")
	assert.Contains(t, v, "Waiting for data...")
	assert.Contains(t, v, "SpO2:")
	assert.Contains(t, v, "--%")
}

func TestReadingUpdatesGrid(t *testing.T) {
	m := sized(t, New(Options{}))
	m, cmd := update(t, m, eventMsg(feed.ReadingEvent(sample, time.Now())))
	assert.NotNil(t, cmd, "expected the model to keep waiting for events")

	v := m.View()
	for _, want := range []string{"96%", "99 bpm", "34", "100%", "O2Ring 0098", "Connected - Receiving Data"} {
		assert.Contains(t, v, want)
	}

	st := m.history.Get(gauge.SpO2)
	require.NotNil(t, st)
	assert.Equal(t, 1, st.Count)
	assert.Equal(t, 96, st.Lo)
}

func TestParseFailureKeepsLastKnownValues(t *testing.T) {
	m := sized(t, New(Options{}))
	m, _ = update(t, m, eventMsg(feed.ReadingEvent(sample, time.Now())))

	_, err := reading.ParseLine("[O2Ring 0098] SpO2 96 HR 99 bpm")
	m, _ = update(t, m, eventMsg(feed.Event{Time: time.Now(), Line: "x", Err: err}))
	m, _ = update(t, m, eventMsg(feed.Event{Time: time.Now(), Line: "x", Err: err}))

	assert.True(t, m.hasReading)
	assert.Equal(t, sample, m.reading)
	assert.Equal(t, gauge.LevelWarn, m.statusLevel)
	v := m.View()
	assert.Contains(t, v, "96%")
	assert.Contains(t, v, "last known values")
	assert.Contains(t, v, "(2 in a row)")
}

func TestFailureRunEndsOnOtherEvents(t *testing.T) {
	_, err := reading.ParseLine("garbage")
	failure := eventMsg(feed.Event{Time: time.Now(), Line: "garbage", Err: err})

	for _, next := range []feed.Event{
		feed.StateEvent(feed.StateError, "Source failed", errors.New("exit status 1")),
		feed.StateEvent(feed.StateScanning, "Restarting in 2s", nil),
	} {
		m := sized(t, New(Options{}))
		m, _ = update(t, m, failure)
		m, _ = update(t, m, failure)
		require.Equal(t, 2, m.failures)

		m, _ = update(t, m, eventMsg(next))
		assert.Equal(t, 0, m.failures)
		assert.NotContains(t, m.View(), "in a row")
	}
}

func TestOutOfRangeIsFlagged(t *testing.T) {
	m := sized(t, New(Options{}))
	odd := sample
	odd.SpO2 = 120
	m, _ = update(t, m, eventMsg(feed.ReadingEvent(odd, time.Now())))

	assert.Error(t, m.rangeErr)
	assert.Contains(t, m.status, "out of range")
	assert.Equal(t, 120, m.reading.SpO2)
}

func TestSourceErrorStatus(t *testing.T) {
	m := New(Options{})
	m, _ = update(t, m, eventMsg(feed.StateEvent(feed.StateError, "No device found", errors.New("timeout"))))
	assert.Equal(t, "No device found: timeout", m.status)
	assert.Equal(t, gauge.LevelCrit, m.statusLevel)

	m, _ = update(t, m, eventMsg(feed.StateEvent(feed.StateDisconnected, "Device disconnected", nil)))
	assert.Equal(t, "Device disconnected", m.status)
	assert.Equal(t, gauge.LevelWarn, m.statusLevel)
}

func TestPauseFreezesDisplay(t *testing.T) {
	m := New(Options{})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	require.True(t, m.paused)

	m, cmd := update(t, m, eventMsg(feed.ReadingEvent(sample, time.Now())))
	assert.False(t, m.hasReading)
	assert.NotNil(t, cmd, "paused model must keep draining events")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	assert.False(t, m.paused)
}

func TestResetClearsStats(t *testing.T) {
	m := New(Options{})
	m, _ = update(t, m, eventMsg(feed.ReadingEvent(sample, time.Now())))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Nil(t, m.history.Get(gauge.SpO2))
	assert.True(t, m.hasReading)
}

func TestQuit(t *testing.T) {
	m := New(Options{})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan feed.Event, 1)
	ch <- feed.ReadingEvent(sample, time.Now())
	msg := waitForEvent(ch)()
	ev, ok := msg.(eventMsg)
	require.True(t, ok)
	assert.Equal(t, sample, ev.Reading)

	close(ch)
	assert.Equal(t, sourceClosedMsg{}, waitForEvent(ch)())
}

func TestSourceClosed(t *testing.T) {
	m := sized(t, New(Options{}))
	m, cmd := update(t, m, sourceClosedMsg{})
	assert.Nil(t, cmd)
	assert.True(t, m.closed)
	assert.True(t, strings.Contains(m.View(), "Source stopped"))
	assert.Contains(t, m.View(), "STOPPED")
}

func TestFmtDuration(t *testing.T) {
	assert.Equal(t, "0m05s", fmtDuration(5*time.Second))
	assert.Equal(t, "1h02m03s", fmtDuration(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "0m00s", fmtDuration(-time.Second))
}
