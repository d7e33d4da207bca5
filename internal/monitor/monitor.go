// Package monitor implements the live O2Ring label grid using BubbleTea.
// Each metric gets a colour-coded value and session statistics, with a
// status line underneath reporting what the source is doing.
package monitor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/o2ring/internal/feed"
	"github.com/luki/o2ring/internal/gauge"
	"github.com/luki/o2ring/internal/history"
	"github.com/luki/o2ring/internal/reading"
)

const (
	clockInterval = 1 * time.Second
	historySize   = 1800 // one hour at the ring's 2s cadence
)

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

type eventMsg feed.Event

type sourceClosedMsg struct{}

// ── Model ────────────────────────────────────────────────────────────

// Options configure the monitor.
type Options struct {
	Events     <-chan feed.Event
	SourceName string
}

// Model is the BubbleTea model for the live monitor.
type Model struct {
	events     <-chan feed.Event
	sourceName string

	reading    reading.Reading
	hasReading bool
	charge     reading.Charge
	rangeErr   error

	status      string
	statusLevel gauge.Level
	failures    int
	closed      bool

	history   *history.Session
	keys      keyMap
	help      help.Model
	width     int
	height    int
	lastPoll  time.Time
	startTime time.Time
	now       time.Time
	paused    bool
}

// New creates the initial model for the live monitor.
func New(opts Options) Model {
	now := time.Now()
	return Model{
		events:     opts.Events,
		sourceName: opts.SourceName,
		status:     "Waiting for data...",
		history:    history.NewSession(historySize),
		keys:       defaultKeyMap(),
		help:       help.New(),
		startTime:  now,
		now:        now,
	}
}

// ── Commands ─────────────────────────────────────────────────────────

func tickCmd() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(events <-chan feed.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return sourceClosedMsg{}
		}
		return eventMsg(e)
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	if m.events == nil {
		return tickCmd()
	}
	return tea.Batch(waitForEvent(m.events), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Reset):
			m.history.Reset()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case eventMsg:
		if !m.paused {
			m = m.apply(feed.Event(msg))
		}
		return m, waitForEvent(m.events)

	case sourceClosedMsg:
		m.closed = true
		m.status = "Source stopped"
		m.statusLevel = gauge.LevelWarn
	}

	return m, nil
}

// apply folds one event into the model. Failures never clear the last
// known values.
func (m Model) apply(e feed.Event) Model {
	var pf *reading.ParseFailure
	switch {
	case e.HasReading:
		m.reading = e.Reading
		m.hasReading = true
		m.charge = e.Charge
		m.lastPoll = e.Time
		m.failures = 0
		m.rangeErr = e.Reading.Validate()
		m.history.Record(e.Reading)
		m.status = orText(e.Status, "Connected - Receiving Data")
		m.statusLevel = gauge.LevelOK
		if m.rangeErr != nil {
			m.status += " (" + m.rangeErr.Error() + ")"
			m.statusLevel = gauge.LevelWarn
		}

	case errors.As(e.Err, &pf):
		m.failures++
		m.status = "No data: unrecognised status line"
		if m.hasReading {
			m.status += ", showing last known values"
		}
		m.statusLevel = gauge.LevelWarn

	case e.Err != nil:
		m.failures = 0
		m.status = fmt.Sprintf("%s: %v", orText(e.Status, "Error"), e.Err)
		m.statusLevel = gauge.LevelCrit

	default:
		m.failures = 0
		m.status = orText(e.Status, e.State.String())
		m.statusLevel = gauge.LevelOK
		if e.State == feed.StateDisconnected {
			m.statusLevel = gauge.LevelWarn
		}
	}
	return m
}

func orText(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorPaused   = lipgloss.Color("196")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := m.width - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	sections := []string{
		m.renderTitleBar(contentWidth),
		m.renderGrid(contentWidth),
		m.renderStatus(contentWidth),
		m.renderFooter(contentWidth),
	}
	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	lines := strings.Split(content, "\n")
	if m.height > 0 && len(lines) > m.height {
		lines = lines[:m.height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("O2RING MONITOR")

	var statusParts []string

	if m.hasReading {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorLabel).
			Render("O2Ring "+m.reading.DeviceID))
	}
	if m.sourceName != "" {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorDim).
			Render(m.sourceName))
	}

	statusParts = append(statusParts, lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("up %s", fmtDuration(m.now.Sub(m.startTime)))))

	if !m.lastPoll.IsZero() {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorDim).
			Render(m.lastPoll.Format("15:04:05")))
	}

	if m.paused {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorPaused).
			Bold(true).
			Render("PAUSED"))
	}

	if m.closed {
		statusParts = append(statusParts, lipgloss.NewStyle().
			Foreground(colorPaused).
			Render("STOPPED"))
	}

	sep := lipgloss.NewStyle().Foreground(colorDim).Render(" │ ")
	right := strings.Join(statusParts, sep)

	gap := width - lipgloss.Width(logo) - lipgloss.Width(right) - 4
	if gap < 1 {
		gap = 1
	}

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

type gridRow struct {
	metric gauge.Metric
	label  string
	unit   string
	value  int
}

func (m Model) rows() []gridRow {
	r := m.reading
	return []gridRow{
		{gauge.SpO2, "SpO2", "%", r.SpO2},
		{gauge.HeartRate, "HR", " bpm", r.HeartRate},
		{gauge.PerfusionIndex, "Perfusion Index", "", r.PerfusionIndex},
		{gauge.Motion, "Motion", "", r.Motion},
		{gauge.Battery, "Battery", "%", r.BatteryPercent},
	}
}

func (m Model) renderGrid(width int) string {
	const labelW = 17
	const valueW = 10

	labelS := lipgloss.NewStyle().Foreground(colorLabel).Width(labelW)
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

	var lines []string
	for _, row := range m.rows() {
		value := dimS.Render("--" + row.unit)
		if m.hasReading {
			value = gauge.RenderValue(row.metric, row.value, row.unit)
		}
		line := labelS.Render(row.label+":") + lipgloss.NewStyle().Width(valueW).Align(lipgloss.Right).Render(value)

		if st := m.history.Get(row.metric); st != nil {
			line += dimS.Render("   lo") + valS.Render(fmt.Sprintf("%4d", st.Lo)) +
				dimS.Render(" avg") + valS.Render(fmt.Sprintf("%5.1f", st.Avg())) +
				dimS.Render(" pk") + valS.Render(fmt.Sprintf("%4d", st.Peak))
		}

		if row.metric == gauge.Battery && m.hasReading {
			line += "  " + gauge.RenderScale(gauge.Battery, row.value, 0, 100, 10)
			if c := m.charge.String(); c != "" {
				line += dimS.Render(" " + c)
			}
		}
		lines = append(lines, line)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderStatus(width int) string {
	text := "Status: " + m.status
	if m.failures > 1 {
		text += fmt.Sprintf(" (%d in a row)", m.failures)
	}
	return lipgloss.NewStyle().
		Foreground(gauge.Color(m.statusLevel)).
		Width(width).
		Padding(0, 1).
		Render(text)
}

func (m Model) renderFooter(width int) string {
	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(m.help.View(m.keys))
}

func fmtDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
