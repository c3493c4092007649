package dashboard

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/connmon/internal/monitor"
	"github.com/rileyhilliard/connmon/internal/transport"
	"github.com/rileyhilliard/connmon/internal/ui"
)

// DefaultMaxAlerts is how many recent alerts the dashboard keeps.
const DefaultMaxAlerts = 8

// Source is the monitor as seen by the dashboard.
type Source interface {
	Start(ctx context.Context, persistent bool) error
	State() monitor.State
	Session() transport.Session
	Interval() time.Duration
	Stats() monitor.StatsSnapshot
	ResponseTimes() []float64
	PingTimes() []float64
	AddEventHandler(kind monitor.EventKind, h monitor.EventHandler)
}

// statsMsg carries a stats_update event.
type statsMsg struct{ stats monitor.StatsSnapshot }

// alertMsg carries one alert event.
type alertMsg struct{ alert monitor.Alert }

// refreshMsg is a stats pull requested from the keyboard. It is separate
// from statsMsg so it does not re-arm waitForEvent.
type refreshMsg struct{ stats monitor.StatsSnapshot }

// startedMsg reports the result of connecting.
type startedMsg struct{ err error }

// Feed forwards monitor events into the Bubble Tea loop. The channel is
// bounded; when the UI falls behind, events are dropped and counted.
type Feed struct {
	ch      chan tea.Msg
	dropped atomic.Uint64
}

// NewFeed subscribes to src's events.
func NewFeed(src Source, buffer int) *Feed {
	if buffer <= 0 {
		buffer = 64
	}
	f := &Feed{ch: make(chan tea.Msg, buffer)}
	src.AddEventHandler(monitor.EventStatsUpdate, func(_ context.Context, ev monitor.Event) error {
		if u, ok := ev.(monitor.StatsUpdate); ok {
			f.push(statsMsg{stats: u.Stats})
		}
		return nil
	})
	src.AddEventHandler(monitor.EventAlert, func(_ context.Context, ev monitor.Event) error {
		if a, ok := ev.(monitor.AlertRaised); ok {
			f.push(alertMsg{alert: a.Alert})
		}
		return nil
	})
	return f
}

func (f *Feed) push(msg tea.Msg) {
	select {
	case f.ch <- msg:
	default:
		f.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded.
func (f *Feed) Dropped() uint64 {
	return f.dropped.Load()
}

// Options tunes the dashboard.
type Options struct {
	// Persistent is passed to Source.Start.
	Persistent bool
	// Thresholds colors error rate and latency like the alerts do.
	Thresholds monitor.AlertThresholds
	MaxAlerts  int
	Transport  string
	Version    string
}

// Model is the Bubble Tea model for the monitor dashboard.
type Model struct {
	src  Source
	feed *Feed
	opts Options

	spinner    spinner.Model
	connecting bool
	startErr   error

	stats      monitor.StatsSnapshot
	haveStats  bool
	response   []float64
	ping       []float64
	alerts     []monitor.Alert
	alertCount int
	lastUpdate time.Time

	width    int
	height   int
	showHelp bool
	quitting bool
}

// NewModel creates a dashboard for src. If src is already monitoring the
// connect phase is skipped.
func NewModel(src Source, feed *Feed, opts Options) Model {
	if opts.MaxAlerts <= 0 {
		opts.MaxAlerts = DefaultMaxAlerts
	}
	if opts.Thresholds == (monitor.AlertThresholds{}) {
		opts.Thresholds = monitor.DefaultAlertThresholds()
	}
	return Model{
		src:        src,
		feed:       feed,
		opts:       opts,
		spinner:    ui.NewBubbleSpinner(),
		connecting: src.State() != monitor.StateMonitoring,
	}
}

// Init starts the connect phase and begins draining the feed.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForEvent()}
	if m.connecting {
		cmds = append(cmds, m.spinner.Tick, m.startCmd())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case spinner.TickMsg:
		if !m.connecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case startedMsg:
		m.connecting = false
		m.startErr = msg.err

	case statsMsg:
		m.applyStats(msg.stats)
		return m, m.waitForEvent()

	case refreshMsg:
		m.applyStats(msg.stats)

	case alertMsg:
		m.alerts = append(m.alerts, msg.alert)
		if len(m.alerts) > m.opts.MaxAlerts {
			m.alerts = m.alerts[len(m.alerts)-m.opts.MaxAlerts:]
		}
		m.alertCount++
		return m, m.waitForEvent()
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

func (m *Model) applyStats(s monitor.StatsSnapshot) {
	m.stats = s
	m.haveStats = true
	m.response = m.src.ResponseTimes()
	m.ping = m.src.PingTimes()
	m.lastUpdate = time.Now()
}

func (m Model) startCmd() tea.Cmd {
	src, persistent := m.src, m.opts.Persistent
	return func() tea.Msg {
		return startedMsg{err: src.Start(context.Background(), persistent)}
	}
}

// waitForEvent blocks on the feed for the next monitor event.
func (m Model) waitForEvent() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	ch := m.feed.ch
	return func() tea.Msg {
		return <-ch
	}
}

func (m Model) refreshCmd() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		return refreshMsg{stats: src.Stats()}
	}
}
