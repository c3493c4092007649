package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/connmon/internal/monitor"
	"github.com/rileyhilliard/connmon/internal/transport"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// fakeSource is a scriptable Source.
type fakeSource struct {
	mu       sync.Mutex
	state    monitor.State
	startErr error
	starts   int
	stats    monitor.StatsSnapshot
	response []float64
	ping     []float64
	handlers map[monitor.EventKind][]monitor.EventHandler
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: map[monitor.EventKind][]monitor.EventHandler{}}
}

func (f *fakeSource) Start(context.Context, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr == nil {
		f.state = monitor.StateMonitoring
	}
	return f.startErr
}

func (f *fakeSource) State() monitor.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSource) Session() transport.Session {
	return transport.Session{ID: "sess-1", Region: transport.RegionDemo}
}

func (f *fakeSource) Interval() time.Duration { return 5 * time.Second }
func (f *fakeSource) Stats() monitor.StatsSnapshot { return f.stats }
func (f *fakeSource) ResponseTimes() []float64 { return f.response }
func (f *fakeSource) PingTimes() []float64 { return f.ping }
func (f *fakeSource) AddEventHandler(k monitor.EventKind, h monitor.EventHandler) {
	f.handlers[k] = append(f.handlers[k], h)
}

func (f *fakeSource) emit(ev monitor.Event) {
	for _, h := range f.handlers[ev.Kind()] {
		_ = h(context.Background(), ev)
	}
}

func sampleStats() monitor.StatsSnapshot {
	return monitor.StatsSnapshot{
		UptimeString:          "0:01:05",
		TotalMessages:         42,
		TotalErrors:           1,
		ErrorRate:             1.0 / 42,
		MessagesPerSecond:     0.65,
		ConnectionAttempts:    1,
		ConnectionSuccessRate: 1,
		IsConnected:           true,
		ResponseStats:         &monitor.ResponseStats{Avg: 0.12, Min: 0.1, Max: 0.2, Median: 0.11},
		SystemStats:           &monitor.SystemStats{MemoryMB: 21.5, CPUPercent: 0.7},
	}
}

func TestNewModel(t *testing.T) {
	src := newFakeSource()
	m := NewModel(src, NewFeed(src, 4), Options{})

	assert.True(t, m.connecting)
	assert.Equal(t, DefaultMaxAlerts, m.opts.MaxAlerts)
	assert.Equal(t, monitor.DefaultAlertThresholds(), m.opts.Thresholds)
	assert.NotNil(t, m.Init())

	src.state = monitor.StateMonitoring
	already := NewModel(src, nil, Options{})
	assert.False(t, already.connecting, "a running monitor skips the connect phase")
}

func TestModel_StartCmd(t *testing.T) {
	src := newFakeSource()
	m := NewModel(src, nil, Options{Persistent: true})

	msg := m.startCmd()()
	require.IsType(t, startedMsg{}, msg)
	assert.NoError(t, msg.(startedMsg).err)
	assert.Equal(t, 1, src.starts)

	updated, _ := m.Update(msg)
	assert.False(t, updated.(Model).connecting)
}

func TestModel_StartFailure(t *testing.T) {
	src := newFakeSource()
	m := NewModel(src, nil, Options{})

	updated, _ := m.Update(startedMsg{err: errors.New("refused")})
	view := updated.(Model).View()
	assert.Contains(t, view, "refused")
	assert.Contains(t, view, "Press q to quit")
}

func TestFeed_DeliversAndDrops(t *testing.T) {
	src := newFakeSource()
	feed := NewFeed(src, 2)

	src.emit(monitor.StatsUpdate{Stats: sampleStats()})
	src.emit(monitor.AlertRaised{Alert: monitor.Alert{Kind: monitor.AlertConnectionLost}})
	src.emit(monitor.AlertRaised{Alert: monitor.Alert{Kind: monitor.AlertSlowResponse}})

	assert.Equal(t, uint64(1), feed.Dropped())

	m := NewModel(src, feed, Options{})
	first := m.waitForEvent()()
	require.IsType(t, statsMsg{}, first)
	second := m.waitForEvent()()
	require.IsType(t, alertMsg{}, second)
	assert.Equal(t, monitor.AlertConnectionLost, second.(alertMsg).alert.Kind)
}

func TestModel_StatsAndAlerts(t *testing.T) {
	src := newFakeSource()
	src.response = []float64{0.1, 0.2}
	src.ping = []float64{0.01}
	m := NewModel(src, NewFeed(src, 4), Options{MaxAlerts: 2})

	next, cmd := m.Update(statsMsg{stats: sampleStats()})
	m = next.(Model)
	assert.NotNil(t, cmd, "stats re-arm the feed")
	assert.True(t, m.haveStats)
	assert.Equal(t, []float64{0.1, 0.2}, m.response)
	assert.Equal(t, []float64{0.01}, m.ping)
	assert.False(t, m.lastUpdate.IsZero())

	for _, kind := range []monitor.AlertKind{monitor.AlertHighErrorRate, monitor.AlertSlowResponse, monitor.AlertConnectionLost} {
		next, cmd = m.Update(alertMsg{alert: monitor.Alert{Kind: kind, Message: string(kind)}})
		m = next.(Model)
		assert.NotNil(t, cmd)
	}
	assert.Equal(t, 3, m.alertCount)
	require.Len(t, m.alerts, 2)
	assert.Equal(t, monitor.AlertSlowResponse, m.alerts[0].Kind)
	assert.Equal(t, monitor.AlertConnectionLost, m.alerts[1].Kind)
}

func TestModel_Keys(t *testing.T) {
	src := newFakeSource()
	src.stats = sampleStats()
	m := NewModel(src, nil, Options{})
	m.alerts = []monitor.Alert{{Kind: monitor.AlertSlowResponse}}
	m.alertCount = 1

	key := func(s string) tea.KeyMsg {
		if s == "esc" {
			return tea.KeyMsg{Type: tea.KeyEsc}
		}
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}

	next, _ := m.Update(key("?"))
	m = next.(Model)
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	next, _ = m.Update(key("esc"))
	m = next.(Model)
	assert.False(t, m.showHelp)

	next, _ = m.Update(key("c"))
	m = next.(Model)
	assert.Empty(t, m.alerts)
	assert.Zero(t, m.alertCount)

	next, cmd := m.Update(key("r"))
	m = next.(Model)
	require.NotNil(t, cmd)
	refreshed := cmd()
	require.IsType(t, refreshMsg{}, refreshed)
	next, cmd = m.Update(refreshed)
	m = next.(Model)
	assert.Nil(t, cmd, "refresh does not re-arm the feed")
	assert.Equal(t, uint64(42), m.stats.TotalMessages)

	next, cmd = m.Update(key("q"))
	m = next.(Model)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestModel_View(t *testing.T) {
	src := newFakeSource()
	m := NewModel(src, nil, Options{Transport: "mock", Version: "v0.1.0"})

	view := m.View()
	assert.Contains(t, view, "connmon v0.1.0")
	assert.Contains(t, view, "Connecting to DEMO via mock")

	next, _ := m.Update(startedMsg{})
	m = next.(Model)
	assert.Contains(t, m.View(), "Waiting for the first cycle")

	next, _ = m.Update(tea.WindowSizeMsg{Width: 160, Height: 50})
	m = next.(Model)
	next, _ = m.Update(statsMsg{stats: sampleStats()})
	m = next.(Model)
	next, _ = m.Update(alertMsg{alert: monitor.Alert{Kind: monitor.AlertConnectionLost, Message: "Connection lost"}})
	m = next.(Model)

	view = m.View()
	for _, want := range []string{
		"Connection", "connected", "0:01:05",
		"Traffic", "42", "0.65 msg/s",
		"Health check", "120ms", "100ms / 200ms",
		"Ping", "no samples yet",
		"Process", "21.5 MB",
		"Alerts (1)", "connection_lost", "Connection lost",
		"updated just now",
	} {
		assert.Contains(t, view, want)
	}
}

func TestFormatAgo(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "just now"},
		{900 * time.Millisecond, "just now"},
		{time.Second, "1s ago"},
		{12 * time.Second, "12s ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAgo(tt.d))
	}
}

func TestRateStyle(t *testing.T) {
	assert.Equal(t, HealthyStyle.GetForeground(), RateStyle(0.01, 0.1).GetForeground())
	assert.Equal(t, WarningStyle.GetForeground(), RateStyle(0.06, 0.1).GetForeground())
	assert.Equal(t, CriticalStyle.GetForeground(), RateStyle(0.2, 0.1).GetForeground())
}
