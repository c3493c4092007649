package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/connmon/internal/errors"
	"github.com/rileyhilliard/connmon/internal/events"
	"github.com/rileyhilliard/connmon/internal/logger"
	"github.com/rileyhilliard/connmon/internal/transport"
)

// Defaults for Options.
const (
	DefaultInterval    = 5 * time.Second
	DefaultPingPayload = `42["ps"]`
)

// State is the monitor's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateMonitoring
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateMonitoring:
		return "monitoring"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Monitor. Zero values fall back to defaults.
type Options struct {
	Session     transport.Session
	Factory     transport.Factory
	Interval    time.Duration
	PingPayload string
	Thresholds  AlertThresholds
	Limits      Limits
	System      SystemMetricsProvider
	Clock       Clock
	Logger      logger.Logger
}

// Monitor probes one transport on a fixed interval and publishes
// statistics and alerts.
type Monitor struct {
	opts Options
	log  logger.Logger
	agg  *Aggregator

	consumers *events.Dispatcher[EventKind, Event]
	lifecycle *events.Dispatcher[transport.EventKind, transport.Event]

	mu      sync.Mutex
	state   State
	client  transport.Transport
	cancel  context.CancelFunc
	done    chan struct{}
	stopGen uint64

	// startGen tags the lifecycle callbacks registered by each Start so a
	// transport reused across restarts is only counted once.
	startGen uint64
	// abortConnect and settled are set while Start is connecting.
	abortConnect context.CancelFunc
	settled      chan struct{}
}

// New creates an idle monitor. Options.Factory is required.
func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.PingPayload == "" {
		opts.PingPayload = DefaultPingPayload
	}
	if opts.Thresholds == (AlertThresholds{}) {
		opts.Thresholds = DefaultAlertThresholds()
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	if opts.System == nil {
		opts.System = NoopSystemMetrics{}
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Session.Region == "" {
		opts.Session.Region = transport.RegionDemo
	}
	log := logger.OrDefault(opts.Logger)

	m := &Monitor{
		opts:      opts,
		log:       log,
		agg:       NewAggregator(opts.Session.Region, opts.Limits, opts.Clock),
		consumers: events.NewDispatcher[EventKind, Event]("monitor", log),
		lifecycle: events.NewDispatcher[transport.EventKind, transport.Event]("lifecycle", log),
	}

	for _, k := range transport.EventKinds {
		m.lifecycle.Register(k, func(_ context.Context, ev transport.Event) error {
			m.agg.RecordLifecycle(ev)
			if ev.Kind == transport.EventAuthError {
				m.log.Warn("authentication rejected: %s", ev.Detail)
			}
			return nil
		})
	}
	return m
}

// AddEventHandler registers h for consumer events of the given kind.
func (m *Monitor) AddEventHandler(kind EventKind, h EventHandler) {
	m.consumers.Register(kind, h)
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the session this monitor watches.
func (m *Monitor) Session() transport.Session {
	return m.opts.Session
}

// Interval returns the cycle interval.
func (m *Monitor) Interval() time.Duration {
	return m.opts.Interval
}

// Start connects the transport and launches the cycle goroutine. It
// returns an error when the monitor is not idle or the connection cannot
// be established; in both cases the monitor is left idle.
func (m *Monitor) Start(ctx context.Context, persistent bool) error {
	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return errors.New(errors.ErrConnect,
			fmt.Sprintf("Monitor is already %s", state),
			"Stop the monitor before starting it again")
	}
	m.state = StateConnecting
	gen := m.stopGen
	m.startGen++
	started := m.startGen
	connectCtx, abort := context.WithCancel(ctx)
	settled := make(chan struct{})
	m.abortConnect, m.settled = abort, settled
	m.mu.Unlock()

	defer func() {
		abort()
		m.mu.Lock()
		m.abortConnect, m.settled = nil, nil
		m.mu.Unlock()
		close(settled)
	}()

	session := m.opts.Session
	session.Persistent = persistent

	client, err := m.opts.Factory(session)
	if err != nil {
		m.agg.RecordError(ErrorKindStart, errors.Summarize(err))
		m.setState(StateIdle)
		return errors.WrapWithCode(err, errors.ErrConnect,
			"Could not create transport",
			"Check the transport settings in your config")
	}

	for _, k := range transport.EventKinds {
		client.AddEventCallback(k, func(ctx context.Context, ev transport.Event) error {
			if !m.isCurrentStart(started) {
				return nil
			}
			m.lifecycle.Emit(ctx, ev.Kind, ev)
			return nil
		})
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	m.agg.RecordConnectAttempt()
	began := m.opts.Clock.Now()
	ok, err := client.Connect(connectCtx)
	elapsed := m.opts.Clock.Now().Sub(began)
	connected := ok && err == nil

	if connected {
		m.agg.RecordConnectResult(true, elapsed)
	} else {
		m.agg.RecordConnectResult(false, 0)
	}

	m.mu.Lock()
	if m.stopGen != gen {
		// Stop ran while we were connecting; its cancellation is not an error.
		m.state = StateIdle
		m.mu.Unlock()
		client.Disconnect(context.WithoutCancel(ctx))
		return errors.New(errors.ErrConnect, "Monitor stopped while connecting", "")
	}
	if !connected {
		m.state = StateIdle
		m.mu.Unlock()
		if err != nil {
			m.agg.RecordError(ErrorKindStart, errors.Summarize(err))
			m.log.Error("connect failed: %v", errors.Summarize(err))
			return errors.WrapWithCode(err, errors.ErrConnect,
				"Connection attempt failed",
				"Check the session id and that the endpoint is reachable")
		}
		m.log.Warn("connect refused for session %s", session.ID)
		return errors.New(errors.ErrConnect,
			"Connection refused by every endpoint",
			"Check the session id and region")
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	m.cancel, m.done = cancel, done
	m.state = StateMonitoring
	m.mu.Unlock()

	m.log.Info("connected in %s, monitoring every %s", elapsed.Round(time.Millisecond), m.opts.Interval)
	go m.run(loopCtx, done)
	return nil
}

// Stop cancels the cycle goroutine, waits for it to exit, and disconnects
// the transport. It is safe to call repeatedly and before Start.
//
// A Stop issued while Start is connecting aborts the attempt and waits for
// Start to tear the transport down, so the monitor is Idle on return. If ctx
// ends first, Stop returns early and the state reaches Idle once the
// connect attempt gives up.
func (m *Monitor) Stop(ctx context.Context) {
	m.mu.Lock()
	m.stopGen++
	if m.state == StateConnecting {
		abort, settled := m.abortConnect, m.settled
		m.mu.Unlock()
		abort()
		select {
		case <-settled:
		case <-ctx.Done():
		}
		return
	}
	cancel, done, client := m.cancel, m.done, m.client
	m.cancel, m.done = nil, nil
	if m.state == StateMonitoring {
		m.state = StateStopping
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if client != nil {
		client.Disconnect(ctx)
	}

	m.mu.Lock()
	if m.state == StateStopping {
		m.state = StateIdle
	}
	m.mu.Unlock()
}

// Stats returns the real-time statistics.
func (m *Monitor) Stats() StatsSnapshot {
	return m.agg.Snapshot(m.isConnected())
}

// ConnectionMetrics returns the connection history, oldest first.
func (m *Monitor) ConnectionMetrics() []ConnectionMetricRecord {
	return m.agg.ConnectionMetrics()
}

// PerformanceSnapshots returns the snapshot history, oldest first.
func (m *Monitor) PerformanceSnapshots() []PerformanceSnapshot {
	return m.agg.PerformanceSnapshots()
}

// ErrorLog returns the error history, oldest first.
func (m *Monitor) ErrorLog() []ErrorRecord {
	return m.agg.ErrorLog()
}

// ResponseTimes returns health-check latency samples in seconds.
func (m *Monitor) ResponseTimes() []float64 {
	return m.agg.ResponseTimes()
}

// PingTimes returns keepalive send latency samples in seconds.
func (m *Monitor) PingTimes() []float64 {
	return m.agg.PingTimes()
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Monitor) isCurrentStart(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startGen == gen
}

func (m *Monitor) currentClient() transport.Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

func (m *Monitor) isConnected() bool {
	c := m.currentClient()
	return c != nil && c.IsConnected()
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		m.runCycle(ctx)

		timer := time.NewTimer(m.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runCycle performs one snapshot, health check, ping, and emit pass.
// A panic anywhere inside is recorded and swallowed.
func (m *Monitor) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("cycle panicked: %v", r)
			m.agg.RecordError(ErrorKindCycle, msg)
			m.log.Error("%s", msg)
		}
	}()

	client := m.currentClient()
	if client == nil {
		return
	}

	m.collectSnapshot(ctx, client)
	if m.checkHealth(ctx, client) {
		m.measurePing(ctx, client)
	}
	if ctx.Err() != nil {
		return
	}
	m.emit(ctx)
}

func (m *Monitor) collectSnapshot(ctx context.Context, client transport.Transport) {
	sample, err := m.opts.System.Sample(ctx)
	if err != nil {
		m.log.Debug("system metrics unavailable: %v", err)
		sample = SystemSample{}
	}
	m.agg.CollectSnapshot(sample, client.IsConnected())
}

// checkHealth probes the transport and reports whether the ping step
// should run.
func (m *Monitor) checkHealth(ctx context.Context, client transport.Transport) bool {
	if !client.IsConnected() {
		m.agg.RecordHealth(StatusDisconnected, 0)
		return false
	}

	began := m.opts.Clock.Now()
	rec, err := client.GetBalance(ctx)
	elapsed := m.opts.Clock.Now().Sub(began)

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		wrapped := errors.WrapWithCode(err, errors.ErrHealth, "Health check failed", "")
		m.agg.RecordError(ErrorKindHealthCheck, wrapped.Summary())
		m.agg.RecordHealth(StatusError, 0)
		m.log.Warn("%s", wrapped.Summary())
		return true
	}

	status := StatusHealthy
	if rec == nil {
		status = StatusUnhealthy
	}
	m.agg.RecordHealth(status, elapsed)
	return true
}

// measurePing times one keepalive send. Only the send is timed; no
// reply is awaited, so the sample is send latency rather than round trip.
func (m *Monitor) measurePing(ctx context.Context, client transport.Transport) {
	if !client.IsConnected() {
		return
	}

	began := m.opts.Clock.Now()
	sent, err := client.SendMessage(ctx, m.opts.PingPayload)
	elapsed := m.opts.Clock.Now().Sub(began)

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		wrapped := errors.Wrap(err, "Keepalive send failed")
		m.agg.RecordError(ErrorKindPing, wrapped.Summary())
		m.log.Warn("%s", wrapped.Summary())
		return
	}
	if !sent {
		m.log.Debug("keepalive not accepted by transport")
	}
	m.agg.RecordPing(elapsed)
}

func (m *Monitor) emit(ctx context.Context) {
	stats := m.Stats()
	m.consumers.Emit(ctx, EventStatsUpdate, StatsUpdate{Stats: stats})

	for _, a := range EvaluateAlerts(stats, m.opts.Thresholds) {
		m.log.Debug("alert %s: %s", a.Kind, a.Message)
		m.consumers.Emit(ctx, EventAlert, AlertRaised{Alert: a})
	}
}
