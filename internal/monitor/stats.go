package monitor

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rileyhilliard/connmon/internal/transport"
)

// Limits sets the capacity of each history buffer.
type Limits struct {
	ConnectionMetrics int
	Snapshots         int
	Errors            int
	ResponseSamples   int
	PingSamples       int
}

// DefaultLimits returns the standard buffer capacities.
func DefaultLimits() Limits {
	return Limits{
		ConnectionMetrics: DefaultConnectionHistory,
		Snapshots:         DefaultSnapshotHistory,
		Errors:            DefaultErrorHistory,
		ResponseSamples:   DefaultSampleHistory,
		PingSamples:       DefaultSampleHistory,
	}
}

// Aggregator owns every counter and history buffer of a monitor and
// derives statistics from them. All methods are safe for concurrent use:
// the cycle goroutine and transport callbacks both write through it.
type Aggregator struct {
	mu     sync.Mutex
	clock  Clock
	region transport.Region
	start  time.Time

	totalMessages         uint64
	totalErrors           uint64
	connectionAttempts    uint64
	successfulConnections uint64
	messageTypes          map[string]uint64
	lastPing              time.Time

	connections   *Ring[ConnectionMetricRecord]
	snapshots     *Ring[PerformanceSnapshot]
	errorLog      *Ring[ErrorRecord]
	responseTimes *Ring[float64]
	pingTimes     *Ring[float64]
}

// NewAggregator creates an aggregator whose uptime starts now.
func NewAggregator(region transport.Region, limits Limits, clock Clock) *Aggregator {
	if clock == nil {
		clock = RealClock()
	}
	return &Aggregator{
		clock:         clock,
		region:        region,
		start:         clock.Now(),
		messageTypes:  make(map[string]uint64),
		connections:   NewRing[ConnectionMetricRecord](limits.ConnectionMetrics),
		snapshots:     NewRing[PerformanceSnapshot](limits.Snapshots),
		errorLog:      NewRing[ErrorRecord](limits.Errors),
		responseTimes: NewRing[float64](limits.ResponseSamples),
		pingTimes:     NewRing[float64](limits.PingSamples),
	}
}

// RecordConnectAttempt counts one call to Connect.
func (a *Aggregator) RecordConnectAttempt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectionAttempts++
}

// RecordConnectResult appends the outcome of a connect attempt.
func (a *Aggregator) RecordConnectResult(ok bool, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ok {
		a.successfulConnections++
		a.appendConnection(StatusConnected, elapsed.Seconds())
		return
	}
	a.appendConnection(StatusFailed, 0)
}

// RecordHealth appends a health-check outcome. HEALTHY and UNHEALTHY
// results also feed the response-time buffer.
func (a *Aggregator) RecordHealth(status ConnectionStatus, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	secs := elapsed.Seconds()
	switch status {
	case StatusHealthy, StatusUnhealthy:
		a.responseTimes.Push(secs)
	default:
		secs = 0
	}
	a.appendConnection(status, secs)
}

// RecordPing stores one keepalive send latency and counts it as a message.
func (a *Aggregator) RecordPing(elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pingTimes.Push(elapsed.Seconds())
	a.totalMessages++
	a.messageTypes["ping"]++
	a.lastPing = a.clock.Now()
}

// RecordError appends to the error log and counts the failure.
func (a *Aggregator) RecordError(kind ErrorKind, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recordErrorLocked(kind, msg)
}

// RecordLifecycle counts a transport lifecycle event. Authentication
// errors count as errors; every other kind counts as a message.
func (a *Aggregator) RecordLifecycle(ev transport.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messageTypes[ev.Kind.String()]++
	if ev.Kind == transport.EventAuthError {
		a.recordErrorLocked(ErrorKindAuth, ev.Detail)
		return
	}
	a.totalMessages++
}

// CollectSnapshot builds a performance snapshot from sys and the current
// counters, stores it, and returns it.
func (a *Aggregator) CollectSnapshot(sys SystemSample, connected bool) PerformanceSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	active := 0
	if connected {
		active = 1
	}
	uptime := a.uptimeLocked()
	snap := PerformanceSnapshot{
		Timestamp:         a.clock.Now(),
		MemoryUsageMB:     sys.MemoryMB,
		CPUPercent:        sys.CPUPercent,
		ActiveConnections: active,
		MessagesPerSecond: perSecond(a.totalMessages, uptime),
		ErrorRate:         ratio(a.totalErrors, a.totalMessages),
		AvgResponseTime:   mean(a.responseTimes.Items()),
	}
	a.snapshots.Push(snap)
	return snap
}

// Snapshot computes the real-time statistics. connected is the
// transport's current flag.
func (a *Aggregator) Snapshot(connected bool) StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	uptime := a.uptimeLocked()
	s := StatsSnapshot{
		Timestamp:             a.clock.Now(),
		Uptime:                uptime.Seconds(),
		UptimeString:          formatUptime(uptime),
		TotalMessages:         a.totalMessages,
		TotalErrors:           a.totalErrors,
		ErrorRate:             ratio(a.totalErrors, a.totalMessages),
		MessagesPerSecond:     perSecond(a.totalMessages, uptime),
		ConnectionAttempts:    a.connectionAttempts,
		SuccessfulConnections: a.successfulConnections,
		ConnectionSuccessRate: ratio(a.successfulConnections, a.connectionAttempts),
		IsConnected:           connected,
		MessageTypes:          make(map[string]uint64, len(a.messageTypes)),
	}
	for k, v := range a.messageTypes {
		s.MessageTypes[k] = v
	}
	if !a.lastPing.IsZero() {
		lp := a.lastPing
		s.LastPingTime = &lp
	}

	if rt := a.responseTimes.Items(); len(rt) > 0 {
		lo, hi := minMax(rt)
		s.ResponseStats = &ResponseStats{Avg: mean(rt), Min: lo, Max: hi, Median: median(rt)}
	}
	if pt := a.pingTimes.Items(); len(pt) > 0 {
		lo, hi := minMax(pt)
		s.PingStats = &PingStats{Avg: mean(pt), Min: lo, Max: hi}
	}
	if snap, ok := a.snapshots.Latest(); ok {
		s.SystemStats = &SystemStats{MemoryMB: snap.MemoryUsageMB, CPUPercent: snap.CPUPercent}
	}
	return s
}

// ConnectionMetrics returns a copy of the connection history, oldest first.
func (a *Aggregator) ConnectionMetrics() []ConnectionMetricRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connections.Items()
}

// PerformanceSnapshots returns a copy of the snapshot history, oldest first.
func (a *Aggregator) PerformanceSnapshots() []PerformanceSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshots.Items()
}

// ErrorLog returns a copy of the error history, oldest first.
func (a *Aggregator) ErrorLog() []ErrorRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errorLog.Items()
}

// ResponseTimes returns the health-check latency samples in seconds.
func (a *Aggregator) ResponseTimes() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.responseTimes.Items()
}

// PingTimes returns the keepalive send latency samples in seconds.
func (a *Aggregator) PingTimes() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pingTimes.Items()
}

// Must be called with a.mu held.
func (a *Aggregator) appendConnection(status ConnectionStatus, secs float64) {
	rec := ConnectionMetricRecord{
		Timestamp:          a.clock.Now(),
		ConnectionDuration: secs,
		MessageCount:       a.totalMessages,
		ErrorCount:         a.totalErrors,
		Region:             a.region,
		Status:             status,
	}
	if last, ok := a.pingTimes.Latest(); ok {
		rec.PingTime = &last
	}
	a.connections.Push(rec)
}

// Must be called with a.mu held.
func (a *Aggregator) recordErrorLocked(kind ErrorKind, msg string) {
	a.totalErrors++
	a.errorLog.Push(ErrorRecord{Timestamp: a.clock.Now(), Kind: kind, Message: msg})
}

func (a *Aggregator) uptimeLocked() time.Duration {
	d := a.clock.Now().Sub(a.start)
	if d < 0 {
		return 0
	}
	return d
}

// ratio divides with the denominator floored at 1.
func ratio(num, den uint64) float64 {
	if den < 1 {
		den = 1
	}
	return float64(num) / float64(den)
}

func perSecond(n uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func minMax(vals []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// formatUptime renders d as H:MM:SS.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
