// Package exporter publishes monitor statistics as Prometheus metrics.
//
// The exporter is a consumer like any other: it subscribes to stats_update
// and alert events and keeps the latest snapshot. Totals are exposed as
// counter functions reading that snapshot, so a scrape never blocks on the
// monitor.
package exporter

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rileyhilliard/connmon/internal/monitor"
)

const namespace = "connmon"

// Exporter holds the connmon metric set on its own registry.
type Exporter struct {
	registry *prometheus.Registry

	connected       prometheus.Gauge
	uptime          prometheus.Gauge
	errorRate       prometheus.Gauge
	messagesPerSec  prometheus.Gauge
	successRate     prometheus.Gauge
	responseSeconds *prometheus.GaugeVec
	pingSeconds     *prometheus.GaugeVec
	memoryMB        prometheus.Gauge
	cpuPercent      prometheus.Gauge
	messageTypes    *prometheus.GaugeVec
	alerts          *prometheus.CounterVec
	updates         prometheus.Counter

	mu   sync.Mutex
	last monitor.StatsSnapshot
}

// New creates an exporter. constLabels are attached to every metric, which
// is how the session id and region end up on each series.
func New(constLabels prometheus.Labels) *Exporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	e := &Exporter{registry: reg}

	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help, ConstLabels: constLabels})
	}

	e.connected = gauge("connected", "1 while the transport reports connected")
	e.uptime = gauge("uptime_seconds", "Seconds since the aggregator started")
	e.errorRate = gauge("error_rate", "Errors divided by messages")
	e.messagesPerSec = gauge("messages_per_second", "Messages divided by uptime")
	e.successRate = gauge("connection_success_rate", "Successful connects divided by attempts")
	e.memoryMB = gauge("process_memory_mb", "Resident memory of the monitor process")
	e.cpuPercent = gauge("process_cpu_percent", "CPU usage of the monitor process")

	e.responseSeconds = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "response_time_seconds", ConstLabels: constLabels,
		Help: "Health check latency over the recent sample window",
	}, []string{"stat"})
	e.pingSeconds = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "ping_time_seconds", ConstLabels: constLabels,
		Help: "Keepalive send latency over the recent sample window",
	}, []string{"stat"})
	e.messageTypes = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "message_types", ConstLabels: constLabels,
		Help: "Messages counted per type",
	}, []string{"type"})

	e.alerts = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "alerts_total", ConstLabels: constLabels,
		Help: "Alerts raised, by type",
	}, []string{"type"})
	e.updates = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "stats_updates_total", ConstLabels: constLabels,
		Help: "Stats updates received from the monitor",
	})

	counter := func(name, help string, read func(monitor.StatsSnapshot) uint64) {
		f.NewCounterFunc(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help, ConstLabels: constLabels},
			func() float64 {
				e.mu.Lock()
				defer e.mu.Unlock()
				return float64(read(e.last))
			})
	}
	counter("messages_total", "Messages counted by the monitor", func(s monitor.StatsSnapshot) uint64 { return s.TotalMessages })
	counter("errors_total", "Errors counted by the monitor", func(s monitor.StatsSnapshot) uint64 { return s.TotalErrors })
	counter("connection_attempts_total", "Connection attempts", func(s monitor.StatsSnapshot) uint64 { return s.ConnectionAttempts })
	counter("connections_successful_total", "Successful connections", func(s monitor.StatsSnapshot) uint64 { return s.SuccessfulConnections })

	return e
}

// Attach subscribes the exporter to m's consumer events.
func (e *Exporter) Attach(m *monitor.Monitor) {
	m.AddEventHandler(monitor.EventStatsUpdate, e.HandleEvent)
	m.AddEventHandler(monitor.EventAlert, e.HandleEvent)
}

// HandleEvent is a monitor.EventHandler.
func (e *Exporter) HandleEvent(_ context.Context, ev monitor.Event) error {
	switch ev := ev.(type) {
	case monitor.StatsUpdate:
		e.Observe(ev.Stats)
	case monitor.AlertRaised:
		e.alerts.WithLabelValues(string(ev.Alert.Kind)).Inc()
	}
	return nil
}

// Observe updates every gauge from s.
func (e *Exporter) Observe(s monitor.StatsSnapshot) {
	e.mu.Lock()
	e.last = s
	e.mu.Unlock()

	e.updates.Inc()
	e.connected.Set(boolToFloat(s.IsConnected))
	e.uptime.Set(s.Uptime)
	e.errorRate.Set(s.ErrorRate)
	e.messagesPerSec.Set(s.MessagesPerSecond)
	e.successRate.Set(s.ConnectionSuccessRate)

	if r := s.ResponseStats; r != nil {
		e.responseSeconds.WithLabelValues("avg").Set(r.Avg)
		e.responseSeconds.WithLabelValues("min").Set(r.Min)
		e.responseSeconds.WithLabelValues("max").Set(r.Max)
		e.responseSeconds.WithLabelValues("median").Set(r.Median)
	}
	if p := s.PingStats; p != nil {
		e.pingSeconds.WithLabelValues("avg").Set(p.Avg)
		e.pingSeconds.WithLabelValues("min").Set(p.Min)
		e.pingSeconds.WithLabelValues("max").Set(p.Max)
	}
	if sys := s.SystemStats; sys != nil {
		e.memoryMB.Set(sys.MemoryMB)
		e.cpuPercent.Set(sys.CPUPercent)
	}
	for kind, n := range s.MessageTypes {
		e.messageTypes.WithLabelValues(kind).Set(float64(n))
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the metrics in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
