package exporter

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/connmon/internal/monitor"
)

// value returns the value of the series name{labels}, failing when absent.
func value(t *testing.T, e *Exporter, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := e.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metrics
				}
			}
			switch {
			case m.Gauge != nil:
				return m.GetGauge().GetValue()
			case m.Counter != nil:
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("series %s%v not found", name, labels)
	return 0
}

func sampleStats() monitor.StatsSnapshot {
	return monitor.StatsSnapshot{
		Uptime:                12,
		TotalMessages:         40,
		TotalErrors:           2,
		ErrorRate:             0.05,
		MessagesPerSecond:     3.3,
		ConnectionAttempts:    3,
		SuccessfulConnections: 2,
		ConnectionSuccessRate: 2.0 / 3.0,
		IsConnected:           true,
		MessageTypes:          map[string]uint64{"ping": 30, "connected": 1},
		ResponseStats:         &monitor.ResponseStats{Avg: 0.2, Min: 0.1, Max: 0.4, Median: 0.15},
		PingStats:             &monitor.PingStats{Avg: 0.01, Min: 0.005, Max: 0.02},
		SystemStats:           &monitor.SystemStats{MemoryMB: 48, CPUPercent: 1.5},
	}
}

func TestExporter_Observe(t *testing.T) {
	e := New(prometheus.Labels{"region": "DEMO"})
	e.Observe(sampleStats())

	assert.Equal(t, 1.0, value(t, e, "connmon_connected", nil))
	assert.Equal(t, 12.0, value(t, e, "connmon_uptime_seconds", nil))
	assert.Equal(t, 0.05, value(t, e, "connmon_error_rate", nil))
	assert.Equal(t, 40.0, value(t, e, "connmon_messages_total", nil))
	assert.Equal(t, 2.0, value(t, e, "connmon_errors_total", nil))
	assert.Equal(t, 3.0, value(t, e, "connmon_connection_attempts_total", nil))
	assert.Equal(t, 2.0, value(t, e, "connmon_connections_successful_total", nil))
	assert.Equal(t, 0.4, value(t, e, "connmon_response_time_seconds", map[string]string{"stat": "max"}))
	assert.Equal(t, 0.15, value(t, e, "connmon_response_time_seconds", map[string]string{"stat": "median"}))
	assert.Equal(t, 0.005, value(t, e, "connmon_ping_time_seconds", map[string]string{"stat": "min"}))
	assert.Equal(t, 48.0, value(t, e, "connmon_process_memory_mb", nil))
	assert.Equal(t, 30.0, value(t, e, "connmon_message_types", map[string]string{"type": "ping"}))
	assert.Equal(t, 1.0, value(t, e, "connmon_stats_updates_total", map[string]string{"region": "DEMO"}))
}

func TestExporter_OptionalSectionsAbsent(t *testing.T) {
	e := New(nil)
	e.Observe(monitor.StatsSnapshot{})

	families, err := e.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		assert.NotEqual(t, "connmon_response_time_seconds", mf.GetName(), "no samples, no series")
		assert.NotEqual(t, "connmon_ping_time_seconds", mf.GetName())
	}
	assert.Equal(t, 0.0, value(t, e, "connmon_connected", nil))
}

func TestExporter_HandleEvent(t *testing.T) {
	e := New(nil)
	ctx := context.Background()

	require.NoError(t, e.HandleEvent(ctx, monitor.StatsUpdate{Stats: sampleStats()}))
	require.NoError(t, e.HandleEvent(ctx, monitor.AlertRaised{Alert: monitor.Alert{Kind: monitor.AlertConnectionLost}}))
	require.NoError(t, e.HandleEvent(ctx, monitor.AlertRaised{Alert: monitor.Alert{Kind: monitor.AlertConnectionLost}}))
	require.NoError(t, e.HandleEvent(ctx, monitor.AlertRaised{Alert: monitor.Alert{Kind: monitor.AlertSlowResponse}}))

	assert.Equal(t, 2.0, value(t, e, "connmon_alerts_total", map[string]string{"type": "connection_lost"}))
	assert.Equal(t, 1.0, value(t, e, "connmon_alerts_total", map[string]string{"type": "slow_response"}))
	assert.Equal(t, 40.0, value(t, e, "connmon_messages_total", nil))
}

func TestExporter_Handler(t *testing.T) {
	e := New(prometheus.Labels{"session": "abc"})
	e.Observe(sampleStats())

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `connmon_messages_total{session="abc"} 40`)
	assert.Contains(t, string(body), "# HELP connmon_error_rate")
}
