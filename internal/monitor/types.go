package monitor

import (
	"context"
	"time"

	"github.com/rileyhilliard/connmon/internal/transport"
)

// ConnectionStatus classifies one connection-metric record.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusFailed       ConnectionStatus = "FAILED"
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
	StatusHealthy      ConnectionStatus = "HEALTHY"
	StatusUnhealthy    ConnectionStatus = "UNHEALTHY"
	StatusError        ConnectionStatus = "ERROR"
)

// ConnectionMetricRecord is appended once per connect attempt and once per
// health check. PingTime is the most recent ping sample at record time.
type ConnectionMetricRecord struct {
	Timestamp          time.Time        `json:"timestamp"`
	ConnectionDuration float64          `json:"connection_time"`
	PingTime           *float64         `json:"ping_time,omitempty"`
	MessageCount       uint64           `json:"message_count"`
	ErrorCount         uint64           `json:"error_count"`
	Region             transport.Region `json:"region"`
	Status             ConnectionStatus `json:"status"`
}

// PerformanceSnapshot is collected once per cycle.
type PerformanceSnapshot struct {
	Timestamp         time.Time `json:"timestamp"`
	MemoryUsageMB     float64   `json:"memory_usage_mb"`
	CPUPercent        float64   `json:"cpu_percent"`
	ActiveConnections int       `json:"active_connections"`
	MessagesPerSecond float64   `json:"messages_per_second"`
	ErrorRate         float64   `json:"error_rate"`
	AvgResponseTime   float64   `json:"avg_response_time"`
}

// ErrorKind names the operation that failed.
type ErrorKind string

const (
	// ErrorKindStart is a connection failure during Start.
	ErrorKindStart ErrorKind = "monitoring_start"
	// ErrorKindHealthCheck is a balance probe that returned an error.
	ErrorKindHealthCheck ErrorKind = "health_check"
	// ErrorKindPing is a keepalive send that returned an error.
	ErrorKindPing ErrorKind = "ping_measure"
	// ErrorKindCycle is anything else that broke a cycle.
	ErrorKindCycle ErrorKind = "monitoring_loop"
	// ErrorKindAuth is an authentication rejection raised by the transport.
	ErrorKindAuth ErrorKind = "auth_error"
)

// ErrorRecord is one entry of the bounded error log.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      ErrorKind `json:"type"`
	Message   string    `json:"message"`
}

// ResponseStats summarizes health-check latency in seconds.
type ResponseStats struct {
	Avg    float64 `json:"avg_response_time"`
	Min    float64 `json:"min_response_time"`
	Max    float64 `json:"max_response_time"`
	Median float64 `json:"median_response_time"`
}

// PingStats summarizes keepalive send latency in seconds.
type PingStats struct {
	Avg float64 `json:"avg_ping_time"`
	Min float64 `json:"min_ping_time"`
	Max float64 `json:"max_ping_time"`
}

// SystemStats is the latest process reading.
type SystemStats struct {
	MemoryMB   float64 `json:"memory_usage_mb"`
	CPUPercent float64 `json:"cpu_percent"`
}

// StatsSnapshot is the real-time view of a monitor. Optional sections are
// nil until their source buffer has data.
type StatsSnapshot struct {
	Timestamp             time.Time         `json:"timestamp"`
	Uptime                float64           `json:"uptime"`
	UptimeString          string            `json:"uptime_str"`
	TotalMessages         uint64            `json:"total_messages"`
	TotalErrors           uint64            `json:"total_errors"`
	ErrorRate             float64           `json:"error_rate"`
	MessagesPerSecond     float64           `json:"messages_per_second"`
	ConnectionAttempts    uint64            `json:"connection_attempts"`
	SuccessfulConnections uint64            `json:"successful_connections"`
	ConnectionSuccessRate float64           `json:"connection_success_rate"`
	IsConnected           bool              `json:"is_connected"`
	LastPingTime          *time.Time        `json:"last_ping_time,omitempty"`
	MessageTypes          map[string]uint64 `json:"message_types"`
	*ResponseStats        `json:",omitempty"`
	*PingStats            `json:",omitempty"`
	*SystemStats          `json:",omitempty"`
}

// AvgResponseTime returns the mean health-check latency, if any was measured.
func (s StatsSnapshot) AvgResponseTime() (float64, bool) {
	if s.ResponseStats == nil {
		return 0, false
	}
	return s.ResponseStats.Avg, true
}

// SystemSample is one reading from a SystemMetricsProvider.
type SystemSample struct {
	MemoryMB   float64
	CPUPercent float64
}

// SystemMetricsProvider reports process memory and CPU usage.
type SystemMetricsProvider interface {
	Sample(ctx context.Context) (SystemSample, error)
}

// NoopSystemMetrics reports zeros.
type NoopSystemMetrics struct{}

func (NoopSystemMetrics) Sample(context.Context) (SystemSample, error) {
	return SystemSample{}, nil
}

// Clock abstracts time so aggregation can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
