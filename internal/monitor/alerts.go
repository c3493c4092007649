package monitor

import (
	"fmt"
	"time"
)

// AlertKind names an alert condition.
type AlertKind string

const (
	AlertHighErrorRate  AlertKind = "high_error_rate"
	AlertSlowResponse   AlertKind = "slow_response"
	AlertConnectionLost AlertKind = "connection_lost"
)

// Default alert thresholds.
const (
	DefaultErrorRateThreshold    = 0.10
	DefaultSlowResponseThreshold = 5.0 // seconds
)

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	ErrorRate    float64
	SlowResponse float64 // seconds
}

// DefaultAlertThresholds returns the standard thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		ErrorRate:    DefaultErrorRateThreshold,
		SlowResponse: DefaultSlowResponseThreshold,
	}
}

// Alert is one fired condition. Value and Threshold are nil for
// connection_lost.
type Alert struct {
	Kind      AlertKind `json:"type"`
	Value     *float64  `json:"value,omitempty"`
	Threshold *float64  `json:"threshold,omitempty"`
	Message   string    `json:"message"`
	Time      time.Time `json:"timestamp"`
}

// EvaluateAlerts returns every condition that holds for stats, in a fixed
// order: error rate, slow response, connection lost.
//
// There is no memory between calls. A condition that persists fires on
// every cycle; consumers that want edge-triggered alerts must dedupe.
func EvaluateAlerts(stats StatsSnapshot, th AlertThresholds) []Alert {
	var alerts []Alert

	if stats.ErrorRate > th.ErrorRate {
		alerts = append(alerts, Alert{
			Kind:      AlertHighErrorRate,
			Value:     ptr(stats.ErrorRate),
			Threshold: ptr(th.ErrorRate),
			Message:   fmt.Sprintf("High error rate detected: %.1f%%", stats.ErrorRate*100),
			Time:      stats.Timestamp,
		})
	}

	if avg, ok := stats.AvgResponseTime(); ok && avg > th.SlowResponse {
		alerts = append(alerts, Alert{
			Kind:      AlertSlowResponse,
			Value:     ptr(avg),
			Threshold: ptr(th.SlowResponse),
			Message:   fmt.Sprintf("Slow response time: %.2fs", avg),
			Time:      stats.Timestamp,
		})
	}

	if !stats.IsConnected {
		alerts = append(alerts, Alert{
			Kind:    AlertConnectionLost,
			Message: "Connection lost",
			Time:    stats.Timestamp,
		})
	}

	return alerts
}

func ptr(v float64) *float64 { return &v }
