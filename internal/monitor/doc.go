// Package monitor implements the connection monitoring engine.
//
// A Monitor owns one transport connection and probes it on a fixed interval,
// keeping bounded histories of what it observed and publishing statistics
// and alerts to registered handlers.
//
// # Architecture
//
//	Monitor     - State machine and cycle loop (Idle, Connecting, Monitoring, Stopping)
//	Aggregator  - Owns every counter and history buffer, derives StatsSnapshot
//	Ring        - Fixed-capacity FIFO used for all five history buffers
//	EvaluateAlerts - Applies thresholds to a StatsSnapshot
//
// Two dispatchers connect the pieces. Lifecycle events raised by the
// transport (connected, disconnected, reconnected, auth_error) flow into an
// internal dispatcher whose only handler updates the Aggregator. Consumer
// events (stats_update, alert) flow out to handlers registered with
// AddEventHandler.
//
// # Cycle
//
// Every interval (default 5s) the loop runs, strictly in order:
//
//  1. Snapshot: process memory/CPU from the SystemMetricsProvider plus derived rates
//  2. Health check: GetBalance, timed; HEALTHY, UNHEALTHY, ERROR, or DISCONNECTED
//  3. Ping: timed SendMessage of the keepalive payload (skipped when disconnected)
//  4. Emit: one stats_update, then one alert per condition that holds
//
// A panic inside a cycle is recovered, recorded in the error log, and the
// loop continues with the next cycle. Stop cancels the loop, waits for the
// running cycle to return, and only then disconnects the transport.
//
// # Known behaviour
//
// Alerts are not deduplicated: a condition that persists fires every cycle.
// The ping sample is send latency, not round-trip time; no reply is awaited.
// The monitor adds no timeout of its own around transport calls, so a
// stalled probe stalls the cycle until the transport gives up.
//
// # History
//
// Default capacities: 1000 connection records, 500 snapshots, 200 errors,
// 100 response samples, 100 ping samples. Counters are not bounded and never
// decrease for the lifetime of a Monitor.
package monitor
