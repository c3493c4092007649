// Package dashboard implements the full-screen terminal view of a running
// monitor.
//
// # Architecture
//
// The package uses the Bubble Tea framework (Model-Update-View):
//
//   - Model: the last stats snapshot, recent alerts and latency history
//   - Update: processes keystrokes, monitor events and the start result
//   - View: renders cards, sparklines and the alert list
//
// # Message Flow
//
// The monitor runs on its own goroutine and knows nothing about the UI.
// A Feed subscribes to its stats_update and alert events and forwards them
// into a bounded channel; the model drains that channel one message at a
// time with waitForEvent, so a slow terminal never blocks a monitoring
// cycle:
//
//  1. Init issues startCmd (connect) and waitForEvent
//  2. startedMsg flips the view from the connecting spinner to the cards
//  3. statsMsg and alertMsg update state and re-arm waitForEvent
package dashboard
