// Package cli implements the connmon command-line interface.
//
// Each subcommand is a cobra.Command package variable whose flags are
// registered in init(). Commands load configuration through loadConfig,
// turn it into a monitor with buildMonitor, and then hand the monitor to a
// front end:
//
//	connmon monitor            - console output, stats line per cycle
//	connmon monitor --dashboard - Bubble Tea dashboard
//	connmon serve              - HTTP API, WebSocket push and /metrics
//	connmon init               - write a .connmon.yaml
//	connmon version            - build information
//
// # Flag Handling
//
// Global flags (--config, --verbose, --quiet, --no-color) live on the root
// command. Command flags override the matching config values only when
// they were set explicitly.
package cli
