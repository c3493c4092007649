// Package ui provides terminal output components for connmon's CLI.
//
// Everything here renders strings with Lip Gloss; nothing talks to the
// monitor directly. The console monitor and the dashboard both build on it.
//
// # Components Overview
//
//	Spinner        - Animated status line for the connect phase
//	Sparkline      - Mini graphs for latency history
//	RenderHeader   - Banner printed before monitoring starts
//	RenderStatsLine, RenderAlert - One line per stats update or alert
//	RenderReport   - End-of-run summary with a message type table
//
// # Color Scheme
//
// Colors are ANSI codes so they follow the terminal theme:
//
//	ColorSuccess   (green)  - Connected, healthy latency
//	ColorError     (red)    - Offline, failures, critical latency
//	ColorWarning   (yellow) - Alerts and errors worth a look
//	ColorInfo      (cyan)   - Informational values
//	ColorMuted     (gray)   - Labels and timing
//
// Use DisableColors() to switch to monochrome output (for --no-color flag).
//
// # Spinner Usage
//
//	s := ui.NewSpinner(os.Stdout, "Connecting")
//	s.Start()
//	// ... do work ...
//	s.Success() // or s.Fail()
package ui
