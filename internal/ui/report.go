package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/connmon/internal/monitor"
)

// HeaderWidth is the width of the header and report dividers.
const HeaderWidth = 60

// HeaderInfo is what the console monitor shows before it starts.
type HeaderInfo struct {
	Version   string
	Transport string
	Region    string
	SessionID string
	Interval  string
}

// RenderHeader renders the banner printed before monitoring starts.
func RenderHeader(info HeaderInfo) string {
	var b strings.Builder
	title := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	divider := MutedStyle().Render(strings.Repeat("━", HeaderWidth))

	b.WriteString(title.Render("connmon"))
	if info.Version != "" {
		b.WriteString(" " + InfoStyle().Render(info.Version))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s  %s %s  %s %s\n",
		MutedStyle().Render("transport"), info.Transport,
		MutedStyle().Render("region"), info.Region,
		MutedStyle().Render("every"), info.Interval)
	if info.SessionID != "" {
		b.WriteString(MutedStyle().Render("session " + info.SessionID))
		b.WriteString("\n")
	}
	b.WriteString(divider)
	b.WriteString("\n")
	return b.String()
}

// FormatSeconds renders a duration in seconds, switching to milliseconds
// below one second.
func FormatSeconds(secs float64) string {
	if secs < 1 {
		return strconv.FormatFloat(secs*1000, 'f', 0, 64) + "ms"
	}
	return strconv.FormatFloat(secs, 'f', 2, 64) + "s"
}

// FormatPercent renders a 0..1 ratio as a percentage.
func FormatPercent(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', 1, 64) + "%"
}

// ConnectedBadge renders the connectivity indicator.
func ConnectedBadge(connected bool) string {
	if connected {
		return SuccessStyle().Render(SymbolConnected + " connected")
	}
	return ErrorStyle().Render(SymbolOffline + " offline")
}

// RenderStatsLine summarizes one stats_update on a single line.
func RenderStatsLine(s monitor.StatsSnapshot) string {
	parts := []string{
		ConnectedBadge(s.IsConnected),
		"up " + s.UptimeString,
		fmt.Sprintf("msgs %d (%.2f/s)", s.TotalMessages, s.MessagesPerSecond),
	}

	errs := fmt.Sprintf("errors %d (%s)", s.TotalErrors, FormatPercent(s.ErrorRate))
	if s.TotalErrors > 0 {
		errs = WarningStyle().Render(errs)
	}
	parts = append(parts, errs)

	if s.ResponseStats != nil {
		parts = append(parts, "resp "+FormatSeconds(s.ResponseStats.Avg))
	}
	if s.PingStats != nil {
		parts = append(parts, "ping "+FormatSeconds(s.PingStats.Avg))
	}
	if s.SystemStats != nil {
		parts = append(parts, fmt.Sprintf("mem %.1fMB", s.SystemStats.MemoryMB))
	}
	return strings.Join(parts, MutedStyle().Render(" | "))
}

// RenderAlert renders one alert line.
func RenderAlert(a monitor.Alert) string {
	style := WarningStyle()
	if a.Kind == monitor.AlertConnectionLost {
		style = ErrorStyle()
	}
	return style.Render(SymbolAlert+" "+strings.ToUpper(string(a.Kind))) + " " + a.Message
}

// Report is the data behind the end-of-run summary.
type Report struct {
	Stats         monitor.StatsSnapshot
	Errors        []monitor.ErrorRecord
	ResponseTimes []float64
	SlowResponse  float64
	// MaxErrors caps how many of the latest errors are listed.
	MaxErrors int
}

// RenderReport renders the final summary printed when monitoring stops.
func RenderReport(r Report) string {
	var b strings.Builder
	s := r.Stats
	heading := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	divider := MutedStyle().Render(strings.Repeat("━", HeaderWidth))

	b.WriteString("\n" + divider + "\n")
	b.WriteString(heading.Render("Final report") + "\n")
	b.WriteString(divider + "\n")

	row := func(label, value string) {
		b.WriteString(padRight(MutedStyle().Render(label), 24) + value + "\n")
	}
	row("Duration", s.UptimeString)
	row("Messages", strconv.FormatUint(s.TotalMessages, 10))
	row("Errors", strconv.FormatUint(s.TotalErrors, 10))
	row("Error rate", FormatPercent(s.ErrorRate))
	row("Connection attempts", strconv.FormatUint(s.ConnectionAttempts, 10))
	row("Connection success", FormatPercent(s.ConnectionSuccessRate))
	if rs := s.ResponseStats; rs != nil {
		row("Response avg/min/max", fmt.Sprintf("%s / %s / %s",
			FormatSeconds(rs.Avg), FormatSeconds(rs.Min), FormatSeconds(rs.Max)))
		row("Response median", FormatSeconds(rs.Median))
	}
	if ps := s.PingStats; ps != nil {
		row("Ping avg", FormatSeconds(ps.Avg))
	}
	if len(r.ResponseTimes) > 0 {
		row("Response trend", RenderSparkline(r.ResponseTimes, 40, LatencyThresholds(r.SlowResponse)))
	}

	if len(s.MessageTypes) > 0 {
		b.WriteString("\n")
		b.WriteString(RenderSimpleTable(
			[]TableColumn{{Title: "Message type", Width: 20}, {Title: "Count", Width: 10}},
			messageTypeRows(s.MessageTypes),
		))
		b.WriteString("\n")
	}

	if len(r.Errors) > 0 {
		limit := r.MaxErrors
		if limit <= 0 {
			limit = 5
		}
		errs := r.Errors
		if len(errs) > limit {
			errs = errs[len(errs)-limit:]
		}
		b.WriteString("\n" + heading.Render("Recent errors") + "\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "  %s %s %s %s\n",
				ErrorStyle().Render(SymbolFail),
				MutedStyle().Render(e.Timestamp.Format("15:04:05")),
				string(e.Kind),
				e.Message)
		}
	}
	return b.String()
}

// messageTypeRows sorts by count, then name.
func messageTypeRows(types map[string]uint64) [][]string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if types[names[i]] != types[names[j]] {
			return types[names[i]] > types[names[j]]
		}
		return names[i] < names[j]
	})
	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name, strconv.FormatUint(types[name], 10)}
	}
	return rows
}
