package dashboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/connmon/internal/errors"
	"github.com/rileyhilliard/connmon/internal/monitor"
	"github.com/rileyhilliard/connmon/internal/ui"
)

func (m Model) renderDashboard() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch {
	case m.connecting:
		session := m.src.Session()
		fmt.Fprintf(&b, "%s Connecting to %s via %s...\n",
			m.spinner.View(), session.Region, m.transportName())
	case m.startErr != nil:
		b.WriteString(CriticalStyle.Render(ui.SymbolFail+" "+errors.Summarize(m.startErr)) + "\n")
		b.WriteString(LabelStyle.Render("Press q to quit") + "\n")
	case !m.haveStats:
		b.WriteString(LabelStyle.Render("Waiting for the first cycle...") + "\n")
	default:
		b.WriteString(m.layoutCards(m.renderCards()))
		b.WriteString("\n")
		b.WriteString(m.renderAlerts())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) transportName() string {
	if m.opts.Transport == "" {
		return "transport"
	}
	return m.opts.Transport
}

func (m Model) renderHeader() string {
	session := m.src.Session()
	title := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render("connmon")
	if m.opts.Version != "" {
		title += " " + LabelStyle.Render(m.opts.Version)
	}
	info := LabelStyle.Render(fmt.Sprintf(" | %s | %s | %s | every %s",
		m.transportName(), session.Region, m.src.State(), m.src.Interval()))
	return HeaderStyle.Render(title + info)
}

func (m Model) renderCards() []string {
	s := m.stats
	th := m.opts.Thresholds

	cards := []string{
		card("Connection",
			kv("Status", ui.ConnectedBadge(s.IsConnected)),
			kv("Uptime", s.UptimeString),
			kv("Attempts", strconv.FormatUint(s.ConnectionAttempts, 10)),
			kv("Success", ui.FormatPercent(s.ConnectionSuccessRate)),
		),
		card("Traffic",
			kv("Messages", strconv.FormatUint(s.TotalMessages, 10)),
			kv("Rate", fmt.Sprintf("%.2f msg/s", s.MessagesPerSecond)),
			kv("Errors", strconv.FormatUint(s.TotalErrors, 10)),
			kv("Error rate", RateStyle(s.ErrorRate, th.ErrorRate).Render(ui.FormatPercent(s.ErrorRate))),
		),
	}

	latency := []string{}
	if rs := s.ResponseStats; rs != nil {
		latency = append(latency,
			kv("Avg", latencyStyle(rs.Avg, th.SlowResponse).Render(ui.FormatSeconds(rs.Avg))),
			kv("Min / Max", ui.FormatSeconds(rs.Min)+" / "+ui.FormatSeconds(rs.Max)),
			kv("Median", ui.FormatSeconds(rs.Median)),
			ui.RenderSparkline(m.response, cardWidth-2, ui.LatencyThresholds(th.SlowResponse)),
		)
	} else {
		latency = append(latency, LabelStyle.Render("no samples yet"))
	}
	cards = append(cards, card("Health check", latency...))

	ping := []string{}
	if ps := s.PingStats; ps != nil {
		ping = append(ping,
			kv("Avg", ui.FormatSeconds(ps.Avg)),
			kv("Min / Max", ui.FormatSeconds(ps.Min)+" / "+ui.FormatSeconds(ps.Max)),
			ui.RenderSparkline(m.ping, cardWidth-2, ui.LatencyThresholds(th.SlowResponse)),
		)
	} else {
		ping = append(ping, LabelStyle.Render("no samples yet"))
	}
	cards = append(cards, card("Ping", ping...))

	if sys := s.SystemStats; sys != nil {
		cards = append(cards, card("Process",
			kv("Memory", fmt.Sprintf("%.1f MB", sys.MemoryMB)),
			kv("CPU", fmt.Sprintf("%.1f%%", sys.CPUPercent)),
		))
	}
	return cards
}

func latencyStyle(secs, slow float64) lipgloss.Style {
	switch ui.LatencyThresholds(slow).Color(secs) {
	case ui.ColorError:
		return CriticalStyle
	case ui.ColorWarning:
		return WarningStyle
	default:
		return HealthyStyle
	}
}

func card(title string, lines ...string) string {
	body := append([]string{CardTitleStyle.Render(title)}, lines...)
	return CardStyle.Width(cardWidth).Render(strings.Join(body, "\n"))
}

func kv(label, value string) string {
	return LabelStyle.Width(12).Render(label) + ValueStyle.Render(value)
}

// layoutCards arranges cards in rows based on terminal width.
func (m Model) layoutCards(cards []string) string {
	if len(cards) == 0 {
		return ""
	}

	perRow := 1
	if m.width > 0 {
		// card width plus padding, border and margin
		perRow = m.width / (cardWidth + 5)
		if perRow < 1 {
			perRow = 1
		}
	}

	var rows []string
	for i := 0; i < len(cards); i += perRow {
		end := i + perRow
		if end > len(cards) {
			end = len(cards)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderAlerts() string {
	title := CardTitleStyle.Render(fmt.Sprintf("Alerts (%d)", m.alertCount))
	if len(m.alerts) == 0 {
		return title + "\n" + LabelStyle.Render("none") + "\n"
	}

	lines := []string{title}
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		style := WarningStyle
		if a.Kind == monitor.AlertConnectionLost {
			style = CriticalStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			LabelStyle.Render(a.Time.Format("15:04:05")),
			style.Render(string(a.Kind)),
			a.Message))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) renderFooter() string {
	hints := []string{"q quit", "r refresh", "c clear alerts", "? help"}
	if !m.lastUpdate.IsZero() {
		hints = append(hints, "updated "+formatAgo(time.Since(m.lastUpdate)))
	}
	if m.feed != nil {
		if n := m.feed.Dropped(); n > 0 {
			hints = append(hints, fmt.Sprintf("%d events dropped", n))
		}
	}
	return FooterStyle.Render(strings.Join(hints, " | "))
}

func formatAgo(d time.Duration) string {
	secs := int(d / time.Second)
	switch secs {
	case 0:
		return "just now"
	case 1:
		return "1s ago"
	default:
		return fmt.Sprintf("%ds ago", secs)
	}
}
