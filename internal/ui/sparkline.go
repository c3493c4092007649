package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline block characters representing 8 vertical levels (lowest to highest).
const sparklineBlocks = "▁▂▃▄▅▆▇█"

var sparklineBlockRunes = []rune(sparklineBlocks)

// Thresholds colors a sparkline by its latest value. Values at or above
// Critical render red, at or above Warning yellow, anything else green.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// LatencyThresholds suits values in seconds against a slow-response limit:
// half the limit is a warning, the limit itself is critical.
func LatencyThresholds(limit float64) Thresholds {
	return Thresholds{Warning: limit / 2, Critical: limit}
}

// Color returns the threshold color for v.
func (t Thresholds) Color(v float64) lipgloss.Color {
	switch {
	case t.Critical > 0 && v >= t.Critical:
		return ColorError
	case t.Warning > 0 && v >= t.Warning:
		return ColorWarning
	default:
		return ColorSuccess
	}
}

// RenderSparkline draws the most recent width values of data, scaled to
// their own min/max range, colored by the last value.
func RenderSparkline(data []float64, width int, th Thresholds) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	var sb strings.Builder
	sb.Grow(len(data) * 3)

	numLevels := len(sparklineBlockRunes)
	valueRange := maxVal - minVal

	for _, v := range data {
		level := numLevels / 2
		if valueRange > 0 {
			level = int((v - minVal) * float64(numLevels-1) / valueRange)
			if level < 0 {
				level = 0
			} else if level >= numLevels {
				level = numLevels - 1
			}
		}
		sb.WriteRune(sparklineBlockRunes[level])
	}

	return lipgloss.NewStyle().Foreground(th.Color(data[len(data)-1])).Render(sb.String())
}
