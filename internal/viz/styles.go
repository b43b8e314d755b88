package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	StatusOK = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusWarn = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	StatusFail = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))

	SparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
	SparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	SparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
)

func Header(text string) string { return HeaderStyle.Render(text) }

// Metric renders "label: value" with the value in %g.
func Metric(label string, value float64) string {
	return MetricLabel.Render(label+":") + " " + MetricValue.Render(fmt.Sprintf("%g", value))
}

// Status colours a solver or run status. Converged and ok are green,
// anything still running is amber, everything else red.
func Status(s string) string {
	switch strings.ToLower(s) {
	case "converged", "ok", "completed":
		return StatusOK.Render(s)
	case "iterating", "initialized", "running":
		return StatusWarn.Render(s)
	default:
		return StatusFail.Render(s)
	}
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline maps values onto eight bar heights, sampling to at most width
// bars. With logScale the bars follow log10|v|, which suits error series
// spanning decades. Non-finite values are drawn as '×'.
func Sparkline(values []float64, width int, logScale bool) string {
	if width <= 0 {
		return ""
	}
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}

	scaled := make([]float64, len(values))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range values {
		if logScale {
			v = math.Log10(math.Abs(v))
		}
		scaled[i] = v
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	rng := hi - lo
	if rng <= 0 || math.IsInf(rng, 0) || math.IsNaN(rng) {
		rng = 1
	}

	step := max(len(scaled)/width, 1)

	var result strings.Builder
	for i := 0; i < width && i*step < len(scaled); i++ {
		v := scaled[i*step]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			result.WriteString(StatusFail.Render("×"))
			continue
		}
		norm := (v - lo) / rng
		idx := min(max(int(norm*float64(len(sparkChars)-1)), 0), len(sparkChars)-1)

		c := string(sparkChars[idx])
		switch {
		case norm > 0.7:
			result.WriteString(SparkHigh.Render(c))
		case norm > 0.3:
			result.WriteString(SparkMid.Render(c))
		default:
			result.WriteString(SparkLow.Render(c))
		}
	}
	return result.String()
}

func Separator(width int) string {
	if width < 7 {
		return Subtle.Render(strings.Repeat("─", max(width, 0)))
	}
	left := (width - 3) / 2
	right := width - 3 - left
	return Subtle.Render(strings.Repeat("─", left) + " ◆ " + strings.Repeat("─", right))
}
