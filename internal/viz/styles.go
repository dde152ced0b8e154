package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/floats"
)

var (
	Title  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7fd4ff"))
	Subtle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c6c80"))

	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8a9a")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0e0ff")).Bold(true)
	badgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	phaseColors = map[string]lipgloss.Color{
		"RUNNING": "#3fbf7f",
		"FROZEN":  "#5f87d7",
		"DONE":    "#d7af00",
		"FAILED":  "#d75f5f",
	}
)

// Badge renders a run phase as a colored tag.
func Badge(phase string) string {
	return badgeStyle.
		Foreground(lipgloss.Color("#101018")).
		Background(phaseColors[phase]).
		Render(phase)
}

// Row renders one label/value line of the live panel.
func Row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

// ProgressBar renders a bar filled to fraction (0..1) in the phase color.
func ProgressBar(fraction float64, width int, phase string) string {
	filled := int(fraction * float64(width))
	filled = max(0, min(filled, width))
	bar := lipgloss.NewStyle().Foreground(phaseColors[phase]).Render(strings.Repeat("━", filled))
	return bar + Subtle.Render(strings.Repeat("─", width-filled))
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the series as one row of block runes scaled between
// its own extremes, resampled to width columns.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("·", max(width, 0))
	}
	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	if span == 0 {
		span = 1
	}

	n := min(width, len(values))
	var b strings.Builder
	for k := 0; k < n; k++ {
		v := values[sampleIndex(k, n, len(values))]
		b.WriteRune(sparkRunes[int(math.Round((v-lo)/span*float64(len(sparkRunes)-1)))])
	}
	return b.String()
}
