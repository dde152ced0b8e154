package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/plumed"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Cyan, asciigraph.Yellow, asciigraph.Green, asciigraph.Red, asciigraph.Blue,
}

// PlotColumns draws the named columns of a COLVAR-style table against row
// index, all on one chart. No names means every column but time.
func PlotColumns(t *plumed.Table, names []string, width, height int) (string, error) {
	if len(t.Rows) == 0 {
		return "", fmt.Errorf("%w: table has no rows", dynamo.ErrIO)
	}
	if len(names) == 0 {
		for _, f := range t.Fields {
			if f != "time" {
				names = append(names, f)
			}
		}
	}

	series := make([][]float64, 0, len(names))
	colors := make([]asciigraph.AnsiColor, 0, len(names))
	for k, name := range names {
		i := t.Index(name)
		if i < 0 {
			return "", dynamo.Configf("no column %q in table (have %s)", name, strings.Join(t.Fields, ", "))
		}
		series = append(series, t.Column(i))
		colors = append(colors, seriesColors[k%len(seriesColors)])
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(strings.Join(names, ", ")),
	), nil
}

// PlotSeries draws one series with a caption.
func PlotSeries(data []float64, caption string, width, height int) string {
	if len(data) == 0 {
		return Subtle.Render("(no data)")
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

var (
	heatRamp   = []string{"#2c7bb6", "#00a6ca", "#00ccbc", "#90eb9d", "#ffff8c", "#f9d057", "#f29e2e", "#d7191c"}
	heatShades = []rune{'█', '█', '▓', '▓', '▒', '▒', '░', '░'}
)

// Heatmap renders values (Values[j][i], j along y) as a cols x rows block
// of colored cells, highest y on top. Values more than ceiling above the minimum
// and non-finite values are left blank; ceiling <= 0 disables the cut.
func Heatmap(values [][]float64, cols, rows int, ceiling float64) string {
	if len(values) == 0 || len(values[0]) == 0 || cols <= 0 || rows <= 0 {
		return ""
	}
	ny, nx := len(values), len(values[0])
	cols, rows = min(cols, nx), min(rows, ny)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range values {
		for _, v := range row {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if ceiling > 0 {
		hi = math.Min(hi, lo+ceiling)
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	var b strings.Builder
	for r := rows - 1; r >= 0; r-- {
		j := sampleIndex(r, rows, ny)
		for c := 0; c < cols; c++ {
			v := values[j][sampleIndex(c, cols, nx)]
			if math.IsInf(v, 0) || math.IsNaN(v) || v > hi {
				b.WriteByte(' ')
				continue
			}
			level := int((v - lo) / span * float64(len(heatRamp)-1))
			level = max(0, min(level, len(heatRamp)-1))
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(heatRamp[level]))
			b.WriteString(style.Render(string(heatShades[level])))
		}
		b.WriteByte('\n')
	}
	b.WriteString(Subtle.Render(fmt.Sprintf("%.3g .. %.3g", lo, hi)))
	return b.String()
}

// sampleIndex maps display cell k of n to the nearest source index of m.
func sampleIndex(k, n, m int) int {
	if n <= 1 {
		return 0
	}
	return int(math.Round(float64(k) * float64(m-1) / float64(n-1)))
}

// Scatter plots (xs[i], ys[i]) on a Braille canvas of cols x rows cells,
// followed by the axis ranges.
func Scatter(xs, ys []float64, cols, rows int) string {
	n := min(len(xs), len(ys))
	if n == 0 {
		return Subtle.Render("(no data)")
	}
	b := Bounds{MinX: xs[0], MaxX: xs[0], MinY: ys[0], MaxY: ys[0]}
	for i := 0; i < n; i++ {
		b.MinX, b.MaxX = math.Min(b.MinX, xs[i]), math.Max(b.MaxX, xs[i])
		b.MinY, b.MaxY = math.Min(b.MinY, ys[i]), math.Max(b.MaxY, ys[i])
	}
	if b.MaxX == b.MinX {
		b.MinX, b.MaxX = b.MinX-1, b.MaxX+1
	}
	if b.MaxY == b.MinY {
		b.MinY, b.MaxY = b.MinY-1, b.MaxY+1
	}

	c := NewCanvas(cols, rows)
	for i := 0; i < n; i++ {
		c.Set(c.Project(b, xs[i], ys[i]))
	}
	return c.String() + Subtle.Render(fmt.Sprintf("x %.3g .. %.3g   y %.3g .. %.3g", b.MinX, b.MaxX, b.MinY, b.MaxY))
}
