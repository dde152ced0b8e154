// Package export writes standalone SVG images of a run: the cluster as
// drawn on a Braille canvas, a path through collective-variable space, and
// a free-energy grid.
package export

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/fes"
	"github.com/san-kum/ljmetad/internal/viz"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`

// CanvasToSVG draws every lit Braille dot of canvas as a circle.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	w, h := canvas.Size()
	width, height := float64(w)*scale, float64(h)*scale

	var sb strings.Builder
	fmt.Fprintf(&sb, header, width, height, width, height)
	sb.WriteString("<g fill=\"#3fbf7f\">\n")
	canvas.Dots(func(x, y int) {
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
			(float64(x)+0.5)*scale, (float64(y)+0.5)*scale, 0.4*scale)
	})

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// FrameToSVG renders a configuration through a Braille canvas.
func FrameToSVG(pos dynamo.Frame, bond float64, cols, rows int, scale float64) string {
	c := viz.NewCanvas(cols, rows)
	c.DrawParticles(viz.FitBounds(pos, 2), pos, bond)
	return CanvasToSVG(c, scale)
}

// PathToSVG draws the polyline (xs[i], ys[i]), for example one CV against
// another, padded by a tenth of its extent.
func PathToSVG(xs, ys []float64, width, height int, strokeColor string) string {
	n := min(len(xs), len(ys))
	if n < 2 {
		return ""
	}

	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := 0; i < n; i++ {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, header, float64(width), float64(height), float64(width), float64(height))
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)
	for i := 0; i < n; i++ {
		x := (xs[i] - minX) / rangeX * float64(width)
		y := float64(height) - (ys[i]-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n</svg>")
	return sb.String()
}

var ramp = [][3]float64{
	{0x2c, 0x7b, 0xb6},
	{0x00, 0xcc, 0xbc},
	{0xff, 0xff, 0x8c},
	{0xf2, 0x9e, 0x2e},
	{0xd7, 0x19, 0x1c},
}

// rampColor maps t in [0,1] onto the ramp by linear interpolation.
func rampColor(t float64) string {
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(ramp)-1)
	k := int(pos)
	if k >= len(ramp)-1 {
		k = len(ramp) - 2
	}
	f := pos - float64(k)
	var c [3]int
	for i := range c {
		c[i] = int(math.Round(ramp[k][i] + f*(ramp[k+1][i]-ramp[k][i])))
	}
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// GridToSVG paints one cell-sized square per grid point, highest CV2 on
// top. Points more than ceiling above the minimum are left dark; ceiling
// <= 0 colors the full range.
func GridToSVG(g *fes.Grid, cell, ceiling float64) string {
	if g == nil || len(g.Values) == 0 {
		return ""
	}
	lo, hi := g.Range()
	if ceiling > 0 {
		hi = math.Min(hi, lo+ceiling)
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	ny, nx := len(g.Values), len(g.Values[0])
	width, height := float64(nx)*cell, float64(ny)*cell

	var sb strings.Builder
	fmt.Fprintf(&sb, header, width, height, width, height)
	sb.WriteString("<g shape-rendering=\"crispEdges\">\n")
	for j, row := range g.Values {
		y := float64(ny-1-j) * cell
		for i, v := range row {
			if v > hi || math.IsNaN(v) {
				continue
			}
			fmt.Fprintf(&sb, "<rect x=\"%.1f\" y=\"%.1f\" width=\"%.1f\" height=\"%.1f\" fill=\"%s\"/>\n",
				float64(i)*cell, y, cell, cell, rampColor((v-lo)/span))
		}
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

func WriteSVG(path, svg string) error {
	if svg == "" {
		return dynamo.Configf("nothing to draw for %s", path)
	}
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	return nil
}
