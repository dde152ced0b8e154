package viz

import (
	"math"
	"strings"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

// brailleBit[y][x] is the dot bit of sub-pixel (x, y) inside one cell.
var brailleBit = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a bitmap of cols x rows terminal cells, each holding 2 x 4
// dots printed as one Braille rune.
type Canvas struct {
	cols, rows int
	lit        []bool
}

func NewCanvas(cols, rows int) *Canvas {
	return &Canvas{cols: cols, rows: rows, lit: make([]bool, cols*2*rows*4)}
}

// Size returns the canvas size in dots.
func (c *Canvas) Size() (w, h int) { return c.cols * 2, c.rows * 4 }

// Set lights dot (x, y); dots outside the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	w, h := c.Size()
	if x < 0 || y < 0 || x >= w || y >= h {
		return
	}
	c.lit[y*w+x] = true
}

func (c *Canvas) Clear() { clear(c.lit) }

// Dots calls fn for every lit dot in row-major order.
func (c *Canvas) Dots(fn func(x, y int)) {
	w, _ := c.Size()
	for i, on := range c.lit {
		if on {
			fn(i%w, i/w)
		}
	}
}

// DrawLine lights the dots between two points, one per step along the
// longer axis.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	n := max(abs(x1-x0), abs(y1-y0))
	if n == 0 {
		c.Set(x0, y0)
		return
	}
	for k := 0; k <= n; k++ {
		t := float64(k) / float64(n)
		x := float64(x0) + t*float64(x1-x0)
		y := float64(y0) + t*float64(y1-y0)
		c.Set(int(math.Round(x)), int(math.Round(y)))
	}
}

func (c *Canvas) String() string {
	cells := make([]rune, c.cols*c.rows)
	for i := range cells {
		cells[i] = brailleBlank
	}
	c.Dots(func(x, y int) {
		cells[(y/4)*c.cols+x/2] |= brailleBit[y%4][x%2]
	})

	var b strings.Builder
	for r := 0; r < c.rows; r++ {
		b.WriteString(string(cells[r*c.cols : (r+1)*c.cols]))
		b.WriteByte('\n')
	}
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Bounds is the world rectangle a canvas shows.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// FitBounds returns a square region around pos with margin added on every
// side, so distances along x and y are drawn alike.
func FitBounds(pos dynamo.Frame, margin float64) Bounds {
	if len(pos) == 0 {
		return Bounds{-1, 1, -1, 1}
	}
	b := Bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, p := range pos {
		b.MinX, b.MaxX = math.Min(b.MinX, p[0]), math.Max(b.MaxX, p[0])
		b.MinY, b.MaxY = math.Min(b.MinY, p[1]), math.Max(b.MaxY, p[1])
	}
	cx, cy := (b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2
	half := math.Max(b.MaxX-b.MinX, b.MaxY-b.MinY)/2 + margin
	return Bounds{cx - half, cx + half, cy - half, cy + half}
}

// Project maps a world point to sub-pixel coordinates, y pointing up.
func (c *Canvas) Project(b Bounds, x, y float64) (int, int) {
	w, h := c.Size()
	px := (x - b.MinX) / (b.MaxX - b.MinX) * float64(w-1)
	py := (b.MaxY - y) / (b.MaxY - b.MinY) * float64(h-1)
	return int(math.Round(px)), int(math.Round(py))
}

// DrawParticles draws each particle of pos as a small disc, with bonds
// between pairs closer than bond. The plane is the xy plane.
func (c *Canvas) DrawParticles(b Bounds, pos dynamo.Frame, bond float64) {
	for i := range pos {
		for j := i + 1; j < len(pos); j++ {
			if pos[i].Sub(pos[j]).Norm() > bond {
				continue
			}
			x0, y0 := c.Project(b, pos[i][0], pos[i][1])
			x1, y1 := c.Project(b, pos[j][0], pos[j][1])
			c.DrawLine(x0, y0, x1, y1)
		}
	}
	for _, p := range pos {
		x, y := c.Project(b, p[0], p[1])
		for dx := -1; dx <= 1; dx++ {
			for dy := -2; dy <= 2; dy++ {
				c.Set(x+dx, y+dy)
			}
		}
	}
}
