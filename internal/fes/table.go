package fes

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/plumed"
)

// ReadGrid reads a (cv1, cv2, free energy, ...) table with cv1 varying
// fastest and reshapes it into the grid the request describes. Extra
// columns such as derivatives are ignored.
func ReadGrid(path string, req Request) (*Grid, error) {
	t, err := plumed.ReadTable(path)
	if err != nil {
		return nil, err
	}
	nx, ny := req.Points()
	if len(t.Rows) != nx*ny {
		return nil, fmt.Errorf("%w: %s has %d rows, a %dx%d grid needs %d", dynamo.ErrDimensionMismatch, path, len(t.Rows), nx, ny, nx*ny)
	}
	for r, row := range t.Rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("%w: %s row %d has %d columns", dynamo.ErrIO, path, r, len(row))
		}
	}

	g := &Grid{
		X:      make([]float64, nx),
		Y:      make([]float64, ny),
		Values: make([][]float64, ny),
	}
	if len(t.Fields) >= 2 {
		g.CVs = append([]string(nil), t.Fields[:2]...)
	}
	for i := 0; i < nx; i++ {
		g.X[i] = t.Rows[i][0]
	}
	for j := 0; j < ny; j++ {
		g.Y[j] = t.Rows[j*nx][1]
		g.Values[j] = make([]float64, nx)
		for i := 0; i < nx; i++ {
			g.Values[j][i] = t.Rows[j*nx+i][2]
		}
	}
	return g, nil
}

// WriteGrid writes g in the layout ReadGrid expects, with a blank line
// after each block of constant cv2.
func WriteGrid(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	w := bufio.NewWriter(f)

	cvs := g.CVs
	if len(cvs) != 2 {
		cvs = []string{"cv1", "cv2"}
	}
	fmt.Fprintf(w, "#! FIELDS %s %s file.free\n", cvs[0], cvs[1])
	for k, axis := range [][]float64{g.X, g.Y} {
		fmt.Fprintf(w, "#! SET min_%s %g\n", cvs[k], axis[0])
		fmt.Fprintf(w, "#! SET max_%s %g\n", cvs[k], axis[len(axis)-1])
		fmt.Fprintf(w, "#! SET nbins_%s %d\n", cvs[k], len(axis)-1)
		fmt.Fprintf(w, "#! SET periodic_%s false\n", cvs[k])
	}
	var b strings.Builder
	for j, y := range g.Y {
		for i, x := range g.X {
			b.Reset()
			fmt.Fprintf(&b, "%14.9f %14.9f %20.9f\n", x, y, g.Values[j][i])
			w.WriteString(b.String())
		}
		w.WriteString("\n")
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	return nil
}
