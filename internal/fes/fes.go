// Package fes reconstructs a free-energy surface over two collective
// variables from a metadynamics deposit log.
package fes

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/plumed"
)

// Request is one reconstruction: a deposit log, an output table and the
// grid. Bins counts intervals per axis; the grid has Bins+1 points per
// axis with both edges included.
type Request struct {
	Hills     string
	Outfile   string
	Bins      []int
	Min       []float64
	Max       []float64
	MinToZero bool
}

func (r Request) Validate() error {
	if r.Hills == "" || r.Outfile == "" {
		return dynamo.Configf("fes request needs a hills file and an outfile")
	}
	if len(r.Bins) != 2 || len(r.Min) != 2 || len(r.Max) != 2 {
		return dynamo.Configf("fes request needs 2 bins, 2 minima and 2 maxima, got %d, %d and %d", len(r.Bins), len(r.Min), len(r.Max))
	}
	for k := range r.Bins {
		if r.Bins[k] <= 0 {
			return dynamo.Configf("bins must be positive, got %d", r.Bins[k])
		}
		if !(r.Min[k] < r.Max[k]) {
			return dynamo.Configf("axis %d: min %g is not below max %g", k+1, r.Min[k], r.Max[k])
		}
	}
	return nil
}

// Points is the number of grid points along each axis.
func (r Request) Points() (int, int) { return r.Bins[0] + 1, r.Bins[1] + 1 }

// Rows is the number of table rows the reconstruction produces.
func (r Request) Rows() int {
	nx, ny := r.Points()
	return nx * ny
}

// CheckDimensions compares the CV count of the deposit log with the request.
func CheckDimensions(req Request) ([]string, error) {
	t, err := plumed.ReadTable(req.Hills)
	if err != nil {
		return nil, err
	}
	cvs := t.HillsCVs()
	if len(cvs) != len(req.Bins) {
		return nil, dynamo.Configf("%s has %d CVs, request has %d axes", req.Hills, len(cvs), len(req.Bins))
	}
	return cvs, nil
}

// Grid is a reconstructed surface. Values[j][i] is the free energy at
// (X[i], Y[j]).
type Grid struct {
	CVs    []string
	X, Y   []float64
	Values [][]float64
}

func (g *Grid) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range g.Values {
		for _, v := range row {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}

// Minimum returns the CV point of the lowest free energy.
func (g *Grid) Minimum() (x, y, f float64) {
	f = math.Inf(1)
	for j, row := range g.Values {
		for i, v := range row {
			if v < f {
				x, y, f = g.X[i], g.Y[j], v
			}
		}
	}
	return x, y, f
}

func (g *Grid) shiftToZero() {
	lo, _ := g.Range()
	for _, row := range g.Values {
		for i := range row {
			row[i] -= lo
		}
	}
}

type Reconstructor interface {
	Name() string
	Reconstruct(ctx context.Context, req Request) (*Grid, error)
}

func validate(req Request) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cvs, err := CheckDimensions(req)
	if err != nil {
		return nil, fmt.Errorf("fes: %w", err)
	}
	return cvs, nil
}
