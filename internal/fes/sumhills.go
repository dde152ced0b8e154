package fes

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/ljmetad/internal/plumed"
)

// SumHills reconstructs in-process: F(s) = -sum of the logged hills, as
// written (well-tempered heights already carry the gamma/(gamma-1) factor).
type SumHills struct {
	Workers int
	Logger  *slog.Logger
}

func (SumHills) Name() string { return "sum_hills" }

func (s SumHills) Reconstruct(ctx context.Context, req Request) (*Grid, error) {
	cvs, err := validate(req)
	if err != nil {
		return nil, err
	}
	hills, _, err := plumed.ReadHills(req.Hills)
	if err != nil {
		return nil, err
	}

	nx, ny := req.Points()
	g := &Grid{
		CVs:    cvs,
		X:      floats.Span(make([]float64, nx), req.Min[0], req.Max[0]),
		Y:      floats.Span(make([]float64, ny), req.Min[1], req.Max[1]),
		Values: make([][]float64, ny),
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pt := make([]float64, 2)
			for j := range rows {
				row := make([]float64, nx)
				pt[1] = g.Y[j]
				for i, x := range g.X {
					pt[0] = x
					row[i] = -plumed.Sum(hills, pt, nil)
				}
				g.Values[j] = row
			}
		}()
	}
	for j := 0; j < ny; j++ {
		select {
		case rows <- j:
		case <-ctx.Done():
			close(rows)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(rows)
	wg.Wait()

	if req.MinToZero {
		g.shiftToZero()
	}
	if err := WriteGrid(req.Outfile, g); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("fes reconstructed", "hills", len(hills), "points", nx*ny, "outfile", req.Outfile)
	}
	return g, nil
}
