package analysis

import (
	"math"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

// Histogram2D counts visits of a two-column series on a regular grid.
// Counts[j][i] holds the cell at column i of x and row j of y.
type Histogram2D struct {
	Bins   [2]int
	Min    [2]float64
	Max    [2]float64
	Counts [][]float64
	Total  int
	// Outside counts samples that fell off the grid.
	Outside int
}

func NewHistogram2D(x, y []float64, bins [2]int, lo, hi [2]float64) (*Histogram2D, error) {
	if len(x) != len(y) {
		return nil, dynamo.Configf("histogram columns differ in length: %d and %d", len(x), len(y))
	}
	for k := 0; k < 2; k++ {
		if bins[k] <= 0 {
			return nil, dynamo.Configf("histogram bins must be positive, got %d", bins[k])
		}
		if !(hi[k] > lo[k]) {
			return nil, dynamo.Configf("histogram max %g must exceed min %g", hi[k], lo[k])
		}
	}

	h := &Histogram2D{Bins: bins, Min: lo, Max: hi, Counts: make([][]float64, bins[1])}
	for j := range h.Counts {
		h.Counts[j] = make([]float64, bins[0])
	}
	for n := range x {
		i, okx := h.cell(0, x[n])
		j, oky := h.cell(1, y[n])
		if !okx || !oky {
			h.Outside++
			continue
		}
		h.Counts[j][i]++
		h.Total++
	}
	return h, nil
}

func (h *Histogram2D) cell(axis int, v float64) (int, bool) {
	if v < h.Min[axis] || v > h.Max[axis] {
		return 0, false
	}
	w := (h.Max[axis] - h.Min[axis]) / float64(h.Bins[axis])
	i := int((v - h.Min[axis]) / w)
	if i == h.Bins[axis] {
		i--
	}
	return i, true
}

// FreeEnergy returns -kT ln p per cell, shifted so the most visited cell is
// zero. Empty cells are +Inf.
func (h *Histogram2D) FreeEnergy(kT float64) [][]float64 {
	out := make([][]float64, len(h.Counts))
	best := 0.0
	for _, row := range h.Counts {
		for _, c := range row {
			best = math.Max(best, c)
		}
	}
	for j, row := range h.Counts {
		out[j] = make([]float64, len(row))
		for i, c := range row {
			if c == 0 || best == 0 {
				out[j][i] = math.Inf(1)
				continue
			}
			out[j][i] = -kT * math.Log(c/best)
		}
	}
	return out
}
