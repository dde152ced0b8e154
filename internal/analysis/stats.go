package analysis

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Median float64
	Q05    float64
	Q95    float64
}

// Summarize describes one column. The input is not modified.
func Summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) == 1 {
		std = 0
	}
	return Summary{
		N:      len(sorted),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q05:    stat.Quantile(0.05, stat.Empirical, sorted, nil),
		Q95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}
