package plumed

import "math"

// Gaussians are truncated at 0.5*sum(dp^2) = dp2Cutoff and shifted so they
// reach zero continuously there.
const dp2Cutoff = 6.25

var (
	stretchA = 1 / (1 - math.Exp(-dp2Cutoff))
	stretchB = -math.Exp(-dp2Cutoff) / (1 - math.Exp(-dp2Cutoff))
)

// Hill is one Gaussian deposit. Height is the value actually added to the
// bias potential.
type Hill struct {
	Time       float64
	Center     []float64
	Sigma      []float64
	Height     float64
	BiasFactor float64
}

// Eval returns the hill value at s. When grad is non-nil the derivative with
// respect to each coordinate is added into it.
func (h Hill) Eval(s []float64, grad []float64) float64 {
	dp2 := 0.0
	for k, c := range h.Center {
		dp := (s[k] - c) / h.Sigma[k]
		dp2 += dp * dp
	}
	dp2 *= 0.5
	if dp2 >= dp2Cutoff {
		return 0
	}
	e := h.Height * stretchA * math.Exp(-dp2)
	if grad != nil {
		for k, c := range h.Center {
			grad[k] -= e * (s[k] - c) / (h.Sigma[k] * h.Sigma[k])
		}
	}
	return e + h.Height*stretchB
}

// Sum evaluates the sum of hills at s.
func Sum(hills []Hill, s []float64, grad []float64) float64 {
	v := 0.0
	for _, h := range hills {
		v += h.Eval(s, grad)
	}
	return v
}
