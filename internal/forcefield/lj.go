package forcefield

import (
	"math"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

type LennardJones struct {
	Sigma   float64
	Epsilon float64
	Rc      float64
	R0      float64
	Smooth  bool
}

// NewLennardJones returns a unit sigma/epsilon Lennard-Jones field with
// cutoff rc. With smooth set, pair energies are switched off between r0 and
// rc so energy and force both reach zero continuously at rc; otherwise the
// energy is shifted by its value at rc.
func NewLennardJones(rc, r0 float64, smooth bool) *LennardJones {
	return &LennardJones{
		Sigma:   1.0,
		Epsilon: 1.0,
		Rc:      rc,
		R0:      r0,
		Smooth:  smooth,
	}
}

func (lj *LennardJones) Validate() error {
	if lj.Sigma <= 0 || lj.Epsilon < 0 {
		return dynamo.Configf("lennard-jones needs sigma > 0 and epsilon >= 0")
	}
	if lj.Rc <= 0 {
		return dynamo.Configf("lennard-jones cutoff must be positive, got %g", lj.Rc)
	}
	if lj.Smooth && (lj.R0 <= 0 || lj.R0 >= lj.Rc) {
		return dynamo.Configf("lennard-jones smoothing onset r0=%g must lie in (0, rc=%g)", lj.R0, lj.Rc)
	}
	return nil
}

func (lj *LennardJones) pair(r2 float64) float64 {
	c6 := math.Pow(lj.Sigma*lj.Sigma/r2, 3)
	return 4 * lj.Epsilon * (c6*c6 - c6)
}

func (lj *LennardJones) Evaluate(pos dynamo.Frame) dynamo.Result {
	n := len(pos)
	res := dynamo.ZeroResult(n)
	rc2 := lj.Rc * lj.Rc
	ro2 := lj.R0 * lj.R0
	s2 := lj.Sigma * lj.Sigma

	shift := 0.0
	if !lj.Smooth {
		shift = lj.pair(rc2)
	}

	var virial [3][3]float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := pos[j].Sub(pos[i])
			r2 := d.Norm2()
			if r2 >= rc2 {
				continue
			}

			c6 := math.Pow(s2/r2, 3)
			c12 := c6 * c6
			e := 4 * lj.Epsilon * (c12 - c6)
			// g = (1/r) dE/dr
			g := -24 * lj.Epsilon * (2*c12 - c6) / r2

			if lj.Smooth {
				fc := cutoff(r2, rc2, ro2)
				dfc := cutoffDeriv(r2, rc2, ro2)
				g = fc*g + 2*e*dfc
				e *= fc
			} else {
				e -= shift
			}

			res.Energy += e
			f := d.Scale(g)
			res.Forces[i] = res.Forces[i].Add(f)
			res.Forces[j] = res.Forces[j].Sub(f)

			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					virial[a][b] -= g * d[a] * d[b]
				}
			}
		}
	}
	res.Virial = &virial
	return res
}

// cutoff is 1 below ro and 0 above rc, C1 in between. All arguments are
// squared distances.
func cutoff(r2, rc2, ro2 float64) float64 {
	switch {
	case r2 < ro2:
		return 1
	case r2 < rc2:
		return (rc2 - r2) * (rc2 - r2) * (rc2 + 2*r2 - 3*ro2) / math.Pow(rc2-ro2, 3)
	default:
		return 0
	}
}

// cutoffDeriv is d cutoff / d(r^2).
func cutoffDeriv(r2, rc2, ro2 float64) float64 {
	if r2 < ro2 || r2 >= rc2 {
		return 0
	}
	return 6 * (rc2 - r2) * (ro2 - r2) / math.Pow(rc2-ro2, 3)
}
