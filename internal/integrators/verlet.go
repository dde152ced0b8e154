package integrators

import (
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/particles"
)

// NewVerlet returns a constant-energy integrator: Langevin without friction
// or noise.
func NewVerlet(sys *particles.System, calc dynamo.Calculator, dt float64) (*Langevin, error) {
	return NewLangevin(sys, calc, LangevinConfig{Timestep: dt})
}
