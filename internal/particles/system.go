// Package particles holds the particle system integrated by the run loop:
// positions, velocities, explicit masses and per-particle constraints.
package particles

import (
	"fmt"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

// System is N point particles with one constraint per particle.
type System struct {
	Symbols     []string
	Positions   dynamo.Frame
	Velocities  dynamo.Frame
	Masses      []float64
	Constraints []Constraint
	Box         [3]dynamo.Vec3
}

// New builds a system from an input structure. Masses are required and there
// is no default: the reference potential's units depend on them. The
// constraint list must hold exactly one entry per particle. Constraints are
// applied once before returning.
func New(symbols []string, pos dynamo.Frame, masses []float64, constraints []Constraint) (*System, error) {
	n := len(pos)
	if n == 0 {
		return nil, dynamo.Configf("particle system needs at least one particle")
	}
	if symbols != nil && len(symbols) != n {
		return nil, dynamo.Configf("%d symbols for %d particles", len(symbols), n)
	}
	if len(masses) != n {
		return nil, dynamo.Configf("%d masses for %d particles", len(masses), n)
	}
	if len(constraints) != n {
		return nil, dynamo.Configf("%d constraints for %d particles", len(constraints), n)
	}
	for i, m := range masses {
		if m <= 0 {
			return nil, dynamo.Configf("mass of particle %d must be positive, got %g", i, m)
		}
	}
	seen := make([]bool, n)
	for _, c := range constraints {
		idx := c.Index()
		if idx < 0 || idx >= n {
			return nil, dynamo.Configf("constraint refers to particle %d of %d", idx, n)
		}
		if seen[idx] {
			return nil, dynamo.Configf("particle %d constrained twice", idx)
		}
		seen[idx] = true
	}

	if symbols == nil {
		symbols = make([]string, n)
		for i := range symbols {
			symbols[i] = "X"
		}
	}

	s := &System{
		Symbols:     append([]string(nil), symbols...),
		Positions:   pos.Clone(),
		Velocities:  make(dynamo.Frame, n),
		Masses:      append([]float64(nil), masses...),
		Constraints: append([]Constraint(nil), constraints...),
	}
	s.ApplyConstraints()
	return s, nil
}

func (s *System) Len() int { return len(s.Positions) }

// ApplyConstraints projects every particle's position and velocity back onto
// its constraint manifold.
func (s *System) ApplyConstraints() {
	for _, c := range s.Constraints {
		i := c.Index()
		c.Adjust(&s.Positions[i], &s.Velocities[i])
	}
}

// DegreesOfFreedom is 3N minus what the constraints remove.
func (s *System) DegreesOfFreedom() int {
	dof := 3 * s.Len()
	for _, c := range s.Constraints {
		dof -= c.Removed()
	}
	return dof
}

func (s *System) KineticEnergy() float64 {
	ke := 0.0
	for i, v := range s.Velocities {
		ke += 0.5 * s.Masses[i] * v.Norm2()
	}
	return ke
}

// Temperature returns the instantaneous kinetic temperature in energy units
// (kT), using the constrained degrees of freedom.
func (s *System) Temperature() float64 {
	dof := s.DegreesOfFreedom()
	if dof <= 0 {
		return 0
	}
	return 2 * s.KineticEnergy() / float64(dof)
}

func (s *System) TotalMass() float64 {
	m := 0.0
	for _, mi := range s.Masses {
		m += mi
	}
	return m
}

func (s *System) CenterOfMass() dynamo.Vec3 {
	var com dynamo.Vec3
	for i, p := range s.Positions {
		com = com.Add(p.Scale(s.Masses[i]))
	}
	return com.Scale(1 / s.TotalMass())
}

func (s *System) Momentum() dynamo.Vec3 {
	var p dynamo.Vec3
	for i, v := range s.Velocities {
		p = p.Add(v.Scale(s.Masses[i]))
	}
	return p
}

// RemoveCOMVelocity subtracts the center-of-mass velocity from every particle.
func (s *System) RemoveCOMVelocity() {
	vcm := s.Momentum().Scale(1 / s.TotalMass())
	for i := range s.Velocities {
		s.Velocities[i] = s.Velocities[i].Sub(vcm)
	}
}

// SetVelocities replaces all velocities and re-applies the constraints.
func (s *System) SetVelocities(v dynamo.Frame) error {
	if len(v) != s.Len() {
		return fmt.Errorf("%w: %d velocities for %d particles", dynamo.ErrDimensionMismatch, len(v), s.Len())
	}
	copy(s.Velocities, v)
	s.ApplyConstraints()
	return nil
}

func (s *System) Clone() *System {
	c := *s
	c.Symbols = append([]string(nil), s.Symbols...)
	c.Positions = s.Positions.Clone()
	c.Velocities = s.Velocities.Clone()
	c.Masses = append([]float64(nil), s.Masses...)
	c.Constraints = append([]Constraint(nil), s.Constraints...)
	return &c
}
