package particles

import (
	"math"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

// Constraint restricts one particle to a manifold.
type Constraint interface {
	Index() int
	// Adjust projects pos and vel onto the manifold in place.
	Adjust(pos, vel *dynamo.Vec3)
	// Removed is the number of degrees of freedom the constraint removes.
	Removed() int
}

// FixedPlane keeps a particle in the plane through the origin with the given
// normal. For an axis-aligned normal the out-of-plane component is exactly 0.
type FixedPlane struct {
	Atom   int
	Normal dynamo.Vec3
}

// NewFixedPlane normalizes normal. A zero normal yields a constraint that
// leaves the particle untouched.
func NewFixedPlane(atom int, normal dynamo.Vec3) FixedPlane {
	n := normal.Norm()
	if n > 0 {
		normal = normal.Scale(1 / n)
	}
	return FixedPlane{Atom: atom, Normal: normal}
}

func (c FixedPlane) Index() int { return c.Atom }

func (c FixedPlane) Removed() int {
	if c.Normal.Norm2() == 0 {
		return 0
	}
	return 1
}

func (c FixedPlane) Adjust(pos, vel *dynamo.Vec3) {
	for k, nk := range c.Normal {
		if nk == 1 || nk == -1 {
			pos[k] = 0
			vel[k] = 0
			return
		}
	}
	*pos = project(*pos, c.Normal)
	*vel = project(*vel, c.Normal)
}

func project(v, n dynamo.Vec3) dynamo.Vec3 {
	return v.Sub(n.Scale(v.Dot(n)))
}

// PlaneConstraints returns one FixedPlane per particle, all sharing normal.
func PlaneConstraints(n int, normal dynamo.Vec3) []Constraint {
	cons := make([]Constraint, n)
	for i := range cons {
		cons[i] = NewFixedPlane(i, normal)
	}
	return cons
}

// MaxOutOfPlane reports the largest |component along normal| across pos.
func MaxOutOfPlane(pos dynamo.Frame, normal dynamo.Vec3) float64 {
	worst := 0.0
	for _, p := range pos {
		worst = math.Max(worst, math.Abs(p.Dot(normal)))
	}
	return worst
}
