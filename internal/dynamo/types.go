package dynamo

import "math"

type Vec3 [3]float64

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

func (v Vec3) Scale(f float64) Vec3 { return Vec3{v[0] * f, v[1] * f, v[2] * f} }

func (v Vec3) Dot(o Vec3) float64 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

func (v Vec3) Norm2() float64 { return v.Dot(v) }

func (v Vec3) Norm() float64 { return math.Sqrt(v.Norm2()) }

// Frame is an ordered set of per-particle vectors.
type Frame []Vec3

func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	c := make(Frame, len(f))
	copy(c, f)
	return c
}

// Scale returns a copy of f with every vector multiplied by factor.
func (f Frame) Scale(factor float64) Frame {
	c := make(Frame, len(f))
	for i, v := range f {
		c[i] = v.Scale(factor)
	}
	return c
}

// Result is one force evaluation. Virial is nil when the provider does not
// compute it.
type Result struct {
	Energy float64
	Forces Frame
	Virial *[3][3]float64
}

func ZeroResult(n int) Result {
	return Result{Forces: make(Frame, n)}
}

// ForceField is a stateless native field.
type ForceField interface {
	Evaluate(pos Frame) Result
}

// Input is the live state handed to a Calculator on each force evaluation.
type Input struct {
	Step      int
	Positions Frame
	Masses    []float64
	Box       [3]Vec3
}

// Calculator provides forces for the integrator. Unlike ForceField it is
// step-aware and may fail.
type Calculator interface {
	Calculate(in Input) (Result, error)
}

// Sample is what the run loop reports after each completed step.
type Sample struct {
	Step        int
	Time        float64
	Positions   Frame
	Velocities  Frame
	Potential   float64
	Kinetic     float64
	Temperature float64
}

func (s Sample) Total() float64 { return s.Potential + s.Kinetic }

type Observer interface {
	OnStep(s Sample)
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}
