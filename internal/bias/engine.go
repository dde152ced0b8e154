// Package bias couples a native force field with an external enhanced-sampling
// engine. The [Coupling] is the single place where native and bias forces are
// summed and the single place where live simulation state is exposed to the
// engine, translated once into the engine's declared units.
package bias

import (
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/units"
)

// Engine is the external bias engine. All quantities crossing this interface
// are in the engine's own unit system, as reported by Units.
type Engine interface {
	// Units is the system the engine declared in its directives.
	Units() units.System
	// Init opens the engine's output files. It is called once, before the
	// first Evaluate.
	Init(p InitParams) error
	Evaluate(s State) (Output, error)
	// Close flushes and closes the engine's output files.
	Close() error
}

type InitParams struct {
	NumAtoms int
	Masses   []float64
	Timestep float64
	KT       float64
}

type State struct {
	Step      int
	Time      float64
	Positions dynamo.Frame
	Box       [3]dynamo.Vec3
	// Energy is the native potential energy of the current configuration.
	Energy float64
}

type Output struct {
	Forces dynamo.Frame
	Energy float64
}

// Nop is an engine that never biases. A coupling built on it forwards only
// the native field.
type Nop struct{}

func (Nop) Units() units.System   { return units.Host() }
func (Nop) Init(InitParams) error { return nil }
func (Nop) Close() error          { return nil }

func (Nop) Evaluate(s State) (Output, error) {
	return Output{Forces: make(dynamo.Frame, len(s.Positions))}, nil
}
