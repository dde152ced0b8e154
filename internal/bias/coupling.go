package bias

import (
	"fmt"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/units"
)

// Setup is the run-scoped configuration the coupling is built from. Units is
// the host's native unit system; a zero value means units.Host().
type Setup struct {
	Timestep float64
	KT       float64
	Masses   []float64
	Units    units.System
}

func (s Setup) validate() error {
	if s.Timestep <= 0 {
		return dynamo.Configf("coupling timestep must be positive, got %g", s.Timestep)
	}
	if s.KT < 0 {
		return dynamo.Configf("coupling kT must be non-negative, got %g", s.KT)
	}
	if len(s.Masses) == 0 {
		return dynamo.Configf("coupling needs the particle masses")
	}
	return nil
}

// Coupling sums an inner native field and the engine's bias forces.
type Coupling struct {
	inner    dynamo.ForceField
	engine   Engine
	scale    units.Scale
	timestep float64
	natoms   int

	lastBias float64
	closed   bool
}

// New initializes engine and returns the coupling. The host-to-engine unit
// scale is fixed here and applied on every call. Initialization failures
// wrap dynamo.ErrExternalEngine.
func New(inner dynamo.ForceField, engine Engine, setup Setup) (*Coupling, error) {
	if err := setup.validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		engine = Nop{}
	}
	host := setup.Units
	if host == (units.System{}) {
		host = units.Host()
	}

	c := &Coupling{
		inner:    inner,
		engine:   engine,
		scale:    units.Between(host, engine.Units()),
		timestep: setup.Timestep,
		natoms:   len(setup.Masses),
	}

	err := engine.Init(InitParams{
		NumAtoms: c.natoms,
		Masses:   append([]float64(nil), setup.Masses...),
		Timestep: setup.Timestep * c.scale.Time,
		KT:       setup.KT * c.scale.Energy,
	})
	if err != nil {
		return nil, &dynamo.StageError{Stage: "bias init", Step: -1, Wrapped: fmt.Errorf("%w: %v", dynamo.ErrExternalEngine, err)}
	}
	return c, nil
}

// Calculate evaluates the inner field, forwards the state to the engine and
// returns the combined energy and forces in host units.
func (c *Coupling) Calculate(in dynamo.Input) (dynamo.Result, error) {
	if len(in.Positions) != c.natoms {
		return dynamo.Result{}, fmt.Errorf("%w: %d positions for %d atoms", dynamo.ErrDimensionMismatch, len(in.Positions), c.natoms)
	}

	res := c.inner.Evaluate(in.Positions)

	var box [3]dynamo.Vec3
	for k, v := range in.Box {
		box[k] = v.Scale(c.scale.Length)
	}
	out, err := c.engine.Evaluate(State{
		Step:      in.Step,
		Time:      float64(in.Step) * c.timestep * c.scale.Time,
		Positions: in.Positions.Scale(c.scale.Length),
		Box:       box,
		Energy:    res.Energy * c.scale.Energy,
	})
	if err != nil {
		return dynamo.Result{}, &dynamo.StageError{Stage: "bias", Step: in.Step, Wrapped: fmt.Errorf("%w: %v", dynamo.ErrExternalEngine, err)}
	}
	if len(out.Forces) != c.natoms {
		return dynamo.Result{}, &dynamo.StageError{Stage: "bias", Step: in.Step,
			Wrapped: fmt.Errorf("%w: engine returned %d forces for %d atoms", dynamo.ErrExternalEngine, len(out.Forces), c.natoms)}
	}

	toForce := 1 / c.scale.Force()
	for i, f := range out.Forces {
		res.Forces[i] = res.Forces[i].Add(f.Scale(toForce))
	}
	c.lastBias = out.Energy / c.scale.Energy
	res.Energy += c.lastBias
	return res, nil
}

// BiasEnergy is the bias contribution of the last Calculate, in host units.
func (c *Coupling) BiasEnergy() float64 { return c.lastBias }

// Scale reports the host-to-engine conversion fixed at construction.
func (c *Coupling) Scale() units.Scale { return c.scale }

// Close releases the engine. Safe to call more than once.
func (c *Coupling) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.engine.Close()
}
