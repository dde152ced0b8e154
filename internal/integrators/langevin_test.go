package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/forcefield"
	"github.com/san-kum/ljmetad/internal/geometry"
	"github.com/san-kum/ljmetad/internal/particles"
)

type fieldCalc struct{ ff dynamo.ForceField }

func (f fieldCalc) Calculate(in dynamo.Input) (dynamo.Result, error) {
	return f.ff.Evaluate(in.Positions), nil
}

type failingCalc struct{ at int }

func (f failingCalc) Calculate(in dynamo.Input) (dynamo.Result, error) {
	if in.Step == f.at {
		return dynamo.Result{}, errors.New("engine died")
	}
	return dynamo.ZeroResult(len(in.Positions)), nil
}

func lj7(t testing.TB) *particles.System {
	t.Helper()
	h := geometry.Hexagon("Ar")
	masses := []float64{1, 1, 1, 1, 1, 1, 1}
	sys, err := particles.New(h.Symbols, h.Positions, masses, particles.PlaneConstraints(7, dynamo.Vec3{0, 0, 1}))
	if err != nil {
		t.Fatalf("system: %v", err)
	}
	v := make(dynamo.Frame, 7)
	for i := range v {
		a := float64(i) * 1.3
		v[i] = dynamo.Vec3{0.2 * math.Cos(a), 0.2 * math.Sin(a), 0.5}
	}
	if err := sys.SetVelocities(v); err != nil {
		t.Fatal(err)
	}
	return sys
}

func totalEnergy(l *Langevin) float64 {
	return l.Last().Energy + l.System().KineticEnergy()
}

func TestVerletConservesEnergy(t *testing.T) {
	sys := lj7(t)
	integ, err := NewVerlet(sys, fieldCalc{forcefield.NewLennardJones(3, 2.5, true)}, 0.005)
	if err != nil {
		t.Fatal(err)
	}
	if err := integ.Init(); err != nil {
		t.Fatal(err)
	}
	e0 := totalEnergy(integ)
	maxDev := 0.0
	for i := 1; i <= 2000; i++ {
		if err := integ.Step(i); err != nil {
			t.Fatal(err)
		}
		maxDev = math.Max(maxDev, math.Abs(totalEnergy(integ)-e0))
	}
	if maxDev/math.Abs(e0) > 1e-4 {
		t.Errorf("energy drift too large: max |dE| = %g, E0 = %g", maxDev, e0)
	}
}

func TestLangevinKeepsPlane(t *testing.T) {
	sys := lj7(t)
	integ, err := NewLangevin(sys, fieldCalc{forcefield.NewLennardJones(3, 2.5, true)}, LangevinConfig{
		Timestep: 0.005, KT: 0.1, Friction: 1, Seed: 7,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := integ.Init(); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 500; i++ {
		if err := integ.Step(i); err != nil {
			t.Fatal(err)
		}
		for j := range sys.Positions {
			if sys.Positions[j][2] != 0 || sys.Velocities[j][2] != 0 {
				t.Fatalf("step %d particle %d left the plane: z=%g vz=%g", i, j, sys.Positions[j][2], sys.Velocities[j][2])
			}
		}
	}
}

func TestLangevinThermalizes(t *testing.T) {
	sys := lj7(t)
	const kT = 0.1
	integ, err := NewLangevin(sys, fieldCalc{forcefield.IdealGas{}}, LangevinConfig{
		Timestep: 0.005, KT: kT, Friction: 1, Seed: 42,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := integ.Init(); err != nil {
		t.Fatal(err)
	}

	sum, n := 0.0, 0
	for i := 1; i <= 40000; i++ {
		if err := integ.Step(i); err != nil {
			t.Fatal(err)
		}
		if i > 2000 {
			sum += sys.Temperature()
			n++
		}
	}
	mean := sum / float64(n)
	if math.Abs(mean-kT)/kT > 0.15 {
		t.Errorf("mean kinetic temperature %g, want ~%g", mean, kT)
	}
}

func TestLangevinDeterministicSeed(t *testing.T) {
	run := func() dynamo.Frame {
		sys := lj7(t)
		integ, err := NewLangevin(sys, fieldCalc{forcefield.NewLennardJones(3, 2.5, true)}, LangevinConfig{
			Timestep: 0.005, KT: 0.1, Friction: 1, Seed: 3,
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := integ.Init(); err != nil {
			t.Fatal(err)
		}
		for i := 1; i <= 50; i++ {
			if err := integ.Step(i); err != nil {
				t.Fatal(err)
			}
		}
		return sys.Positions.Clone()
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("particle %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestLangevinFixCM(t *testing.T) {
	sys := lj7(t)
	integ, err := NewLangevin(sys, fieldCalc{forcefield.NewLennardJones(3, 2.5, true)}, LangevinConfig{
		Timestep: 0.005, KT: 0.1, Friction: 1, FixCM: true, Seed: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := integ.Init(); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 20; i++ {
		if err := integ.Step(i); err != nil {
			t.Fatal(err)
		}
		if p := sys.Momentum().Norm(); p > 1e-12 {
			t.Fatalf("step %d: net momentum %g", i, p)
		}
	}
}

func TestLangevinPropagatesCalculatorError(t *testing.T) {
	integ, err := NewLangevin(lj7(t), failingCalc{at: 3}, LangevinConfig{Timestep: 0.005})
	if err != nil {
		t.Fatal(err)
	}
	if err := integ.Init(); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 2; i++ {
		if err := integ.Step(i); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if err := integ.Step(3); err == nil {
		t.Fatal("expected step 3 to fail")
	}
}

func TestLangevinConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  LangevinConfig
	}{
		{"zero timestep", LangevinConfig{}},
		{"negative kT", LangevinConfig{Timestep: 0.005, KT: -1}},
		{"negative friction", LangevinConfig{Timestep: 0.005, Friction: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLangevin(lj7(t), fieldCalc{forcefield.IdealGas{}}, tt.cfg)
			if !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestStepBeforeInit(t *testing.T) {
	integ, err := NewVerlet(lj7(t), fieldCalc{forcefield.IdealGas{}}, 0.005)
	if err != nil {
		t.Fatal(err)
	}
	if err := integ.Step(1); err == nil {
		t.Error("expected error stepping an uninitialized integrator")
	}
}
