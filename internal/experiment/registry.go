package experiment

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/san-kum/ljmetad/internal/config"
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/fes"
	"github.com/san-kum/ljmetad/internal/forcefield"
	"github.com/san-kum/ljmetad/internal/integrators"
	"github.com/san-kum/ljmetad/internal/particles"
	"github.com/san-kum/ljmetad/internal/sim"
)

type (
	IntegratorFactory    func(sys *particles.System, calc dynamo.Calculator, md config.MDConfig) (sim.Integrator, error)
	ForceFieldFactory    func(ff config.ForceFieldConfig) (dynamo.ForceField, error)
	ReconstructorFactory func(binary string, log *slog.Logger) fes.Reconstructor
)

// Registry maps the names used in configuration files to constructors.
type Registry struct {
	integrators    map[string]IntegratorFactory
	forcefields    map[string]ForceFieldFactory
	reconstructors map[string]ReconstructorFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators:    make(map[string]IntegratorFactory),
		forcefields:    make(map[string]ForceFieldFactory),
		reconstructors: make(map[string]ReconstructorFactory),
	}

	r.integrators["langevin"] = func(sys *particles.System, calc dynamo.Calculator, md config.MDConfig) (sim.Integrator, error) {
		l, err := integrators.NewLangevin(sys, calc, integrators.LangevinConfig{
			Timestep: md.Timestep,
			KT:       md.KT,
			Friction: md.Friction,
			FixCM:    md.FixCM,
			Seed:     md.Seed,
		})
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	r.integrators["verlet"] = func(sys *particles.System, calc dynamo.Calculator, md config.MDConfig) (sim.Integrator, error) {
		v, err := integrators.NewVerlet(sys, calc, md.Timestep)
		if err != nil {
			return nil, err
		}
		return v, nil
	}

	r.forcefields["lj"] = func(ff config.ForceFieldConfig) (dynamo.ForceField, error) {
		lj := forcefield.NewLennardJones(ff.Rc, ff.R0, ff.Smooth)
		if ff.Sigma > 0 {
			lj.Sigma = ff.Sigma
		}
		if ff.Epsilon > 0 {
			lj.Epsilon = ff.Epsilon
		}
		if err := lj.Validate(); err != nil {
			return nil, err
		}
		return lj, nil
	}
	r.forcefields["idealgas"] = func(config.ForceFieldConfig) (dynamo.ForceField, error) {
		return forcefield.IdealGas{}, nil
	}

	r.reconstructors["auto"] = func(binary string, log *slog.Logger) fes.Reconstructor {
		return fes.Auto(binary, log)
	}
	r.reconstructors["plumed"] = func(binary string, log *slog.Logger) fes.Reconstructor {
		if binary == "" {
			binary = "plumed"
		}
		return fes.PlumedTool{Binary: binary, Logger: log}
	}
	r.reconstructors["sum_hills"] = func(_ string, log *slog.Logger) fes.Reconstructor {
		return fes.SumHills{Logger: log}
	}

	return r
}

func (r *Registry) Integrator(name string, sys *particles.System, calc dynamo.Calculator, md config.MDConfig) (sim.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, dynamo.Configf("unknown integrator: %s", name)
	}
	return fn(sys, calc, md)
}

func (r *Registry) ForceField(ff config.ForceFieldConfig) (dynamo.ForceField, error) {
	fn, ok := r.forcefields[ff.Type]
	if !ok {
		return nil, dynamo.Configf("unknown forcefield: %s", ff.Type)
	}
	return fn(ff)
}

func (r *Registry) Reconstructor(name, binary string, log *slog.Logger) (fes.Reconstructor, error) {
	if name == "" {
		name = "auto"
	}
	fn, ok := r.reconstructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown fes tool: %s", dynamo.ErrConfiguration, name)
	}
	return fn(binary, log), nil
}

func (r *Registry) ListIntegrators() []string    { return sortedKeys(r.integrators) }
func (r *Registry) ListForceFields() []string    { return sortedKeys(r.forcefields) }
func (r *Registry) ListReconstructors() []string { return sortedKeys(r.reconstructors) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
