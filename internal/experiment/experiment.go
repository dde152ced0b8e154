// Package experiment assembles the components named in a run configuration
// and drives the three stages of a study: the biased forward run, the
// replay of its trajectory, and the free-energy reconstruction.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/san-kum/ljmetad/internal/bias"
	"github.com/san-kum/ljmetad/internal/config"
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/fes"
	"github.com/san-kum/ljmetad/internal/geometry"
	"github.com/san-kum/ljmetad/internal/metrics"
	"github.com/san-kum/ljmetad/internal/particles"
	"github.com/san-kum/ljmetad/internal/plumed"
	"github.com/san-kum/ljmetad/internal/replay"
	"github.com/san-kum/ljmetad/internal/sim"
	"github.com/san-kum/ljmetad/internal/trajectory"
)

type Pipeline struct {
	cfg      *config.Config
	registry *Registry
	log      *slog.Logger
}

// New validates cfg and returns a pipeline over it. A nil logger means
// slog.Default().
func New(cfg *config.Config, log *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, dynamo.Configf("pipeline needs a configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, registry: NewRegistry(), log: log}, nil
}

func (p *Pipeline) Config() *config.Config { return p.cfg }
func (p *Pipeline) Registry() *Registry    { return p.registry }

// BuildSystem loads the starting structure and applies one plane constraint
// per particle.
func (p *Pipeline) BuildSystem() (*particles.System, error) {
	sc := p.cfg.System
	var st *geometry.Structure
	if sc.Geometry == "" {
		st = geometry.Hexagon(sc.Symbol)
	} else {
		var err error
		if st, err = geometry.ReadXYZ(sc.Geometry); err != nil {
			return nil, err
		}
	}
	normal := dynamo.Vec3(sc.PlaneNormal)
	sys, err := particles.New(st.Symbols, st.Positions, sc.Masses, particles.PlaneConstraints(st.Len(), normal))
	if err != nil {
		return nil, err
	}
	p.log.Debug("system built", "particles", sys.Len(), "geometry", sc.Geometry)
	return sys, nil
}

// Directives returns the engine input, nil for an unbiased run.
func (p *Pipeline) Directives() ([]string, error) {
	return p.cfg.EngineDirectives()
}

// Engine builds the bias engine writing into dir, or the no-op engine when
// there are no directives.
func (p *Pipeline) Engine(dir string) (bias.Engine, error) {
	dirs, err := p.Directives()
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return bias.Nop{}, nil
	}
	return plumed.New(plumed.Config{
		Directives: dirs,
		Dir:        dir,
		LogFile:    p.cfg.Plumed.Log,
		Logger:     p.log,
	})
}

// RunOptions overrides md.trajectory and plumed.dir for one run; empty
// fields fall back to the configuration.
type RunOptions struct {
	Trajectory string
	Dir        string
	Observers  []dynamo.Observer
}

type RunResult struct {
	*sim.Result
	Thermo []metrics.ThermoRow
	// Store holds the recorded frames and is still open.
	Store trajectory.Store
}

// Forward integrates the configured system under the configured bias. The
// engine's files are flushed and closed before Forward returns; the
// trajectory store is left open for the caller.
func (p *Pipeline) Forward(ctx context.Context, opts RunOptions) (res *RunResult, err error) {
	md := p.cfg.MD
	sys, err := p.BuildSystem()
	if err != nil {
		return nil, &dynamo.StageError{Stage: "setup", Step: -1, Wrapped: err}
	}
	field, err := p.registry.ForceField(p.cfg.ForceField)
	if err != nil {
		return nil, &dynamo.StageError{Stage: "setup", Step: -1, Wrapped: err}
	}
	if opts.Trajectory == "" {
		opts.Trajectory = p.cfg.MD.Trajectory
	}
	if opts.Dir == "" {
		opts.Dir = p.cfg.Plumed.Dir
	}
	engine, err := p.Engine(opts.Dir)
	if err != nil {
		return nil, &dynamo.StageError{Stage: "setup", Step: -1, Wrapped: err}
	}
	coupling, err := bias.New(field, engine, bias.Setup{
		Timestep: md.Timestep,
		KT:       p.cfg.EngineKT(),
		Masses:   sys.Masses,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := coupling.Close(); cerr != nil && err == nil {
			err = &dynamo.StageError{Stage: "md", Step: -1, Wrapped: fmt.Errorf("%w: %v", dynamo.ErrIO, cerr)}
		}
	}()

	integ, err := p.registry.Integrator(md.Integrator, sys, coupling, md)
	if err != nil {
		return nil, &dynamo.StageError{Stage: "setup", Step: -1, Wrapped: err}
	}

	meta := trajectory.Meta{
		Stride:   md.Stride,
		Timestep: md.Timestep,
		Symbols:  sys.Symbols,
		Masses:   sys.Masses,
	}
	var store trajectory.Store
	if opts.Trajectory == "" {
		store = trajectory.NewMemory(meta)
	} else if store, err = trajectory.Create(ctx, opts.Trajectory, meta); err != nil {
		return nil, &dynamo.StageError{Stage: "setup", Step: -1, Wrapped: err}
	}

	s := sim.New(integ, store)
	s.SetLogger(p.log)
	s.AddMetric(metrics.NewEnergy())
	s.AddMetric(metrics.NewEnergyDrift())
	s.AddMetric(metrics.NewTemperature())
	s.AddMetric(metrics.NewPlaneDeviation(dynamo.Vec3(p.cfg.System.PlaneNormal)))
	s.AddMetric(metrics.NewStability(p.cfg.ForceField.Rc))
	thermo := metrics.NewThermo(md.Stride)
	s.AddObserver(thermo)
	for _, o := range opts.Observers {
		s.AddObserver(o)
	}

	result, err := s.Run(ctx, sim.Config{Steps: md.Steps, Stride: md.Stride})
	res = &RunResult{Result: result, Thermo: thermo.Rows, Store: store}
	if err != nil {
		return res, err
	}
	return res, nil
}

// Replay re-evaluates a recorded trajectory against the directives,
// regenerating the engine files in dir.
func (p *Pipeline) Replay(ctx context.Context, store trajectory.Store, dir string, keepStride bool) (*replay.Result, error) {
	dirs, err := p.Directives()
	if err != nil {
		return nil, err
	}
	d := &replay.Driver{
		Directives: dirs,
		Dir:        dir,
		KT:         p.cfg.EngineKT(),
		KeepStride: keepStride,
		Logger:     p.log,
	}
	return d.Replay(ctx, store)
}

// ReplayFile opens a trajectory file and replays it.
func (p *Pipeline) ReplayFile(ctx context.Context, path, dir string, keepStride bool) (res *replay.Result, err error) {
	store, err := trajectory.Open(ctx, path)
	if err != nil {
		return nil, &dynamo.StageError{Stage: "replay", Step: -1, Wrapped: err}
	}
	defer func() { err = errors.Join(err, store.Close()) }()
	return p.Replay(ctx, store, dir, keepStride)
}

// Request is the reconstruction described by the fes section.
func (p *Pipeline) Request() fes.Request {
	f := p.cfg.FES
	return fes.Request{
		Hills:     f.Hills,
		Outfile:   f.Outfile,
		Bins:      f.Bins,
		Min:       f.Min,
		Max:       f.Max,
		MinToZero: f.MinToZero,
	}
}

// Reconstruct builds the free-energy grid with the configured tool and
// writes it to the configured outfile.
func (p *Pipeline) Reconstruct(ctx context.Context) (*fes.Grid, error) {
	req := p.Request()
	if _, err := os.Stat(req.Hills); err != nil {
		return nil, &dynamo.StageError{Stage: "fes", Step: -1, Wrapped: fmt.Errorf("%w: %v", dynamo.ErrIO, err)}
	}
	tool, err := p.registry.Reconstructor(p.cfg.FES.Tool, p.cfg.FES.Binary, p.log)
	if err != nil {
		return nil, err
	}
	p.log.Info("reconstructing free energy", "tool", tool.Name(), "hills", req.Hills, "bins", req.Bins)
	g, err := tool.Reconstruct(ctx, req)
	if err != nil {
		return nil, &dynamo.StageError{Stage: "fes", Step: -1, Wrapped: err}
	}
	return g, nil
}
