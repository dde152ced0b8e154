// Package automation runs the forward pipeline repeatedly over a range of
// one configuration parameter.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ljmetad/internal/config"
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/experiment"
)

// setters lists the parameters a sweep can vary.
var setters = map[string]func(*config.Config, float64){
	"kt":       func(c *config.Config, v float64) { c.MD.KT = v },
	"timestep": func(c *config.Config, v float64) { c.MD.Timestep = v },
	"friction": func(c *config.Config, v float64) { c.MD.Friction = v },
	"seed":     func(c *config.Config, v float64) { c.MD.Seed = int64(v) },
}

// ParameterSweep varies Param linearly from Min to Max over Points runs of
// Base. Every run writes its engine files into its own directory under Dir.
type ParameterSweep struct {
	Base    *config.Config
	Param   string
	Min     float64
	Max     float64
	Points  int
	Dir     string
	Workers int
	Logger  *slog.Logger
}

type SweepResult struct {
	ParamValue  float64
	Steps       int
	FinalEnergy float64
	EnergyDrift float64
	Temperature float64
	Stability   float64
}

func (s *ParameterSweep) validate() error {
	if s.Base == nil {
		return dynamo.Configf("sweep needs a base configuration")
	}
	if _, ok := setters[s.Param]; !ok {
		return dynamo.Configf("cannot sweep %q (have kt, timestep, friction, seed)", s.Param)
	}
	if s.Points < 1 {
		return dynamo.Configf("sweep needs at least one point, got %d", s.Points)
	}
	if s.Points > 1 && !(s.Max > s.Min) {
		return dynamo.Configf("sweep max %g must exceed min %g", s.Max, s.Min)
	}
	return nil
}

// Values returns the parameter value of every point.
func (s *ParameterSweep) Values() []float64 {
	vals := make([]float64, s.Points)
	if s.Points == 1 {
		vals[0] = s.Min
		return vals
	}
	step := (s.Max - s.Min) / float64(s.Points-1)
	for i := range vals {
		vals[i] = s.Min + float64(i)*step
	}
	return vals
}

// RunSweep executes the points concurrently and returns results in point
// order. The first failing point cancels the rest.
func RunSweep(ctx context.Context, sweep *ParameterSweep) ([]SweepResult, error) {
	if err := sweep.validate(); err != nil {
		return nil, err
	}
	log := sweep.Logger
	if log == nil {
		log = slog.Default()
	}
	workers := sweep.Workers
	if workers <= 0 {
		workers = 1
	}

	values := sweep.Values()
	results := make([]SweepResult, len(values))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, v := range values {
		i, v := i, v
		g.Go(func() error {
			r, err := runPoint(ctx, sweep, i, v, log)
			if err != nil {
				return fmt.Errorf("sweep point %d (%s=%g): %w", i, sweep.Param, v, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runPoint(ctx context.Context, sweep *ParameterSweep, i int, v float64, log *slog.Logger) (SweepResult, error) {
	cfg := sweep.Base.Clone()
	setters[sweep.Param](cfg, v)
	cfg.MD.Trajectory = ""

	dir := filepath.Join(sweep.Dir, fmt.Sprintf("%s_%03d", sweep.Param, i))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return SweepResult{}, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}

	p, err := experiment.New(cfg, log.With("point", i))
	if err != nil {
		return SweepResult{}, err
	}
	res, err := p.Forward(ctx, experiment.RunOptions{Dir: dir})
	if res != nil && res.Store != nil {
		res.Store.Close()
	}
	if err != nil {
		return SweepResult{}, err
	}

	log.Info("sweep point finished", sweep.Param, v, "drift", res.EnergyDrift)
	return SweepResult{
		ParamValue:  v,
		Steps:       res.Steps,
		FinalEnergy: res.FinalEnergy,
		EnergyDrift: res.EnergyDrift,
		Temperature: res.Metrics["temperature"],
		Stability:   res.Metrics["stability"],
	}, nil
}
