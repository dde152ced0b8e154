// Package replay re-evaluates a finished trajectory against the bias engine
// with a null native field, regenerating the engine's per-frame files
// without advancing any dynamics.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/ljmetad/internal/bias"
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/forcefield"
	"github.com/san-kum/ljmetad/internal/plumed"
	"github.com/san-kum/ljmetad/internal/trajectory"
)

// Opener builds a fresh engine writing its files under dir.
type Opener func(directives []string, dir string) (bias.Engine, error)

// PlumedOpener opens the in-process engine.
func PlumedOpener(log *slog.Logger) Opener {
	return func(directives []string, dir string) (bias.Engine, error) {
		return plumed.New(plumed.Config{Directives: directives, Dir: dir, Logger: log})
	}
}

type Driver struct {
	Directives []string
	// Dir receives the regenerated files.
	Dir string
	KT  float64
	// KeepStride leaves PRINT strides as written instead of aligning them
	// with the recording stride.
	KeepStride bool
	Open       Opener
	Logger     *slog.Logger
}

type Result struct {
	Frames     int
	Steps      []int
	BiasEnergy []float64
}

// Replay feeds every stored snapshot, in order, to the engine. Each frame is
// presented at its recorded step index so step- and time-dependent engine
// bookkeeping matches the original run. An empty store yields zero frames.
func (d *Driver) Replay(ctx context.Context, store trajectory.Store) (res *Result, err error) {
	meta := store.Meta()
	if meta.Stride <= 0 || meta.Timestep <= 0 {
		return nil, dynamo.Configf("trajectory has no recording stride or timestep")
	}
	if meta.NumAtoms() == 0 {
		return nil, dynamo.Configf("trajectory has no masses")
	}
	if len(d.Directives) == 0 {
		return nil, dynamo.Configf("replay needs the engine directives")
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	open := d.Open
	if open == nil {
		open = PlumedOpener(log)
	}

	dirs := d.Directives
	if !d.KeepStride {
		dirs = plumed.SetPrintStride(dirs, meta.Stride)
	}
	engine, err := open(dirs, d.Dir)
	if err != nil {
		if errors.Is(err, dynamo.ErrExternalEngine) {
			return nil, &dynamo.StageError{Stage: "replay", Step: -1, Wrapped: err}
		}
		return nil, &dynamo.StageError{Stage: "replay", Step: -1, Wrapped: fmt.Errorf("%w: %v", dynamo.ErrExternalEngine, err)}
	}

	coupling, err := bias.New(forcefield.IdealGas{}, engine, bias.Setup{
		Timestep: meta.Timestep,
		KT:       d.KT,
		Masses:   meta.Masses,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := coupling.Close(); cerr != nil && err == nil {
			err = &dynamo.StageError{Stage: "replay", Step: -1, Wrapped: fmt.Errorf("%w: %v", dynamo.ErrIO, cerr)}
		}
	}()

	log.Info("replay started", "frames", store.Len(), "stride", meta.Stride, "dir", d.Dir)
	res = &Result{}
	err = store.Iterate(func(s trajectory.Snapshot) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := coupling.Calculate(dynamo.Input{Step: s.Step, Positions: s.Positions, Masses: meta.Masses}); err != nil {
			return &dynamo.StageError{Stage: "replay", Step: s.Step, Wrapped: err}
		}
		res.Frames++
		res.Steps = append(res.Steps, s.Step)
		res.BiasEnergy = append(res.BiasEnergy, coupling.BiasEnergy())
		return nil
	})
	if err != nil {
		return res, err
	}
	log.Info("replay finished", "frames", res.Frames)
	return res, nil
}
