package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/trajectory"
)

type Simulator struct {
	integ     Integrator
	store     trajectory.Store
	metrics   []dynamo.Metric
	observers []dynamo.Observer
	log       *slog.Logger
	phase     Phase
}

// New returns a simulator writing snapshots to store. A nil store records
// nothing.
func New(integ Integrator, store trajectory.Store) *Simulator {
	return &Simulator{
		integ:     integ,
		store:     store,
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]dynamo.Observer, 0),
		log:       slog.Default(),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) SetLogger(l *slog.Logger)      { s.log = l }
func (s *Simulator) Phase() Phase                  { return s.phase }

// Run integrates cfg.Steps steps. There is no early exit on energy or
// divergence; only ctx cancellation stops a run before the last step.
func (s *Simulator) Run(ctx context.Context, cfg Config) (_ *Result, err error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if s.phase != Uninitialized {
		return nil, fmt.Errorf("simulator is %s", s.phase)
	}
	s.phase = Running
	defer func() {
		if err != nil {
			s.phase = Failed
		}
	}()
	start := time.Now()

	for _, m := range s.metrics {
		m.Reset()
	}

	result := &Result{Metrics: make(map[string]float64)}
	if err := s.integ.Init(); err != nil {
		return nil, &dynamo.StageError{Stage: "md", Step: 0, Wrapped: err}
	}
	s.log.Info("md started", "steps", cfg.Steps, "stride", cfg.Stride, "dt", s.integ.Timestep())

	sample := s.sample(0)
	result.InitialEnergy = sample.Total()
	s.notify(sample)
	if err := s.record(sample, result); err != nil {
		return result, err
	}

	for i := 1; i <= cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := s.integ.Step(i); err != nil {
			return result, &dynamo.StageError{Stage: "md", Step: i, Wrapped: err}
		}
		result.Steps++

		sample = s.sample(i)
		s.notify(sample)
		if i%cfg.Stride == 0 {
			if err := s.record(sample, result); err != nil {
				return result, err
			}
		}
	}

	result.FinalEnergy = sample.Total()
	if result.InitialEnergy != 0 {
		result.EnergyDrift = math.Abs(result.FinalEnergy-result.InitialEnergy) / math.Abs(result.InitialEnergy)
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Elapsed = time.Since(start)
	s.phase = Finished
	s.log.Info("md finished", "steps", result.Steps, "frames", result.Frames, "elapsed", result.Elapsed)
	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Steps < 0 {
		return dynamo.Configf("steps must be non-negative, got %d", cfg.Steps)
	}
	if cfg.Stride <= 0 {
		return dynamo.Configf("stride must be positive, got %d", cfg.Stride)
	}
	return nil
}

func (s *Simulator) sample(step int) dynamo.Sample {
	sys := s.integ.System()
	return dynamo.Sample{
		Step:        step,
		Time:        float64(step) * s.integ.Timestep(),
		Positions:   sys.Positions,
		Velocities:  sys.Velocities,
		Potential:   s.integ.Last().Energy,
		Kinetic:     sys.KineticEnergy(),
		Temperature: sys.Temperature(),
	}
}

func (s *Simulator) notify(sample dynamo.Sample) {
	for _, m := range s.metrics {
		m.Observe(sample)
	}
	for _, o := range s.observers {
		o.OnStep(sample)
	}
}

func (s *Simulator) record(sample dynamo.Sample, result *Result) error {
	if s.store == nil {
		return nil
	}
	err := s.store.Append(trajectory.Snapshot{
		Step:       sample.Step,
		Time:       sample.Time,
		Positions:  sample.Positions,
		Velocities: sample.Velocities,
		Energy:     sample.Potential,
	})
	if err != nil {
		return &dynamo.StageError{Stage: "trajectory", Step: sample.Step, Wrapped: err}
	}
	result.Frames++
	return nil
}
