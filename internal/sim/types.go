package sim

import (
	"time"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/particles"
)

// Integrator advances one system. Init evaluates step 0; Step(i) moves the
// system from step i-1 to step i.
type Integrator interface {
	Init() error
	Step(step int) error
	Last() dynamo.Result
	System() *particles.System
	Timestep() float64
}

// Phase is the run state machine: Uninitialized -> Running -> Finished,
// or Failed when a run returns an error.
type Phase int

const (
	Uninitialized Phase = iota
	Running
	Finished
	Failed
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type Config struct {
	Steps int
	// Stride records step 0 and every step divisible by it.
	Stride int
}

func DefaultConfig() Config {
	return Config{Steps: 100000, Stride: 10}
}

// RecordedFrames is the number of snapshots a run of cfg appends.
func (c Config) RecordedFrames() int {
	return c.Steps/c.Stride + 1
}

type Result struct {
	Steps         int
	Frames        int
	InitialEnergy float64
	FinalEnergy   float64
	// EnergyDrift is |E_final - E_initial| / |E_initial| of the total energy.
	EnergyDrift float64
	Metrics     map[string]float64
	Elapsed     time.Duration
}
