package metrics

import (
	"math"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

// Energy is the mean total energy over all observed steps.
type Energy struct {
	name    string
	samples int
	total   float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(s dynamo.Sample) {
	e.total += s.Total()
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *Energy) Reset() {
	e.total = 0
	e.samples = 0
}

// EnergyDrift is the largest |E - E0| / |E0| seen, E0 being the first
// observed total energy.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(s dynamo.Sample) {
	energy := s.Total()
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// Temperature is the mean instantaneous temperature, in energy units.
type Temperature struct {
	name    string
	sum     float64
	samples int
}

func NewTemperature() *Temperature {
	return &Temperature{name: "temperature"}
}

func (t *Temperature) Name() string { return t.name }

func (t *Temperature) Observe(s dynamo.Sample) {
	t.sum += s.Temperature
	t.samples++
}

func (t *Temperature) Value() float64 {
	if t.samples == 0 {
		return 0
	}
	return t.sum / float64(t.samples)
}

func (t *Temperature) Reset() {
	t.sum = 0
	t.samples = 0
}
