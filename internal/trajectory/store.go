// Package trajectory holds the append-only record of a run: one Snapshot per
// recorded step, in strictly increasing step order.
package trajectory

import (
	"fmt"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

type Snapshot struct {
	Step       int
	Time       float64
	Positions  dynamo.Frame
	Velocities dynamo.Frame
	// Energy is the total potential (native plus bias) at this step.
	Energy float64
}

func (s Snapshot) Clone() Snapshot {
	s.Positions = s.Positions.Clone()
	s.Velocities = s.Velocities.Clone()
	return s
}

// Meta describes how a trajectory was recorded.
type Meta struct {
	Stride   int       `json:"stride"`
	Timestep float64   `json:"timestep"`
	Symbols  []string  `json:"symbols"`
	Masses   []float64 `json:"masses"`
}

func (m Meta) NumAtoms() int { return len(m.Masses) }

// Store is an append-only ordered log. Snapshots cannot be removed or
// reordered; reads return copies.
type Store interface {
	Append(s Snapshot) error
	Len() int
	At(i int) (Snapshot, error)
	// Iterate calls fn for every snapshot in append order and stops at the
	// first error. It may be called any number of times.
	Iterate(fn func(Snapshot) error) error
	Meta() Meta
	Close() error
}

// checkAppend enforces ordering and shape for every store implementation.
func checkAppend(m Meta, last int, n int, s Snapshot) error {
	if n > 0 && s.Step <= last {
		return fmt.Errorf("trajectory: step %d does not follow step %d", s.Step, last)
	}
	if m.NumAtoms() > 0 && len(s.Positions) != m.NumAtoms() {
		return fmt.Errorf("%w: snapshot has %d positions, trajectory has %d atoms", dynamo.ErrDimensionMismatch, len(s.Positions), m.NumAtoms())
	}
	if s.Velocities != nil && len(s.Velocities) != len(s.Positions) {
		return fmt.Errorf("%w: %d velocities for %d positions", dynamo.ErrDimensionMismatch, len(s.Velocities), len(s.Positions))
	}
	return nil
}
