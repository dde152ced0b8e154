package dynamo

import (
	"errors"
	"fmt"
)

// Error classes of the pipeline. Every failure surfaced by a stage wraps
// exactly one of the first three.
var (
	// ErrConfiguration indicates inconsistent setup: mismatched constraint
	// count, CV dimension versus bin/range configuration, missing directives.
	ErrConfiguration = errors.New("dynamo: configuration error")

	// ErrExternalEngine indicates the bias engine failed to initialize or
	// failed during a step. Never retried.
	ErrExternalEngine = errors.New("dynamo: external engine error")

	// ErrIO indicates a missing or unreadable structure, trajectory or
	// deposit-log file.
	ErrIO = errors.New("dynamo: i/o error")

	// ErrDimensionMismatch indicates per-particle data of the wrong length.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")
)

// Configf returns an ErrConfiguration-wrapped error.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// StageError wraps an error with the pipeline stage and step it occurred at.
// Step is -1 when the failure is not tied to a step.
type StageError struct {
	Stage   string
	Step    int
	Wrapped error
}

func (e *StageError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Wrapped)
	}
	return fmt.Sprintf("%s: step %d: %v", e.Stage, e.Step, e.Wrapped)
}

func (e *StageError) Unwrap() error {
	return e.Wrapped
}
