// Package dynamo provides the shared primitives of the simulation pipeline.
//
// The package defines the small vocabulary every other package speaks:
//
//   - [Vec3] and [Frame]: per-particle vectors and ordered particle sets
//   - [Result]: energy, forces and optional virial of one force evaluation
//   - [ForceField]: pure, stateless native field (positions in, result out)
//   - [Calculator]: a step-aware force provider, such as the bias coupling
//   - [Sample], [Observer], [Metric]: hooks the run loop feeds every step
//
// # Example
//
//	lj := forcefield.NewLennardJones(3, 2.5, true)
//	res := lj.Evaluate(sys.Positions)
//
// # Errors
//
// Pipeline failures wrap one of [ErrConfiguration], [ErrExternalEngine] or
// [ErrIO] so callers can classify them with errors.Is. There is no error for
// numerical divergence: a diverging run completes and its output is suspect.
package dynamo
