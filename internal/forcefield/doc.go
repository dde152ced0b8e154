// Package forcefield provides the native pair potentials:
//
//   - [LennardJones]: cutoff Lennard-Jones, either shifted at the cutoff or
//     multiplied by a smooth switch between R0 and Rc
//   - [IdealGas]: the null field, zero energy and zero forces for any input
//
// Both satisfy [dynamo.ForceField] and are stateless given positions.
package forcefield
