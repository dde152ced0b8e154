// Package analysis summarizes time series produced by a run: thermodynamic
// columns from the run loop and collective-variable columns from the bias
// engine's COLVAR file.
//
//   - [Summarize]: mean, spread and quantiles of one column
//   - [PowerSpectrum] and [DominantFrequency]: spectral content of a column
//   - [NewHistogram2D]: joint histogram of two columns, and the free energy
//     obtained by Boltzmann inversion of it
package analysis
