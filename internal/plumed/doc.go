// Package plumed is an in-process bias engine that understands the subset of
// PLUMED input used for small-cluster metadynamics: UNITS,
// COORDINATIONNUMBER moments, METAD, PRINT and FLUSH.
//
// An Engine satisfies bias.Engine. All values it reads and writes are in the
// units declared by the UNITS directive (nm, ps and kJ/mol when absent).
// Output files (COLVAR-style tables and the HILLS deposit log) use the
// PLUMED "#! FIELDS" layout so the same readers serve both this engine and
// files produced by a real PLUMED run.
package plumed
