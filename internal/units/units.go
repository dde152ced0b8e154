// Package units keeps the host and engine unit systems and the one-time
// scale factors between them.
//
// Host (native) units: length in Å, energy in eV, mass in amu, and time in
// Å·sqrt(amu/eV). Engine units are expressed, as PLUMED does, relative to
// nm, ps and kJ/mol.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	ElementaryCharge = 1.602176634e-19 // C
	AtomicMassUnit   = 1.66053906660e-27
	Avogadro         = 6.02214076e23
	Boltzmann        = 8.617333262e-5 // eV/K
)

var (
	// Fs is one femtosecond in host time units.
	Fs = 1e-5 * math.Sqrt(ElementaryCharge/AtomicMassUnit)
	Ps = 1000 * Fs
	// KJ is one kilojoule in eV.
	KJ  = 1000 / ElementaryCharge
	Mol = Avogadro
)

// System is a unit system measured in nm, ps and kJ/mol.
type System struct {
	Length float64
	Time   float64
	Energy float64
}

// Host is the native system of the force field and integrator.
func Host() System {
	return System{Length: 0.1, Time: 1 / Ps, Energy: Mol / KJ}
}

// Engine is the default unit system of the bias engine.
func Engine() System {
	return System{Length: 1, Time: 1, Energy: 1}
}

// Directive renders s as a bias-engine UNITS line.
func (s System) Directive() string {
	return fmt.Sprintf("UNITS LENGTH=%v TIME=%v ENERGY=%v", s.Length, s.Time, s.Energy)
}

// Scale multiplies a quantity in one system to obtain it in another.
type Scale struct {
	Length float64
	Time   float64
	Energy float64
}

// Between returns factors converting from `from` to `to`.
func Between(from, to System) Scale {
	return Scale{
		Length: from.Length / to.Length,
		Time:   from.Time / to.Time,
		Energy: from.Energy / to.Energy,
	}
}

// Force converts an energy/length quantity.
func (s Scale) Force() float64 { return s.Energy / s.Length }

func (s Scale) Inverse() Scale {
	return Scale{Length: 1 / s.Length, Time: 1 / s.Time, Energy: 1 / s.Energy}
}

func (s Scale) Identity() bool {
	return s.Length == 1 && s.Time == 1 && s.Energy == 1
}

// ParseLength accepts a number (in nm) or one of nm, A, um, Bohr.
func ParseLength(v string) (float64, error) {
	switch strings.ToLower(v) {
	case "nm":
		return 1, nil
	case "a":
		return 0.1, nil
	case "um":
		return 1000, nil
	case "bohr":
		return 0.052917721067, nil
	}
	return parsePositive("LENGTH", v)
}

// ParseTime accepts a number (in ps) or one of ps, fs, ns, atomic.
func ParseTime(v string) (float64, error) {
	switch strings.ToLower(v) {
	case "ps":
		return 1, nil
	case "fs":
		return 0.001, nil
	case "ns":
		return 1000, nil
	case "atomic":
		return 2.418884326509e-5, nil
	}
	return parsePositive("TIME", v)
}

// ParseEnergy accepts a number (in kJ/mol) or one of kj/mol, kcal/mol, j/mol,
// ev, hartree.
func ParseEnergy(v string) (float64, error) {
	switch strings.ToLower(v) {
	case "kj/mol":
		return 1, nil
	case "kcal/mol":
		return 4.184, nil
	case "j/mol":
		return 0.001, nil
	case "ev":
		return Mol / KJ, nil
	case "hartree":
		return 2625.499639, nil
	}
	return parsePositive("ENERGY", v)
}

func parsePositive(kind, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown %s unit %q", kind, v)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%s unit must be positive, got %g", kind, f)
	}
	return f, nil
}
