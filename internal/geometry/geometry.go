// Package geometry loads the starting structure of a run.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"os"

	chem "github.com/rmera/gochem"
	v3 "github.com/rmera/gochem/v3"

	"github.com/san-kum/ljmetad/internal/dynamo"
)

// Structure is one frame of atomic positions and species.
type Structure struct {
	Symbols   []string
	Positions dynamo.Frame
}

func (s *Structure) Len() int { return len(s.Positions) }

// ReadXYZ reads the first frame of an XYZ file.
func ReadXYZ(path string) (*Structure, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: structure: %v", dynamo.ErrIO, err)
	}
	mol, err := chem.XYZFileRead(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrIO, path, err)
	}
	if mol.Len() == 0 || len(mol.Coords) == 0 {
		return nil, fmt.Errorf("%w: %s: no atoms", dynamo.ErrIO, path)
	}
	s := &Structure{
		Symbols:   make([]string, mol.Len()),
		Positions: make(dynamo.Frame, mol.Len()),
	}
	coords := mol.Coords[0]
	for i := 0; i < mol.Len(); i++ {
		s.Symbols[i] = mol.Atom(i).Symbol
		for k := 0; k < 3; k++ {
			s.Positions[i][k] = coords.At(i, k)
		}
	}
	return s, nil
}

// WriteXYZ writes a single frame with the given symbols.
func WriteXYZ(path string, symbols []string, pos dynamo.Frame) error {
	if len(symbols) != len(pos) {
		return fmt.Errorf("%w: %d symbols for %d positions", dynamo.ErrDimensionMismatch, len(symbols), len(pos))
	}
	if len(pos) == 0 {
		return errors.New("no atoms to write")
	}
	top := chem.NewTopology(0, 1)
	for _, sym := range symbols {
		top.AppendAtom(&chem.Atom{Symbol: sym})
	}
	coords := v3.Zeros(len(pos))
	for i, p := range pos {
		for k := 0; k < 3; k++ {
			coords.Set(i, k, p[k])
		}
	}
	if err := chem.XYZFileWrite(path, coords, top); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	return nil
}

// Hexagon is the 2D seven-particle cluster ground state: one particle at the
// origin and six on a ring at the pair-potential minimum, all in the z = 0
// plane.
func Hexagon(symbol string) *Structure {
	r := math.Pow(2, 1.0/6)
	s := &Structure{Symbols: make([]string, 7), Positions: make(dynamo.Frame, 7)}
	for i := range s.Symbols {
		s.Symbols[i] = symbol
	}
	for k := 0; k < 6; k++ {
		a := float64(k) * math.Pi / 3
		s.Positions[k+1] = dynamo.Vec3{r * math.Cos(a), r * math.Sin(a), 0}
	}
	return s
}
