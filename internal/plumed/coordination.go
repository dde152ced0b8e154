package plumed

import (
	"fmt"
	"math"
	"strconv"

	"github.com/san-kum/ljmetad/internal/bias"
	"github.com/san-kum/ljmetad/internal/dynamo"
)

// coordination computes per-atom coordination numbers c_i = sum_j s(r_ij)
// over the species and reduces them to their mean and central moments.
type coordination struct {
	name    string
	species []int // 0-based
	sw      Rational
	mean    bool
	moments []int
}

func newCoordination(d *Directive) (*coordination, error) {
	c := &coordination{name: d.Label}
	spec, err := d.required("SPECIES")
	if err != nil {
		return nil, err
	}
	idx, err := parseList(spec)
	if err != nil {
		return nil, fmt.Errorf("COORDINATIONNUMBER %s: SPECIES: %w", d.Label, err)
	}
	for _, i := range idx {
		c.species = append(c.species, i-1)
	}
	if len(c.species) < 2 {
		return nil, fmt.Errorf("COORDINATIONNUMBER %s: needs at least two atoms", d.Label)
	}

	sw, err := d.required("SWITCH")
	if err != nil {
		return nil, err
	}
	if c.sw, err = parseSwitch(sw); err != nil {
		return nil, fmt.Errorf("COORDINATIONNUMBER %s: %w", d.Label, err)
	}

	c.mean = d.flag("MEAN")
	if mom, ok := d.take("MOMENTS"); ok {
		if c.moments, err = parseList(mom); err != nil {
			return nil, fmt.Errorf("COORDINATIONNUMBER %s: MOMENTS: %w", d.Label, err)
		}
		for _, k := range c.moments {
			if k < 2 {
				return nil, fmt.Errorf("COORDINATIONNUMBER %s: moments start at 2", d.Label)
			}
		}
	}
	d.flag("NOPBC")
	if !c.mean && len(c.moments) == 0 {
		return nil, fmt.Errorf("COORDINATIONNUMBER %s: nothing to compute, give MEAN or MOMENTS", d.Label)
	}
	return c, d.done()
}

func (c *coordination) label() string { return c.name }

func (c *coordination) components() []string {
	var out []string
	if c.mean {
		out = append(out, c.name+".mean")
	}
	for _, k := range c.moments {
		out = append(out, c.name+".moment-"+strconv.Itoa(k))
	}
	return out
}

func (c *coordination) start(_ *Engine, p bias.InitParams) error {
	for _, i := range c.species {
		if i >= p.NumAtoms {
			return fmt.Errorf("COORDINATIONNUMBER %s: atom %d out of range for %d atoms", c.name, i+1, p.NumAtoms)
		}
	}
	return nil
}

type pairTerm struct {
	a, b int // positions in species
	g    float64
	d    dynamo.Vec3
}

func (c *coordination) apply(ev *evaluation) error {
	m := len(c.species)
	cn := make([]float64, m)
	pairs := make([]pairTerm, 0, m*(m-1)/2)

	for a := 0; a < m; a++ {
		for b := a + 1; b < m; b++ {
			d := ev.pos[c.species[a]].Sub(ev.pos[c.species[b]])
			r := d.Norm()
			s, ds := c.sw.Eval(r)
			cn[a] += s
			cn[b] += s
			if ds != 0 && r > 0 {
				pairs = append(pairs, pairTerm{a: a, b: b, g: ds / r, d: d})
			}
		}
	}

	mu := 0.0
	for _, v := range cn {
		mu += v
	}
	mu /= float64(m)

	// u holds dQ/dc_i for the quantity being reduced.
	reduce := func(name string, q float64, u []float64) {
		grad := make(dynamo.Frame, len(ev.pos))
		for _, p := range pairs {
			f := p.d.Scale((u[p.a] + u[p.b]) * p.g)
			ia, ib := c.species[p.a], c.species[p.b]
			grad[ia] = grad[ia].Add(f)
			grad[ib] = grad[ib].Sub(f)
		}
		ev.values[name] = &value{v: q, grad: grad}
	}

	if c.mean {
		u := make([]float64, m)
		for i := range u {
			u[i] = 1 / float64(m)
		}
		reduce(c.name+".mean", mu, u)
	}
	for _, k := range c.moments {
		kf := float64(k)
		q := 0.0
		w := make([]float64, m)
		wsum := 0.0
		for i, v := range cn {
			dev := v - mu
			q += math.Pow(dev, kf)
			w[i] = kf / float64(m) * math.Pow(dev, kf-1)
			wsum += w[i]
		}
		q /= float64(m)
		wsum /= float64(m)
		for i := range w {
			w[i] -= wsum
		}
		reduce(c.name+".moment-"+strconv.Itoa(k), q, w)
	}
	return nil
}
