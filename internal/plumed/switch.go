package plumed

import (
	"fmt"
	"math"
	"strings"
)

// Rational is the switching function s(r) = (1-x^n)/(1-x^m) with
// x = (r-d0)/r0. s is 1 below d0 and 0 beyond dmax.
type Rational struct {
	R0, D0, DMax float64
	NN, MM       int
}

// parseSwitch reads the body of a SWITCH={...} keyword.
func parseSwitch(v string) (Rational, error) {
	d, err := parseLine(v)
	if err != nil {
		return Rational{}, err
	}
	if d.Name != "RATIONAL" {
		return Rational{}, fmt.Errorf("unsupported switching function %q", strings.ToLower(d.Name))
	}
	sw := Rational{DMax: math.Inf(1)}
	if sw.R0, err = d.float("R_0", 0); err != nil {
		return sw, err
	}
	if sw.D0, err = d.float("D_0", 0); err != nil {
		return sw, err
	}
	if sw.DMax, err = d.float("D_MAX", sw.DMax); err != nil {
		return sw, err
	}
	if sw.NN, err = d.int("NN", 6); err != nil {
		return sw, err
	}
	if sw.MM, err = d.int("MM", 0); err != nil {
		return sw, err
	}
	if err := d.done(); err != nil {
		return sw, err
	}
	if sw.MM == 0 {
		sw.MM = 2 * sw.NN
	}
	if sw.R0 <= 0 {
		return sw, fmt.Errorf("RATIONAL needs R_0 > 0")
	}
	if sw.NN <= 0 || sw.MM <= 0 || sw.NN == sw.MM {
		return sw, fmt.Errorf("RATIONAL needs distinct positive NN and MM, got %d and %d", sw.NN, sw.MM)
	}
	return sw, nil
}

// Eval returns s(r) and ds/dr.
func (s Rational) Eval(r float64) (float64, float64) {
	if r > s.DMax {
		return 0, 0
	}
	if r <= s.D0 {
		return 1, 0
	}
	x := (r - s.D0) / s.R0
	n, m := float64(s.NN), float64(s.MM)
	if math.Abs(x-1) < 1e-8 {
		return n / m, 0.5 * n * (n - m) / m / s.R0
	}
	xn := math.Pow(x, n)
	xm := math.Pow(x, m)
	num := 1 - xn
	den := 1 - xm
	val := num / den
	dx := (-n*xn/x*den + m*xm/x*num) / (den * den)
	return val, dx / s.R0
}
