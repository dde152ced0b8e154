package plumed

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/san-kum/ljmetad/internal/bias"
)

type metad struct {
	name   string
	args   []string
	sigma  []float64
	height float64
	pace   int
	biasf  float64
	file   string

	kT    float64
	hills []Hill
	first bool

	f *os.File
	w *bufio.Writer
}

func newMetad(d *Directive, known *registry) (*metad, error) {
	md := &metad{name: d.Label, first: true}
	arg, err := d.required("ARG")
	if err != nil {
		return nil, err
	}
	md.args = known.expand(arg)
	for _, a := range md.args {
		if !known.has(a) {
			return nil, fmt.Errorf("METAD %s: unknown argument %q", d.Label, a)
		}
	}
	if md.sigma, err = d.floats("SIGMA"); err != nil {
		return nil, err
	}
	if len(md.sigma) != len(md.args) {
		return nil, fmt.Errorf("METAD %s: %d SIGMA values for %d arguments", d.Label, len(md.sigma), len(md.args))
	}
	for _, s := range md.sigma {
		if s <= 0 {
			return nil, fmt.Errorf("METAD %s: SIGMA must be positive", d.Label)
		}
	}
	if md.height, err = d.float("HEIGHT", 0); err != nil {
		return nil, err
	}
	if md.height <= 0 {
		return nil, fmt.Errorf("METAD %s: HEIGHT must be positive", d.Label)
	}
	if md.pace, err = d.int("PACE", 0); err != nil {
		return nil, err
	}
	if md.pace <= 0 {
		return nil, fmt.Errorf("METAD %s: PACE must be positive", d.Label)
	}
	if md.biasf, err = d.float("BIASFACTOR", 1); err != nil {
		return nil, err
	}
	if md.biasf < 1 {
		return nil, fmt.Errorf("METAD %s: BIASFACTOR must be >= 1", d.Label)
	}
	if md.kT, err = d.float("KBT", 0); err != nil {
		return nil, err
	}
	md.file, _ = d.take("FILE")
	if md.file == "" {
		md.file = "HILLS"
	}
	return md, d.done()
}

func (m *metad) label() string        { return m.name }
func (m *metad) components() []string { return []string{m.name + ".bias"} }

func (m *metad) wellTempered() bool { return m.biasf > 1 }

func (m *metad) start(e *Engine, p bias.InitParams) error {
	if m.kT == 0 {
		m.kT = p.KT
	}
	if m.wellTempered() && m.kT <= 0 {
		return fmt.Errorf("METAD %s: well-tempered bias needs a positive kT", m.name)
	}
	f, err := e.create(m.file)
	if err != nil {
		return err
	}
	m.f = f
	m.w = bufio.NewWriter(f)
	fields := []string{"time"}
	fields = append(fields, m.args...)
	for _, a := range m.args {
		fields = append(fields, "sigma_"+a)
	}
	fields = append(fields, "height", "biasf")
	fmt.Fprintf(m.w, "#! FIELDS %s\n", strings.Join(fields, " "))
	fmt.Fprintf(m.w, "#! SET multivariate false\n")
	fmt.Fprintf(m.w, "#! SET kerneltype gaussian\n")
	return nil
}

func (m *metad) apply(ev *evaluation) error {
	s := make([]float64, len(m.args))
	for k, a := range m.args {
		v, ok := ev.values[a]
		if !ok || v.grad == nil {
			return fmt.Errorf("METAD %s: %s has no derivatives", m.name, a)
		}
		s[k] = v.v
	}

	dV := make([]float64, len(s))
	V := Sum(m.hills, s, dV)
	for k, a := range m.args {
		g := ev.values[a].grad
		for i := range ev.forces {
			ev.forces[i] = ev.forces[i].Sub(g[i].Scale(dV[k]))
		}
	}
	ev.bias += V
	ev.values[m.name+".bias"] = &value{v: V}

	if ev.step%m.pace == 0 && !m.first {
		if err := m.deposit(ev.time, s, V); err != nil {
			return err
		}
	}
	m.first = false
	return nil
}

func (m *metad) deposit(t float64, s []float64, V float64) error {
	h := Hill{
		Time:       t,
		Center:     append([]float64(nil), s...),
		Sigma:      m.sigma,
		Height:     m.height,
		BiasFactor: m.biasf,
	}
	written := h.Height
	if m.wellTempered() {
		h.Height *= math.Exp(-V / (m.kT * (m.biasf - 1)))
		written = h.Height * m.biasf / (m.biasf - 1)
	}
	m.hills = append(m.hills, h)

	if m.w == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%20.9f", t)
	for _, v := range s {
		fmt.Fprintf(&b, " %14.9f", v)
	}
	for _, v := range m.sigma {
		fmt.Fprintf(&b, " %14.9f", v)
	}
	fmt.Fprintf(&b, " %20.12g %8.3f\n", written, m.biasf)
	_, err := m.w.WriteString(b.String())
	return err
}

// Hills returns the deposits made so far.
func (m *metad) Hills() []Hill { return m.hills }

func (m *metad) flush() error {
	if m.w == nil {
		return nil
	}
	return m.w.Flush()
}

func (m *metad) stop() error {
	if m.f == nil {
		return nil
	}
	err := m.w.Flush()
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	m.f, m.w = nil, nil
	return err
}
