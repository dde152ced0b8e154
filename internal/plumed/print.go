package plumed

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/san-kum/ljmetad/internal/bias"
)

// printer writes a COLVAR-style table every stride steps.
type printer struct {
	name   string
	args   []string
	stride int
	file   string
	format string

	f *os.File
	w *bufio.Writer
}

func newPrinter(d *Directive, known *registry) (*printer, error) {
	p := &printer{name: d.Label}
	arg, err := d.required("ARG")
	if err != nil {
		return nil, err
	}
	p.args = known.expand(arg)
	for _, a := range p.args {
		if !known.has(a) {
			return nil, fmt.Errorf("PRINT: unknown argument %q", a)
		}
	}
	if p.stride, err = d.int("STRIDE", 1); err != nil {
		return nil, err
	}
	if p.stride <= 0 {
		return nil, fmt.Errorf("PRINT: STRIDE must be positive")
	}
	p.file, _ = d.take("FILE")
	p.format, _ = d.take("FMT")
	if p.format == "" {
		p.format = "%f"
	}
	return p, d.done()
}

func (p *printer) label() string        { return p.name }
func (p *printer) components() []string { return nil }

func (p *printer) start(e *Engine, _ bias.InitParams) error {
	var (
		f   *os.File
		err error
	)
	if p.file == "" {
		f = os.Stdout
	} else if f, err = e.create(p.file); err != nil {
		return err
	}
	p.f = f
	p.w = bufio.NewWriter(f)
	_, err = fmt.Fprintf(p.w, "#! FIELDS time %s\n", strings.Join(p.args, " "))
	return err
}

func (p *printer) apply(ev *evaluation) error {
	if ev.step%p.stride != 0 {
		return nil
	}
	var b strings.Builder
	b.WriteByte(' ')
	fmt.Fprintf(&b, p.format, ev.time)
	for _, a := range p.args {
		v, ok := ev.values[a]
		if !ok {
			return fmt.Errorf("PRINT: %s not computed", a)
		}
		b.WriteByte(' ')
		fmt.Fprintf(&b, p.format, v.v)
	}
	b.WriteByte('\n')
	_, err := p.w.WriteString(b.String())
	return err
}

func (p *printer) flush() error {
	if p.w == nil {
		return nil
	}
	return p.w.Flush()
}

func (p *printer) stop() error {
	if p.w == nil {
		return nil
	}
	err := p.w.Flush()
	if p.f != os.Stdout {
		if cerr := p.f.Close(); err == nil {
			err = cerr
		}
	}
	p.f, p.w = nil, nil
	return err
}

// flushAction flushes every open writer of the engine.
type flushAction struct {
	name   string
	stride int
	e      *Engine
}

func newFlush(d *Directive, e *Engine) (*flushAction, error) {
	fa := &flushAction{name: d.Label, e: e}
	var err error
	if fa.stride, err = d.int("STRIDE", 0); err != nil {
		return nil, err
	}
	if fa.stride <= 0 {
		return nil, fmt.Errorf("FLUSH: STRIDE must be positive")
	}
	return fa, d.done()
}

func (fa *flushAction) label() string        { return fa.name }
func (fa *flushAction) components() []string { return nil }

func (fa *flushAction) apply(ev *evaluation) error {
	if ev.step%fa.stride != 0 {
		return nil
	}
	return fa.e.flush()
}
