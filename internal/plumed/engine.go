package plumed

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/san-kum/ljmetad/internal/bias"
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/units"
)

// Config is everything an Engine is built from.
type Config struct {
	Directives []string
	// Dir is where relative output files are written.
	Dir string
	// LogFile, when set, receives the engine's own log.
	LogFile string
	Logger  *slog.Logger
}

// Engine is the in-process bias engine.
type Engine struct {
	cfg     Config
	units   units.System
	actions []action
	known   *registry

	log     *slog.Logger
	logFile *os.File
	natoms  int
	started bool
}

var _ bias.Engine = (*Engine)(nil)

// New parses the directives. Malformed input wraps dynamo.ErrExternalEngine.
func New(cfg Config) (*Engine, error) {
	e := &Engine{
		cfg:   cfg,
		units: units.Engine(),
		known: newRegistry(),
		log:   cfg.Logger,
	}
	if e.log == nil {
		e.log = slog.Default()
	}

	dirs, err := Parse(cfg.Directives)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrExternalEngine, err)
	}
	seen := map[string]bool{}
	for _, d := range dirs {
		if seen[d.Label] {
			return nil, fmt.Errorf("%w: line %d: label %q defined twice", dynamo.ErrExternalEngine, d.Line, d.Label)
		}
		seen[d.Label] = true

		a, err := e.build(d)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", dynamo.ErrExternalEngine, d.Line, err)
		}
		if a == nil {
			continue
		}
		e.known.add(a.components()...)
		e.actions = append(e.actions, a)
	}
	return e, nil
}

func (e *Engine) build(d *Directive) (action, error) {
	switch d.Name {
	case "UNITS":
		return nil, e.setUnits(d)
	case "COORDINATIONNUMBER":
		return newCoordination(d)
	case "METAD":
		return newMetad(d, e.known)
	case "PRINT":
		return newPrinter(d, e.known)
	case "FLUSH":
		return newFlush(d, e)
	}
	return nil, fmt.Errorf("unsupported action %s", d.Name)
}

func (e *Engine) setUnits(d *Directive) error {
	if len(e.actions) > 0 {
		return fmt.Errorf("UNITS must come before any action")
	}
	var err error
	if v, ok := d.take("LENGTH"); ok {
		if e.units.Length, err = units.ParseLength(v); err != nil {
			return err
		}
	}
	if v, ok := d.take("TIME"); ok {
		if e.units.Time, err = units.ParseTime(v); err != nil {
			return err
		}
	}
	if v, ok := d.take("ENERGY"); ok {
		if e.units.Energy, err = units.ParseEnergy(v); err != nil {
			return err
		}
	}
	d.flag("NATURAL")
	return d.done()
}

func (e *Engine) Units() units.System { return e.units }

// Components lists every value the directives define, in definition order.
func (e *Engine) Components() []string {
	return append([]string(nil), e.known.names...)
}

// Init opens the output files and checks atom indices.
func (e *Engine) Init(p bias.InitParams) error {
	if e.started {
		return errors.New("engine already initialized")
	}
	if p.NumAtoms <= 0 {
		return fmt.Errorf("engine needs at least one atom")
	}
	if e.cfg.LogFile != "" {
		f, err := e.create(e.cfg.LogFile)
		if err != nil {
			return err
		}
		e.logFile = f
		e.log = slog.New(slog.NewTextHandler(f, nil))
	}
	e.natoms = p.NumAtoms
	e.started = true
	for _, a := range e.actions {
		if s, ok := a.(starter); ok {
			if err := s.start(e, p); err != nil {
				e.Close()
				return err
			}
		}
	}
	e.log.Info("bias engine initialized",
		"atoms", p.NumAtoms,
		"timestep", p.Timestep,
		"kT", p.KT,
		"actions", len(e.actions),
		"dir", e.cfg.Dir)
	return nil
}

// Evaluate runs every action on the state in order and returns the summed
// bias forces and energy.
func (e *Engine) Evaluate(s bias.State) (bias.Output, error) {
	if !e.started {
		return bias.Output{}, errors.New("engine not initialized")
	}
	if len(s.Positions) != e.natoms {
		return bias.Output{}, fmt.Errorf("%d positions for %d atoms", len(s.Positions), e.natoms)
	}
	ev := &evaluation{
		step:   s.Step,
		time:   s.Time,
		pos:    s.Positions,
		values: make(map[string]*value, len(e.known.names)),
		forces: make(dynamo.Frame, e.natoms),
	}
	for _, a := range e.actions {
		if err := a.apply(ev); err != nil {
			return bias.Output{}, err
		}
	}
	return bias.Output{Forces: ev.forces, Energy: ev.bias}, nil
}

// Hills returns the deposits of the METAD action with the given label.
func (e *Engine) Hills(label string) []Hill {
	for _, a := range e.actions {
		if m, ok := a.(*metad); ok && m.name == label {
			return append([]Hill(nil), m.hills...)
		}
	}
	return nil
}

func (e *Engine) flush() error {
	var errs []error
	for _, a := range e.actions {
		if f, ok := a.(flusher); ok {
			errs = append(errs, f.flush())
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every output file.
func (e *Engine) Close() error {
	var errs []error
	for _, a := range e.actions {
		if s, ok := a.(stopper); ok {
			errs = append(errs, s.stop())
		}
	}
	if e.logFile != nil {
		errs = append(errs, e.logFile.Close())
		e.logFile = nil
	}
	return errors.Join(errs...)
}

// create opens name under the output directory, moving any existing file
// to bck.N.name first.
func (e *Engine) create(name string) (*os.File, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.cfg.Dir, name)
	}
	if err := backup(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	return f, nil
}

func backup(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	dir, base := filepath.Split(path)
	for n := 0; ; n++ {
		dst := filepath.Join(dir, fmt.Sprintf("bck.%d.%s", n, base))
		if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
			if err := os.Rename(path, dst); err != nil {
				return fmt.Errorf("%w: %v", dynamo.ErrIO, err)
			}
			return nil
		}
	}
}
