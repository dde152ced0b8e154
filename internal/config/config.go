package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/plumed"
	"github.com/san-kum/ljmetad/internal/units"
)

const (
	DefaultTimestep  = 0.005
	DefaultKT        = 0.1
	DefaultFriction  = 1.0
	DefaultSteps     = 100000
	DefaultStride    = 10
	DefaultRc        = 3.0
	DefaultR0        = 2.5
	DefaultParticles = 7
)

type Config struct {
	System     SystemConfig     `yaml:"system"`
	ForceField ForceFieldConfig `yaml:"forcefield"`
	MD         MDConfig         `yaml:"md"`
	Plumed     PlumedConfig     `yaml:"plumed"`
	FES        FESConfig        `yaml:"fes"`
}

type SystemConfig struct {
	// Geometry is an XYZ file; empty means the built-in hexagonal cluster.
	Geometry    string     `yaml:"geometry"`
	Symbol      string     `yaml:"symbol"`
	Masses      []float64  `yaml:"masses"`
	PlaneNormal [3]float64 `yaml:"plane_normal"`
}

type ForceFieldConfig struct {
	Type    string  `yaml:"type"`
	Sigma   float64 `yaml:"sigma"`
	Epsilon float64 `yaml:"epsilon"`
	Rc      float64 `yaml:"rc"`
	R0      float64 `yaml:"r0"`
	Smooth  bool    `yaml:"smooth"`
}

type MDConfig struct {
	Integrator string  `yaml:"integrator"`
	Timestep   float64 `yaml:"timestep"`
	KT         float64 `yaml:"kt"`
	Friction   float64 `yaml:"friction"`
	FixCM      bool    `yaml:"fixcm"`
	Steps      int     `yaml:"steps"`
	Stride     int     `yaml:"stride"`
	Seed       int64   `yaml:"seed"`
	// Trajectory is the SQLite file frames are recorded into. Empty keeps
	// them in memory.
	Trajectory string `yaml:"trajectory"`
}

type PlumedConfig struct {
	Directives []string `yaml:"directives"`
	// File replaces Directives when set.
	File string `yaml:"file"`
	// KT overrides md.kt for the engine when positive.
	KT  float64 `yaml:"kt"`
	Log string  `yaml:"log"`
	// Dir receives COLVAR, HILLS and the other engine files. Empty means
	// the working directory.
	Dir string `yaml:"dir"`
}

type FESConfig struct {
	Hills     string    `yaml:"hills"`
	Outfile   string    `yaml:"outfile"`
	Bins      []int     `yaml:"bins"`
	Min       []float64 `yaml:"min"`
	Max       []float64 `yaml:"max"`
	Tool      string    `yaml:"tool"`
	Binary    string    `yaml:"binary"`
	MinToZero bool      `yaml:"mintozero"`
}

// MomentDirectives is the engine input of the cluster run: host units, the
// second and third central moments of the coordination numbers, a COLVAR
// row every 100 steps and a flush every 1000.
func MomentDirectives() []string {
	return []string{
		fmt.Sprintf("UNITS LENGTH=A TIME=%v ENERGY=%v", 1/units.Ps, units.Mol/units.KJ),
		"c1: COORDINATIONNUMBER SPECIES=1-7 MOMENTS=2-3 SWITCH={RATIONAL R_0=1.5 NN=8 MM=16}",
		"PRINT ARG=c1.* STRIDE=100 FILE=COLVAR",
		"FLUSH STRIDE=1000",
	}
}

func DefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			Symbol:      "Ar",
			Masses:      []float64{1, 1, 1, 1, 1, 1, 1},
			PlaneNormal: [3]float64{0, 0, 1},
		},
		ForceField: ForceFieldConfig{
			Type:    "lj",
			Sigma:   1,
			Epsilon: 1,
			Rc:      DefaultRc,
			R0:      DefaultR0,
			Smooth:  true,
		},
		MD: MDConfig{
			Integrator: "langevin",
			Timestep:   DefaultTimestep,
			KT:         DefaultKT,
			Friction:   DefaultFriction,
			Steps:      DefaultSteps,
			Stride:     DefaultStride,
			Seed:       1,
		},
		Plumed: PlumedConfig{
			Directives: MomentDirectives(),
		},
		FES: FESConfig{
			Hills:   "HILLS",
			Outfile: "fes.dat",
			Bins:    []int{300, 300},
			Min:     []float64{0.3, -0.35},
			Max:     []float64{1.2, 1.56},
			Tool:    "auto",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: config: %v", dynamo.ErrIO, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrConfiguration, path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks everything that can be checked before the geometry is
// loaded.
func (c *Config) Validate() error {
	for i, m := range c.System.Masses {
		if m <= 0 {
			return dynamo.Configf("system.masses[%d] must be positive, got %g", i, m)
		}
	}
	if len(c.System.Masses) == 0 {
		return dynamo.Configf("system.masses must be set explicitly")
	}
	if c.System.PlaneNormal == [3]float64{} {
		return dynamo.Configf("system.plane_normal must be non-zero")
	}
	switch c.ForceField.Type {
	case "lj", "idealgas":
	default:
		return dynamo.Configf("unknown forcefield type %q", c.ForceField.Type)
	}
	switch c.MD.Integrator {
	case "langevin", "verlet":
	default:
		return dynamo.Configf("unknown integrator %q", c.MD.Integrator)
	}
	if c.MD.Timestep <= 0 {
		return dynamo.Configf("md.timestep must be positive, got %g", c.MD.Timestep)
	}
	if c.MD.KT < 0 || c.MD.Friction < 0 {
		return dynamo.Configf("md.kt and md.friction must be non-negative")
	}
	if c.MD.Steps < 0 {
		return dynamo.Configf("md.steps must be non-negative, got %d", c.MD.Steps)
	}
	if c.MD.Stride <= 0 {
		return dynamo.Configf("md.stride must be positive, got %d", c.MD.Stride)
	}
	if n := len(c.FES.Bins); n != 0 && (n != len(c.FES.Min) || n != len(c.FES.Max)) {
		return dynamo.Configf("fes.bins, fes.min and fes.max must have the same length")
	}
	switch c.FES.Tool {
	case "", "auto", "plumed", "sum_hills":
	default:
		return dynamo.Configf("unknown fes tool %q", c.FES.Tool)
	}
	return nil
}

// EngineDirectives returns the directive lines, reading plumed.file when set.
// No directives means the run is unbiased.
func (c *Config) EngineDirectives() ([]string, error) {
	if c.Plumed.File != "" {
		return plumed.ReadDirectives(c.Plumed.File)
	}
	return c.Plumed.Directives, nil
}

// EngineKT is the thermal energy handed to the bias engine.
func (c *Config) EngineKT() float64 {
	if c.Plumed.KT > 0 {
		return c.Plumed.KT
	}
	return c.MD.KT
}
