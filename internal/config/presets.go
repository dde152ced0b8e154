package config

import (
	"sort"

	"gopkg.in/yaml.v3"
)

var Presets = map[string]*Config{
	"lj7": DefaultConfig(),
	"lj7-metad": func() *Config {
		c := DefaultConfig()
		c.Plumed.Directives = []string{
			c.Plumed.Directives[0],
			c.Plumed.Directives[1],
			"mtd: METAD ARG=c1.moment-2,c1.moment-3 SIGMA=0.05,0.05 HEIGHT=0.03 PACE=500 BIASFACTOR=5 FILE=HILLS",
			"PRINT ARG=c1.*,mtd.bias STRIDE=100 FILE=COLVAR",
			"FLUSH STRIDE=1000",
		}
		return c
	}(),
	"nve": func() *Config {
		c := DefaultConfig()
		c.MD.Integrator = "verlet"
		c.MD.Friction = 0
		c.MD.Steps = 100
		c.MD.Stride = 1
		c.Plumed.Directives = nil
		return c
	}(),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone deep-copies c through its YAML form.
func (c *Config) Clone() *Config {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}
