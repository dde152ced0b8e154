package units

import (
	"math"
	"strings"
	"testing"
)

func TestHostConstants(t *testing.T) {
	// one host time unit is about 10.18 fs
	if got := 1 / Fs; math.Abs(got-10.1805) > 1e-3 {
		t.Errorf("host time unit = %f fs, want ~10.1805", got)
	}
	if got := Mol / KJ; math.Abs(got-96.4853) > 1e-3 {
		t.Errorf("eV in kJ/mol = %f, want ~96.4853", got)
	}
}

func TestBetween_HostMatchesDeclaredEngine(t *testing.T) {
	declared := System{Length: 0.1, Time: 1 / Ps, Energy: Mol / KJ}
	s := Between(Host(), declared)
	if !s.Identity() {
		t.Errorf("expected identity scale, got %+v", s)
	}
}

func TestBetween_Default(t *testing.T) {
	s := Between(Host(), Engine())
	if math.Abs(s.Length-0.1) > 1e-15 {
		t.Errorf("length scale = %g, want 0.1", s.Length)
	}
	if math.Abs(s.Force()-s.Energy/0.1) > 1e-12 {
		t.Errorf("force scale inconsistent: %g", s.Force())
	}
	inv := s.Inverse()
	if math.Abs(inv.Energy*s.Energy-1) > 1e-15 {
		t.Errorf("inverse energy scale wrong: %g", inv.Energy)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		parse func(string) (float64, error)
		in    string
		want  float64
		fail  bool
	}{
		{"angstrom", ParseLength, "A", 0.1, false},
		{"nm", ParseLength, "nm", 1, false},
		{"numeric length", ParseLength, "0.5", 0.5, false},
		{"bad length", ParseLength, "parsec", 0, true},
		{"fs", ParseTime, "fs", 0.001, false},
		{"numeric time", ParseTime, "0.0101805", 0.0101805, false},
		{"negative time", ParseTime, "-1", 0, true},
		{"kcal", ParseEnergy, "kcal/mol", 4.184, false},
		{"ev", ParseEnergy, "eV", Mol / KJ, false},
		{"zero energy", ParseEnergy, "0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parse(tt.in)
			if tt.fail {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %g, want %g", got, tt.want)
			}
		})
	}
}

func TestDirectiveRoundTrip(t *testing.T) {
	line := Host().Directive()
	fields := strings.Fields(line)
	if len(fields) != 4 || fields[0] != "UNITS" {
		t.Fatalf("unexpected directive %q", line)
	}
	var got System
	var err error
	for _, f := range fields[1:] {
		k, v, _ := strings.Cut(f, "=")
		switch k {
		case "LENGTH":
			got.Length, err = ParseLength(v)
		case "TIME":
			got.Time, err = ParseTime(v)
		case "ENERGY":
			got.Energy, err = ParseEnergy(v)
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if !Between(Host(), got).Identity() {
		t.Errorf("directive %q does not reproduce the host system", line)
	}
}
