package plumed

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/ljmetad/internal/bias"
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var moments = []string{
	"UNITS LENGTH=A TIME=0.001 ENERGY=96.48533212331",
	"c1: COORDINATIONNUMBER SPECIES=1-7 MOMENTS=2-3 SWITCH={RATIONAL R_0=1.5 NN=8 MM=16}",
}

func cluster() dynamo.Frame {
	pos := dynamo.Frame{{0.05, -0.02, 0}}
	for k := 0; k < 6; k++ {
		a := float64(k) * math.Pi / 3
		r := 1.12 + 0.07*float64(k%3)
		pos = append(pos, dynamo.Vec3{r * math.Cos(a), r * math.Sin(a), 0})
	}
	return pos
}

func newEngine(t *testing.T, lines ...string) *Engine {
	t.Helper()
	e, err := New(Config{Directives: append(append([]string(nil), moments...), lines...), Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, e.Init(bias.InitParams{NumAtoms: 7, Masses: make([]float64, 7), Timestep: 0.005, KT: 0.1}))
	t.Cleanup(func() { e.Close() })
	return e
}

func TestParse(t *testing.T) {
	dirs, err := Parse([]string{
		"# header comment",
		"",
		"c1: COORDINATIONNUMBER SPECIES=1-7 SWITCH={RATIONAL R_0=1.5 NN=8 MM=16} MEAN # trailing",
		"METAD ...",
		"  LABEL=mtd ARG=c1.mean",
		"  PACE=10",
		"...",
		"PRINT ARG=c1.mean",
		"ENDPLUMED",
		"this is not parsed",
	})
	require.NoError(t, err)
	require.Len(t, dirs, 3)

	assert.Equal(t, "c1", dirs[0].Label)
	assert.Equal(t, "COORDINATIONNUMBER", dirs[0].Name)
	assert.Equal(t, "RATIONAL R_0=1.5 NN=8 MM=16", dirs[0].keys["SWITCH"])
	assert.True(t, dirs[0].flags["MEAN"])

	assert.Equal(t, "mtd", dirs[1].Label)
	assert.Equal(t, "10", dirs[1].keys["PACE"])
	assert.Equal(t, 4, dirs[1].Line)

	assert.Equal(t, "@2", dirs[2].Label)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"unbalanced", []string{"c1: COORDINATIONNUMBER SWITCH={RATIONAL R_0=1"}},
		{"empty label", []string{": PRINT ARG=x"}},
		{"duplicate key", []string{"PRINT ARG=x ARG=y"}},
		{"open continuation", []string{"METAD ...", "ARG=x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.lines)
			assert.Error(t, err)
		})
	}
}

func TestNew_MalformedIsEngineError(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"unknown action", []string{"DISTANCE ATOMS=1,2"}},
		{"unknown switch", []string{"c1: COORDINATIONNUMBER SPECIES=1-7 MOMENTS=2 SWITCH={EXP R_0=1}"}},
		{"missing species", []string{"c1: COORDINATIONNUMBER MOMENTS=2 SWITCH={RATIONAL R_0=1}"}},
		{"unknown keyword", []string{"c1: COORDINATIONNUMBER SPECIES=1-7 MOMENTS=2 SWITCH={RATIONAL R_0=1} FOO=3"}},
		{"unknown arg", append(moments[1:], "PRINT ARG=c2.* FILE=COLVAR")},
		{"sigma count", append(moments[1:], "METAD ARG=c1.moment-2,c1.moment-3 SIGMA=0.05 HEIGHT=1 PACE=5")},
		{"bad pace", append(moments[1:], "METAD ARG=c1.moment-2 SIGMA=0.05 HEIGHT=1 PACE=0")},
		{"bad units", []string{"UNITS LENGTH=furlong"}},
		{"duplicate label", []string{moments[1], moments[1]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{Directives: tt.lines, Dir: t.TempDir()})
			require.Error(t, err)
			assert.True(t, errors.Is(err, dynamo.ErrExternalEngine))
		})
	}
}

func TestUnits(t *testing.T) {
	e, err := New(Config{Directives: moments})
	require.NoError(t, err)
	u := e.Units()
	assert.InDelta(t, 0.1, u.Length, 1e-15)
	assert.InDelta(t, 0.001, u.Time, 1e-15)
	assert.InDelta(t, 96.48533212331, u.Energy, 1e-9)
	assert.Equal(t, []string{"c1.moment-2", "c1.moment-3"}, e.Components())
}

func TestRational(t *testing.T) {
	sw := Rational{R0: 1.5, D0: 0.2, DMax: math.Inf(1), NN: 8, MM: 16}

	v, d := sw.Eval(0.1)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 0.0, d)

	v, d = sw.Eval(1.7)
	assert.InDelta(t, 0.5, v, 1e-9)
	assert.InDelta(t, -2/1.5, d, 1e-6)

	for _, r := range []float64{0.5, 1.0, 1.3, 2.2, 3.5} {
		const h = 1e-6
		vp, _ := sw.Eval(r + h)
		vm, _ := sw.Eval(r - h)
		_, d := sw.Eval(r)
		assert.InDelta(t, (vp-vm)/(2*h), d, 1e-6, "r=%g", r)
	}

	cut := Rational{R0: 1, DMax: 2, NN: 6, MM: 12}
	v, _ = cut.Eval(2.5)
	assert.Equal(t, 0.0, v)
}

func TestCoordination_GradientMatchesFiniteDifference(t *testing.T) {
	e, err := New(Config{Directives: []string{
		"c1: COORDINATIONNUMBER SPECIES=1-7 MEAN MOMENTS=2-3 SWITCH={RATIONAL R_0=1.5 NN=8 MM=16}",
	}})
	require.NoError(t, err)
	c := e.actions[0].(*coordination)

	eval := func(pos dynamo.Frame) map[string]*value {
		ev := &evaluation{pos: pos, values: map[string]*value{}}
		require.NoError(t, c.apply(ev))
		return ev.values
	}

	pos := cluster()
	base := eval(pos)
	const h = 1e-6
	for _, name := range []string{"c1.mean", "c1.moment-2", "c1.moment-3"} {
		for i := range pos {
			for k := 0; k < 2; k++ {
				p := pos.Clone()
				p[i][k] += h
				up := eval(p)[name].v
				p[i][k] -= 2 * h
				down := eval(p)[name].v
				assert.InDelta(t, (up-down)/(2*h), base[name].grad[i][k], 1e-6, "%s atom %d axis %d", name, i, k)
			}
		}
	}
	assert.Equal(t, 0.0, base["c1.moment-2"].grad[0][2])
}

func TestMetad_DepositScheduleAndForces(t *testing.T) {
	e := newEngine(t,
		"mtd: METAD ARG=c1.moment-2,c1.moment-3 SIGMA=0.05,0.05 HEIGHT=0.03 PACE=2 FILE=HILLS",
	)

	pos := cluster()
	for step := 0; step <= 6; step++ {
		p := pos.Clone()
		p[1][0] += 0.01 * float64(step)
		_, err := e.Evaluate(bias.State{Step: step, Time: float64(step) * 0.005, Positions: p})
		require.NoError(t, err)
	}
	// step 0 is the first evaluation and never deposits
	hills := e.Hills("mtd")
	require.Len(t, hills, 3)
	assert.InDelta(t, 0.01, hills[0].Time, 1e-12)
	assert.InDelta(t, 0.03, hills[0].Height, 1e-15)

	out, err := e.Evaluate(bias.State{Step: 7, Positions: pos})
	require.NoError(t, err)
	assert.Greater(t, out.Energy, 0.0)

	energy := func(p dynamo.Frame) float64 {
		o, err := e.Evaluate(bias.State{Step: 7, Positions: p})
		require.NoError(t, err)
		return o.Energy
	}
	const h = 1e-6
	for i := range pos {
		for k := 0; k < 2; k++ {
			p := pos.Clone()
			p[i][k] += h
			up := energy(p)
			p[i][k] -= 2 * h
			down := energy(p)
			assert.InDelta(t, -(up-down)/(2*h), out.Forces[i][k], 1e-5)
		}
	}
}

func TestMetad_WellTemperedHillsFile(t *testing.T) {
	dir := t.TempDir()
	lines := append(append([]string(nil), moments...),
		"mtd: METAD ARG=c1.moment-2,c1.moment-3 SIGMA=0.05,0.05 HEIGHT=0.03 PACE=1 BIASFACTOR=5 FILE=HILLS",
		"PRINT ARG=c1.*,mtd.bias STRIDE=2 FILE=COLVAR",
	)
	e, err := New(Config{Directives: lines, Dir: dir})
	require.NoError(t, err)
	require.NoError(t, e.Init(bias.InitParams{NumAtoms: 7, KT: 0.1, Timestep: 0.005}))

	pos := cluster()
	for step := 0; step < 5; step++ {
		_, err := e.Evaluate(bias.State{Step: step, Time: float64(step), Positions: pos})
		require.NoError(t, err)
	}
	require.NoError(t, e.Close())

	live := e.Hills("mtd")
	require.Len(t, live, 4)
	// same CV point every step, so each hill is damped by the bias before it
	assert.Greater(t, live[0].Height, live[3].Height)

	hills, cvs, err := ReadHills(filepath.Join(dir, "HILLS"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1.moment-2", "c1.moment-3"}, cvs)
	require.Len(t, hills, 4)
	for i, h := range hills {
		assert.InDelta(t, live[i].Height*5/4, h.Height, 1e-9)
		assert.InDelta(t, 5, h.BiasFactor, 1e-9)
		assert.InDelta(t, 0.05, h.Sigma[1], 1e-9)
	}

	colvar, err := ReadTable(filepath.Join(dir, "COLVAR"))
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "c1.moment-2", "c1.moment-3", "mtd.bias"}, colvar.Fields)
	assert.Len(t, colvar.Rows, 3)
	assert.Equal(t, []float64{0, 2, 4}, colvar.Column(0))
}

func TestEngine_BacksUpExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "COLVAR"), []byte("old\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bck.0.COLVAR"), []byte("older\n"), 0o644))

	e, err := New(Config{Directives: append(append([]string(nil), moments...), "PRINT ARG=c1.* FILE=COLVAR"), Dir: dir})
	require.NoError(t, err)
	require.NoError(t, e.Init(bias.InitParams{NumAtoms: 7}))
	require.NoError(t, e.Close())

	b, err := os.ReadFile(filepath.Join(dir, "bck.1.COLVAR"))
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(b))
}

func TestEngine_InitChecksAtoms(t *testing.T) {
	e, err := New(Config{Directives: moments, Dir: t.TempDir()})
	require.NoError(t, err)
	err = e.Init(bias.InitParams{NumAtoms: 5})
	assert.Error(t, err)
}

func TestEngine_NoBiasMeansZeroForces(t *testing.T) {
	e := newEngine(t)
	out, err := e.Evaluate(bias.State{Step: 3, Positions: cluster()})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Energy)
	for _, f := range out.Forces {
		assert.Equal(t, dynamo.Vec3{}, f)
	}
}

func TestSetPrintStride(t *testing.T) {
	in := []string{
		"c1: COORDINATIONNUMBER SPECIES=1-7 MOMENTS=2-3 SWITCH={RATIONAL R_0=1.5 NN=8 MM=16}",
		"PRINT ARG=c1.* STRIDE=100 FILE=COLVAR # every 100",
		"p2: PRINT ARG=c1.moment-2 FILE=CV2",
		"FLUSH STRIDE=1000",
	}
	out := SetPrintStride(in, 10)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, "PRINT ARG=c1.* FILE=COLVAR STRIDE=10 # every 100", out[1])
	assert.Equal(t, "p2: PRINT ARG=c1.moment-2 FILE=CV2 STRIDE=10", out[2])
	assert.Equal(t, in[3], out[3])
	assert.Equal(t, "PRINT ARG=c1.* STRIDE=100 FILE=COLVAR # every 100", in[1])
}

func TestSetPrintStride_Continuation(t *testing.T) {
	in := []string{
		"c1: COORDINATIONNUMBER SPECIES=1-7 MOMENTS=2-3 SWITCH={RATIONAL R_0=1.5 NN=8 MM=16}",
		"PRINT ...",
		"  ARG=c1.*",
		"  STRIDE=100 # as in the forward run",
		"  FILE=COLVAR",
		"...",
		"FLUSH STRIDE=1000",
	}
	out := SetPrintStride(in, 10)
	assert.Equal(t, []string{in[0], "PRINT ARG=c1.* FILE=COLVAR STRIDE=10", in[6]}, out)

	dirs, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, dirs, 3)
	assert.Equal(t, "PRINT", dirs[1].Name)

	open := []string{"PRINT ...", "ARG=c1.*"}
	assert.Equal(t, open, SetPrintStride(open, 10))
}

func TestReadDirectives_Missing(t *testing.T) {
	_, err := ReadDirectives(filepath.Join(t.TempDir(), "plumed.dat"))
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
}

func TestReadTable_ColumnMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "COLVAR")
	require.NoError(t, os.WriteFile(path, []byte("#! FIELDS time a\n0 1\n1 2 3\n"), 0o644))
	_, err := ReadTable(path)
	assert.True(t, errors.Is(err, dynamo.ErrIO))
}
