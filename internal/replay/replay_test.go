package replay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/san-kum/ljmetad/internal/bias"
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/geometry"
	"github.com/san-kum/ljmetad/internal/plumed"
	"github.com/san-kum/ljmetad/internal/trajectory"
	"github.com/san-kum/ljmetad/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directives() []string {
	return []string{
		units.Host().Directive(),
		"c1: COORDINATIONNUMBER SPECIES=1-7 MOMENTS=2-3 SWITCH={RATIONAL R_0=1.5 NN=8 MM=16}",
		"PRINT ARG=c1.* STRIDE=100 FILE=COLVAR",
		"FLUSH STRIDE=1000",
	}
}

func recorded(t *testing.T, frames, stride int) *trajectory.Memory {
	t.Helper()
	h := geometry.Hexagon("Ar")
	store := trajectory.NewMemory(trajectory.Meta{
		Stride:   stride,
		Timestep: 0.005,
		Symbols:  h.Symbols,
		Masses:   []float64{1, 1, 1, 1, 1, 1, 1},
	})
	for i := 0; i < frames; i++ {
		pos := h.Positions.Clone()
		pos[1][0] += 0.01 * math.Sin(float64(i))
		require.NoError(t, store.Append(trajectory.Snapshot{Step: i * stride, Time: float64(i*stride) * 0.005, Positions: pos}))
	}
	return store
}

func TestReplay_OneRowPerFrame(t *testing.T) {
	for _, stride := range []int{1, 10, 250} {
		t.Run(fmt.Sprintf("stride %d", stride), func(t *testing.T) {
			dir := t.TempDir()
			store := recorded(t, 37, stride)
			d := &Driver{Directives: directives(), Dir: dir, KT: 0.1}

			res, err := d.Replay(context.Background(), store)
			require.NoError(t, err)
			assert.Equal(t, 37, res.Frames)

			colvar, err := plumed.ReadTable(filepath.Join(dir, "COLVAR"))
			require.NoError(t, err)
			assert.Equal(t, []string{"time", "c1.moment-2", "c1.moment-3"}, colvar.Fields)
			require.Len(t, colvar.Rows, 37)
			for i, row := range colvar.Rows {
				assert.InDelta(t, float64(i*stride)*0.005, row[0], 1e-6)
			}
		})
	}
}

func TestReplay_ContinuedPrint(t *testing.T) {
	dir := t.TempDir()
	dirs := []string{
		units.Host().Directive(),
		"c1: COORDINATIONNUMBER SPECIES=1-7 MOMENTS=2-3 SWITCH={RATIONAL R_0=1.5 NN=8 MM=16}",
		"PRINT ...",
		"ARG=c1.*",
		"STRIDE=100",
		"FILE=COLVAR",
		"...",
	}
	res, err := (&Driver{Directives: dirs, Dir: dir, KT: 0.1}).Replay(context.Background(), recorded(t, 12, 10))
	require.NoError(t, err)
	assert.Equal(t, 12, res.Frames)

	colvar, err := plumed.ReadTable(filepath.Join(dir, "COLVAR"))
	require.NoError(t, err)
	assert.Len(t, colvar.Rows, 12)
}

func TestReplay_EmptyStore(t *testing.T) {
	dir := t.TempDir()
	res, err := (&Driver{Directives: directives(), Dir: dir}).Replay(context.Background(), recorded(t, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Frames)

	colvar, err := plumed.ReadTable(filepath.Join(dir, "COLVAR"))
	require.NoError(t, err)
	assert.Empty(t, colvar.Rows)
}

type spyEngine struct {
	bias.Nop
	directives []string
	steps      []int
	positions  []dynamo.Frame
	closed     bool
}

func (s *spyEngine) Evaluate(st bias.State) (bias.Output, error) {
	s.steps = append(s.steps, st.Step)
	s.positions = append(s.positions, st.Positions.Clone())
	return bias.Output{Forces: make(dynamo.Frame, len(st.Positions)), Energy: 0.25}, nil
}

func (s *spyEngine) Close() error {
	s.closed = true
	return nil
}

func TestReplay_PresentsRecordedSteps(t *testing.T) {
	spy := &spyEngine{}
	d := &Driver{
		Directives: directives(),
		Open: func(dirs []string, _ string) (bias.Engine, error) {
			spy.directives = dirs
			return spy, nil
		},
	}
	store := recorded(t, 5, 20)
	res, err := d.Replay(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 20, 40, 60, 80}, spy.steps)
	assert.Equal(t, []int{0, 20, 40, 60, 80}, res.Steps)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25, 0.25}, res.BiasEnergy)
	assert.Contains(t, spy.directives, "PRINT ARG=c1.* FILE=COLVAR STRIDE=20")
	assert.True(t, spy.closed)

	for i, p := range spy.positions {
		sn, err := store.At(i)
		require.NoError(t, err)
		assert.Equal(t, sn.Positions, p)
	}
}

func TestReplay_KeepStride(t *testing.T) {
	spy := &spyEngine{}
	d := &Driver{
		Directives: directives(),
		KeepStride: true,
		Open: func(dirs []string, _ string) (bias.Engine, error) {
			spy.directives = dirs
			return spy, nil
		},
	}
	_, err := d.Replay(context.Background(), recorded(t, 2, 20))
	require.NoError(t, err)
	assert.Equal(t, directives(), spy.directives)
}

func TestReplay_Errors(t *testing.T) {
	t.Run("malformed directives", func(t *testing.T) {
		d := &Driver{Directives: []string{"c1: COORDINATIONNUMBER SWITCH={RATIONAL"}, Dir: t.TempDir()}
		_, err := d.Replay(context.Background(), recorded(t, 3, 10))
		assert.True(t, errors.Is(err, dynamo.ErrExternalEngine))
	})
	t.Run("no directives", func(t *testing.T) {
		_, err := (&Driver{}).Replay(context.Background(), recorded(t, 3, 10))
		assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
	})
	t.Run("no stride", func(t *testing.T) {
		store := trajectory.NewMemory(trajectory.Meta{Timestep: 0.005, Masses: []float64{1}})
		_, err := (&Driver{Directives: directives()}).Replay(context.Background(), store)
		assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := &Driver{Directives: directives(), Open: func([]string, string) (bias.Engine, error) { return &spyEngine{}, nil }}
		res, err := d.Replay(ctx, recorded(t, 3, 10))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, res.Frames)
	})
}
