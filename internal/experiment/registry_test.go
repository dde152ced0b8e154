package experiment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/ljmetad/internal/bias"
	"github.com/san-kum/ljmetad/internal/config"
	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/fes"
	"github.com/san-kum/ljmetad/internal/forcefield"
	"github.com/san-kum/ljmetad/internal/trajectory"
)

func TestRegistryLists(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"langevin", "verlet"}, r.ListIntegrators())
	assert.Equal(t, []string{"idealgas", "lj"}, r.ListForceFields())
	assert.Equal(t, []string{"auto", "plumed", "sum_hills"}, r.ListReconstructors())
}

func TestRegistryForceField(t *testing.T) {
	r := NewRegistry()

	ff, err := r.ForceField(config.DefaultConfig().ForceField)
	require.NoError(t, err)
	lj, ok := ff.(*forcefield.LennardJones)
	require.True(t, ok)
	assert.Equal(t, 3.0, lj.Rc)
	assert.True(t, lj.Smooth)

	bad := config.DefaultConfig().ForceField
	bad.R0 = 4
	_, err = r.ForceField(bad)
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))

	bad.Type = "morse"
	_, err = r.ForceField(bad)
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
}

func TestRegistryReconstructor(t *testing.T) {
	r := NewRegistry()

	tool, err := r.Reconstructor("sum_hills", "", nil)
	require.NoError(t, err)
	assert.IsType(t, fes.SumHills{}, tool)

	tool, err = r.Reconstructor("plumed", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "plumed", tool.(fes.PlumedTool).Binary)

	_, err = r.Reconstructor("gnuplot", "", nil)
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
}

func TestBuildSystemDefaultsToHexagon(t *testing.T) {
	p, err := New(config.DefaultConfig(), nil)
	require.NoError(t, err)
	sys, err := p.BuildSystem()
	require.NoError(t, err)
	assert.Equal(t, 7, sys.Len())
	assert.Equal(t, "Ar", sys.Symbols[0])
}

func TestBuildSystemMassMismatch(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.System.Masses = []float64{1, 1}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	_, err = p.BuildSystem()
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
}

func TestEngineWithoutDirectivesIsNop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Plumed.Directives = nil
	p, err := New(cfg, nil)
	require.NoError(t, err)
	e, err := p.Engine(t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, bias.Nop{}, e)
}

func TestForwardUsesConfiguredPaths(t *testing.T) {
	cfgDir, optDir := t.TempDir(), t.TempDir()
	cfg := config.DefaultConfig()
	cfg.MD.Steps = 20
	cfg.MD.Trajectory = filepath.Join(cfgDir, "mine.db")
	cfg.Plumed.Dir = cfgDir

	p, err := New(cfg, nil)
	require.NoError(t, err)

	t.Run("configuration", func(t *testing.T) {
		res, err := p.Forward(context.Background(), RunOptions{})
		require.NoError(t, err)
		assert.IsType(t, &trajectory.SQLite{}, res.Store)
		require.NoError(t, res.Store.Close())
		assert.FileExists(t, cfg.MD.Trajectory)
		assert.FileExists(t, filepath.Join(cfgDir, "COLVAR"))
	})

	t.Run("options override", func(t *testing.T) {
		traj := filepath.Join(optDir, "other.db")
		res, err := p.Forward(context.Background(), RunOptions{Trajectory: traj, Dir: optDir})
		require.NoError(t, err)
		require.NoError(t, res.Store.Close())
		assert.FileExists(t, traj)
		assert.FileExists(t, filepath.Join(optDir, "COLVAR"))
	})

	t.Run("memory when unset", func(t *testing.T) {
		mem := config.DefaultConfig()
		mem.MD.Steps = 20
		mem.Plumed.Dir = t.TempDir()
		p, err := New(mem, nil)
		require.NoError(t, err)
		res, err := p.Forward(context.Background(), RunOptions{})
		require.NoError(t, err)
		assert.IsType(t, &trajectory.Memory{}, res.Store)
		entries, err := os.ReadDir(mem.Plumed.Dir)
		require.NoError(t, err)
		assert.NotEmpty(t, entries)
	})
}
