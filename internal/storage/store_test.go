package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/metrics"
	"github.com/san-kum/ljmetad/internal/trajectory"
)

func saveRun(t *testing.T, st *Store, preset string, at time.Time) string {
	t.Helper()
	id, err := st.NewRun(preset)
	if err != nil {
		t.Fatalf("new run failed: %v", err)
	}
	meta := RunMetadata{
		ID:         id,
		Preset:     preset,
		Timestamp:  at,
		Seed:       42,
		Timestep:   0.005,
		Integrator: "langevin",
		Metrics:    map[string]float64{"energy": -12.5},
	}
	thermo := []metrics.ThermoRow{
		{Step: 0, Time: 0, Potential: -12, Kinetic: 0.5, Total: -11.5, Temperature: 0.04},
		{Step: 10, Time: 0.05, Potential: -12.25, Kinetic: 0.75, Total: -11.5, Temperature: 0.06},
	}
	if err := st.Save(meta, thermo); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	return id
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID := saveRun(t, st, "lj7", time.Now())
	if !strings.HasPrefix(runID, "lj7_") {
		t.Errorf("unexpected run id %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Preset != "lj7" || meta.Seed != 42 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Metrics["energy"] != -12.5 {
		t.Errorf("expected energy -12.5, got %f", meta.Metrics["energy"])
	}

	rows, err := st.LoadThermo(runID)
	if err != nil {
		t.Fatalf("load thermo failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].Step != 10 || rows[1].Potential != -12.25 || rows[1].Temperature != 0.06 {
		t.Errorf("unexpected row %+v", rows[1])
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	now := time.Now()
	saveRun(t, st, "old", now.Add(-time.Hour))
	saveRun(t, st, "new", now)

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Preset != "new" {
		t.Errorf("expected newest first, got %s", runs[0].Preset)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID := saveRun(t, st, "nve", time.Now())
	for _, name := range []string{"metadata.json", "thermo.csv"} {
		if _, err := os.Stat(filepath.Join(tmpDir, runID, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
	if filepath.Dir(st.TrajectoryPath(runID)) != filepath.Join(tmpDir, runID) {
		t.Errorf("trajectory outside run dir: %s", st.TrajectoryPath(runID))
	}
}

func TestLoadMissing(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); !errors.Is(err, dynamo.ErrIO) {
		t.Errorf("expected io error, got %v", err)
	}
	if _, err := st.LoadThermo("nope"); !errors.Is(err, dynamo.ErrIO) {
		t.Errorf("expected io error, got %v", err)
	}
}

func TestSaveNeedsID(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Save(RunMetadata{}, nil); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	traj := trajectory.NewMemory(trajectory.Meta{Stride: 1, Timestep: 0.01, Masses: []float64{1, 1}})
	for i := 0; i < 3; i++ {
		err := traj.Append(trajectory.Snapshot{
			Step:      i,
			Time:      float64(i) * 0.01,
			Positions: dynamo.Frame{{float64(i), 0, 0}, {0, 1, 0}},
			Energy:    -1,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	meta := RunMetadata{ID: "x", Preset: "lj7"}
	if err := ExportJSON(&buf, meta, nil, traj); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var back ExportData
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(back.Frames) != 3 || back.Frames[2].Positions[0][0] != 2 {
		t.Errorf("unexpected frames %+v", back.Frames)
	}
	if back.Meta.Stride != 1 || back.Run.Preset != "lj7" {
		t.Errorf("unexpected header %+v / %+v", back.Meta, back.Run)
	}
}

func TestTrajectoryPath(t *testing.T) {
	st := New(t.TempDir())
	id := saveRun(t, st, "lj7", time.Now())
	if got, want := st.TrajectoryPath(id), filepath.Join(st.RunDir(id), "traj.db"); got != want {
		t.Errorf("default trajectory = %s, want %s", got, want)
	}

	meta, err := st.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	meta.Trajectory = "/scratch/lj7.db"
	if err := st.Save(*meta, nil); err != nil {
		t.Fatal(err)
	}
	if got := st.TrajectoryPath(id); got != "/scratch/lj7.db" {
		t.Errorf("recorded trajectory = %s, want /scratch/lj7.db", got)
	}
}
