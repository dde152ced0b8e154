// Package storage keeps a directory of finished runs: one subdirectory per
// run holding metadata.json, thermo.csv and the trajectory database.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/metrics"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Preset     string             `json:"preset"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Timestep   float64            `json:"timestep"`
	Steps      int                `json:"steps"`
	Stride     int                `json:"stride"`
	Frames     int                `json:"frames"`
	Trajectory string             `json:"trajectory,omitempty"`
	Integrator string             `json:"integrator"`
	ForceField string             `json:"forcefield"`
	Directives []string           `json:"directives,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
}

// NewRun reserves a run directory and returns its id. The trajectory is
// written into RunDir(id) while the run is in progress.
func (s *Store) NewRun(preset string) (string, error) {
	runID := fmt.Sprintf("%s_%s", preset, uuid.New().String()[:8])
	if err := os.MkdirAll(s.RunDir(runID), 0755); err != nil {
		return "", fmt.Errorf("%w: %v", dynamo.ErrIO, err)
	}
	return runID, nil
}

func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// TrajectoryPath is where the run's frames are recorded: the path saved in
// its metadata, else traj.db inside the run directory.
func (s *Store) TrajectoryPath(runID string) string {
	if meta, err := s.Load(runID); err == nil && meta.Trajectory != "" {
		return meta.Trajectory
	}
	return filepath.Join(s.RunDir(runID), "traj.db")
}

// Save writes the metadata and thermodynamic log of a reserved run.
func (s *Store) Save(meta RunMetadata, thermo []metrics.ThermoRow) error {
	if meta.ID == "" {
		return dynamo.Configf("run metadata has no id")
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := s.RunDir(meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "thermo.csv"))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"step", "time", "potential", "kinetic", "total", "temperature"}); err != nil {
		return err
	}
	for _, r := range thermo {
		row := []string{
			strconv.Itoa(r.Step),
			strconv.FormatFloat(r.Time, 'g', -1, 64),
			strconv.FormatFloat(r.Potential, 'g', -1, 64),
			strconv.FormatFloat(r.Kinetic, 'g', -1, 64),
			strconv.FormatFloat(r.Total, 'g', -1, 64),
			strconv.FormatFloat(r.Temperature, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every saved run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: run %s: %v", dynamo.ErrIO, runID, err)
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadThermo(runID string) ([]metrics.ThermoRow, error) {
	file, err := os.Open(filepath.Join(s.RunDir(runID), "thermo.csv"))
	if err != nil {
		return nil, fmt.Errorf("%w: run %s: %v", dynamo.ErrIO, runID, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []metrics.ThermoRow{}, nil
	}

	rows := make([]metrics.ThermoRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != 6 {
			continue
		}
		step, err := strconv.Atoi(rec[0])
		if err != nil {
			continue
		}
		var v [5]float64
		ok := true
		for j := range v {
			if v[j], err = strconv.ParseFloat(rec[j+1], 64); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		rows = append(rows, metrics.ThermoRow{
			Step: step, Time: v[0], Potential: v[1], Kinetic: v[2], Total: v[3], Temperature: v[4],
		})
	}
	return rows, nil
}
