package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/ljmetad/internal/dynamo"
	"github.com/san-kum/ljmetad/internal/metrics"
	"github.com/san-kum/ljmetad/internal/trajectory"
)

type ExportFrame struct {
	Step      int          `json:"step"`
	Time      float64      `json:"time"`
	Energy    float64      `json:"energy"`
	Positions dynamo.Frame `json:"positions"`
}

type ExportData struct {
	Run    RunMetadata         `json:"run"`
	Meta   trajectory.Meta     `json:"trajectory"`
	Thermo []metrics.ThermoRow `json:"thermo"`
	Frames []ExportFrame       `json:"frames"`
}

// ExportJSON writes a run and its trajectory as one indented JSON document.
// traj may be nil to export the metadata and thermo log only.
func ExportJSON(w io.Writer, meta RunMetadata, thermo []metrics.ThermoRow, traj trajectory.Store) error {
	data := ExportData{
		Run:    meta,
		Thermo: thermo,
		Frames: []ExportFrame{},
	}
	if traj != nil {
		data.Meta = traj.Meta()
		err := traj.Iterate(func(s trajectory.Snapshot) error {
			data.Frames = append(data.Frames, ExportFrame{
				Step:      s.Step,
				Time:      s.Time,
				Energy:    s.Energy,
				Positions: s.Positions,
			})
			return nil
		})
		if err != nil {
			return err
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
