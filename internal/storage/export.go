package storage

import (
	"encoding/json"
	"io"
	"os"
)

type ExportData struct {
	Meta     RunMetadata `json:"meta"`
	Times    []float64   `json:"times"`
	Torques  [][]float64 `json:"torques"`
	JointVel [][]float64 `json:"joint_vel"`
}

func newExport(meta RunMetadata, samples []Sample) ExportData {
	data := ExportData{
		Meta:     meta,
		Times:    make([]float64, len(samples)),
		Torques:  make([][]float64, len(samples)),
		JointVel: make([][]float64, len(samples)),
	}
	for i, s := range samples {
		data.Times[i] = s.Time
		data.Torques[i] = s.Torque
		data.JointVel[i] = s.JointVel
	}
	return data
}

// ExportJSON writes a run as one JSON document to w.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	samples, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExport(*meta, samples))
}

func (s *Store) ExportJSONFile(path, runID string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return s.ExportJSON(file, runID)
}
