package export

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/san-kum/popsim/internal/dynamo"
)

type ExportData struct {
	Scenario string             `json:"scenario,omitempty"`
	Model    string             `json:"model"`
	Dt       float64            `json:"dt"`
	Steps    int                `json:"steps"`
	Halted   bool               `json:"halted"`
	Labels   []string           `json:"labels"`
	Params   map[string]float64 `json:"params,omitempty"`
	Times    []float64          `json:"times"`
	States   [][]float64        `json:"states"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Warnings []WarningData      `json:"warnings,omitempty"`
}

type WarningData struct {
	Step      int     `json:"step"`
	Time      float64 `json:"time"`
	Component int     `json:"component"`
	Value     float64 `json:"value"`
}

// FromTrajectory flattens a trajectory for export.
func FromTrajectory(model string, labels []string, p dynamo.Params, tr *dynamo.Trajectory) ExportData {
	data := ExportData{
		Model:   model,
		Dt:      tr.Dt,
		Steps:   tr.Steps(),
		Halted:  tr.Halted,
		Labels:  labels,
		Params:  p.Map(),
		Times:   tr.Times(),
		States:  tr.States(),
		Metrics: finite(tr.Metrics),
	}
	for _, w := range tr.Warnings {
		data.Warnings = append(data.Warnings, WarningData{
			Step:      w.Step,
			Time:      w.Time,
			Component: w.Component,
			Value:     w.Value,
		})
	}
	return data
}

// finite drops values encoding/json rejects.
func finite(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func WriteJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}

func ExportJSONStdout(data ExportData) error {
	return WriteJSON(os.Stdout, data)
}
