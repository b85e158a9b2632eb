package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/popsim/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
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
	ID        string             `json:"id"`
	Scenario  string             `json:"scenario"`
	Model     string             `json:"model"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Dt        float64            `json:"dt"`
	Steps     int                `json:"steps"`
	Samples   int                `json:"samples"`
	Halted    bool               `json:"halted"`
	Warnings  int                `json:"warnings"`
	Labels    []string           `json:"labels"`
	Params    map[string]float64 `json:"params"`
	Metrics   map[string]float64 `json:"metrics"`
	Alerts    []WarningRecord    `json:"alerts,omitempty"`
}

// WarningRecord is a dynamo.Warning in JSON form. Infinite bounds are
// left out since JSON has no encoding for them.
type WarningRecord struct {
	Step      int      `json:"step"`
	Time      float64  `json:"time"`
	Component int      `json:"component"`
	Value     float64  `json:"value"`
	Lo        *float64 `json:"lo,omitempty"`
	Hi        *float64 `json:"hi,omitempty"`
}

func newWarningRecord(w dynamo.Warning) WarningRecord {
	return WarningRecord{
		Step:      w.Step,
		Time:      w.Time,
		Component: w.Component,
		Value:     w.Value,
		Lo:        finitePtr(w.Lo),
		Hi:        finitePtr(w.Hi),
	}
}

func (r WarningRecord) warning() dynamo.Warning {
	w := dynamo.Warning{
		Step:      r.Step,
		Time:      r.Time,
		Component: r.Component,
		Value:     r.Value,
		Lo:        math.Inf(-1),
		Hi:        math.Inf(1),
	}
	if r.Lo != nil {
		w.Lo = *r.Lo
	}
	if r.Hi != nil {
		w.Hi = *r.Hi
	}
	return w
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Run describes a finished trajectory to persist.
type Run struct {
	Scenario   string
	Model      string
	Seed       int64
	Steps      int
	Labels     []string
	Params     dynamo.Params
	Trajectory *dynamo.Trajectory
}

// Save writes metadata.json and states.csv under a fresh run directory and
// returns the run id.
func (s *Store) Save(run Run) (string, error) {
	tr := run.Trajectory
	if tr == nil {
		return "", fmt.Errorf("save %s: nil trajectory", run.Model)
	}
	runID := fmt.Sprintf("%s_%s", run.Model, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Scenario:  run.Scenario,
		Model:     run.Model,
		Timestamp: time.Now(),
		Seed:      run.Seed,
		Dt:        tr.Dt,
		Steps:     run.Steps,
		Samples:   tr.Len(),
		Halted:    tr.Halted,
		Warnings:  len(tr.Warnings),
		Labels:    run.Labels,
		Params:    run.Params.Map(),
		Metrics:   finiteOnly(tr.Metrics),
	}
	for _, w := range tr.Warnings {
		meta.Alerts = append(meta.Alerts, newWarningRecord(w))
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), run.Labels, tr); err != nil {
		return "", err
	}
	return runID, nil
}

// finiteOnly drops metrics JSON cannot encode, e.g. a peak over no samples.
func finiteOnly(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStates(path string, labels []string, tr *dynamo.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if tr.Len() > 0 {
		header := []string{"time"}
		for i := range tr.Samples[0].State {
			if i < len(labels) {
				header = append(header, labels[i])
			} else {
				header = append(header, "x"+strconv.Itoa(i))
			}
		}
		if err := w.Write(header); err != nil {
			return err
		}
	}

	for _, smp := range tr.Samples {
		row := []string{strconv.FormatFloat(smp.T, 'g', -1, 64)}
		for _, val := range smp.State {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns every readable run, oldest first.
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadStates reads the state table of a run. Malformed cells fail the load
// rather than shifting later columns.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)

	for i, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d: %w", statesFile, i+1, err)
		}
		times = append(times, t)

		state := make([]float64, 0, len(record)-1)
		for _, cell := range record[1:] {
			val, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s row %d: %w", statesFile, i+1, err)
			}
			state = append(state, val)
		}
		states = append(states, state)
	}

	return states, times, nil
}

// LoadTrajectory rebuilds a stored run. Derivatives are not persisted, so
// the returned trajectory has none.
func (s *Store) LoadTrajectory(runID string) (*RunMetadata, *dynamo.Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	states, times, err := s.LoadStates(runID)
	if err != nil {
		return nil, nil, err
	}

	tr := &dynamo.Trajectory{
		Samples: make([]dynamo.Sample, len(states)),
		Metrics: meta.Metrics,
		Halted:  meta.Halted,
		Dt:      meta.Dt,
	}
	for i := range states {
		tr.Samples[i] = dynamo.Sample{T: times[i], State: states[i]}
	}
	for _, r := range meta.Alerts {
		tr.Warnings = append(tr.Warnings, r.warning())
	}
	return meta, tr, nil
}
