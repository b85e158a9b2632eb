package config

import "sort"

var unitSquare = []AxisConfig{
	{Component: 0, Min: 0, Max: 1, N: 20},
	{Component: 1, Min: 0, Max: 1, N: 20},
}

var Presets = map[string]*Scenario{
	"logistic": {
		Name: "logistic", Model: "logistic", Dt: 0.5, Steps: 10,
		Params:  map[string]float64{"r": 1, "k": 1},
		Initial: []float64{0.05},
	},
	"logistic-slope": {
		Name: "logistic-slope", Model: "logistic", Dt: 0.5, Steps: 10,
		Params:  map[string]float64{"r": 1, "k": 1},
		Initial: []float64{0.05},
		Slope: &SlopeConfig{
			Component: 0,
			T:         AxisConfig{Min: -1, Max: 2, N: 20},
			X:         AxisConfig{Component: 0, Min: -1, Max: 2, N: 20},
		},
		Nullclines: []NullclineConfig{
			{Component: 0, X: AxisConfig{Component: 0, Min: -1, Max: 2, N: 20}},
		},
	},
	"logistic-sweep": {
		Name: "logistic-sweep", Model: "logistic", Dt: 0.5, Steps: 10,
		Params:  map[string]float64{"r": 1, "k": 1},
		Initial: []float64{0.05},
		Sweep: &SweepConfig{
			Param: "dt", Min: 0.1, Max: 2.9, N: 57,
			Component: 0, Transient: 400, Record: 64,
		},
	},
	"sir": {
		Name: "sir", Model: "sir", Dt: 1, Steps: 120,
		Params:  map[string]float64{"beta": 1.47e-7, "gamma": 0.0588},
		Initial: []float64{999000, 1000, 0},
	},
	"si-phase": {
		Name: "si-phase", Model: "si", Dt: 1, Steps: 100,
		Params: map[string]float64{"beta": 0.3, "gamma": 0.1},
		Initial: []float64{0.5, 0.5},
		Initials: [][]float64{
			{0.05, 0.95}, {0.1, 0.9}, {0.3, 0.7}, {0.5, 0.5}, {0.7, 0.3}, {0.9, 0.1},
		},
		Field: &FieldConfig{Axes: unitSquare},
		Nullclines: []NullclineConfig{
			{
				Component: 1,
				X:         AxisConfig{Component: 0, Min: 0, Max: 1, N: 20},
				Y:         &AxisConfig{Component: 1, Min: 0, Max: 1, N: 20},
			},
		},
	},
	"si-nullcline": {
		Name: "si-nullcline", Model: "si", Dt: 1, Steps: 100, Seed: 42,
		Params:  map[string]float64{"beta": 0.3, "gamma": 0.1},
		Initial: []float64{0.5, 0.2},
		Random: &RandomConfig{
			Count: 10,
			Min:   []float64{0.01, 0.01},
			Max:   []float64{1, 1},
		},
		Stop: &StopConfig{Kind: StopWithinTotal, Limit: 1, Components: []int{0, 1}},
		Field: &FieldConfig{Axes: []AxisConfig{
			{Component: 0, Min: 0.01, Max: 1, N: 20},
			{Component: 1, Min: 0.01, Max: 1, N: 20},
		}},
		Nullclines: []NullclineConfig{
			{
				Component: 1,
				X:         AxisConfig{Component: 0, Min: 0.01, Max: 1, N: 20},
				Y:         &AxisConfig{Component: 1, Min: 0.01, Max: 1, N: 20},
			},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Scenario {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
