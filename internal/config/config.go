package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt    = 0.5
	DefaultSteps = 10
	DefaultModel = "logistic"

	// EnvPrefix marks environment overrides; "__" separates nested keys,
	// e.g. POPSIM_PARAMS__BETA=0.4.
	EnvPrefix = "POPSIM_"
)

const (
	StopWithinTotal = "within_total"
	StopNonNegative = "non_negative"
)

// Scenario is one analysis: a model, its parameters and what to compute
// from it.
type Scenario struct {
	Name       string             `yaml:"name"`
	Model      string             `yaml:"model"`
	Dt         float64            `yaml:"dt"`
	Steps      int                `yaml:"steps"`
	Seed       int64              `yaml:"seed"`
	Workers    int                `yaml:"workers"`
	Params     map[string]float64 `yaml:"params"`
	Initial    []float64          `yaml:"initial"`
	Initials   [][]float64        `yaml:"initials,omitempty"`
	Random     *RandomConfig      `yaml:"random_initials,omitempty"`
	Stop       *StopConfig        `yaml:"stop,omitempty"`
	Field      *FieldConfig       `yaml:"field,omitempty"`
	Slope      *SlopeConfig       `yaml:"slope,omitempty"`
	Nullclines []NullclineConfig  `yaml:"nullclines,omitempty"`
	Sweep      *SweepConfig       `yaml:"sweep,omitempty"`
}

type AxisConfig struct {
	Component int     `yaml:"component"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	N         int     `yaml:"n"`
}

// RandomConfig draws Count initial conditions uniformly from the box
// [Min, Max], seeded by Scenario.Seed.
type RandomConfig struct {
	Count int       `yaml:"count"`
	Min   []float64 `yaml:"min"`
	Max   []float64 `yaml:"max"`
}

type StopConfig struct {
	Kind       string  `yaml:"kind"`
	Limit      float64 `yaml:"limit"`
	Components []int   `yaml:"components"`
}

type FieldConfig struct {
	Axes []AxisConfig `yaml:"axes"`
	Base []float64    `yaml:"base,omitempty"`
}

// SlopeConfig is the (t, x) slope field of a one-dimensional model.
type SlopeConfig struct {
	Component int        `yaml:"component"`
	T         AxisConfig `yaml:"t"`
	X         AxisConfig `yaml:"x"`
}

type NullclineConfig struct {
	Component  int         `yaml:"component"`
	X          AxisConfig  `yaml:"x"`
	Y          *AxisConfig `yaml:"y,omitempty"`
	Base       []float64   `yaml:"base,omitempty"`
	Resolution int         `yaml:"resolution"`
}

// SweepConfig varies Param ("dt" or a rate constant) and records the
// long-run values of Component.
type SweepConfig struct {
	Param     string  `yaml:"param"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	N         int     `yaml:"n"`
	Component int     `yaml:"component"`
	Transient int     `yaml:"transient"`
	Record    int     `yaml:"record"`
}

func DefaultScenario() *Scenario {
	return &Scenario{
		Name:    "default",
		Model:   DefaultModel,
		Dt:      DefaultDt,
		Steps:   DefaultSteps,
		Params:  map[string]float64{},
		Initial: []float64{0.05},
	}
}

// Load reads a YAML scenario on top of the defaults and applies
// POPSIM_-prefixed environment overrides.
func Load(path string) (*Scenario, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	cfg := DefaultScenario()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Scenario) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the scenario shape. Numerical constraints that depend on
// the model (dimensions, required parameters) are checked by the simulator.
func (s *Scenario) Validate() error {
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if s.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", s.Dt)
	}
	if s.Steps < 0 {
		return fmt.Errorf("steps must be non-negative, got %d", s.Steps)
	}
	if r := s.Random; r != nil {
		if r.Count < 0 {
			return fmt.Errorf("random_initials.count must be non-negative, got %d", r.Count)
		}
		if len(r.Min) != len(r.Max) {
			return fmt.Errorf("random_initials: min has %d components, max has %d", len(r.Min), len(r.Max))
		}
		for i := range r.Min {
			if r.Min[i] > r.Max[i] {
				return fmt.Errorf("random_initials: min[%d] > max[%d]", i, i)
			}
		}
	}
	if st := s.Stop; st != nil {
		switch st.Kind {
		case StopWithinTotal, StopNonNegative:
		default:
			return fmt.Errorf("unknown stop kind %q", st.Kind)
		}
	}
	if f := s.Field; f != nil && len(f.Axes) == 0 {
		return fmt.Errorf("field requires at least one axis")
	}
	if sw := s.Sweep; sw != nil {
		if sw.Param == "" {
			return fmt.Errorf("sweep.param is required")
		}
		if sw.N < 1 || sw.Min > sw.Max {
			return fmt.Errorf("sweep: invalid range [%g, %g] with %d points", sw.Min, sw.Max, sw.N)
		}
	}
	return nil
}

// Clone returns a deep copy, so presets can be overridden safely.
// StopLimit is the population bound of a within_total stop condition, or
// zero when the scenario has none.
func (s *Scenario) StopLimit() float64 {
	if s.Stop == nil || s.Stop.Kind != StopWithinTotal {
		return 0
	}
	return s.Stop.Limit
}

func (s *Scenario) Clone() *Scenario {
	c := *s
	c.Params = make(map[string]float64, len(s.Params))
	for k, v := range s.Params {
		c.Params[k] = v
	}
	c.Initial = append([]float64(nil), s.Initial...)
	if s.Initials != nil {
		c.Initials = make([][]float64, len(s.Initials))
		for i, x := range s.Initials {
			c.Initials[i] = append([]float64(nil), x...)
		}
	}
	if s.Random != nil {
		r := *s.Random
		r.Min = append([]float64(nil), s.Random.Min...)
		r.Max = append([]float64(nil), s.Random.Max...)
		c.Random = &r
	}
	if s.Stop != nil {
		st := *s.Stop
		st.Components = append([]int(nil), s.Stop.Components...)
		c.Stop = &st
	}
	if s.Field != nil {
		f := FieldConfig{
			Axes: append([]AxisConfig(nil), s.Field.Axes...),
			Base: append([]float64(nil), s.Field.Base...),
		}
		c.Field = &f
	}
	if s.Slope != nil {
		sl := *s.Slope
		c.Slope = &sl
	}
	if s.Sweep != nil {
		sw := *s.Sweep
		c.Sweep = &sw
	}
	if s.Nullclines != nil {
		c.Nullclines = make([]NullclineConfig, len(s.Nullclines))
		for i, n := range s.Nullclines {
			n.Base = append([]float64(nil), n.Base...)
			if n.Y != nil {
				y := *n.Y
				n.Y = &y
			}
			c.Nullclines[i] = n
		}
	}
	return &c
}
