package experiment

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/san-kum/popsim/internal/analysis"
	"github.com/san-kum/popsim/internal/config"
	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/integrators"
)

// Result collects everything one scenario produced. Each analysis carries
// its own error so a failing nullcline does not hide the trajectories.
type Result struct {
	Scenario   *config.Scenario
	Runs       []dynamo.Run
	Field      *analysis.Grid
	FieldErr   error
	Nullclines []Nullcline
}

type Nullcline struct {
	Component int
	Curve     *analysis.Curve
	Err       error
}

// Failed reports whether any analysis returned an error.
func (r *Result) Failed() bool {
	if r.FieldErr != nil {
		return true
	}
	for _, run := range r.Runs {
		if run.Err != nil {
			return true
		}
	}
	for _, n := range r.Nullclines {
		if n.Err != nil {
			return true
		}
	}
	return false
}

type Experiment struct {
	cfg       *config.Scenario
	model     dynamo.System
	params    dynamo.Params
	simulator *dynamo.Simulator
	log       zerolog.Logger
}

// New resolves the scenario's model and builds an Euler simulator with the
// model's default metrics attached.
func New(cfg *config.Scenario, reg *Registry, log zerolog.Logger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := reg.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	s := dynamo.New(model, integrators.NewEuler())
	s.SetLogger(log)
	for _, m := range reg.DefaultMetrics(model) {
		s.AddMetric(m)
	}

	return &Experiment{
		cfg:       cfg,
		model:     model,
		params:    resolveParams(model, cfg.Params),
		simulator: s,
		log:       log.With().Str("scenario", cfg.Name).Str("model", cfg.Model).Logger(),
	}, nil
}

// resolveParams overlays the configured values on the model defaults.
func resolveParams(model dynamo.System, values map[string]float64) dynamo.Params {
	p := dynamo.NewParams(nil)
	if d, ok := model.(Defaults); ok {
		p = d.DefaultParams()
	}
	for name, v := range values {
		p = p.With(name, v)
	}
	return p
}

// GetSimulator returns the underlying simulator for adding observers.
func (e *Experiment) GetSimulator() *dynamo.Simulator { return e.simulator }

func (e *Experiment) Model() dynamo.System       { return e.model }
func (e *Experiment) Params() dynamo.Params      { return e.params }
func (e *Experiment) Scenario() *config.Scenario { return e.cfg }

func (e *Experiment) SimConfig() dynamo.Config {
	return dynamo.Config{Dt: e.cfg.Dt, Steps: e.cfg.Steps}
}

// Initial is the single starting state: the configured one, else the
// model's default.
func (e *Experiment) Initial() dynamo.State {
	if len(e.cfg.Initial) > 0 {
		return dynamo.State(e.cfg.Initial).Clone()
	}
	if d, ok := e.model.(Defaults); ok {
		return d.DefaultState()
	}
	return make(dynamo.State, e.model.StateDim())
}

// Initials lists the ensemble's starting states: explicit initials followed
// by random draws seeded from the scenario, so repeated calls agree.
// Without either it falls back to Initial.
func (e *Experiment) Initials() []dynamo.State {
	var out []dynamo.State
	for _, x := range e.cfg.Initials {
		out = append(out, dynamo.State(x).Clone())
	}
	if r := e.cfg.Random; r != nil {
		rng := rand.New(rand.NewSource(e.cfg.Seed))
		for i := 0; i < r.Count; i++ {
			x := make(dynamo.State, len(r.Min))
			for k := range x {
				x[k] = r.Min[k] + rng.Float64()*(r.Max[k]-r.Min[k])
			}
			out = append(out, x)
		}
	}
	if len(out) == 0 {
		out = append(out, e.Initial())
	}
	return out
}

// Stop builds the halting predicate; nil means never halt.
func (e *Experiment) Stop() dynamo.StopPredicate {
	st := e.cfg.Stop
	if st == nil {
		return nil
	}
	switch st.Kind {
	case config.StopWithinTotal:
		return dynamo.WithinTotal(st.Limit, st.Components...)
	case config.StopNonNegative:
		return dynamo.NonNegative(st.Components...)
	}
	return nil
}

// Trajectory integrates from Initial.
func (e *Experiment) Trajectory(ctx context.Context) (*dynamo.Trajectory, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	tr, err := e.simulator.Iterate(ctx, e.Initial(), e.params, e.SimConfig(), e.Stop())
	if err != nil {
		e.log.Error().Err(err).Msg("trajectory failed")
		return tr, err
	}
	e.log.Info().
		Int("samples", tr.Len()).
		Bool("halted", tr.Halted).
		Int("warnings", len(tr.Warnings)).
		Msg("trajectory complete")
	return tr, nil
}

// Field samples the configured vector or slope field. It returns nil, nil
// when the scenario asks for neither.
func (e *Experiment) Field() (*analysis.Grid, error) {
	switch {
	case e.cfg.Field != nil:
		axes := make([]analysis.Axis, len(e.cfg.Field.Axes))
		for i, a := range e.cfg.Field.Axes {
			axes[i] = toAxis(a)
		}
		return analysis.SampleField(e.model, e.params, axes, baseState(e.cfg.Field.Base))
	case e.cfg.Slope != nil:
		sl := e.cfg.Slope
		return analysis.SlopeField(e.model, e.params, sl.Component, toAxis(sl.T), toAxis(sl.X), nil)
	}
	return nil, nil
}

// Nullclines computes every configured nullcline independently.
func (e *Experiment) Nullclines() []Nullcline {
	out := make([]Nullcline, 0, len(e.cfg.Nullclines))
	for _, nc := range e.cfg.Nullclines {
		d := analysis.Domain{
			X:          toAxis(nc.X),
			Base:       baseState(nc.Base),
			Resolution: nc.Resolution,
		}
		if nc.Y != nil {
			y := toAxis(*nc.Y)
			d.Y = &y
		}
		curve, err := analysis.ComputeNullcline(e.model, e.params, nc.Component, d)
		if err != nil {
			e.log.Warn().Err(err).Int("component", nc.Component).Msg("nullcline failed")
		} else {
			e.log.Debug().
				Int("component", nc.Component).
				Str("method", curve.Method).
				Int("points", len(curve.Points)).
				Msg("nullcline computed")
		}
		out = append(out, Nullcline{Component: nc.Component, Curve: curve, Err: err})
	}
	return out
}

// Sweep runs the configured parameter sweep from Initial. It returns nil,
// nil when the scenario defines none.
func (e *Experiment) Sweep(ctx context.Context) ([]analysis.SweepPoint, error) {
	sw := e.cfg.Sweep
	if sw == nil {
		return nil, nil
	}
	points, err := analysis.Sweep(ctx, e.simulator, e.Initial(), e.params, analysis.SweepConfig{
		Param:     sw.Param,
		Min:       sw.Min,
		Max:       sw.Max,
		N:         sw.N,
		Component: sw.Component,
		Dt:        e.cfg.Dt,
		Transient: sw.Transient,
		Record:    sw.Record,
	})
	if err != nil {
		e.log.Error().Err(err).Msg("sweep failed")
		return points, err
	}
	diverged := 0
	for _, pt := range points {
		if pt.Err != nil {
			diverged++
		}
	}
	e.log.Info().
		Str("param", sw.Param).
		Int("points", len(points)).
		Int("failed", diverged).
		Msg("sweep complete")
	return points, nil
}

// Run executes the whole scenario: the trajectory ensemble, then the field
// and nullclines. Only context cancellation is returned as an error.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	res := &Result{Scenario: e.cfg}

	ens := dynamo.NewEnsemble(e.simulator, e.cfg.Workers)
	runs, err := ens.Run(ctx, e.Initials(), e.params, e.SimConfig(), e.Stop())
	res.Runs = runs
	if err != nil {
		return res, err
	}
	for i, run := range runs {
		if run.Err != nil {
			e.log.Warn().Err(run.Err).Int("run", i).Msg("trajectory failed")
		}
	}

	res.Field, res.FieldErr = e.Field()
	if res.FieldErr != nil {
		e.log.Warn().Err(res.FieldErr).Msg("field sampling failed")
	}
	res.Nullclines = e.Nullclines()

	e.log.Info().
		Int("runs", len(res.Runs)).
		Int("nullclines", len(res.Nullclines)).
		Bool("failed", res.Failed()).
		Msg("scenario complete")
	return res, nil
}

func toAxis(a config.AxisConfig) analysis.Axis {
	return analysis.Axis{Component: a.Component, Min: a.Min, Max: a.Max, N: a.N}
}

func baseState(v []float64) dynamo.State {
	if len(v) == 0 {
		return nil
	}
	return dynamo.State(v).Clone()
}
