package dynamo

import (
	"context"
	"math"

	"github.com/rs/zerolog"
)

// maxPrealloc caps the up-front sample capacity. Large step counts are
// valid when a stop predicate ends the run early.
const maxPrealloc = 4096

type Simulator struct {
	dyn        System
	integrator Integrator
	log        zerolog.Logger
	metrics    []func() Metric
	observers  []Observer
}

func New(dyn System, integrator Integrator) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		log:        zerolog.Nop(),
		metrics:    make([]func() Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) System() System { return s.dyn }

func (s *Simulator) SetLogger(l zerolog.Logger) { s.log = l }

// AddMetric registers a metric factory. Each Iterate call gets fresh
// instances, so one Simulator can serve concurrent runs.
func (s *Simulator) AddMetric(factory func() Metric) { s.metrics = append(s.metrics, factory) }

// AddObserver registers o for every run. Observers shared between
// concurrent runs must be safe for concurrent use.
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Iterate integrates from x0 for cfg.Steps fixed steps, or until stop
// returns false. stop is checked on x0 first, so a predicate that never
// holds yields only the initial sample; after that the halting sample is
// kept. A nil stop never halts.
func (s *Simulator) Iterate(ctx context.Context, x0 State, p Params, cfg Config, stop StopPredicate) (*Trajectory, error) {
	if err := s.Validate(x0, p, cfg); err != nil {
		return nil, err
	}
	if stop == nil {
		stop = Always
	}

	metrics := make([]Metric, 0, len(s.metrics))
	for _, factory := range s.metrics {
		m := factory()
		m.Reset()
		metrics = append(metrics, m)
	}

	capacity := min(cfg.Steps, maxPrealloc)
	tr := &Trajectory{
		Samples:     make([]Sample, 0, capacity+1),
		Derivatives: make([]State, 0, capacity),
		Metrics:     make(map[string]float64),
		Dt:          cfg.Dt,
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt
	outside := make([]bool, len(x))

	tr.Samples = append(tr.Samples, Sample{T: t, State: x.Clone()})
	s.checkBounds(tr, outside, 0, x, t)
	for _, m := range metrics {
		m.Observe(x, t)
	}
	if !stop(x) {
		tr.Halted = true
		s.log.Debug().Msg("initial state fails stop predicate")
		s.finish(tr, metrics, nil)
		return tr, nil
	}

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			s.finish(tr, metrics, ctx.Err())
			return tr, ctx.Err()
		default:
		}

		dx := s.dyn.Derive(x, p)
		if err := CheckDerivative(s.dyn, x, dx, i, t); err != nil {
			return nil, s.fail(tr, err)
		}

		newX, newT := s.integrator.Advance(x, dx, t, dt)
		if k := newX.firstInvalid(); k >= 0 {
			return nil, s.fail(tr, NewDomainError(i+1, newT, newX, k))
		}

		x, t = newX, newT
		tr.Derivatives = append(tr.Derivatives, dx.Clone())
		tr.Samples = append(tr.Samples, Sample{T: t, State: x.Clone()})

		s.checkBounds(tr, outside, i+1, x, t)
		for _, m := range metrics {
			m.Observe(x, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(i+1, x, t)
		}

		if !stop(x) {
			tr.Halted = true
			s.log.Debug().Int("step", i+1).Float64("t", t).Msg("stop predicate halted trajectory")
			break
		}
	}

	s.finish(tr, metrics, nil)
	return tr, nil
}

// Validate performs the eager checks Iterate runs before stepping.
func (s *Simulator) Validate(x0 State, p Params, cfg Config) error {
	if s.dyn == nil {
		return ConfigErrorf("system", "nil system")
	}
	if s.integrator == nil {
		return ConfigErrorf("integrator", "nil integrator")
	}
	if math.IsNaN(cfg.Dt) || math.IsInf(cfg.Dt, 0) || cfg.Dt <= 0 {
		return ConfigErrorf("dt", "must be positive and finite, got %g", cfg.Dt)
	}
	if cfg.Steps < 0 {
		return ConfigErrorf("steps", "must be non-negative, got %d", cfg.Steps)
	}
	if len(x0) != s.dyn.StateDim() {
		return DimensionErrorf("initial state", "got %d components, want %d", len(x0), s.dyn.StateDim())
	}
	if k := x0.firstInvalid(); k >= 0 {
		return ConfigErrorf("initial state", "component %d is not finite", k)
	}
	if missing := p.Missing(s.dyn); len(missing) > 0 {
		return ConfigErrorf("params", "missing %v", missing)
	}
	return nil
}

func (s *Simulator) checkBounds(tr *Trajectory, outside []bool, step int, x State, t float64) {
	b, ok := s.dyn.(Bounded)
	if !ok {
		return
	}
	for k, v := range x {
		lo, hi := b.Bounds(k)
		out := v < lo || v > hi
		if out && !outside[k] {
			w := Warning{Step: step, Time: t, Component: k, Value: v, Lo: lo, Hi: hi}
			tr.Warnings = append(tr.Warnings, w)
			s.log.Warn().
				Int("step", step).
				Float64("t", t).
				Int("component", k).
				Float64("value", v).
				Msg("compartment left its physical range")
			for _, obs := range s.observers {
				obs.OnWarning(w)
			}
		}
		outside[k] = out
	}
}

func (s *Simulator) fail(tr *Trajectory, err error) error {
	s.log.Error().Err(err).Int("samples", tr.Len()).Msg("trajectory aborted")
	for _, obs := range s.observers {
		obs.OnFinish(tr, err)
	}
	return err
}

func (s *Simulator) finish(tr *Trajectory, metrics []Metric, err error) {
	for _, m := range metrics {
		tr.Metrics[m.Name()] = m.Value()
	}
	for _, obs := range s.observers {
		obs.OnFinish(tr, err)
	}
	s.log.Debug().
		Int("samples", tr.Len()).
		Bool("halted", tr.Halted).
		Int("warnings", len(tr.Warnings)).
		Msg("trajectory finished")
}
