package dynamo

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
)

type testEuler struct{}

func (testEuler) Step(dyn System, x State, p Params, t, dt float64) (State, float64) {
	return testEuler{}.Advance(x, dyn.Derive(x, p), t, dt)
}

func (testEuler) Advance(x, dx State, t, dt float64) (State, float64) {
	out := make(State, len(x))
	for i := range x {
		out[i] = x[i] + dt*dx[i]
	}
	return out, t + dt
}

// logisticGrowth is dP/dt = P(1-P).
type logisticGrowth struct{}

func (logisticGrowth) Derive(x State, p Params) State { return State{x[0] * (1 - x[0])} }
func (logisticGrowth) StateDim() int                  { return 1 }

// sir is the three-compartment epidemic model with bounds on every
// compartment.
type sir struct{}

func (sir) StateDim() int                 { return 3 }
func (sir) ParamNames() []string          { return []string{"beta", "gamma"} }
func (sir) Bounds(int) (float64, float64) { return 0, math.Inf(1) }

func (sir) Derive(x State, p Params) State {
	inf := p.Value("beta") * x[0] * x[1]
	rec := p.Value("gamma") * x[1]
	return State{-inf, inf - rec, rec}
}

type constant struct{ c State }

func (c constant) Derive(State, Params) State { return c.c.Clone() }
func (c constant) StateDim() int              { return len(c.c) }

type blowUp struct{}

func (blowUp) Derive(x State, p Params) State {
	if x[0] > 2 {
		return State{math.NaN()}
	}
	return State{1}
}
func (blowUp) StateDim() int { return 1 }

func sirParams() Params {
	return NewParams(map[string]float64{"beta": 0.3, "gamma": 0.1})
}

func TestIterateLength(t *testing.T) {
	sim := New(logisticGrowth{}, testEuler{})

	tests := []struct {
		name  string
		dt    float64
		steps int
	}{
		{"ten steps", 0.5, 10},
		{"single step", 0.1, 1},
		{"no steps", 0.5, 0},
		{"many small steps", 0.01, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := sim.Iterate(context.Background(), State{0.05}, Params{}, Config{Dt: tt.dt, Steps: tt.steps}, nil)
			if err != nil {
				t.Fatalf("iterate failed: %v", err)
			}
			if tr.Len() != tt.steps+1 {
				t.Fatalf("expected %d samples, got %d", tt.steps+1, tr.Len())
			}
			if len(tr.Derivatives) != tt.steps {
				t.Errorf("expected %d derivatives, got %d", tt.steps, len(tr.Derivatives))
			}
			for i, s := range tr.Samples {
				if want := float64(i) * tt.dt; math.Abs(s.T-want) > 1e-9 {
					t.Fatalf("sample %d at t=%g, want %g", i, s.T, want)
				}
			}
			if tr.Halted {
				t.Error("trajectory without a stop predicate should not halt")
			}
		})
	}
}

func TestIterateLogisticStep(t *testing.T) {
	sim := New(logisticGrowth{}, testEuler{})
	tr, err := sim.Iterate(context.Background(), State{0.05}, Params{}, Config{Dt: 0.5, Steps: 10}, nil)
	if err != nil {
		t.Fatalf("iterate failed: %v", err)
	}

	if got := tr.Samples[1].State[0]; math.Abs(got-0.07375) > 1e-12 {
		t.Errorf("first step = %v, want 0.07375", got)
	}
	if got := tr.Derivatives[0][0]; math.Abs(got-0.0475) > 1e-12 {
		t.Errorf("first derivative = %v, want 0.0475", got)
	}
	for i := 1; i < tr.Len(); i++ {
		if tr.Samples[i].State[0] <= tr.Samples[i-1].State[0] {
			t.Fatalf("logistic growth below capacity should increase, sample %d", i)
		}
		if tr.Samples[i].State[0] >= 1 {
			t.Fatalf("sample %d overshot the carrying capacity", i)
		}
	}
}

func TestIterateConstantDerivative(t *testing.T) {
	c := State{2, -1}
	sim := New(constant{c: c}, testEuler{})
	tr, err := sim.Iterate(context.Background(), State{1, 1}, Params{}, Config{Dt: 0.25, Steps: 8}, nil)
	if err != nil {
		t.Fatalf("iterate failed: %v", err)
	}
	final := tr.Final().State
	if math.Abs(final[0]-5) > 1e-12 || math.Abs(final[1]+1) > 1e-12 {
		t.Errorf("final = %v, want [5 -1]", final)
	}
}

func TestIterateDoesNotAliasInitial(t *testing.T) {
	sim := New(logisticGrowth{}, testEuler{})
	x0 := State{0.5}
	tr, err := sim.Iterate(context.Background(), x0, Params{}, Config{Dt: 0.5, Steps: 3}, nil)
	if err != nil {
		t.Fatalf("iterate failed: %v", err)
	}
	if x0[0] != 0.5 {
		t.Errorf("initial state mutated to %v", x0)
	}
	x0[0] = 42
	if tr.Samples[0].State[0] != 0.5 {
		t.Error("trajectory aliases the caller's initial state")
	}
}

func TestIterateStopPredicate(t *testing.T) {
	sim := New(constant{c: State{1}}, testEuler{})
	cfg := Config{Dt: 1, Steps: 10}

	t.Run("false from the start", func(t *testing.T) {
		never := func(State) bool { return false }
		tr, err := sim.Iterate(context.Background(), State{0}, Params{}, cfg, never)
		if err != nil {
			t.Fatalf("iterate failed: %v", err)
		}
		if tr.Len() != 1 || !tr.Halted {
			t.Errorf("expected a halted trajectory of length 1, got len=%d halted=%v", tr.Len(), tr.Halted)
		}
	})

	t.Run("keeps the halting sample", func(t *testing.T) {
		below := func(x State) bool { return x[0] <= 3.5 }
		tr, err := sim.Iterate(context.Background(), State{0}, Params{}, cfg, below)
		if err != nil {
			t.Fatalf("iterate failed: %v", err)
		}
		if !tr.Halted {
			t.Fatal("expected halt")
		}
		if tr.Len() != 5 {
			t.Fatalf("expected 5 samples, got %d", tr.Len())
		}
		if tr.Final().State[0] != 4 {
			t.Errorf("last sample = %v, want the first state past the limit", tr.Final().State)
		}
	})

	t.Run("never triggered", func(t *testing.T) {
		tr, err := sim.Iterate(context.Background(), State{0}, Params{}, cfg, Always)
		if err != nil {
			t.Fatalf("iterate failed: %v", err)
		}
		if tr.Len() != 11 || tr.Halted {
			t.Errorf("len=%d halted=%v", tr.Len(), tr.Halted)
		}
	})
}

func TestIterateHugeStepCountHalts(t *testing.T) {
	sim := New(constant{c: State{1}}, testEuler{})
	below := func(x State) bool { return x[0] <= 3.5 }

	for _, steps := range []int{1 << 40, math.MaxInt} {
		tr, err := sim.Iterate(context.Background(), State{0}, Params{}, Config{Dt: 1, Steps: steps}, below)
		if err != nil {
			t.Fatalf("steps=%d: iterate failed: %v", steps, err)
		}
		if !tr.Halted || tr.Len() != 5 {
			t.Errorf("steps=%d: len=%d halted=%v, want a halted trajectory of length 5", steps, tr.Len(), tr.Halted)
		}
		if cap(tr.Samples) > maxPrealloc+1 {
			t.Errorf("steps=%d: sample capacity %d exceeds %d", steps, cap(tr.Samples), maxPrealloc+1)
		}
	}
}

func TestIterateRejectsInvalidInput(t *testing.T) {
	sim := New(sir{}, testEuler{})
	good := State{0.9, 0.1, 0}

	tests := []struct {
		name  string
		x0    State
		p     Params
		cfg   Config
		isDim bool
	}{
		{"zero dt", good, sirParams(), Config{Dt: 0, Steps: 10}, false},
		{"negative dt", good, sirParams(), Config{Dt: -0.1, Steps: 10}, false},
		{"nan dt", good, sirParams(), Config{Dt: math.NaN(), Steps: 10}, false},
		{"negative steps", good, sirParams(), Config{Dt: 0.1, Steps: -1}, false},
		{"short state", State{0.9, 0.1}, sirParams(), Config{Dt: 0.1, Steps: 10}, true},
		{"nan state", State{0.9, math.NaN(), 0}, sirParams(), Config{Dt: 0.1, Steps: 10}, false},
		{"missing gamma", good, NewParams(map[string]float64{"beta": 0.3}), Config{Dt: 0.1, Steps: 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := sim.Iterate(context.Background(), tt.x0, tt.p, tt.cfg, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if tr != nil {
				t.Error("rejected input must not produce a trajectory")
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
			if errors.Is(err, ErrDimensionMismatch) != tt.isDim {
				t.Errorf("dimension mismatch = %v, want %v", errors.Is(err, ErrDimensionMismatch), tt.isDim)
			}
		})
	}
}

func TestIterateDomainError(t *testing.T) {
	sim := New(blowUp{}, testEuler{})
	tr, err := sim.Iterate(context.Background(), State{0}, Params{}, Config{Dt: 1, Steps: 10}, nil)
	if tr != nil {
		t.Error("a domain error must not return a trajectory")
	}
	if !errors.Is(err, ErrDomain) {
		t.Fatalf("expected ErrDomain, got %v", err)
	}
	var simErr *SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected *SimulationError, got %T", err)
	}
	if simErr.Step != 3 || simErr.Component != 0 {
		t.Errorf("unexpected error context %+v", simErr)
	}
}

func TestIterateWarnsOnNegativeCompartment(t *testing.T) {
	sim := New(sir{}, testEuler{})
	p := NewParams(map[string]float64{"beta": 5, "gamma": 0.1})
	tr, err := sim.Iterate(context.Background(), State{0.9, 0.1, 0}, p, Config{Dt: 5, Steps: 5}, nil)
	if err != nil {
		t.Fatalf("overshoot must not abort: %v", err)
	}
	if tr.Len() != 6 {
		t.Errorf("expected the full trajectory, got %d samples", tr.Len())
	}
	if len(tr.Warnings) == 0 {
		t.Fatal("expected a warning for a negative compartment")
	}
	w := tr.Warnings[0]
	if w.Component != 0 || w.Step != 1 || w.Value >= 0 {
		t.Errorf("unexpected first warning %+v", w)
	}

	seen := make(map[int]int)
	for _, w := range tr.Warnings {
		seen[w.Component]++
	}
	for k, n := range seen {
		if n > tr.Steps() {
			t.Errorf("component %d warned %d times in %d steps", k, n, tr.Steps())
		}
	}
}

func TestIterateConservesSIRTotal(t *testing.T) {
	sim := New(sir{}, testEuler{})
	tr, err := sim.Iterate(context.Background(), State{0.99, 0.01, 0}, sirParams(), Config{Dt: 0.1, Steps: 200}, nil)
	if err != nil {
		t.Fatalf("iterate failed: %v", err)
	}
	for i, s := range tr.Samples {
		if math.Abs(s.State.Sum()-1) > 1e-9 {
			t.Fatalf("sample %d total = %v", i, s.State.Sum())
		}
	}
	if d := tr.Derivatives[0]; math.Abs(d.Sum()) > 1e-15 {
		t.Errorf("derivative components should cancel, got %v", d)
	}
}

func TestIterateContextCancelled(t *testing.T) {
	sim := New(logisticGrowth{}, testEuler{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr, err := sim.Iterate(ctx, State{0.1}, Params{}, Config{Dt: 0.1, Steps: 100}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if tr == nil || tr.Len() != 1 {
		t.Errorf("expected the partial trajectory with the initial sample, got %+v", tr)
	}
}

type countMetric struct{ n int }

func (c *countMetric) Name() string           { return "count" }
func (c *countMetric) Observe(State, float64) { c.n++ }
func (c *countMetric) Value() float64         { return float64(c.n) }
func (c *countMetric) Reset()                 { c.n = 0 }

type recorder struct {
	mu       sync.Mutex
	steps    int
	warnings int
	finished int
}

func (r *recorder) OnStep(int, State, float64) {
	r.mu.Lock()
	r.steps++
	r.mu.Unlock()
}

func (r *recorder) OnWarning(Warning) {
	r.mu.Lock()
	r.warnings++
	r.mu.Unlock()
}

func (r *recorder) OnFinish(*Trajectory, error) {
	r.mu.Lock()
	r.finished++
	r.mu.Unlock()
}

func TestIterateMetricsAndObservers(t *testing.T) {
	sim := New(logisticGrowth{}, testEuler{})
	sim.AddMetric(func() Metric { return &countMetric{} })
	rec := &recorder{}
	sim.AddObserver(rec)

	for range 2 {
		tr, err := sim.Iterate(context.Background(), State{0.1}, Params{}, Config{Dt: 0.1, Steps: 4}, nil)
		if err != nil {
			t.Fatalf("iterate failed: %v", err)
		}
		if tr.Metrics["count"] != 5 {
			t.Errorf("metric should observe every sample once per run, got %v", tr.Metrics["count"])
		}
	}
	if rec.steps != 8 || rec.finished != 2 || rec.warnings != 0 {
		t.Errorf("observer saw steps=%d finished=%d warnings=%d", rec.steps, rec.finished, rec.warnings)
	}
}

func TestEnsembleIsolatesFailures(t *testing.T) {
	sim := New(sir{}, testEuler{})
	ens := NewEnsemble(sim, 2)

	inits := []State{
		{0.9, 0.1, 0},
		{0.9, 0.1},
		{0.5, 0.5, 0},
		{0.99, 0.01, 0},
	}
	runs, err := ens.Run(context.Background(), inits, sirParams(), Config{Dt: 0.1, Steps: 50}, nil)
	if err != nil {
		t.Fatalf("ensemble failed: %v", err)
	}
	if len(runs) != len(inits) {
		t.Fatalf("expected %d runs, got %d", len(inits), len(runs))
	}

	for i, run := range runs {
		if run.Initial[0] != inits[i][0] {
			t.Errorf("run %d out of order", i)
		}
		if i == 1 {
			if !errors.Is(run.Err, ErrDimensionMismatch) || run.Trajectory != nil {
				t.Errorf("run 1 should fail alone, got err=%v", run.Err)
			}
			continue
		}
		if run.Err != nil || run.Trajectory.Len() != 51 {
			t.Errorf("run %d: err=%v", i, run.Err)
		}
	}
}

func TestEnsembleMatchesSequential(t *testing.T) {
	sim := New(logisticGrowth{}, testEuler{})
	inits := []State{{0.01}, {0.2}, {0.5}, {0.8}, {1.2}}
	cfg := Config{Dt: 0.2, Steps: 30}

	runs, err := NewEnsemble(sim, 0).Run(context.Background(), inits, Params{}, cfg, nil)
	if err != nil {
		t.Fatalf("ensemble failed: %v", err)
	}
	for i, x0 := range inits {
		want, err := sim.Iterate(context.Background(), x0, Params{}, cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := runs[i].Trajectory.Final().State[0]; got != want.Final().State[0] {
			t.Errorf("run %d: ensemble %v, sequential %v", i, got, want.Final().State[0])
		}
	}
}
