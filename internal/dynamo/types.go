package dynamo

import (
	"math"
	"strconv"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// firstInvalid returns the index of the first non-finite component, or -1.
func (s State) firstInvalid() int {
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

func (s State) Sum() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum
}

// System is an autonomous vector field dX/dt = f(X, p). Implementations
// must be pure: no internal state, no side effects.
type System interface {
	Derive(x State, p Params) State
	StateDim() int
}

// Parametrized lists the parameters a System reads. Missing ones are
// reported before any stepping begins.
type Parametrized interface {
	ParamNames() []string
}

// Labeled names the compartments of a System for reporting.
type Labeled interface {
	Labels() []string
}

// Bounded gives the physically meaningful range of compartment k.
// Leaving it is reported as a Warning, never as an error.
type Bounded interface {
	Bounds(k int) (lo, hi float64)
}

type Integrator interface {
	Step(dyn System, x State, p Params, t, dt float64) (State, float64)
	Advance(x, dx State, t, dt float64) (State, float64)
}

type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(step int, x State, t float64)
	OnWarning(w Warning)
	OnFinish(tr *Trajectory, err error)
}

type Config struct {
	Dt    float64
	Steps int
}

// Duration is the time covered by a full, non-halted run.
func (c Config) Duration() float64 {
	return c.Dt * float64(c.Steps)
}

// LabelsOf returns the compartment names of dyn, falling back to x0, x1, ...
func LabelsOf(dyn System) []string {
	if l, ok := dyn.(Labeled); ok {
		if labels := l.Labels(); len(labels) == dyn.StateDim() {
			return labels
		}
	}
	labels := make([]string, dyn.StateDim())
	for i := range labels {
		labels[i] = "x" + strconv.Itoa(i)
	}
	return labels
}
