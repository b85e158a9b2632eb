package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrConfiguration indicates inputs that are rejected before any stepping.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrDimensionMismatch indicates mismatched state/system dimensions.
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch between state and system", ErrConfiguration)

	// ErrDomain indicates a model evaluated outside its valid domain.
	ErrDomain = errors.New("dynamo: model evaluated outside its domain (NaN or Inf)")
)

// ConfigError reports a rejected input. It matches ErrConfiguration, and
// ErrDimensionMismatch when Dimension is set.
type ConfigError struct {
	Field     string
	Reason    string
	Dimension bool
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dynamo: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	if e.Dimension {
		return ErrDimensionMismatch
	}
	return ErrConfiguration
}

func ConfigErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func DimensionErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...), Dimension: true}
}

// SimulationError wraps an error with simulation context. Component is the
// offending compartment, or -1 when not applicable.
type SimulationError struct {
	Step      int
	Time      float64
	State     State
	Component int
	Wrapped   error
}

func (e *SimulationError) Error() string {
	if e.Component >= 0 {
		return fmt.Sprintf("step %d (t=%.4f): component %d: %v", e.Step, e.Time, e.Component, e.Wrapped)
	}
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// NewDomainError builds a SimulationError wrapping ErrDomain.
func NewDomainError(step int, t float64, x State, component int) *SimulationError {
	return &SimulationError{
		Step:      step,
		Time:      t,
		State:     x.Clone(),
		Component: component,
		Wrapped:   ErrDomain,
	}
}

// Warning records a compartment leaving its physically meaningful range.
// The explicit scheme can overshoot; the run continues.
type Warning struct {
	Step      int
	Time      float64
	Component int
	Value     float64
	Lo, Hi    float64
}

func (w Warning) String() string {
	return fmt.Sprintf("step %d (t=%.4f): component %d = %g outside [%g, %g]",
		w.Step, w.Time, w.Component, w.Value, w.Lo, w.Hi)
}

// CheckDerivative validates a derivative produced by dyn at x. It is used
// by every consumer of a System so that NaN never reaches a plot.
func CheckDerivative(dyn System, x, dx State, step int, t float64) error {
	if len(dx) != dyn.StateDim() {
		return DimensionErrorf("derivative", "system returned %d components, want %d", len(dx), dyn.StateDim())
	}
	if k := dx.firstInvalid(); k >= 0 {
		return NewDomainError(step, t, x, k)
	}
	return nil
}

// Evaluate derives dyn at x and validates the result.
func Evaluate(dyn System, x State, p Params) (State, error) {
	if len(x) != dyn.StateDim() {
		return nil, DimensionErrorf("state", "got %d components, want %d", len(x), dyn.StateDim())
	}
	dx := dyn.Derive(x, p)
	if err := CheckDerivative(dyn, x, dx, 0, 0); err != nil {
		return nil, err
	}
	return dx, nil
}
