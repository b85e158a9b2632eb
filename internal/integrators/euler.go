package integrators

import "github.com/san-kum/popsim/internal/dynamo"

// Euler is the explicit fixed-step scheme x' = x + dt*f(x).
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, p dynamo.Params, t, dt float64) (dynamo.State, float64) {
	return e.Advance(x, dyn.Derive(x, p), t, dt)
}

// Advance applies one update with an already evaluated derivative dx.
// Non-finite values are propagated unchanged.
func (e *Euler) Advance(x, dx dynamo.State, t, dt float64) (dynamo.State, float64) {
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result, t + dt
}
