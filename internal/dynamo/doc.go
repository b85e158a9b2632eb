// Package dynamo provides core simulation primitives for population models.
//
// The package defines the fundamental interfaces and types for fixed-step
// numerical integration of autonomous ordinary differential equations:
//
//   - [State]: vector of compartment values
//   - [Params]: immutable named rate constants
//   - [System]: interface for ODE systems (dX/dt = f(X, p))
//   - [Integrator]: single-step update rule
//   - [Simulator]: builds a [Trajectory], optionally halted by a [StopPredicate]
//   - [Ensemble]: independent trajectories from many initial conditions
//
// # Example
//
//	dyn := physics.NewSIR()
//	sim := dynamo.New(dyn, integrators.NewEuler())
//	p := dynamo.NewParams(map[string]float64{"beta": 1.47e-7, "gamma": 0.0588})
//	tr, err := sim.Iterate(ctx, dynamo.State{999000, 1000, 0}, p, dynamo.Config{Dt: 1, Steps: 120}, nil)
//
// # Errors
//
// Rejected inputs return a [*ConfigError] matching [ErrConfiguration]
// before any stepping. A non-finite derivative or state aborts the run with
// a [*SimulationError] matching [ErrDomain]. Compartments leaving the range
// declared by [Bounded] are recorded as [Warning] values and do not abort.
//
// # Thread Safety
//
// A Simulator holds no per-run state; Iterate may be called concurrently
// as long as registered observers are safe for concurrent use.
package dynamo
