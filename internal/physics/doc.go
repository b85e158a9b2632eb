// Package physics provides population models for simulation.
//
// Each model implements the [dynamo.System] interface, defining the
// differential equations governing the system's evolution:
//
//   - [Logistic]: single-compartment logistic growth
//   - [SIR]: Susceptible-Infectious-Recovered epidemic, in three- and
//     two-compartment variants
//   - [Func]: adapter for arbitrary derivative functions
//
// Models also implement [dynamo.Labeled] and [dynamo.Bounded] so reports
// can name compartments and the simulator can flag negative populations,
// and [analysis.NullclineSolver] where the nullclines have a closed form.
//
// # Example
//
//	dyn := physics.NewSI()
//	slope, err := dyn.DIDS(dynamo.State{0.5, 0.2}, dyn.DefaultParams())
package physics
