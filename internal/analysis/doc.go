// Package analysis derives qualitative phase-space artifacts from a model.
//
// Most of it consumes a [dynamo.System] directly and never steps it:
//
//   - [SampleField]: derivative vectors over a rectangular grid
//   - [SlopeField]: (t, x) slope field of a one-dimensional model
//   - [SlopeRatio]: phase-plane slope such as dI/dS
//   - [ComputeNullcline]: zero set of one derivative component
//   - [NewPhasePortrait]: projection of a trajectory onto two components
//
// [Sweep] is the exception. It drives a [dynamo.Simulator] across a range
// of one parameter, or of the step size, and records the values each run
// settles on after a transient.
//
// # Nullclines
//
// Models implementing [NullclineSolver] supply closed forms; for every
// other model the derivative is scanned along grid lines and sign changes
// are refined by bisection:
//
//	c, err := analysis.ComputeNullcline(dyn, p, 1, analysis.Domain{
//	    X: analysis.Axis{Component: 0, Min: 0, Max: 1, N: 20},
//	    Y: &analysis.Axis{Component: 1, Min: 0, Max: 1, N: 20},
//	})
package analysis
