package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/popsim/internal/dynamo"
)

// Axis is an evenly spaced sampling of one state component.
type Axis struct {
	Component int
	Min, Max  float64
	N         int
}

// Values returns the N coordinates of the axis, Min and Max included.
func (a Axis) Values() []float64 {
	if a.N <= 0 {
		return nil
	}
	if a.N == 1 {
		return []float64{a.Min}
	}
	return floats.Span(make([]float64, a.N), a.Min, a.Max)
}

func (a Axis) Contains(v float64) bool {
	return v >= a.Min && v <= a.Max
}

func (a Axis) validate(field string, dim int) error {
	if a.Component < 0 || a.Component >= dim {
		return dynamo.DimensionErrorf(field, "component %d outside [0, %d)", a.Component, dim)
	}
	if a.N < 1 {
		return dynamo.ConfigErrorf(field, "resolution must be at least 1, got %d", a.N)
	}
	if !finite(a.Min) || !finite(a.Max) {
		return dynamo.ConfigErrorf(field, "bounds must be finite")
	}
	if a.Min > a.Max {
		return dynamo.ConfigErrorf(field, "min %g greater than max %g", a.Min, a.Max)
	}
	return nil
}

type GridPoint struct {
	Position   dynamo.State
	Derivative dynamo.State
}

// Grid pairs every sampled position with the derivative there. Points are
// ordered with the first axis varying slowest.
type Grid struct {
	Components []int
	Shape      []int
	Points     []GridPoint
}

func (g *Grid) Len() int { return len(g.Points) }

// Quiver returns the (x, y, u, v) arrays for a vector plot of components
// i against j.
func (g *Grid) Quiver(i, j int) (x, y, u, v []float64) {
	n := len(g.Points)
	x, y = make([]float64, n), make([]float64, n)
	u, v = make([]float64, n), make([]float64, n)
	for k, pt := range g.Points {
		x[k], y[k] = pt.Position[i], pt.Position[j]
		u[k], v[k] = pt.Derivative[i], pt.Derivative[j]
	}
	return x, y, u, v
}

// SampleField evaluates dyn over the Cartesian product of axes. Components
// without an axis are held at their value in base; a nil base is the zero
// state.
func SampleField(dyn dynamo.System, p dynamo.Params, axes []Axis, base dynamo.State) (*Grid, error) {
	dim := dyn.StateDim()
	if err := validateAxes(dim, axes, base); err != nil {
		return nil, err
	}
	if missing := p.Missing(dyn); len(missing) > 0 {
		return nil, dynamo.ConfigErrorf("params", "missing %v", missing)
	}

	values := make([][]float64, len(axes))
	shape := make([]int, len(axes))
	components := make([]int, len(axes))
	total := 1
	for i, a := range axes {
		values[i] = a.Values()
		shape[i] = a.N
		components[i] = a.Component
		total *= a.N
	}

	origin := make(dynamo.State, dim)
	copy(origin, base)

	grid := &Grid{
		Components: components,
		Shape:      shape,
		Points:     make([]GridPoint, 0, total),
	}

	idx := make([]int, len(axes))
	for n := 0; n < total; n++ {
		pos := origin.Clone()
		for i, a := range axes {
			pos[a.Component] = values[i][idx[i]]
		}

		dx := dyn.Derive(pos, p)
		if err := dynamo.CheckDerivative(dyn, pos, dx, n, 0); err != nil {
			return nil, err
		}
		grid.Points = append(grid.Points, GridPoint{Position: pos, Derivative: dx})

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}

	return grid, nil
}

// SlopeField samples the (t, x) plane of an autonomous model: at each point
// the direction is (1, dx_k). It reproduces the classic slope-field plot of
// a one-dimensional equation such as dP/dt = P(1-P).
func SlopeField(dyn dynamo.System, p dynamo.Params, component int, tAxis, xAxis Axis, base dynamo.State) (*Grid, error) {
	if tAxis.N < 1 || !finite(tAxis.Min) || !finite(tAxis.Max) || tAxis.Min > tAxis.Max {
		return nil, dynamo.ConfigErrorf("time axis", "invalid range [%g, %g] with %d points", tAxis.Min, tAxis.Max, tAxis.N)
	}
	xAxis.Component = component
	column, err := SampleField(dyn, p, []Axis{xAxis}, base)
	if err != nil {
		return nil, err
	}

	times := tAxis.Values()
	grid := &Grid{
		Components: []int{-1, component},
		Shape:      []int{tAxis.N, xAxis.N},
		Points:     make([]GridPoint, 0, tAxis.N*xAxis.N),
	}
	for _, t := range times {
		for _, pt := range column.Points {
			grid.Points = append(grid.Points, GridPoint{
				Position:   dynamo.State{t, pt.Position[component]},
				Derivative: dynamo.State{1, pt.Derivative[component]},
			})
		}
	}
	return grid, nil
}

// SlopeRatio returns dx_num/dx_den at x, the slope of the trajectory in the
// (den, num) phase plane, e.g. dI/dS. A zero denominator is a domain error.
func SlopeRatio(dyn dynamo.System, p dynamo.Params, x dynamo.State, num, den int) (float64, error) {
	dim := dyn.StateDim()
	if num < 0 || num >= dim || den < 0 || den >= dim {
		return 0, dynamo.DimensionErrorf("component", "(%d, %d) outside [0, %d)", num, den, dim)
	}
	dx, err := dynamo.Evaluate(dyn, x, p)
	if err != nil {
		return 0, err
	}
	if dx[den] == 0 {
		return 0, dynamo.NewDomainError(0, 0, x, den)
	}
	ratio := dx[num] / dx[den]
	if !finite(ratio) {
		return 0, dynamo.NewDomainError(0, 0, x, num)
	}
	return ratio, nil
}

func validateAxes(dim int, axes []Axis, base dynamo.State) error {
	if len(axes) == 0 {
		return dynamo.ConfigErrorf("axes", "at least one axis is required")
	}
	if base != nil && len(base) != dim {
		return dynamo.DimensionErrorf("base state", "got %d components, want %d", len(base), dim)
	}
	seen := make(map[int]bool, len(axes))
	for _, a := range axes {
		if err := a.validate("axis", dim); err != nil {
			return err
		}
		if seen[a.Component] {
			return dynamo.ConfigErrorf("axis", "component %d sampled twice", a.Component)
		}
		seen[a.Component] = true
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
