package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/popsim/internal/dynamo"
)

const (
	MethodClosedForm = "closed-form"
	MethodScan       = "scan"

	// DefaultScanResolution is the number of samples per scan line.
	DefaultScanResolution = 200

	bisectTolerance = 1e-12
	bisectMaxIter   = 100
)

// Domain restricts a nullcline to a rectangle of state space. Y is nil for
// one-dimensional models. Components off the axes are held at Base.
type Domain struct {
	X          Axis
	Y          *Axis
	Base       dynamo.State
	Resolution int
}

func (d Domain) Axes() []Axis {
	if d.Y == nil {
		return []Axis{d.X}
	}
	return []Axis{d.X, *d.Y}
}

func (d Domain) components() []int {
	if d.Y == nil {
		return []int{d.X.Component}
	}
	return []int{d.X.Component, d.Y.Component}
}

func (d Domain) origin(dim int) dynamo.State {
	o := make(dynamo.State, dim)
	copy(o, d.Base)
	return o
}

func (d Domain) resolution() int {
	if d.Resolution > 1 {
		return d.Resolution
	}
	return DefaultScanResolution
}

// Curve is a sampled nullcline: the points of Domain where the derivative
// of Component vanishes. Points are full states sorted along Axes.
type Curve struct {
	Component int
	Axes      []int
	Method    string
	Points    []dynamo.State
}

func (c *Curve) Empty() bool { return len(c.Points) == 0 }

// XY returns the curve as coordinate series on its first two axes. For a
// one-dimensional domain y is all zeros.
func (c *Curve) XY() (x, y []float64) {
	x = make([]float64, len(c.Points))
	y = make([]float64, len(c.Points))
	for i, pt := range c.Points {
		if len(c.Axes) > 0 {
			x[i] = pt[c.Axes[0]]
		}
		if len(c.Axes) > 1 {
			y[i] = pt[c.Axes[1]]
		}
	}
	return x, y
}

// NullclineSolver is implemented by models whose nullclines have a closed
// form. ok=false declines and leaves the computation to the scan.
type NullclineSolver interface {
	Nullcline(component int, p dynamo.Params, d Domain) (c *Curve, ok bool)
}

// ComputeNullcline returns the zero set of dx_component within d, using the
// model's closed form when it offers one and a sign-change scan otherwise.
// A nullcline that does not cross d is an empty curve, not an error.
func ComputeNullcline(dyn dynamo.System, p dynamo.Params, component int, d Domain) (*Curve, error) {
	dim := dyn.StateDim()
	if component < 0 || component >= dim {
		return nil, dynamo.DimensionErrorf("component", "%d outside [0, %d)", component, dim)
	}
	if err := validateAxes(dim, d.Axes(), d.Base); err != nil {
		return nil, err
	}
	if missing := p.Missing(dyn); len(missing) > 0 {
		return nil, dynamo.ConfigErrorf("params", "missing %v", missing)
	}

	if solver, ok := dyn.(NullclineSolver); ok {
		if c, ok := solver.Nullcline(component, p, d); ok && c != nil {
			c.Component = component
			c.Axes = d.components()
			c.Method = MethodClosedForm
			sortPoints(c.Points, c.Axes)
			return c, nil
		}
	}
	return scanNullcline(dyn, p, component, d)
}

// LinePoints samples the line {x_fixed = value} across d. applicable is
// false when fixed is not one of the domain axes; an empty result means the
// line lies outside d.
func LinePoints(d Domain, dim, fixed int, value float64) (points []dynamo.State, applicable bool) {
	var along *Axis
	switch {
	case d.X.Component == fixed:
		if !d.X.Contains(value) {
			return nil, true
		}
		along = d.Y
	case d.Y != nil && d.Y.Component == fixed:
		if !d.Y.Contains(value) {
			return nil, true
		}
		x := d.X
		along = &x
	default:
		return nil, false
	}

	origin := d.origin(dim)
	origin[fixed] = value
	if along == nil {
		return []dynamo.State{origin}, true
	}
	for _, v := range along.Values() {
		pt := origin.Clone()
		pt[along.Component] = v
		points = append(points, pt)
	}
	return points, true
}

func scanNullcline(dyn dynamo.System, p dynamo.Params, component int, d Domain) (*Curve, error) {
	dim := dyn.StateDim()
	curve := &Curve{
		Component: component,
		Axes:      d.components(),
		Method:    MethodScan,
	}
	n := d.resolution()
	origin := d.origin(dim)

	scan := func(fixed dynamo.State, along Axis) error {
		f := func(v float64) (float64, error) {
			x := fixed.Clone()
			x[along.Component] = v
			dx := dyn.Derive(x, p)
			if err := dynamo.CheckDerivative(dyn, x, dx, 0, 0); err != nil {
				return 0, err
			}
			return dx[component], nil
		}
		roots, err := scanLine(f, along.Min, along.Max, n)
		if err != nil {
			return err
		}
		for _, r := range roots {
			pt := fixed.Clone()
			pt[along.Component] = r
			curve.Points = append(curve.Points, pt)
		}
		return nil
	}

	if d.Y == nil {
		if err := scan(origin, d.X); err != nil {
			return nil, err
		}
	} else {
		for _, xv := range d.X.Values() {
			fixed := origin.Clone()
			fixed[d.X.Component] = xv
			if err := scan(fixed, *d.Y); err != nil {
				return nil, err
			}
		}
		for _, yv := range d.Y.Values() {
			fixed := origin.Clone()
			fixed[d.Y.Component] = yv
			if err := scan(fixed, d.X); err != nil {
				return nil, err
			}
		}
	}

	sortPoints(curve.Points, curve.Axes)
	curve.Points = dedupe(curve.Points, curve.Axes)
	return curve, nil
}

// scanLine samples f at n evenly spaced points of [lo, hi] and returns its
// exact zeros plus one bisection-refined root per sign change.
func scanLine(f func(float64) (float64, error), lo, hi float64, n int) ([]float64, error) {
	if lo == hi || n < 2 {
		fv, err := f(lo)
		if err != nil {
			return nil, err
		}
		if fv == 0 {
			return []float64{lo}, nil
		}
		return nil, nil
	}

	var roots []float64
	vs := floats.Span(make([]float64, n), lo, hi)
	var prevV, prevF float64
	for i, v := range vs {
		fv, err := f(v)
		if err != nil {
			return nil, err
		}
		switch {
		case fv == 0:
			roots = append(roots, v)
		case i > 0 && prevF != 0 && math.Signbit(fv) != math.Signbit(prevF):
			r, err := bisect(f, prevV, v, prevF)
			if err != nil {
				return nil, err
			}
			roots = append(roots, r)
		}
		prevV, prevF = v, fv
	}
	return roots, nil
}

func bisect(f func(float64) (float64, error), a, b, fa float64) (float64, error) {
	for i := 0; i < bisectMaxIter && b-a > bisectTolerance*(1+math.Abs(a)); i++ {
		m := a + (b-a)/2
		fm, err := f(m)
		if err != nil {
			return 0, err
		}
		if fm == 0 {
			return m, nil
		}
		if math.Signbit(fm) == math.Signbit(fa) {
			a, fa = m, fm
		} else {
			b = m
		}
	}
	return a + (b-a)/2, nil
}

func sortPoints(points []dynamo.State, axes []int) {
	sort.SliceStable(points, func(i, j int) bool {
		for _, k := range axes {
			if points[i][k] != points[j][k] {
				return points[i][k] < points[j][k]
			}
		}
		return false
	})
}

func dedupe(points []dynamo.State, axes []int) []dynamo.State {
	if len(points) < 2 {
		return points
	}
	out := points[:1]
	for _, pt := range points[1:] {
		last := out[len(out)-1]
		same := true
		for _, k := range axes {
			if math.Abs(pt[k]-last[k]) > 1e-9*(1+math.Abs(last[k])) {
				same = false
				break
			}
		}
		if !same {
			out = append(out, pt)
		}
	}
	return out
}
