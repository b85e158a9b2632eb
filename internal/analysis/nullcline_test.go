package analysis_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/popsim/internal/analysis"
	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/physics"
)

func unitDomain(n int) analysis.Domain {
	return analysis.Domain{
		X: analysis.Axis{Component: 0, Min: 0, Max: 1, N: n},
		Y: &analysis.Axis{Component: 1, Min: 0, Max: 1, N: n},
	}
}

// siFunc is the SI model without its closed-form nullclines.
func siFunc() *physics.Func {
	si := physics.NewSI()
	return &physics.Func{Dim: 2, Names: si.Labels(), Required: si.ParamNames(), F: si.Derive}
}

func logisticFunc() *physics.Func {
	return &physics.Func{
		Dim:   1,
		Names: []string{"P"},
		F: func(x dynamo.State, p dynamo.Params) dynamo.State {
			return dynamo.State{x[0] * (1 - x[0])}
		},
	}
}

func TestNullclineSIClosedForm(t *testing.T) {
	c, err := analysis.ComputeNullcline(physics.NewSI(), siParams(), physics.Infectious, unitDomain(20))
	require.NoError(t, err)

	assert.Equal(t, analysis.MethodClosedForm, c.Method)
	assert.Equal(t, physics.Infectious, c.Component)
	assert.Equal(t, []int{0, 1}, c.Axes)
	require.Len(t, c.Points, 20)
	for i, pt := range c.Points {
		assert.InDelta(t, 1.0/3.0, pt[0], 1e-12)
		if i > 0 {
			assert.Greater(t, pt[1], c.Points[i-1][1])
		}
	}

	x, y := c.XY()
	assert.Len(t, x, 20)
	assert.Equal(t, 1.0, y[len(y)-1])
}

func TestNullclineSIScanAgreesWithClosedForm(t *testing.T) {
	p := siParams()
	c, err := analysis.ComputeNullcline(siFunc(), p, physics.Infectious, unitDomain(20))
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodScan, c.Method)

	interior := 0
	for _, pt := range c.Points {
		if pt[1] == 0 {
			// dI/dt = I(beta S - gamma) also vanishes on I = 0
			continue
		}
		interior++
		assert.InDelta(t, 1.0/3.0, pt[0], 1e-9)
	}
	assert.Equal(t, 19, interior)
}

func TestNullclineSIOutsideDomain(t *testing.T) {
	d := analysis.Domain{
		X: analysis.Axis{Component: 0, Min: 0.5, Max: 1, N: 10},
		Y: &analysis.Axis{Component: 1, Min: 0, Max: 1, N: 10},
	}
	c, err := analysis.ComputeNullcline(physics.NewSI(), siParams(), physics.Infectious, d)
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestNullclineSISusceptible(t *testing.T) {
	c, err := analysis.ComputeNullcline(physics.NewSI(), siParams(), physics.Susceptible, unitDomain(5))
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodClosedForm, c.Method)
	require.Len(t, c.Points, 10)
	for _, pt := range c.Points {
		assert.True(t, pt[0] == 0 || pt[1] == 0, "point %v off both axes", pt)
	}
}

func TestNullclineFallsBackWhenSolverDeclines(t *testing.T) {
	p := dynamo.NewParams(map[string]float64{"beta": 0, "gamma": 0.1})
	c, err := analysis.ComputeNullcline(physics.NewSI(), p, physics.Infectious, unitDomain(5))
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodScan, c.Method)
	for _, pt := range c.Points {
		assert.Equal(t, 0.0, pt[1])
	}
}

func TestNullclineLogisticScan(t *testing.T) {
	d := analysis.Domain{X: analysis.Axis{Component: 0, Min: -1, Max: 2, N: 20}}
	c, err := analysis.ComputeNullcline(logisticFunc(), dynamo.Params{}, 0, d)
	require.NoError(t, err)

	assert.Equal(t, analysis.MethodScan, c.Method)
	require.Len(t, c.Points, 2)
	assert.InDelta(t, 0.0, c.Points[0][0], 1e-9)
	assert.InDelta(t, 1.0, c.Points[1][0], 1e-9)
}

func TestNullclineLogisticClosedForm(t *testing.T) {
	logistic := physics.NewLogistic()
	d := analysis.Domain{X: analysis.Axis{Component: 0, Min: -1, Max: 2, N: 20}}
	c, err := analysis.ComputeNullcline(logistic, logistic.DefaultParams(), 0, d)
	require.NoError(t, err)

	assert.Equal(t, analysis.MethodClosedForm, c.Method)
	require.Len(t, c.Points, 2)
	assert.Equal(t, 0.0, c.Points[0][0])
	assert.Equal(t, 1.0, c.Points[1][0])
}

func TestNullclineNoCrossing(t *testing.T) {
	d := analysis.Domain{X: analysis.Axis{Component: 0, Min: 2, Max: 3, N: 10}}

	c, err := analysis.ComputeNullcline(logisticFunc(), dynamo.Params{}, 0, d)
	require.NoError(t, err)
	assert.True(t, c.Empty())

	c, err = analysis.ComputeNullcline(physics.NewLogistic(), dynamo.Params{}, 0, d)
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestNullclineExactZeroOnGrid(t *testing.T) {
	d := analysis.Domain{
		X:          analysis.Axis{Component: 0, Min: -1, Max: 1, N: 3},
		Resolution: 3,
	}
	c, err := analysis.ComputeNullcline(logisticFunc(), dynamo.Params{}, 0, d)
	require.NoError(t, err)
	require.Len(t, c.Points, 2)
	assert.Equal(t, 0.0, c.Points[0][0])
	assert.InDelta(t, 1.0, c.Points[1][0], 1e-9)
}

func TestNullclineErrors(t *testing.T) {
	p := siParams()

	_, err := analysis.ComputeNullcline(physics.NewSI(), p, 5, unitDomain(5))
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))

	bad := unitDomain(5)
	bad.X.Min, bad.X.Max = 1, 0
	_, err = analysis.ComputeNullcline(physics.NewSI(), p, 1, bad)
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))

	_, err = analysis.ComputeNullcline(physics.NewSI(), dynamo.Params{}, 1, unitDomain(5))
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))

	sqrt := &physics.Func{
		Dim: 1,
		F: func(x dynamo.State, p dynamo.Params) dynamo.State {
			return dynamo.State{math.Sqrt(x[0]) - 0.5}
		},
	}
	_, err = analysis.ComputeNullcline(sqrt, dynamo.Params{}, 0, analysis.Domain{
		X: analysis.Axis{Component: 0, Min: -1, Max: 1, N: 5},
	})
	assert.True(t, errors.Is(err, dynamo.ErrDomain), "got %v", err)
}

func TestNullclineSIRRecovered(t *testing.T) {
	sir := physics.NewSIR()
	d := analysis.Domain{
		X:    analysis.Axis{Component: 0, Min: 0, Max: 1, N: 4},
		Y:    &analysis.Axis{Component: 1, Min: 0, Max: 1, N: 4},
		Base: dynamo.State{0, 0, 0.3},
	}
	c, err := analysis.ComputeNullcline(sir, siParams(), physics.Recovered, d)
	require.NoError(t, err)
	require.Len(t, c.Points, 4)
	for _, pt := range c.Points {
		assert.Equal(t, 0.0, pt[1])
		assert.Equal(t, 0.3, pt[2])
	}
}
