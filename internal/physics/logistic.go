package physics

import (
	"math"

	"github.com/san-kum/popsim/internal/analysis"
	"github.com/san-kum/popsim/internal/dynamo"
)

// Logistic implements logistic population growth.
// State: [P]
// Equation:
//
//	dP/dt = r P (1 - P/K)
//
// r and K are optional parameters defaulting to 1, which gives the
// textbook dP/dt = P(1-P) with an unstable equilibrium at 0 and a stable
// one at 1.
type Logistic struct{}

func NewLogistic() *Logistic { return &Logistic{} }

func (l *Logistic) StateDim() int    { return 1 }
func (l *Logistic) Labels() []string { return []string{"P"} }

func (l *Logistic) Bounds(int) (float64, float64) { return 0, math.Inf(1) }

func (l *Logistic) Derive(x dynamo.State, p dynamo.Params) dynamo.State {
	r, k := l.rates(p)
	return dynamo.State{r * x[0] * (1 - x[0]/k)}
}

func (l *Logistic) DefaultState() dynamo.State { return dynamo.State{0.05} }

func (l *Logistic) DefaultParams() dynamo.Params {
	return dynamo.NewParams(map[string]float64{"r": 1, "k": 1})
}

// Equilibria returns the unstable and stable fixed points.
func (l *Logistic) Equilibria(p dynamo.Params) (unstable, stable float64) {
	_, k := l.rates(p)
	return 0, k
}

// Nullcline implements analysis.NullclineSolver: dP/dt vanishes at P=0 and
// P=K.
func (l *Logistic) Nullcline(component int, p dynamo.Params, d analysis.Domain) (*analysis.Curve, bool) {
	r, k := l.rates(p)
	if component != 0 || r == 0 || k == 0 {
		return nil, false
	}
	zero, ok := analysis.LinePoints(d, 1, 0, 0)
	if !ok {
		return nil, false
	}
	carrying, _ := analysis.LinePoints(d, 1, 0, k)
	return &analysis.Curve{Points: append(zero, carrying...)}, true
}

func (l *Logistic) rates(p dynamo.Params) (r, k float64) {
	r, k = 1, 1
	if v, ok := p.Get("r"); ok {
		r = v
	}
	if v, ok := p.Get("k"); ok {
		k = v
	}
	return r, k
}
