package physics

import (
	"math"

	"github.com/san-kum/popsim/internal/analysis"
	"github.com/san-kum/popsim/internal/dynamo"
)

const (
	Susceptible = 0
	Infectious  = 1
	Recovered   = 2
)

// SIR implements the Kermack-McKendrick epidemic model.
// State: [S, I, R], or [S, I] for the two-compartment variant.
// Equations:
//
//	dS/dt = -β S I
//	dI/dt =  β S I - γ I
//	dR/dt =  γ I
//
// Parameters: beta (infection rate), gamma (recovery rate).
type SIR struct {
	compartments int
}

// NewSIR returns the three-compartment model.
func NewSIR() *SIR { return &SIR{compartments: 3} }

// NewSI returns the two-compartment model used on the S-I phase plane;
// R is implied by S + I + R = N.
func NewSI() *SIR { return &SIR{compartments: 2} }

func (s *SIR) StateDim() int        { return s.compartments }
func (s *SIR) ParamNames() []string { return []string{"beta", "gamma"} }

func (s *SIR) Labels() []string {
	return []string{"S", "I", "R"}[:s.compartments]
}

func (s *SIR) Bounds(int) (float64, float64) { return 0, math.Inf(1) }

func (s *SIR) Derive(x dynamo.State, p dynamo.Params) dynamo.State {
	beta, gamma := p.Value("beta"), p.Value("gamma")
	sus, inf := x[Susceptible], x[Infectious]

	infection := beta * sus * inf
	recovery := gamma * inf

	dx := make(dynamo.State, s.compartments)
	dx[Susceptible] = -infection
	dx[Infectious] = infection - recovery
	if s.compartments > 2 {
		dx[Recovered] = recovery
	}
	return dx
}

func (s *SIR) DefaultState() dynamo.State {
	if s.compartments == 2 {
		return dynamo.State{0.9, 0.1}
	}
	return dynamo.State{999000, 1000, 0}
}

func (s *SIR) DefaultParams() dynamo.Params {
	if s.compartments == 2 {
		return dynamo.NewParams(map[string]float64{"beta": 0.3, "gamma": 0.1})
	}
	return dynamo.NewParams(map[string]float64{"beta": 1.47e-7, "gamma": 0.0588})
}

// Total is the population S + I (+ R), conserved by the continuous model.
func (s *SIR) Total(x dynamo.State) float64 {
	return x.Sum()
}

// ReproductionNumber is R0 = β N / γ for a population of size n.
func (s *SIR) ReproductionNumber(p dynamo.Params, n float64) float64 {
	return p.Value("beta") * n / p.Value("gamma")
}

// DIDS is the slope dI/dS of the phase-plane trajectory through x. It is
// undefined where dS/dt = 0, in particular at S = 0.
func (s *SIR) DIDS(x dynamo.State, p dynamo.Params) (float64, error) {
	return analysis.SlopeRatio(s, p, x, Infectious, Susceptible)
}

// Nullcline implements analysis.NullclineSolver.
//
//	I-nullcline: S = γ/β
//	S-nullcline: S = 0 and I = 0
//	R-nullcline: I = 0
func (s *SIR) Nullcline(component int, p dynamo.Params, d analysis.Domain) (*analysis.Curve, bool) {
	if component >= s.compartments {
		return nil, false
	}
	beta, gamma := p.Value("beta"), p.Value("gamma")

	switch component {
	case Infectious:
		if beta == 0 {
			return nil, false
		}
		pts, ok := analysis.LinePoints(d, s.compartments, Susceptible, gamma/beta)
		if !ok {
			return nil, false
		}
		return &analysis.Curve{Points: pts}, true

	case Susceptible:
		if beta == 0 {
			return nil, false
		}
		noSus, ok := analysis.LinePoints(d, s.compartments, Susceptible, 0)
		if !ok {
			return nil, false
		}
		noInf, ok := analysis.LinePoints(d, s.compartments, Infectious, 0)
		if !ok {
			return nil, false
		}
		return &analysis.Curve{Points: append(noSus, noInf...)}, true

	case Recovered:
		if gamma == 0 {
			return nil, false
		}
		pts, ok := analysis.LinePoints(d, s.compartments, Infectious, 0)
		if !ok {
			return nil, false
		}
		return &analysis.Curve{Points: pts}, true
	}
	return nil, false
}
