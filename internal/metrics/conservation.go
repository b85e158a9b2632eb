package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/popsim/internal/dynamo"
)

// ConservationDrift is the largest relative change of the total population
// over a run. Closed compartment models conserve the total exactly; any
// drift comes from discretisation and rounding.
type ConservationDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewConservationDrift() *ConservationDrift {
	return &ConservationDrift{name: "conservation_drift"}
}

func (c *ConservationDrift) Name() string { return c.name }

func (c *ConservationDrift) Observe(x dynamo.State, t float64) {
	total := floats.Sum(x)
	if c.samples == 0 {
		c.initial = total
	}
	c.samples++

	if c.initial != 0 {
		drift := math.Abs(total-c.initial) / math.Abs(c.initial)
		c.maxDrift = math.Max(c.maxDrift, drift)
	}
}

func (c *ConservationDrift) Value() float64 {
	return c.maxDrift
}

func (c *ConservationDrift) Reset() {
	c.initial = 0
	c.maxDrift = 0
	c.samples = 0
}
