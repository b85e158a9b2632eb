package metrics

import (
	"math"

	"github.com/san-kum/popsim/internal/dynamo"
)

// Peak tracks the largest value of one compartment, e.g. the height of
// an epidemic curve.
type Peak struct {
	name      string
	component int
	atTime    bool
	max       float64
	time      float64
	samples   int
}

func NewPeak(name string, component int) *Peak {
	return &Peak{name: name, component: component}
}

// NewPeakTime reports when the peak occurred instead of its height.
func NewPeakTime(name string, component int) *Peak {
	return &Peak{name: name, component: component, atTime: true}
}

func (p *Peak) Name() string { return p.name }

func (p *Peak) Observe(x dynamo.State, t float64) {
	if p.component >= len(x) {
		return
	}
	if p.samples == 0 || x[p.component] > p.max {
		p.max = x[p.component]
		p.time = t
	}
	p.samples++
}

func (p *Peak) Value() float64 {
	if p.samples == 0 {
		return math.NaN()
	}
	if p.atTime {
		return p.time
	}
	return p.max
}

func (p *Peak) Reset() {
	p.max = 0
	p.time = 0
	p.samples = 0
}

// Minimum tracks the smallest value of one compartment. A negative result
// flags explicit-scheme overshoot.
type Minimum struct {
	name      string
	component int
	min       float64
	samples   int
}

func NewMinimum(name string, component int) *Minimum {
	return &Minimum{name: name, component: component}
}

func (m *Minimum) Name() string { return m.name }

func (m *Minimum) Observe(x dynamo.State, t float64) {
	if m.component >= len(x) {
		return
	}
	if m.samples == 0 || x[m.component] < m.min {
		m.min = x[m.component]
	}
	m.samples++
}

func (m *Minimum) Value() float64 {
	if m.samples == 0 {
		return math.NaN()
	}
	return m.min
}

func (m *Minimum) Reset() {
	m.min = 0
	m.samples = 0
}
