package analysis

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/popsim/internal/dynamo"
)

// SweepDt varies the step size instead of a rate constant.
const SweepDt = "dt"

// sweepQuantum is the resolution used to tell long-run values apart.
const sweepQuantum = 1e3

// SweepConfig varies one parameter over N evenly spaced values and records
// where a component settles. Dt is the step size for parameter sweeps.
type SweepConfig struct {
	Param     string
	Min, Max  float64
	N         int
	Component int
	Dt        float64
	Transient int
	Record    int
}

// SweepPoint holds the distinct values component visits once the
// transient has passed: one for a stable equilibrium, two for a 2-cycle,
// many for chaos. Err is set when that value alone failed, e.g. an Euler
// step large enough to diverge.
type SweepPoint struct {
	Value  float64
	Values []float64
	Err    error
}

// Sweep integrates x0 once per swept value. For the logistic model
// sweeping dt exposes the period doubling of the explicit scheme past
// dt = 2/r. Configuration errors, including an initial state or step size
// the simulator would reject, are returned before any run; after that only
// context cancellation is.
func Sweep(ctx context.Context, sim *dynamo.Simulator, x0 dynamo.State, p dynamo.Params, cfg SweepConfig) ([]SweepPoint, error) {
	if err := cfg.validate(sim.System().StateDim()); err != nil {
		return nil, err
	}
	first, step := p.With(cfg.Param, cfg.Min), cfg.Dt
	if cfg.Param == SweepDt {
		first, step = p, cfg.Min
	}
	if err := sim.Validate(x0, first, dynamo.Config{Dt: step, Steps: cfg.Transient + cfg.Record}); err != nil {
		return nil, err
	}

	axis := Axis{Min: cfg.Min, Max: cfg.Max, N: cfg.N}
	points := make([]SweepPoint, 0, cfg.N)

	for _, v := range axis.Values() {
		if err := ctx.Err(); err != nil {
			return points, err
		}

		params, step := p.With(cfg.Param, v), cfg.Dt
		if cfg.Param == SweepDt {
			params, step = p, v
		}

		pt := SweepPoint{Value: v}
		tr, err := sim.Iterate(ctx, x0, params, dynamo.Config{Dt: step, Steps: cfg.Transient + cfg.Record}, nil)
		switch {
		case err != nil && ctx.Err() != nil:
			return points, ctx.Err()
		case err != nil:
			pt.Err = err
		default:
			pt.Values = settled(tr.Samples[cfg.Transient+1:], cfg.Component)
		}
		points = append(points, pt)
	}
	return points, nil
}

func settled(samples []dynamo.Sample, k int) []float64 {
	seen := make(map[int64]bool)
	var values []float64
	for _, s := range samples {
		key := int64(math.Round(s.State[k] * sweepQuantum))
		if !seen[key] {
			seen[key] = true
			values = append(values, s.State[k])
		}
	}
	sort.Float64s(values)
	return values
}

func (c SweepConfig) validate(dim int) error {
	if c.Param == "" {
		return dynamo.ConfigErrorf("sweep", "parameter name is required")
	}
	if c.N < 1 || !finite(c.Min) || !finite(c.Max) || c.Min > c.Max {
		return dynamo.ConfigErrorf("sweep", "invalid range [%g, %g] with %d points", c.Min, c.Max, c.N)
	}
	if c.Param == SweepDt && c.Min <= 0 {
		return dynamo.ConfigErrorf("sweep", "dt values must be positive, got min %g", c.Min)
	}
	if c.Component < 0 || c.Component >= dim {
		return dynamo.DimensionErrorf("sweep", "component %d outside [0, %d)", c.Component, dim)
	}
	if c.Transient < 0 || c.Record < 1 {
		return dynamo.ConfigErrorf("sweep", "need transient >= 0 and record >= 1, got %d and %d", c.Transient, c.Record)
	}
	return nil
}

// SweepToASCII plots the settled values against the swept value, one
// column per point.
func SweepToASCII(points []SweepPoint, width, height int) string {
	if len(points) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	var minVal, maxVal float64
	found := false
	for _, p := range points {
		for _, v := range p.Values {
			if !found {
				minVal, maxVal = v, v
				found = true
				continue
			}
			minVal = min(minVal, v)
			maxVal = max(maxVal, v)
		}
	}
	if !found {
		return ""
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for i, p := range points {
		col := min(i*width/len(points), width-1)
		if p.Err != nil {
			canvas[0][col] = 'x'
			continue
		}
		for _, v := range p.Values {
			row := height - 1 - int((v-minVal)/(maxVal-minVal)*float64(height-1))
			if row >= 0 && row < height {
				canvas[row][col] = '•'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
