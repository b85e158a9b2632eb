package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/metrics"
	"github.com/san-kum/popsim/internal/physics"
)

// Defaults is implemented by models that ship a reference initial state
// and parameter set.
type Defaults interface {
	DefaultState() dynamo.State
	DefaultParams() dynamo.Params
}

type Registry struct {
	models map[string]func() dynamo.System
}

func NewRegistry() *Registry {
	r := &Registry{
		models: make(map[string]func() dynamo.System),
	}

	r.models["logistic"] = func() dynamo.System { return physics.NewLogistic() }
	r.models["sir"] = func() dynamo.System { return physics.NewSIR() }
	r.models["si"] = func() dynamo.System { return physics.NewSI() }

	return r
}

func (r *Registry) GetModel(name string) (dynamo.System, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns metric factories suited to the model's state
// layout.
func (r *Registry) DefaultMetrics(dyn dynamo.System) []func() dynamo.Metric {
	labels := dynamo.LabelsOf(dyn)

	var out []func() dynamo.Metric
	if sir, ok := dyn.(*physics.SIR); ok {
		out = append(out,
			func() dynamo.Metric { return metrics.NewPeak("peak_I", physics.Infectious) },
			func() dynamo.Metric { return metrics.NewPeakTime("peak_I_t", physics.Infectious) },
			func() dynamo.Metric { return metrics.NewMinimum("min_S", physics.Susceptible) },
		)
		if sir.StateDim() == 3 {
			out = append(out, func() dynamo.Metric { return metrics.NewConservationDrift() })
		}
		return out
	}

	for i, label := range labels {
		out = append(out,
			func() dynamo.Metric { return metrics.NewPeak("peak_"+label, i) },
			func() dynamo.Metric { return metrics.NewMinimum("min_"+label, i) },
		)
	}
	return out
}
