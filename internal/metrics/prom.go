package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/popsim/internal/dynamo"
)

// PromObserver counts simulation activity in Prometheus collectors. It is
// safe to share between concurrent trajectories.
type PromObserver struct {
	model        string
	steps        *prometheus.CounterVec
	warnings     *prometheus.CounterVec
	trajectories *prometheus.CounterVec
}

// NewPromObserver registers the collectors on reg. If reg is nil, the
// default registerer is used. Already registered collectors are reused.
func NewPromObserver(reg prometheus.Registerer, model string) (*PromObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "popsim_steps_total",
		Help: "Total number of Euler steps applied",
	}, []string{"model"})
	warnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "popsim_range_warnings_total",
		Help: "Compartments leaving their physical range",
	}, []string{"model", "component"})
	trajectories := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "popsim_trajectories_total",
		Help: "Completed trajectories by outcome",
	}, []string{"model", "outcome"})

	var err error
	if steps, err = register(reg, steps); err != nil {
		return nil, err
	}
	if warnings, err = register(reg, warnings); err != nil {
		return nil, err
	}
	if trajectories, err = register(reg, trajectories); err != nil {
		return nil, err
	}

	return &PromObserver{
		model:        model,
		steps:        steps,
		warnings:     warnings,
		trajectories: trajectories,
	}, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func (o *PromObserver) OnStep(step int, x dynamo.State, t float64) {
	o.steps.WithLabelValues(o.model).Inc()
}

func (o *PromObserver) OnWarning(w dynamo.Warning) {
	o.warnings.WithLabelValues(o.model, strconv.Itoa(w.Component)).Inc()
}

func (o *PromObserver) OnFinish(tr *dynamo.Trajectory, err error) {
	o.trajectories.WithLabelValues(o.model, Outcome(tr, err)).Inc()
}

// Outcome classifies a finished run for labelling.
func Outcome(tr *dynamo.Trajectory, err error) string {
	switch {
	case errors.Is(err, dynamo.ErrDomain):
		return "domain_error"
	case err != nil:
		return "error"
	case tr != nil && tr.Halted:
		return "halted"
	default:
		return "completed"
	}
}
