package dynamo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Run is one member of an ensemble. Err is set when that member alone
// failed; the others are unaffected.
type Run struct {
	Initial    State
	Trajectory *Trajectory
	Err        error
}

type Ensemble struct {
	base    *Simulator
	workers int
}

// NewEnsemble runs trajectories of s concurrently with at most workers
// goroutines. workers <= 0 uses GOMAXPROCS.
func NewEnsemble(s *Simulator, workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{base: s, workers: workers}
}

// Run integrates one trajectory per initial condition. Results keep the
// order of inits. The returned error is only the context's.
func (e *Ensemble) Run(ctx context.Context, inits []State, p Params, cfg Config, stop StopPredicate) ([]Run, error) {
	runs := make([]Run, len(inits))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, x0 := range inits {
		runs[i].Initial = x0.Clone()
		g.Go(func() error {
			tr, err := e.base.Iterate(gctx, runs[i].Initial, p, cfg, stop)
			runs[i].Trajectory = tr
			runs[i].Err = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return runs, err
	}
	return runs, ctx.Err()
}
