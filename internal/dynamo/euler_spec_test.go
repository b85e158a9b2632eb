package dynamo_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/integrators"
	"github.com/san-kum/popsim/internal/physics"
)

var _ = Describe("Euler trajectories", func() {
	var (
		ctx context.Context
		sim *dynamo.Simulator
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("logistic growth", func() {
		BeforeEach(func() {
			sim = dynamo.New(physics.NewLogistic(), integrators.NewEuler())
		})

		It("reproduces the textbook iteration table", func() {
			tr, err := sim.Iterate(ctx, dynamo.State{0.05}, physics.NewLogistic().DefaultParams(), dynamo.Config{Dt: 0.5, Steps: 10}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Len()).To(Equal(11))
			Expect(tr.Samples[1].State[0]).To(BeNumerically("~", 0.07375, 1e-12))
			Expect(tr.Final().T).To(BeNumerically("~", 5.0, 1e-9))
		})

		It("stays put at an equilibrium", func() {
			for _, eq := range []float64{0, 1} {
				tr, err := sim.Iterate(ctx, dynamo.State{eq}, dynamo.Params{}, dynamo.Config{Dt: 0.1, Steps: 50}, nil)
				Expect(err).NotTo(HaveOccurred())
				for _, s := range tr.Samples {
					Expect(s.State[0]).To(Equal(eq))
				}
			}
		})

		It("approaches the carrying capacity from either side", func() {
			for _, p0 := range []float64{0.2, 1.6} {
				tr, err := sim.Iterate(ctx, dynamo.State{p0}, dynamo.Params{}, dynamo.Config{Dt: 0.1, Steps: 300}, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(tr.Final().State[0]).To(BeNumerically("~", 1.0, 1e-3))
			}
		})

		It("warns once when the population goes negative", func() {
			tr, err := sim.Iterate(ctx, dynamo.State{-0.1}, dynamo.Params{}, dynamo.Config{Dt: 0.1, Steps: 5}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Warnings).To(HaveLen(1))
			Expect(tr.Warnings[0].Step).To(Equal(0))
		})
	})

	Describe("SIR epidemic", func() {
		var (
			model *physics.SIR
			p     dynamo.Params
		)

		BeforeEach(func() {
			model = physics.NewSIR()
			p = model.DefaultParams()
			sim = dynamo.New(model, integrators.NewEuler())
		})

		It("conserves the total population", func() {
			x0 := model.DefaultState()
			tr, err := sim.Iterate(ctx, x0, p, dynamo.Config{Dt: 1, Steps: 120}, nil)
			Expect(err).NotTo(HaveOccurred())

			n := x0.Sum()
			for _, s := range tr.Samples {
				Expect(math.Abs(s.State.Sum()-n) / n).To(BeNumerically("<", 1e-12))
			}
		})

		It("never increases the susceptible compartment", func() {
			tr, err := sim.Iterate(ctx, model.DefaultState(), p, dynamo.Config{Dt: 1, Steps: 120}, nil)
			Expect(err).NotTo(HaveOccurred())
			for i := 1; i < tr.Len(); i++ {
				Expect(tr.Samples[i].State[physics.Susceptible]).To(BeNumerically("<=", tr.Samples[i-1].State[physics.Susceptible]))
			}
		})

		It("rejects a state of the wrong dimension", func() {
			_, err := sim.Iterate(ctx, dynamo.State{0.9, 0.1}, p, dynamo.Config{Dt: 1, Steps: 10}, nil)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})
	})

	Describe("SI phase plane", func() {
		var p dynamo.Params

		BeforeEach(func() {
			si := physics.NewSI()
			p = si.DefaultParams()
			sim = dynamo.New(si, integrators.NewEuler())
		})

		It("halts when a trajectory leaves the triangle S + I <= 1", func() {
			stop := dynamo.WithinTotal(1, physics.Susceptible, physics.Infectious)
			tr, err := sim.Iterate(ctx, dynamo.State{0.5, 0.5}, p, dynamo.Config{Dt: 0.1, Steps: 100}, stop)
			Expect(err).NotTo(HaveOccurred())
			for _, s := range tr.Samples {
				Expect(s.State.Sum()).To(BeNumerically("<=", 1+1e-12))
			}
		})

		It("returns only the initial sample when it starts outside", func() {
			stop := dynamo.WithinTotal(1, physics.Susceptible, physics.Infectious)
			tr, err := sim.Iterate(ctx, dynamo.State{0.8, 0.8}, p, dynamo.Config{Dt: 0.1, Steps: 100}, stop)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Halted).To(BeTrue())
			Expect(tr.Len()).To(Equal(1))
		})

		It("runs an ensemble in input order", func() {
			inits := []dynamo.State{{0.9, 0.1}, {0.6, 0.4}, {0.3, 0.7}}
			runs, err := dynamo.NewEnsemble(sim, 2).Run(ctx, inits, p, dynamo.Config{Dt: 0.1, Steps: 20}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(3))
			for i, run := range runs {
				Expect(run.Err).NotTo(HaveOccurred())
				Expect(run.Initial).To(Equal(inits[i]))
				Expect(run.Trajectory.Samples[0].State).To(Equal(inits[i]))
			}
		})
	})
})
