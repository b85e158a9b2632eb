package integrators

import (
	"testing"

	"github.com/san-kum/popsim/internal/dynamo"
)

type benchSIR struct{}

func (b *benchSIR) StateDim() int { return 3 }
func (b *benchSIR) Derive(x dynamo.State, p dynamo.Params) dynamo.State {
	inf := 0.3 * x[0] * x[1]
	rec := 0.1 * x[1]
	return dynamo.State{-inf, inf - rec, rec}
}

func BenchmarkEuler(b *testing.B) {
	integrator := NewEuler()
	dyn := &benchSIR{}
	x := dynamo.State{0.99, 0.01, 0}
	t := 0.0

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, t = integrator.Step(dyn, x, dynamo.Params{}, t, 0.01)
	}
}

type benchMeta struct{}

func (b *benchMeta) StateDim() int { return 20 }
func (b *benchMeta) Derive(x dynamo.State, p dynamo.Params) dynamo.State {
	dx := make(dynamo.State, 20)
	for i := 0; i < 10; i++ {
		s, inf := x[i*2], x[i*2+1]
		dx[i*2] = -0.3 * s * inf
		dx[i*2+1] = 0.3*s*inf - 0.1*inf
	}
	return dx
}

func BenchmarkEuler_Metapopulation10(b *testing.B) {
	integrator := NewEuler()
	dyn := &benchMeta{}
	x := make(dynamo.State, 20)
	for i := 0; i < 10; i++ {
		x[i*2] = 0.99
		x[i*2+1] = 0.01
	}
	t := 0.0

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, t = integrator.Step(dyn, x, dynamo.Params{}, t, 0.001)
	}
}
