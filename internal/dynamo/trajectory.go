package dynamo

// Sample is one recorded point of a trajectory.
type Sample struct {
	T     float64
	State State
}

// Trajectory is an ordered run of samples spaced by a constant step. The
// first sample is the initial condition at t=0. Derivatives[i] is the
// derivative evaluated at Samples[i] to produce Samples[i+1].
type Trajectory struct {
	Samples     []Sample
	Derivatives []State
	Warnings    []Warning
	Metrics     map[string]float64
	Halted      bool
	Dt          float64
}

func (tr *Trajectory) Len() int { return len(tr.Samples) }

// Steps is the number of Euler updates applied.
func (tr *Trajectory) Steps() int {
	if len(tr.Samples) == 0 {
		return 0
	}
	return len(tr.Samples) - 1
}

func (tr *Trajectory) Times() []float64 {
	times := make([]float64, len(tr.Samples))
	for i, s := range tr.Samples {
		times[i] = s.T
	}
	return times
}

// Series returns compartment k over time.
func (tr *Trajectory) Series(k int) []float64 {
	series := make([]float64, len(tr.Samples))
	for i, s := range tr.Samples {
		if k < len(s.State) {
			series[i] = s.State[k]
		}
	}
	return series
}

// States returns the recorded states as plain slices.
func (tr *Trajectory) States() [][]float64 {
	states := make([][]float64, len(tr.Samples))
	for i, s := range tr.Samples {
		states[i] = s.State
	}
	return states
}

func (tr *Trajectory) Final() Sample {
	if len(tr.Samples) == 0 {
		return Sample{}
	}
	return tr.Samples[len(tr.Samples)-1]
}

// Row is one iteration of the Euler loop in tabular form.
type Row struct {
	Iteration  int
	T          float64
	State      State
	Derivative State
	NewT       float64
	NewState   State
}

// Rows returns one Row per applied step, numbered from 1.
func (tr *Trajectory) Rows() []Row {
	rows := make([]Row, 0, tr.Steps())
	for i := 0; i < tr.Steps() && i < len(tr.Derivatives); i++ {
		rows = append(rows, Row{
			Iteration:  i + 1,
			T:          tr.Samples[i].T,
			State:      tr.Samples[i].State,
			Derivative: tr.Derivatives[i],
			NewT:       tr.Samples[i+1].T,
			NewState:   tr.Samples[i+1].State,
		})
	}
	return rows
}
