package dynamo

// StopPredicate reports whether a trajectory may continue from x. When it
// returns false the generator halts, keeping x as the last sample. It is
// also applied to the initial state.
type StopPredicate func(x State) bool

// Always never halts.
func Always(State) bool { return true }

// WithinTotal continues while the sum of the given compartments stays at or
// below limit, e.g. S + I <= N on the SI phase plane. No components means
// all of them.
func WithinTotal(limit float64, components ...int) StopPredicate {
	return func(x State) bool {
		return partialSum(x, components) <= limit
	}
}

// NonNegative continues while the given compartments are >= 0.
func NonNegative(components ...int) StopPredicate {
	return func(x State) bool {
		if len(components) == 0 {
			for _, v := range x {
				if v < 0 {
					return false
				}
			}
			return true
		}
		for _, k := range components {
			if k < len(x) && x[k] < 0 {
				return false
			}
		}
		return true
	}
}

func partialSum(x State, components []int) float64 {
	if len(components) == 0 {
		return x.Sum()
	}
	sum := 0.0
	for _, k := range components {
		if k < len(x) {
			sum += x[k]
		}
	}
	return sum
}
