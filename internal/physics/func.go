package physics

import "github.com/san-kum/popsim/internal/dynamo"

// Func adapts a plain derivative function to dynamo.System, for models that
// have no dedicated type. It offers no closed-form nullclines, so
// nullclines are found by scanning.
type Func struct {
	Dim      int
	Names    []string
	Required []string
	F        func(x dynamo.State, p dynamo.Params) dynamo.State
}

func (f *Func) StateDim() int        { return f.Dim }
func (f *Func) ParamNames() []string { return f.Required }

func (f *Func) Labels() []string { return f.Names }

func (f *Func) Derive(x dynamo.State, p dynamo.Params) dynamo.State {
	return f.F(x, p)
}
