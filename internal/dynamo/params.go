package dynamo

import (
	"fmt"
	"sort"
	"strings"
)

// Params is an immutable set of named rate constants. The zero value is an
// empty set.
type Params struct {
	values map[string]float64
}

// NewParams copies values; later changes to the map do not leak in.
func NewParams(values map[string]float64) Params {
	p := Params{values: make(map[string]float64, len(values))}
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

func (p Params) Get(name string) (float64, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Value returns the named parameter or 0 when it is absent. Systems that
// implement Parametrized are validated before use, so Value is safe there.
func (p Params) Value(name string) float64 {
	return p.values[name]
}

// With returns a copy of p with name set to v.
func (p Params) With(name string, v float64) Params {
	c := NewParams(p.values)
	c.values[name] = v
	return c
}

func (p Params) Len() int { return len(p.values) }

func (p Params) Names() []string {
	names := make([]string, 0, len(p.values))
	for k := range p.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (p Params) Map() map[string]float64 {
	m := make(map[string]float64, len(p.values))
	for k, v := range p.values {
		m[k] = v
	}
	return m
}

func (p Params) String() string {
	parts := make([]string, 0, len(p.values))
	for _, k := range p.Names() {
		parts = append(parts, fmt.Sprintf("%s=%g", k, p.values[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Missing returns the names required by dyn that p does not define.
func (p Params) Missing(dyn System) []string {
	pz, ok := dyn.(Parametrized)
	if !ok {
		return nil
	}
	var missing []string
	for _, name := range pz.ParamNames() {
		if _, ok := p.values[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
