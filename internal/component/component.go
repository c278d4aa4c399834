package component

import (
	"context"
	"sort"

	"github.com/roach88/components/internal/ir"
)

// Method is one callable operation of a component.
type Method func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error)

// Component exposes methods by name.
type Component interface {
	Method(name string) (Method, bool)
}

// Methods is a Component backed by a map.
type Methods map[string]Method

func (m Methods) Method(name string) (Method, bool) {
	fn, ok := m[name]
	return fn, ok && fn != nil
}

// Names returns the method names in sorted order.
func (m Methods) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Factory builds a component implementation around its runtime.
type Factory func(rt *Runtime) (Component, error)
