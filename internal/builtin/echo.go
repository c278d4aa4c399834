package builtin

import (
	"context"

	"github.com/roach88/components/internal/component"
	"github.com/roach88/components/internal/ir"
)

// NewEcho builds a component that stores its deploy inputs as state and
// returns them as outputs.
func NewEcho(rt *component.Runtime) (component.Component, error) {
	return component.Methods{
		"deploy": func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
			if err := rt.Status(ctx, "Deploying"); err != nil {
				return nil, err
			}
			rt.State()["inputs"] = inputs.Clone()
			if err := rt.Save(ctx); err != nil {
				return nil, err
			}
			return inputs, nil
		},
		"remove": func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
			if err := rt.Status(ctx, "Removing"); err != nil {
				return nil, err
			}
			delete(rt.State(), "inputs")
			if err := rt.Save(ctx); err != nil {
				return nil, err
			}
			return ir.IRObject{}, nil
		},
		"info": func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
			return rt.State().Clone(), nil
		},
	}, nil
}
