package template

import (
	"fmt"
	"strings"

	"github.com/roach88/components/internal/ir"
)

// Instance is the root invocation described by a resolved template.
type Instance struct {
	Org       string
	App       string
	Stage     string
	Name      string
	Component ir.ComponentRef
	Inputs    ir.IRObject
}

// Identity returns the root identity of the instance.
func (i Instance) Identity() ir.Identity {
	return ir.Identity{
		Org:              i.Org,
		App:              i.App,
		Stage:            i.Stage,
		Name:             i.Name,
		ComponentName:    i.Component.Name,
		ComponentVersion: i.Component.Version,
	}
}

// InstanceData extracts the root instance from a resolved template.
//
// "app" may carry the org as "org/app". A missing stage falls back to
// defaultStage, then ir.DefaultStage. Top-level component declarations are
// handed to the root as inputs.components, with placeholders that wait on
// sibling outputs left in place.
func InstanceData(t *Tree, defaultStage string) (Instance, error) {
	obj := t.Object()
	inst := Instance{Inputs: ir.IRObject{}}

	inst.Org, _ = obj.GetString("org")
	inst.Stage, _ = obj.GetString("stage")
	inst.Name, _ = obj.GetString("name")

	app, _ := obj.GetString("app")
	if app == "" {
		return Instance{}, fmt.Errorf(`missing "app" property in template`)
	}
	if strings.Contains(app, "/") {
		parts := strings.Split(app, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return Instance{}, fmt.Errorf("%q is not a valid org/app", app)
		}
		inst.Org, inst.App = parts[0], parts[1]
	} else {
		inst.App = app
	}

	if inst.Name == "" {
		return Instance{}, fmt.Errorf(`missing "name" property in template`)
	}

	comp, _ := obj.GetString("component")
	if comp == "" {
		return Instance{}, fmt.Errorf(`missing "component" property in template`)
	}
	ref, err := ir.ParseComponentRef(comp)
	if err != nil {
		return Instance{}, err
	}
	inst.Component = ref

	if inst.Stage == "" {
		inst.Stage = defaultStage
	}
	if inst.Stage == "" {
		inst.Stage = ir.DefaultStage
	}

	if raw, ok := obj["inputs"]; ok {
		inputs, ok := raw.(ir.IRObject)
		if !ok {
			return Instance{}, fmt.Errorf(`"inputs" must be an object`)
		}
		inst.Inputs = inputs
	}

	if decls := t.Declarations(); len(decls) > 0 {
		if _, ok := inst.Inputs[ir.ComponentsKey]; ok {
			return Instance{}, fmt.Errorf("inputs.%s conflicts with top-level component declarations", ir.ComponentsKey)
		}
		components := make(ir.IRObject, len(decls))
		for _, alias := range decls {
			components[alias] = obj[alias]
		}
		inst.Inputs = inst.Inputs.Clone()
		inst.Inputs[ir.ComponentsKey] = components
	}
	return inst, nil
}
