// Package template loads declarative component templates and resolves the
// "${...}" placeholders inside them.
//
// A template is a Tree of top-level entries. Each entry is either a plain
// Value or a ComponentDecl (an object with a string "component" field).
// Placeholders reference other entries ("${db.inputs.name}") or the
// environment ("${env.REGION}").
//
// Resolution iterates to a fixpoint. References into a component
// declaration are deferred, because their value is the declaration's
// outputs and only exists once that component has run:
//
//	t, _ := template.LoadFile("serverless.yml")
//	resolved, err := template.Resolve(t)
//	// ...run "db", then:
//	_ = resolved.SetOutputs("db", outputs)
//	resolved, err = template.Resolve(resolved)
//
// Reference cycles fail with CyclicReference before any pass runs, and
// WithMaxPasses bounds the total number of passes.
package template
