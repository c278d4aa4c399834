package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/components/internal/component"
	"github.com/roach88/components/internal/ir"
	"github.com/roach88/components/internal/rpc"
	"github.com/roach88/components/internal/template"
)

// NewStack builds a component that deploys a set of child components. Its
// deploy input "components" maps alias to {component: ref, inputs: {...}};
// outputs map alias to child outputs.
//
// Child inputs may reference sibling outputs ("${db.name}"). Children run
// in rounds: every child whose inputs wait on no undeployed sibling is
// deployed concurrently, its outputs are substituted, and the rest are
// resolved again. remove tears the rounds down in reverse.
func NewStack(rt *component.Runtime) (component.Component, error) {
	return component.Methods{
		"deploy": func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
			tree, err := stackTree(inputs)
			if err != nil {
				return nil, err
			}
			if err := rt.Status(ctx, fmt.Sprintf("Deploying %d components", len(tree.Declarations()))); err != nil {
				return nil, err
			}

			deployed := ir.IRObject{}
			rounds := ir.IRArray{}
			for {
				tree, err = template.Resolve(tree, template.WithLogger(rt.Logger()))
				if err != nil {
					return nil, fmt.Errorf("stack: %w", err)
				}
				pending := tree.Declarations()
				if len(pending) == 0 {
					break
				}

				children := readyChildren(tree, pending)
				if len(children) == 0 {
					return nil, fmt.Errorf("stack: components wait on each other: %s", describeDeferred(tree.Deferred()))
				}
				outputs, err := fanOut(ctx, rt, children, "deploy")
				if err != nil {
					return nil, err
				}

				var round ir.IRArray
				for _, alias := range sortedAliases(children) {
					out, _ := outputs[alias].(ir.IRObject)
					if err := tree.SetOutputs(alias, out); err != nil {
						return nil, err
					}
					deployed[alias] = ir.IRString(children[alias].ref)
					round = append(round, ir.IRString(alias))
				}
				rounds = append(rounds, round)

				// Saved per round so a later failure can still be removed.
				rt.State()[ir.ComponentsKey] = deployed.Clone()
				rt.State()["rounds"] = ir.Clone(rounds)
				if err := rt.Save(ctx); err != nil {
					return nil, err
				}
			}

			result := make(ir.IRObject, len(deployed))
			obj := tree.Object()
			for alias := range deployed {
				result[alias] = obj[alias]
			}
			return result, nil
		},
		"remove": func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
			deployed, _ := rt.State()[ir.ComponentsKey].(ir.IRObject)
			rounds, _ := rt.State()["rounds"].(ir.IRArray)
			if err := rt.Status(ctx, fmt.Sprintf("Removing %d components", len(deployed))); err != nil {
				return nil, err
			}

			for _, batch := range removalRounds(deployed, rounds) {
				if _, err := fanOut(ctx, rt, batch, "remove"); err != nil {
					return nil, err
				}
			}
			delete(rt.State(), ir.ComponentsKey)
			delete(rt.State(), "rounds")
			return ir.IRObject{}, rt.Save(ctx)
		},
	}, nil
}

type stackChild struct {
	ref    string
	inputs ir.IRObject
}

// stackTree validates the "components" input and parses it into a
// declarative tree of component declarations.
func stackTree(inputs ir.IRObject) (*template.Tree, error) {
	raw, ok := inputs[ir.ComponentsKey].(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("stack: input %q must be an object", ir.ComponentsKey)
	}
	for alias, v := range raw {
		decl, ok := v.(ir.IRObject)
		if !ok {
			return nil, fmt.Errorf("stack: component %q must be an object", alias)
		}
		if _, ok := decl.GetString("component"); !ok {
			return nil, fmt.Errorf("stack: component %q has no \"component\" reference", alias)
		}
	}
	return template.Parse(raw), nil
}

// readyChildren returns the pending declarations whose placeholders no
// longer wait on an undeployed sibling.
func readyChildren(tree *template.Tree, pending []string) map[string]stackChild {
	children := make(map[string]stackChild)
	for _, alias := range pending {
		if len(tree.WaitingOn(alias)) > 0 {
			continue
		}
		n, _ := tree.Get(alias)
		decl := n.(*template.ComponentDecl)
		children[alias] = stackChild{ref: decl.Component, inputs: decl.Inputs}
	}
	return children
}

func describeDeferred(deferred map[string][]string) string {
	targets := make([]string, 0, len(deferred))
	for target := range deferred {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	parts := make([]string, len(targets))
	for i, target := range targets {
		parts[i] = target + " <- " + strings.Join(deferred[target], ", ")
	}
	return strings.Join(parts, "; ")
}

// removalRounds groups deployed children into batches, last deployed
// first. Children missing from rounds are removed in a final batch.
func removalRounds(deployed ir.IRObject, rounds ir.IRArray) []map[string]stackChild {
	seen := make(map[string]bool, len(deployed))
	var batches []map[string]stackChild
	for i := len(rounds) - 1; i >= 0; i-- {
		round, _ := rounds[i].(ir.IRArray)
		batch := make(map[string]stackChild)
		for _, v := range round {
			alias, _ := v.(ir.IRString)
			ref, ok := deployed[string(alias)].(ir.IRString)
			if !ok || seen[string(alias)] {
				continue
			}
			seen[string(alias)] = true
			batch[string(alias)] = stackChild{ref: string(ref)}
		}
		if len(batch) > 0 {
			batches = append(batches, batch)
		}
	}

	rest := make(map[string]stackChild)
	for alias, v := range deployed {
		if ref, ok := v.(ir.IRString); ok && !seen[alias] {
			rest[alias] = stackChild{ref: string(ref)}
		}
	}
	if len(rest) > 0 {
		batches = append(batches, rest)
	}
	return batches
}

func sortedAliases(children map[string]stackChild) []string {
	aliases := make([]string, 0, len(children))
	for alias := range children {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// fanOut calls method on every child concurrently. The first failure
// cancels the rest and fails the whole call.
func fanOut(ctx context.Context, rt *component.Runtime, children map[string]stackChild, method string) (ir.IRObject, error) {
	var (
		mu      sync.Mutex
		outputs = make(ir.IRObject, len(children))
	)
	aliases := sortedAliases(children)
	handles := make([]*rpc.Handle, len(aliases))
	for i, alias := range aliases {
		handle, err := rt.Load(children[alias].ref, alias)
		if err != nil {
			return nil, err
		}
		handles[i] = handle
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, alias := range aliases {
		handle, inputs := handles[i], children[alias].inputs
		g.Go(func() error {
			out, err := handle.Invoke(gctx, method, inputs)
			if err != nil {
				return fmt.Errorf("%s %s: %w", method, handle.Identity().Name, err)
			}
			mu.Lock()
			outputs[alias] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}
