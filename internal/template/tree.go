package template

import (
	"fmt"
	"slices"

	"github.com/roach88/components/internal/ir"
)

// Node is a top-level tree entry.
//
// Sealed: only Value and *ComponentDecl implement it.
type Node interface {
	node()
}

// Value is a plain literal or subtree.
type Value struct {
	V ir.IRValue
}

func (Value) node() {}

// ComponentDecl declares a component instance and its inputs.
//
// Component holds the raw reference text so placeholders inside it
// (e.g. "${env.COMPONENT}") resolve like any other leaf.
type ComponentDecl struct {
	Component string
	Inputs    ir.IRObject
	// Fields holds any other keys of the declaration body.
	Fields ir.IRObject
}

func (*ComponentDecl) node() {}

// Ref parses the declaration's component reference.
func (d *ComponentDecl) Ref() (ir.ComponentRef, error) {
	return ir.ParseComponentRef(d.Component)
}

// Object renders the declaration back into its object form.
func (d *ComponentDecl) Object() ir.IRObject {
	out := d.Fields.Clone()
	out["component"] = ir.IRString(d.Component)
	if d.Inputs != nil {
		out["inputs"] = d.Inputs.Clone()
	}
	return out
}

func (d *ComponentDecl) clone() *ComponentDecl {
	cp := &ComponentDecl{Component: d.Component, Fields: d.Fields.Clone()}
	if d.Inputs != nil {
		cp.Inputs = d.Inputs.Clone()
	}
	return cp
}

// Tree is an ordered declarative tree.
type Tree struct {
	keys  []string
	nodes map[string]Node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[string]Node)}
}

// Parse classifies the entries of obj in sorted key order.
func Parse(obj ir.IRObject) *Tree {
	return ParseOrdered(obj, obj.SortedKeys())
}

// ParseOrdered classifies the entries of obj in the given key order.
// Keys of obj missing from order are appended in sorted order.
//
// A top-level entry is a component declaration when it is an object with a
// string "component" field. Nested objects are always plain values.
func ParseOrdered(obj ir.IRObject, order []string) *Tree {
	t := NewTree()
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		v, ok := obj[k]
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		t.Set(k, classify(v))
	}
	for _, k := range obj.SortedKeys() {
		if !seen[k] {
			t.Set(k, classify(obj[k]))
		}
	}
	return t
}

func classify(v ir.IRValue) Node {
	body, ok := v.(ir.IRObject)
	if !ok {
		return Value{V: ir.Clone(v)}
	}
	comp, ok := body["component"].(ir.IRString)
	if !ok {
		return Value{V: body.Clone()}
	}
	decl := &ComponentDecl{Component: string(comp), Fields: ir.IRObject{}}
	for k, fv := range body {
		switch k {
		case "component":
		case "inputs":
			if inputs, ok := fv.(ir.IRObject); ok {
				decl.Inputs = inputs.Clone()
				continue
			}
			decl.Fields[k] = ir.Clone(fv)
		default:
			decl.Fields[k] = ir.Clone(fv)
		}
	}
	return decl
}

// Set adds or replaces an entry. New keys are appended.
func (t *Tree) Set(key string, n Node) {
	if _, exists := t.nodes[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.nodes[key] = n
}

// Get returns the entry for key.
func (t *Tree) Get(key string) (Node, bool) {
	n, ok := t.nodes[key]
	return n, ok
}

// Keys returns entry keys in declaration order.
func (t *Tree) Keys() []string {
	return slices.Clone(t.keys)
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	return len(t.keys)
}

// Declarations returns the keys of component declarations in order.
func (t *Tree) Declarations() []string {
	var out []string
	for _, k := range t.keys {
		if _, ok := t.nodes[k].(*ComponentDecl); ok {
			out = append(out, k)
		}
	}
	return out
}

// SetOutputs replaces the declaration at alias with the outputs it produced,
// so the next resolution can substitute placeholders that targeted it.
func (t *Tree) SetOutputs(alias string, outputs ir.IRObject) error {
	n, ok := t.nodes[alias]
	if !ok {
		return fmt.Errorf("no entry %q in template", alias)
	}
	if _, ok := n.(*ComponentDecl); !ok {
		return fmt.Errorf("entry %q is not a component declaration", alias)
	}
	t.nodes[alias] = Value{V: outputs.Clone()}
	return nil
}

// Clone returns a deep copy.
func (t *Tree) Clone() *Tree {
	cp := &Tree{keys: slices.Clone(t.keys), nodes: make(map[string]Node, len(t.nodes))}
	for k, n := range t.nodes {
		switch n := n.(type) {
		case Value:
			cp.nodes[k] = Value{V: ir.Clone(n.V)}
		case *ComponentDecl:
			cp.nodes[k] = n.clone()
		}
	}
	return cp
}

// Object renders the tree as a single object.
func (t *Tree) Object() ir.IRObject {
	out := make(ir.IRObject, len(t.keys))
	for _, k := range t.keys {
		switch n := t.nodes[k].(type) {
		case Value:
			out[k] = ir.Clone(n.V)
		case *ComponentDecl:
			out[k] = n.Object()
		}
	}
	return out
}

// Deferred lists, per declaration alias, the placeholders still waiting on
// that declaration's outputs.
func (t *Tree) Deferred() map[string][]string {
	out := make(map[string][]string)
	for _, k := range t.keys {
		walkLeaves(t.nodes[k], []string{k}, func(_ []string, s string) {
			for _, seg := range parsePlaceholders(s) {
				ref, ok := seg.(Reference)
				if !ok || ref.Env {
					continue
				}
				if _, isDecl := t.nodes[ref.Path[0]].(*ComponentDecl); isDecl {
					if !slices.Contains(out[ref.Path[0]], ref.Text) {
						out[ref.Path[0]] = append(out[ref.Path[0]], ref.Text)
					}
				}
			}
		})
	}
	return out
}

// WaitingOn lists, in declaration order, the declarations that placeholders
// inside the entry at key still wait on.
func (t *Tree) WaitingOn(key string) []string {
	n, ok := t.nodes[key]
	if !ok {
		return nil
	}
	targets := make(map[string]bool)
	walkLeaves(n, []string{key}, func(_ []string, s string) {
		for _, seg := range parsePlaceholders(s) {
			ref, ok := seg.(Reference)
			if !ok || ref.Env {
				continue
			}
			if _, isDecl := t.nodes[ref.Path[0]].(*ComponentDecl); isDecl {
				targets[ref.Path[0]] = true
			}
		}
	})
	var out []string
	for _, k := range t.keys {
		if targets[k] {
			out = append(out, k)
		}
	}
	return out
}

// walkLeaves visits every string leaf under n with its path.
func walkLeaves(n Node, path []string, fn func(path []string, s string)) {
	switch n := n.(type) {
	case Value:
		walkValue(n.V, path, fn)
	case *ComponentDecl:
		fn(append(slices.Clone(path), "component"), n.Component)
		if n.Inputs != nil {
			walkValue(n.Inputs, append(slices.Clone(path), "inputs"), fn)
		}
		walkValue(n.Fields, path, fn)
	}
}

func walkValue(v ir.IRValue, path []string, fn func(path []string, s string)) {
	switch v := v.(type) {
	case ir.IRString:
		fn(path, string(v))
	case ir.IRObject:
		for _, k := range v.SortedKeys() {
			walkValue(v[k], append(slices.Clone(path), k), fn)
		}
	case ir.IRArray:
		for i, e := range v {
			walkValue(e, append(slices.Clone(path), fmt.Sprint(i)), fn)
		}
	}
}
