package template

import (
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/components/internal/ir"
)

// EnvFunc looks up an environment variable.
type EnvFunc func(name string) (string, bool)

// MapEnv returns an EnvFunc backed by m.
func MapEnv(m map[string]string) EnvFunc {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// Resolver substitutes "${...}" placeholders in a Tree.
//
// Every pass reads from the tree as it was at the start of the pass and
// writes a new tree. Placeholders whose first segment names a component
// declaration are deferred: they stay in place until the caller replaces the
// declaration with its outputs (Tree.SetOutputs) and resolves again.
// Resolution stops on the first pass that substitutes nothing.
type Resolver struct {
	env       EnvFunc
	maxPasses int
	logger    *slog.Logger

	passes int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnv sets the environment lookup. Default: os.LookupEnv.
func WithEnv(fn EnvFunc) Option {
	return func(r *Resolver) {
		r.env = fn
	}
}

// WithMaxPasses bounds the number of passes. Default: DefaultMaxPasses.
func WithMaxPasses(n int) Option {
	return func(r *Resolver) {
		r.maxPasses = n
	}
}

// WithLogger sets the logger used for per-pass debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		env:       os.LookupEnv,
		maxPasses: DefaultMaxPasses,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve is shorthand for NewResolver(opts...).Resolve(t).
func Resolve(t *Tree, opts ...Option) (*Tree, error) {
	return NewResolver(opts...).Resolve(t)
}

// Passes returns how many passes of the last Resolve substituted something.
func (r *Resolver) Passes() int {
	return r.passes
}

// Resolve returns a resolved copy of t. t itself is not modified.
func (r *Resolver) Resolve(t *Tree) (*Tree, error) {
	quota := newPassQuota(r.maxPasses)
	cur := t.Clone()
	r.passes = 0

	for {
		if err := checkCycles(cur); err != nil {
			return nil, err
		}
		if err := quota.Check(); err != nil {
			return nil, err
		}

		next, resolved, err := r.pass(cur)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("resolution pass", "pass", quota.Current(), "resolved", resolved)
		if !resolved {
			return cur, nil
		}
		r.passes++
		cur = next
	}
}

type passState struct {
	snapshot *Tree
	env      EnvFunc
	resolved bool
}

type outcome int

const (
	substituted outcome = iota + 1
	// left: deferred to a component's outputs, or blocked behind a leaf
	// that is itself still unresolved.
	left
)

func (r *Resolver) pass(cur *Tree) (*Tree, bool, error) {
	ps := &passState{snapshot: cur, env: r.env}
	next := NewTree()

	for _, k := range cur.keys {
		switch n := cur.nodes[k].(type) {
		case Value:
			v, err := ps.value(n.V, []string{k})
			if err != nil {
				return nil, false, err
			}
			next.Set(k, Value{V: v})

		case *ComponentDecl:
			decl, err := ps.decl(n, k)
			if err != nil {
				return nil, false, err
			}
			next.Set(k, decl)
		}
	}
	return next, ps.resolved, nil
}

func (ps *passState) decl(d *ComponentDecl, key string) (*ComponentDecl, error) {
	out := &ComponentDecl{}

	comp, err := ps.leaf(d.Component, []string{key, "component"})
	if err != nil {
		return nil, err
	}
	s, ok := comp.(ir.IRString)
	if !ok {
		return nil, &ReferenceError{
			Code:      ErrCodeNonStringInterpolation,
			Reference: d.Component,
			Path:      key + ".component",
		}
	}
	out.Component = string(s)

	if d.Inputs != nil {
		v, err := ps.value(d.Inputs, []string{key, "inputs"})
		if err != nil {
			return nil, err
		}
		out.Inputs = v.(ir.IRObject)
	}

	fields, err := ps.value(d.Fields, []string{key})
	if err != nil {
		return nil, err
	}
	out.Fields = fields.(ir.IRObject)
	return out, nil
}

func (ps *passState) value(v ir.IRValue, path []string) (ir.IRValue, error) {
	switch v := v.(type) {
	case ir.IRString:
		return ps.leaf(string(v), path)
	case ir.IRObject:
		out := make(ir.IRObject, len(v))
		for _, k := range v.SortedKeys() {
			rv, err := ps.value(v[k], append(slices.Clone(path), k))
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case ir.IRArray:
		out := make(ir.IRArray, len(v))
		for i, e := range v {
			rv, err := ps.value(e, append(slices.Clone(path), strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func (ps *passState) leaf(s string, path []string) (ir.IRValue, error) {
	segs := parsePlaceholders(s)
	if segs == nil {
		return ir.IRString(s), nil
	}

	// A placeholder spanning the whole leaf keeps the referenced value's type.
	if ref, ok := wholeReference(segs); ok {
		v, out, err := ps.lookup(ref, path)
		if err != nil {
			return nil, err
		}
		if out == left {
			return ir.IRString(s), nil
		}
		ps.resolved = true
		return v, nil
	}

	var b strings.Builder
	changed := false
	for _, seg := range segs {
		switch seg := seg.(type) {
		case Literal:
			b.WriteString(string(seg))
		case Reference:
			v, out, err := ps.lookup(seg, path)
			if err != nil {
				return nil, err
			}
			if out == left {
				b.WriteString(seg.Text)
				continue
			}
			changed = true
			switch v := v.(type) {
			case ir.IRString:
				b.WriteString(string(v))
			case ir.IRNull:
				if !seg.Env {
					return nil, nonString(seg, path)
				}
			default:
				return nil, nonString(seg, path)
			}
		}
	}
	if changed {
		ps.resolved = true
	}
	return ir.IRString(b.String()), nil
}

func nonString(ref Reference, path []string) error {
	return &ReferenceError{
		Code:      ErrCodeNonStringInterpolation,
		Reference: ref.Text,
		Path:      strings.Join(path, "."),
	}
}

// lookup resolves one reference against the pass snapshot.
// An unset environment variable resolves to IRNull.
func (ps *passState) lookup(ref Reference, path []string) (ir.IRValue, outcome, error) {
	if ref.Env {
		if v, ok := ps.env(ref.Var()); ok {
			return ir.IRString(v), substituted, nil
		}
		return ir.IRNull{}, substituted, nil
	}

	invalid := &ReferenceError{
		Code:      ErrCodeInvalidReference,
		Reference: ref.Text,
		Path:      strings.Join(path, "."),
	}

	n, ok := ps.snapshot.nodes[ref.Path[0]]
	if !ok {
		return nil, 0, invalid
	}
	val, ok := n.(Value)
	if !ok {
		return nil, left, nil
	}

	cur := val.V
	for _, seg := range ref.Path[1:] {
		switch c := cur.(type) {
		case ir.IRObject:
			next, ok := c[seg]
			if !ok {
				return nil, 0, invalid
			}
			cur = next
		case ir.IRArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, 0, invalid
			}
			cur = c[idx]
		case ir.IRString:
			if HasPlaceholder(string(c)) {
				return nil, left, nil
			}
			return nil, 0, invalid
		default:
			return nil, 0, invalid
		}
	}
	return ir.Clone(cur), substituted, nil
}

// checkCycles fails when placeholders that will be substituted depend on
// each other in a loop.
func checkCycles(t *Tree) error {
	var leaves []pendingLeaf
	for _, k := range t.keys {
		walkLeaves(t.nodes[k], []string{k}, func(path []string, s string) {
			var refs []Reference
			for _, seg := range parsePlaceholders(s) {
				ref, ok := seg.(Reference)
				if !ok || ref.Env {
					continue
				}
				n, exists := t.nodes[ref.Path[0]]
				if !exists {
					continue
				}
				if _, isDecl := n.(*ComponentDecl); isDecl {
					continue
				}
				refs = append(refs, ref)
			}
			if len(refs) > 0 {
				leaves = append(leaves, pendingLeaf{path: strings.Join(path, "."), refs: refs})
			}
		})
	}
	if len(leaves) == 0 {
		return nil
	}

	d := newCycleDetector()
	d.build(leaves, t.followAliases)
	chain, ref := d.find()
	if chain == nil {
		return nil
	}
	return &ReferenceError{
		Code:      ErrCodeCyclicReference,
		Reference: ref,
		Path:      chain[0],
		Chain:     chain,
	}
}

// followAliases rewrites path while a proper prefix of it is a leaf holding
// exactly one reference to another plain value. Paths that loop back on
// themselves are returned as reached.
func (t *Tree) followAliases(path []string) []string {
	seen := map[string]bool{}
	for {
		key := strings.Join(path, ".")
		if seen[key] {
			return path
		}
		seen[key] = true

		rewritten := false
		for i := 1; i < len(path); i++ {
			s, ok := t.leafAt(path[:i])
			if !ok {
				break
			}
			ref, ok := wholeReference(parsePlaceholders(s))
			if !ok || ref.Env {
				break
			}
			if _, isValue := t.nodes[ref.Path[0]].(Value); !isValue {
				break
			}
			path = append(slices.Clone(ref.Path), path[i:]...)
			rewritten = true
			break
		}
		if !rewritten {
			return path
		}
	}
}

// leafAt returns the string at path when path ends on a string leaf of a
// plain value entry.
func (t *Tree) leafAt(path []string) (string, bool) {
	n, ok := t.nodes[path[0]].(Value)
	if !ok {
		return "", false
	}
	cur := n.V
	for _, seg := range path[1:] {
		switch c := cur.(type) {
		case ir.IRObject:
			next, ok := c[seg]
			if !ok {
				return "", false
			}
			cur = next
		case ir.IRArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return "", false
			}
			cur = c[idx]
		default:
			return "", false
		}
	}
	s, ok := cur.(ir.IRString)
	return string(s), ok
}
