package template

import (
	"slices"
	"strings"
)

// cycleDetector finds reference loops between placeholder-bearing leaves.
//
// Each leaf is a node. A leaf depends on another leaf when one of its
// references points at that leaf, at a subtree containing it, or through it.
// References that read through a leaf which is itself a whole reference
// ("${a}") are followed to the aliased path first, so "${b.x}" with
// b = "${a}" depends on a.x rather than on everything under b.
// Resolution of an acyclic graph terminates; a cycle would keep copying
// placeholders forever, so the resolver checks before every pass.
type cycleDetector struct {
	edges map[string][]string
	refs  map[string]map[string]string // leaf -> dependency -> placeholder text
	order []string
}

func newCycleDetector() *cycleDetector {
	return &cycleDetector{
		edges: make(map[string][]string),
		refs:  make(map[string]map[string]string),
	}
}

type pendingLeaf struct {
	path string
	refs []Reference
}

// build adds one edge per (leaf, dependency) pair. follow maps a
// reference path to the path it finally reads.
func (c *cycleDetector) build(leaves []pendingLeaf, follow func([]string) []string) {
	for _, from := range leaves {
		c.order = append(c.order, from.path)
		for _, ref := range from.refs {
			target := strings.Join(follow(ref.Path), ".")
			for _, to := range leaves {
				if !pathsOverlap(target, to.path) {
					continue
				}
				if c.refs[from.path] == nil {
					c.refs[from.path] = make(map[string]string)
				}
				if _, dup := c.refs[from.path][to.path]; dup {
					continue
				}
				c.refs[from.path][to.path] = ref.Text
				c.edges[from.path] = append(c.edges[from.path], to.path)
			}
		}
	}
}

// pathsOverlap reports whether one dotted path is a prefix of the other.
func pathsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+".") || strings.HasPrefix(b, a+".")
}

// find returns the first cycle as a closed chain of leaf paths
// (first element repeated at the end) and the placeholder that closes it.
func (c *cycleDetector) find() ([]string, string) {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(c.order))
	var stack []string

	var visit func(n string) []string
	visit = func(n string) []string {
		color[n] = grey
		stack = append(stack, n)
		for _, next := range c.edges[n] {
			switch color[next] {
			case grey:
				start := slices.Index(stack, next)
				chain := slices.Clone(stack[start:])
				return append(chain, next)
			case white:
				if chain := visit(next); chain != nil {
					return chain
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}

	for _, n := range c.order {
		if color[n] != white {
			continue
		}
		if chain := visit(n); chain != nil {
			last := chain[len(chain)-2]
			return chain, c.refs[last][chain[len(chain)-1]]
		}
	}
	return nil, ""
}
