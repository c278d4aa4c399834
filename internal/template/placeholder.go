package template

import (
	"regexp"
	"strings"
)

// placeholderPattern matches "${path.to.value}" and "${env.NAME}".
var placeholderPattern = regexp.MustCompile(`\$\{(\w*:?[\w\d.-]+)\}`)

// Segment is one piece of a parsed string leaf.
//
// Sealed: only Literal and Reference implement it.
type Segment interface {
	segment()
}

// Literal is verbatim text between placeholders.
type Literal string

func (Literal) segment() {}

// Reference is one "${...}" placeholder.
type Reference struct {
	// Text is the full placeholder, e.g. "${db.name}".
	Text string
	// Path is the dotted inner text split on ".".
	Path []string
	// Env marks "${env.NAME}"; Path[1] is then the variable name.
	Env bool
}

func (Reference) segment() {}

// Var returns the environment variable named by an env reference.
func (r Reference) Var() string {
	if !r.Env || len(r.Path) < 2 {
		return ""
	}
	return strings.Join(r.Path[1:], ".")
}

// HasPlaceholder reports whether s contains at least one placeholder.
func HasPlaceholder(s string) bool {
	return placeholderPattern.MatchString(s)
}

// parsePlaceholders splits s into literals and references.
// Returns nil when s has no placeholder.
func parsePlaceholders(s string) []Segment {
	locs := placeholderPattern.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return nil
	}
	segs := make([]Segment, 0, 2*len(locs)+1)
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			segs = append(segs, Literal(s[last:loc[0]]))
		}
		inner := s[loc[2]:loc[3]]
		path := strings.Split(inner, ".")
		segs = append(segs, Reference{
			Text: s[loc[0]:loc[1]],
			Path: path,
			Env:  len(path) > 1 && path[0] == "env",
		})
		last = loc[1]
	}
	if last < len(s) {
		segs = append(segs, Literal(s[last:]))
	}
	return segs
}

// wholeReference returns the single reference when it spans all of s.
func wholeReference(segs []Segment) (Reference, bool) {
	if len(segs) != 1 {
		return Reference{}, false
	}
	ref, ok := segs[0].(Reference)
	return ref, ok
}
