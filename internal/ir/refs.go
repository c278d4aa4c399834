package ir

import (
	"fmt"
	"strings"
)

// Reference error codes. The values are the names reported across the
// RPC boundary, so they keep their historical camelCase spelling.
const (
	ErrCodeInvalidComponentReference = "invalidComponentReference"
	ErrCodeMissingComponentAlias     = "missingComponentAlias"
)

// RefError reports a malformed component reference or a missing alias.
type RefError struct {
	Code    string
	Ref     string
	Message string
}

func (e *RefError) Error() string {
	return fmt.Sprintf("unable to load component %s: %s", e.Ref, e.Message)
}

// ErrorName returns the code used as the error name on the wire.
func (e *RefError) ErrorName() string {
	return e.Code
}

// ComponentRef is a parsed "name" or "name@version" reference.
type ComponentRef struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ParseComponentRef splits a reference on "@".
// A bare name gets DefaultVersion; more than one "@" is rejected.
func ParseComponentRef(ref string) (ComponentRef, error) {
	parts := strings.Split(ref, "@")
	switch {
	case len(parts) > 2:
		return ComponentRef{}, &RefError{
			Code:    ErrCodeInvalidComponentReference,
			Ref:     ref,
			Message: "component name/version pair is invalid",
		}
	case parts[0] == "":
		return ComponentRef{}, &RefError{
			Code:    ErrCodeInvalidComponentReference,
			Ref:     ref,
			Message: "component name is empty",
		}
	case len(parts) == 2:
		if parts[1] == "" {
			return ComponentRef{}, &RefError{
				Code:    ErrCodeInvalidComponentReference,
				Ref:     ref,
				Message: "component version is empty",
			}
		}
		return ComponentRef{Name: parts[0], Version: parts[1]}, nil
	default:
		return ComponentRef{Name: parts[0], Version: DefaultVersion}, nil
	}
}

// String renders the reference as "name@version".
func (r ComponentRef) String() string {
	if r.Version == "" {
		return r.Name + "@" + DefaultVersion
	}
	return r.Name + "@" + r.Version
}

// ChildName derives the hierarchical instance name of a child loaded under alias.
func ChildName(parent, alias string) string {
	return parent + "." + alias
}
