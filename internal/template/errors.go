package template

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes resolution errors.
type ErrorCode string

const (
	// ErrCodeInvalidReference: the referenced entry or path does not exist.
	ErrCodeInvalidReference ErrorCode = "InvalidReference"

	// ErrCodeNonStringInterpolation: an embedded placeholder resolved to a non-string.
	ErrCodeNonStringInterpolation ErrorCode = "NonStringInterpolation"

	// ErrCodeCyclicReference: placeholders reference each other in a loop.
	ErrCodeCyclicReference ErrorCode = "CyclicReference"

	// ErrCodePassesExceeded: resolution did not converge within the pass limit.
	ErrCodePassesExceeded ErrorCode = "PassesExceeded"
)

// ReferenceError reports a placeholder that could not be resolved.
type ReferenceError struct {
	Code ErrorCode

	// Reference is the offending placeholder text, e.g. "${db.name}".
	Reference string

	// Path is the dotted location of the leaf holding the placeholder.
	Path string

	// Chain lists the leaf paths forming a cycle (CyclicReference only).
	Chain []string

	// Passes and Limit are set for PassesExceeded.
	Passes int
	Limit  int
}

func (e *ReferenceError) Error() string {
	switch e.Code {
	case ErrCodeInvalidReference:
		return fmt.Sprintf("invalid reference %s at %s", e.Reference, e.Path)
	case ErrCodeNonStringInterpolation:
		return fmt.Sprintf("the referenced substring is not a string: %s at %s", e.Reference, e.Path)
	case ErrCodeCyclicReference:
		return fmt.Sprintf("cyclic reference %s: %s", e.Reference, strings.Join(e.Chain, " -> "))
	case ErrCodePassesExceeded:
		return fmt.Sprintf("reference resolution exceeded %d passes (%d > %d)", e.Limit, e.Passes, e.Limit)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Reference)
	}
}

// ErrorName returns the code as the wire error name.
func (e *ReferenceError) ErrorName() string {
	return string(e.Code)
}

// IsCycleError reports whether err is a CyclicReference error.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCyclicReference)
}

// IsPassesExceeded reports whether err is a PassesExceeded error.
func IsPassesExceeded(err error) bool {
	return hasCode(err, ErrCodePassesExceeded)
}

func hasCode(err error, code ErrorCode) bool {
	var re *ReferenceError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
