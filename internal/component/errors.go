package component

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a component error category. Values are the names
// reported across the RPC boundary.
type ErrorCode string

const (
	ErrCodeMissingComponentName ErrorCode = "missingComponentName"
	ErrCodeMissingOrg           ErrorCode = "missingOrg"
	ErrCodeMissingApp           ErrorCode = "missingApp"
	ErrCodeMissingAccessKey     ErrorCode = "missingAccessKey"

	// ErrCodeModuleNotFound indicates no implementation is registered for
	// a component reference.
	ErrCodeModuleNotFound ErrorCode = "ModuleNotFound"
)

// ConstructionError reports a Runtime config missing a required field.
type ConstructionError struct {
	Code  ErrorCode
	Field string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("unable to construct component: %q is required", e.Field)
}

func (e *ConstructionError) ErrorName() string {
	return string(e.Code)
}

// ModuleNotFoundError reports a reference with no registered implementation.
type ModuleNotFoundError struct {
	Ref string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("component %q is not registered", e.Ref)
}

func (e *ModuleNotFoundError) ErrorName() string {
	return string(ErrCodeModuleNotFound)
}

// IsConstructionError reports whether err is a ConstructionError with the
// given code. An empty code matches any.
func IsConstructionError(err error, code ErrorCode) bool {
	var ce *ConstructionError
	if !errors.As(err, &ce) {
		return false
	}
	return code == "" || ce.Code == code
}
