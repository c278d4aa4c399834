package handler

import "fmt"

// MethodNotFoundError reports an invocation of a method the component does
// not implement.
type MethodNotFoundError struct {
	Method    string
	Component string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("method %q does not exist in component %q", e.Method, e.Component)
}

func (e *MethodNotFoundError) ErrorName() string {
	return "MethodNotFound"
}
