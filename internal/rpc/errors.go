package rpc

import (
	"errors"
	"fmt"

	"github.com/roach88/components/internal/ir"
)

// BackendError is an error reported by the side that executed a call.
// It carries the payload fields unchanged so callers can branch on Name
// or Code without knowing the concrete error type that was raised.
type BackendError struct {
	Message string
	Name    string
	Stack   string
	Code    string

	// Status is the HTTP status of the response, zero for in-process calls.
	Status int

	cause error
}

// NewBackendError builds a BackendError from a wire payload.
func NewBackendError(p *ir.ErrorPayload, status int) *BackendError {
	if p == nil {
		p = &ir.ErrorPayload{}
	}
	e := &BackendError{
		Message: p.Message,
		Name:    p.Name,
		Stack:   p.Stack,
		Code:    p.Code,
		Status:  status,
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("backend returned status %d", status)
	}
	return e
}

func (e *BackendError) Error() string {
	return e.Message
}

// Unwrap exposes the original error for in-process calls.
func (e *BackendError) Unwrap() error {
	return e.cause
}

func (e *BackendError) ErrorName() string {
	if e.Name == "" {
		return "Error"
	}
	return e.Name
}

func (e *BackendError) ErrorCode() string {
	return e.Code
}

func (e *BackendError) ErrorStack() string {
	return e.Stack
}

// Payload returns the wire form of the error.
func (e *BackendError) Payload() *ir.ErrorPayload {
	return &ir.ErrorPayload{
		Message: e.Message,
		Name:    e.ErrorName(),
		Stack:   e.Stack,
		Code:    e.Code,
	}
}

// IsBackendError reports whether err carries a backend error with the given
// name. An empty name matches any backend error.
func IsBackendError(err error, name string) bool {
	var be *BackendError
	if !errors.As(err, &be) {
		return false
	}
	return name == "" || be.ErrorName() == name
}
