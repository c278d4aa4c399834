package ir

import "errors"

// ErrorPayload is the error shape that crosses the RPC boundary.
type ErrorPayload struct {
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
	Stack   string `json:"stack,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Named is implemented by errors that carry a wire name
// (e.g. "MethodNotFound", "invalidComponentReference").
type Named interface {
	ErrorName() string
}

// Coded is implemented by errors that carry a machine-readable code.
type Coded interface {
	ErrorCode() string
}

// Stacked is implemented by errors that carry a stack trace from the side
// that raised them.
type Stacked interface {
	ErrorStack() string
}

// ErrorPayloadFrom converts err into its wire payload.
// The outermost Named/Coded/Stacked error in the chain supplies name, code
// and stack.
func ErrorPayloadFrom(err error) *ErrorPayload {
	if err == nil {
		return nil
	}
	p := &ErrorPayload{Message: err.Error(), Name: "Error"}
	var named Named
	if errors.As(err, &named) {
		p.Name = named.ErrorName()
	}
	var coded Coded
	if errors.As(err, &coded) {
		p.Code = coded.ErrorCode()
	}
	var stacked Stacked
	if errors.As(err, &stacked) {
		p.Stack = stacked.ErrorStack()
	}
	return p
}
