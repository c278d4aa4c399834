package rpc

import (
	"context"
	"errors"

	"github.com/roach88/components/internal/ir"
)

// ErrNoDispatcher is returned by a Handle that was built without a route
// to the backend.
var ErrNoDispatcher = errors.New("no dispatcher configured")

// Dispatcher executes one invocation and returns the method's outputs.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv ir.Invocation) (ir.IRObject, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, inv ir.Invocation) (ir.IRObject, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, inv ir.Invocation) (ir.IRObject, error) {
	return f(ctx, inv)
}

// Stager rewrites invocation inputs before dispatch, replacing local source
// paths with download URLs.
type Stager interface {
	StageInputs(ctx context.Context, org, accessKey string, inputs ir.IRObject) (ir.IRObject, error)
}

// PackageTargets issues upload/download URL pairs for code artifacts.
type PackageTargets interface {
	PackageURLs(ctx context.Context, org, accessKey string) (ir.PackageURLs, error)
}

func unconfigured(context.Context, ir.Invocation) (ir.IRObject, error) {
	return nil, ErrNoDispatcher
}
