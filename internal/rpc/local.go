package rpc

import (
	"context"
	"errors"

	"github.com/roach88/components/internal/ir"
)

// LocalDispatcher runs invocations in process.
//
// Inputs, credentials and socket are copied before the call so the callee
// cannot reach the caller's values, and errors are converted to
// BackendError the way they would arrive over the wire. The original error
// stays reachable through errors.As.
type LocalDispatcher struct {
	target Dispatcher
}

// NewLocalDispatcher returns a dispatcher calling target directly.
func NewLocalDispatcher(target Dispatcher) *LocalDispatcher {
	return &LocalDispatcher{target: target}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, inv ir.Invocation) (ir.IRObject, error) {
	inv.Inputs = inv.Inputs.Clone()
	inv.Credentials = inv.Credentials.Clone()
	if inv.Socket != nil {
		s := *inv.Socket
		inv.Socket = &s
	}

	outputs, err := d.target.Dispatch(ctx, inv)
	if err != nil {
		var be *BackendError
		if errors.As(err, &be) {
			return nil, err
		}
		be = NewBackendError(ir.ErrorPayloadFrom(err), 0)
		be.cause = err
		return nil, be
	}
	return outputs.Clone(), nil
}
