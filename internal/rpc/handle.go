package rpc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/components/internal/ir"
)

// MethodFunc calls one method on a remote component.
type MethodFunc func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error)

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithStager stages local source in inputs before every call.
func WithStager(s Stager) HandleOption {
	return func(h *Handle) {
		h.stager = s
	}
}

// WithIDs sets the invocation id generator. Defaults to UUIDv7Generator.
func WithIDs(g IDGenerator) HandleOption {
	return func(h *Handle) {
		h.ids = g
	}
}

// WithHandleLogger sets the logger. Defaults to slog.Default().
func WithHandleLogger(l *slog.Logger) HandleOption {
	return func(h *Handle) {
		h.logger = l
	}
}

// Handle is a parent's reference to a loaded child component.
//
// The invocation template is captured when the handle is created: later
// changes to the parent's socket or credentials do not reach calls made
// through it. Any method name is accepted; unknown methods fail on the
// executing side.
type Handle struct {
	template   ir.Invocation
	dispatcher Dispatcher
	stager     Stager
	ids        IDGenerator
	logger     *slog.Logger
}

// NewHandle returns a handle that sends invocations shaped like tmpl.
// A nil dispatcher makes every call fail with ErrNoDispatcher.
func NewHandle(tmpl ir.Invocation, d Dispatcher, opts ...HandleOption) *Handle {
	tmpl.Credentials = tmpl.Credentials.Clone()
	if tmpl.Socket != nil {
		s := *tmpl.Socket
		tmpl.Socket = &s
	}
	tmpl.ID = ""
	tmpl.Method = ""
	tmpl.Inputs = nil

	h := &Handle{
		template:   tmpl,
		dispatcher: d,
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
	}
	if h.dispatcher == nil {
		h.dispatcher = DispatcherFunc(unconfigured)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Identity returns the child's identity.
func (h *Handle) Identity() ir.Identity {
	return h.template.Identity
}

// Method returns a function bound to one method name.
func (h *Handle) Method(name string) MethodFunc {
	return func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
		return h.Invoke(ctx, name, inputs)
	}
}

// Invoke calls method on the child with inputs. Nil inputs are sent as an
// empty object. The caller's inputs are never modified.
func (h *Handle) Invoke(ctx context.Context, method string, inputs ir.IRObject) (ir.IRObject, error) {
	inputs = inputs.Clone()

	if h.stager != nil {
		staged, err := h.stager.StageInputs(ctx, h.template.Org, h.template.AccessKey, inputs)
		if err != nil {
			return nil, fmt.Errorf("invoke %s.%s: %w", h.template.Name, method, err)
		}
		inputs = staged
	}

	inv := h.template
	inv.ID = h.ids.Generate()
	inv.Method = method
	inv.Inputs = inputs
	inv.Credentials = h.template.Credentials.Clone()
	if h.template.Socket != nil {
		s := *h.template.Socket
		inv.Socket = &s
	}

	h.logger.Debug("dispatching invocation",
		"invocation_id", inv.ID,
		"instance", inv.Name,
		"component", inv.Ref().String(),
		"method", method,
	)

	outputs, err := h.dispatcher.Dispatch(ctx, inv)
	if err != nil {
		return nil, err
	}
	if outputs == nil {
		outputs = ir.IRObject{}
	}
	return outputs, nil
}
