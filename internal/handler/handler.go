package handler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/roach88/components/internal/artifact"
	"github.com/roach88/components/internal/component"
	"github.com/roach88/components/internal/ir"
	"github.com/roach88/components/internal/rpc"
	"github.com/roach88/components/internal/store"
	"github.com/roach88/components/internal/telemetry"
)

// TransitionFunc observes phase changes of an invocation.
type TransitionFunc func(inv ir.Invocation, from, to Phase)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithStateStore sets where instance state is read from and saved to.
func WithStateStore(s store.StateStore) Option {
	return func(h *Handler) {
		h.states = s
	}
}

// WithSender routes telemetry events of executed instances.
func WithSender(s telemetry.Sender) Option {
	return func(h *Handler) {
		h.sender = s
	}
}

// WithDispatcher sets how executed instances reach their children.
// Defaults to running children on this handler in process.
func WithDispatcher(d rpc.Dispatcher) Option {
	return func(h *Handler) {
		h.dispatcher = d
	}
}

// WithStager stages local source passed to children.
func WithStager(s rpc.Stager) Option {
	return func(h *Handler) {
		h.stager = s
	}
}

// WithFetcher sets how staged source is downloaded.
func WithFetcher(f *artifact.Fetcher) Option {
	return func(h *Handler) {
		h.fetcher = f
	}
}

// WithScratchDir sets where staged source is extracted. Defaults to the
// system temp directory.
func WithScratchDir(dir string) Option {
	return func(h *Handler) {
		h.scratch = dir
	}
}

// WithMode sets which identity fields instances require.
func WithMode(m component.Mode) Option {
	return func(h *Handler) {
		h.mode = m
	}
}

// WithIDs sets the invocation id generator for child calls.
func WithIDs(g rpc.IDGenerator) Option {
	return func(h *Handler) {
		h.ids = g
	}
}

// OnTransition registers a hook called on every phase change.
func OnTransition(fn TransitionFunc) Option {
	return func(h *Handler) {
		h.onTransition = fn
	}
}

// Handler runs invocations against implementations from a Loader.
// It is safe for concurrent use; each invocation gets its own instance.
type Handler struct {
	loader       component.Loader
	states       store.StateStore
	sender       telemetry.Sender
	dispatcher   rpc.Dispatcher
	stager       rpc.Stager
	fetcher      *artifact.Fetcher
	ids          rpc.IDGenerator
	scratch      string
	mode         component.Mode
	onTransition TransitionFunc
	logger       *slog.Logger
}

// New returns a handler resolving implementations through loader.
func New(loader component.Loader, opts ...Option) *Handler {
	h := &Handler{
		loader:       loader,
		sender:       telemetry.Discard,
		scratch:      os.TempDir(),
		mode:         component.ModeStrict,
		onTransition: func(ir.Invocation, Phase, Phase) {},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.dispatcher == nil {
		h.dispatcher = rpc.NewLocalDispatcher(h)
	}
	if h.fetcher == nil {
		h.fetcher = artifact.NewFetcher(nil, h.logger)
	}
	if h.ids == nil {
		h.ids = rpc.UUIDv7Generator{}
	}
	return h
}

// Dispatch runs inv in process. It lets a Handler stand behind
// rpc.LocalDispatcher and rpc.Server.
func (h *Handler) Dispatch(ctx context.Context, inv ir.Invocation) (ir.IRObject, error) {
	return h.Handle(ctx, inv)
}

// Handle executes one invocation and returns the method's outputs.
// Errors are returned as the terminal result and are not retried.
func (h *Handler) Handle(ctx context.Context, inv ir.Invocation) (ir.IRObject, error) {
	if inv.Stage == "" {
		inv.Stage = ir.DefaultStage
	}
	if inv.ComponentVersion == "" {
		inv.ComponentVersion = ir.DefaultVersion
	}
	logger := h.logger.With(
		"invocation_id", inv.ID,
		"name", inv.Name,
		"component", inv.Ref().String(),
		"method", inv.Method,
	)

	h.transition(logger, inv, PhaseIdle, PhaseExecuting)
	outputs, err := h.execute(ctx, logger, inv)
	if err != nil {
		logger.Info("invocation failed", "error", err)
		h.transition(logger, inv, PhaseExecuting, PhaseFailed)
		return nil, err
	}
	h.transition(logger, inv, PhaseExecuting, PhaseDone)
	return outputs, nil
}

func (h *Handler) execute(ctx context.Context, logger *slog.Logger, inv ir.Invocation) (ir.IRObject, error) {
	factory, err := h.loader.Resolve(ctx, inv.Ref())
	if err != nil {
		return nil, err
	}

	state := ir.IRObject{}
	if h.states != nil {
		state, err = h.states.ReadState(ctx, inv.Identity)
		if err != nil {
			return nil, fmt.Errorf("read state for %s: %w", inv.Name, err)
		}
	}

	opts := []component.Option{
		component.WithSender(h.sender),
		component.WithDispatcher(h.dispatcher),
		component.WithIDs(h.ids),
		component.WithLogger(h.logger),
	}
	if h.states != nil {
		opts = append(opts, component.WithStateStore(h.states))
	}
	if h.stager != nil {
		opts = append(opts, component.WithStager(h.stager))
	}
	rt, err := component.New(component.ConfigFrom(inv, state, h.mode), opts...)
	if err != nil {
		return nil, err
	}
	impl, err := factory(rt)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", inv.Ref(), err)
	}

	method, ok := impl.Method(inv.Method)
	if !ok {
		return nil, &MethodNotFoundError{Method: inv.Method, Component: inv.Ref().String()}
	}

	inputs := inv.Inputs.Clone()
	if url, ok := remoteSource(inputs); ok {
		dir := filepath.Join(h.scratch, uuid.NewString())
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				logger.Warn("remove source directory", "dir", dir, "error", err)
			}
		}()
		if err := h.fetcher.Fetch(ctx, url, dir); err != nil {
			return nil, err
		}
		inputs[artifact.SourceKey] = ir.IRString(dir)
		logger.Debug("source fetched", "dir", dir)
	}

	outputs, err := method(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if outputs == nil {
		outputs = ir.IRObject{}
	}
	return outputs, nil
}

func (h *Handler) transition(logger *slog.Logger, inv ir.Invocation, from, to Phase) {
	logger.Debug("phase transition", "from", from.String(), "to", to.String())
	h.onTransition(inv, from, to)
}

// remoteSource returns the download URL a caller staged into inputs.
// Local paths are left for the method to use directly.
func remoteSource(inputs ir.IRObject) (string, bool) {
	src, ok := inputs.GetString(artifact.SourceKey)
	if !ok {
		return "", false
	}
	if artifact.IsRemote(src) {
		return src, true
	}
	return "", false
}
