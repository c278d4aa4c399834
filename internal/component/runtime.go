package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/components/internal/ir"
	"github.com/roach88/components/internal/rpc"
	"github.com/roach88/components/internal/store"
	"github.com/roach88/components/internal/telemetry"
)

// ErrNoStateStore is returned by Save on a runtime built without a store.
var ErrNoStateStore = errors.New("no state store configured")

// Mode selects which identity fields a Runtime requires.
type Mode int

const (
	// ModeStrict requires name, org, app and access key.
	ModeStrict Mode = iota
	// ModeRelaxed requires only the name.
	ModeRelaxed
)

// Config is everything an instance is constructed from.
type Config struct {
	ir.Identity
	AccessKey   string
	Credentials ir.Credentials
	Socket      *ir.Socket
	DebugMode   bool
	State       ir.IRObject
	Mode        Mode
}

// ConfigFrom builds the config for the instance addressed by inv.
func ConfigFrom(inv ir.Invocation, state ir.IRObject, mode Mode) Config {
	return Config{
		Identity:    inv.Identity,
		AccessKey:   inv.AccessKey,
		Credentials: inv.Credentials,
		Socket:      inv.Socket,
		DebugMode:   inv.DebugMode,
		State:       state,
		Mode:        mode,
	}
}

func (c Config) validate() error {
	if c.Name == "" {
		return &ConstructionError{Code: ErrCodeMissingComponentName, Field: "name"}
	}
	if c.Mode == ModeRelaxed {
		return nil
	}
	switch {
	case c.Org == "":
		return &ConstructionError{Code: ErrCodeMissingOrg, Field: "org"}
	case c.App == "":
		return &ConstructionError{Code: ErrCodeMissingApp, Field: "app"}
	case c.AccessKey == "":
		return &ConstructionError{Code: ErrCodeMissingAccessKey, Field: "accessKey"}
	}
	return nil
}

// Sequencer hands out increasing event sequence numbers.
type Sequencer interface {
	Next() int64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithSender routes telemetry events. Defaults to telemetry.Discard.
func WithSender(s telemetry.Sender) Option {
	return func(rt *Runtime) {
		rt.sender = s
	}
}

// WithStateStore sets where Save persists state.
func WithStateStore(s store.StateStore) Option {
	return func(rt *Runtime) {
		rt.states = s
	}
}

// WithDispatcher sets how handles returned by Load reach their children.
func WithDispatcher(d rpc.Dispatcher) Option {
	return func(rt *Runtime) {
		rt.dispatcher = d
	}
}

// WithStager stages local source in child inputs.
func WithStager(s rpc.Stager) Option {
	return func(rt *Runtime) {
		rt.stager = s
	}
}

// WithIDs sets the invocation id generator for child calls.
func WithIDs(g rpc.IDGenerator) Option {
	return func(rt *Runtime) {
		rt.ids = g
	}
}

// WithSequencer sets the event sequence source. Defaults to a fresh
// telemetry.Clock per instance.
func WithSequencer(s Sequencer) Option {
	return func(rt *Runtime) {
		rt.seq = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = l
	}
}

// Runtime is one component instance: its identity, its state, and the
// channels it reports and delegates through.
//
// A Runtime is used by one invocation at a time and is not safe for
// concurrent mutation of its state.
type Runtime struct {
	id          ir.Identity
	accessKey   string
	credentials ir.Credentials
	socket      *ir.Socket
	debugMode   bool
	state       ir.IRObject

	sender     telemetry.Sender
	states     store.StateStore
	dispatcher rpc.Dispatcher
	stager     rpc.Stager
	ids        rpc.IDGenerator
	seq        Sequencer
	logger     *slog.Logger
}

// New validates cfg and returns the instance. Stage defaults to "dev" and
// state to an empty object.
func New(cfg Config, opts ...Option) (*Runtime, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	id := cfg.Identity
	if id.Stage == "" {
		id.Stage = ir.DefaultStage
	}
	state := cfg.State
	if state == nil {
		state = ir.IRObject{}
	}
	var socket *ir.Socket
	if cfg.Socket != nil {
		s := *cfg.Socket
		socket = &s
	}

	rt := &Runtime{
		id:          id,
		accessKey:   cfg.AccessKey,
		credentials: cfg.Credentials.Clone(),
		socket:      socket,
		debugMode:   cfg.DebugMode,
		state:       state,
		sender:      telemetry.Discard,
		ids:         rpc.UUIDv7Generator{},
		seq:         telemetry.NewClock(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.logger = rt.logger.With("name", id.Name, "component", id.Ref().String())
	return rt, nil
}

// Identity returns the instance identity.
func (rt *Runtime) Identity() ir.Identity {
	return rt.id
}

// State returns the instance's state. The map is owned by the instance and
// is mutated in place; Save persists it.
func (rt *Runtime) State() ir.IRObject {
	return rt.state
}

// Credentials returns the provider credential bundle.
func (rt *Runtime) Credentials() ir.Credentials {
	return rt.credentials
}

// DebugMode reports whether debug and log events are emitted.
func (rt *Runtime) DebugMode() bool {
	return rt.debugMode
}

// Logger returns the instance logger, tagged with name and component.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// Debug sends a debug event when the invocation is observed in debug mode.
func (rt *Runtime) Debug(ctx context.Context, msg string) error {
	return rt.emit(ctx, ir.EventDebug, msg)
}

// Log sends a log event when the invocation is observed in debug mode.
func (rt *Runtime) Log(ctx context.Context, msg string) error {
	return rt.emit(ctx, ir.EventLog, msg)
}

// Status sends a progress event whenever the invocation is observed.
func (rt *Runtime) Status(ctx context.Context, msg string) error {
	return rt.emit(ctx, ir.EventStatus, msg)
}

func (rt *Runtime) emit(ctx context.Context, kind ir.EventKind, msg string) error {
	if !telemetry.Allowed(kind, rt.socket, rt.debugMode) {
		return nil
	}

	socket := *rt.socket
	ev := ir.Event{
		Identity:  rt.id,
		AccessKey: rt.accessKey,
		Kind:      kind,
		Data:      msg,
		Socket:    &socket,
		Seq:       rt.seq.Next(),
	}
	if err := rt.sender.Send(ctx, ev); err != nil {
		return fmt.Errorf("send %s event for %s: %w", kind, rt.id.Name, err)
	}
	return nil
}

// Save persists the current state under the instance identity.
func (rt *Runtime) Save(ctx context.Context) error {
	if rt.states == nil {
		return ErrNoStateStore
	}
	if err := rt.states.SaveState(ctx, rt.id, rt.state); err != nil {
		return fmt.Errorf("save state for %s: %w", rt.id.Name, err)
	}
	rt.logger.Debug("state saved", "keys", len(rt.state))
	return nil
}

// Load returns a handle to the child component ref running under alias.
//
// The child is named "<name>.<alias>" and inherits a snapshot of this
// instance's org, app, stage, credentials, debug mode, access key and
// socket.
func (rt *Runtime) Load(ref, alias string) (*rpc.Handle, error) {
	parsed, err := ir.ParseComponentRef(ref)
	if err != nil {
		return nil, err
	}
	if alias == "" {
		return nil, &ir.RefError{
			Code:    ir.ErrCodeMissingComponentAlias,
			Ref:     ref,
			Message: "missing alias argument",
		}
	}

	tmpl := ir.Invocation{
		Identity:    rt.id.Child(parsed, alias),
		AccessKey:   rt.accessKey,
		Credentials: rt.credentials,
		DebugMode:   rt.debugMode,
		Socket:      rt.socket,
	}

	opts := []rpc.HandleOption{rpc.WithIDs(rt.ids), rpc.WithHandleLogger(rt.logger)}
	if rt.stager != nil {
		opts = append(opts, rpc.WithStager(rt.stager))
	}
	rt.logger.Debug("child loaded", "child", tmpl.Name, "ref", parsed.String())
	return rpc.NewHandle(tmpl, rt.dispatcher, opts...), nil
}
