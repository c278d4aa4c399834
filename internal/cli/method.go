package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/components/internal/artifact"
	"github.com/roach88/components/internal/builtin"
	"github.com/roach88/components/internal/component"
	"github.com/roach88/components/internal/config"
	"github.com/roach88/components/internal/handler"
	"github.com/roach88/components/internal/ir"
	"github.com/roach88/components/internal/rpc"
	"github.com/roach88/components/internal/store"
	"github.com/roach88/components/internal/telemetry"
	"github.com/roach88/components/internal/template"
)

// localAccessKey stands in for the access key when nothing leaves the
// process.
const localAccessKey = "local"

// MethodOptions holds flags for the run, deploy and remove commands.
type MethodOptions struct {
	*RootOptions
	Stage  string
	Dev    bool
	Debug  bool
	Local  bool
	Inputs string

	// Registry overrides the builtin components in local mode (for testing).
	Registry *component.Registry

	// Interactive overrides terminal detection for the status display.
	Interactive *bool
}

// NewRunCommand creates the run command, which calls any method of the
// root component.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&MethodOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *MethodOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <method>",
		Short: "Run a method of the root component",
		Long: `Resolve the serverless template in the project directory and call
a method of its root component.

Template inputs are passed to deploy only; other methods receive the
inputs given with --inputs.

Example:
  components run info --local
  components run deploy --stage prod --debug`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMethod(cmd, opts, args[0])
		},
	}
	addMethodFlags(cmd, opts)
	return cmd
}

// NewMethodCommand creates a shortcut command for one method.
func NewMethodCommand(rootOpts *RootOptions, method, short string) *cobra.Command {
	return newMethodCommand(&MethodOptions{RootOptions: rootOpts}, method, short)
}

func newMethodCommand(opts *MethodOptions, method, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   method,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMethod(cmd, opts, method)
		},
	}
	addMethodFlags(cmd, opts)
	return cmd
}

func addMethodFlags(cmd *cobra.Command, opts *MethodOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.Stage, "stage", "", "stage of the instance (default: template stage, then dev)")
	f.BoolVar(&opts.Dev, "dev", false, "run the dev version of the root component")
	f.BoolVar(&opts.Debug, "debug", false, "stream debug and log events from the call tree")
	f.BoolVar(&opts.Local, "local", false, "run the call tree in process with the builtin components")
	f.StringVar(&opts.Inputs, "inputs", "", "JSON object merged over the method inputs")
}

// run holds everything one method call needs; close releases it.
type run struct {
	dispatcher rpc.Dispatcher
	stager     rpc.Stager
	socket     *ir.Socket
	accessKey  string
	closers    []func()
}

func (r *run) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func runMethod(cmd *cobra.Command, opts *MethodOptions, method string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	inst, err := loadInstance(opts.Dir, opts.Stage)
	if err != nil {
		return err
	}
	if opts.Dev {
		inst.Component.Version = ir.DefaultVersion
	}

	creds, err := config.Credentials(opts.Dir, inst.Stage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read credentials", err)
	}

	inputs, err := methodInputs(opts, inst, method)
	if err != nil {
		return err
	}

	status := NewStatusEngine(cmd.ErrOrStderr(), inst.Name, opts.Debug, opts.interactive(cmd.ErrOrStderr()))
	status.Start("Connecting")

	var r *run
	if opts.Local {
		r, err = localRun(opts, cfg, status)
	} else {
		r, err = remoteRun(ctx, cfg, status, opts.Debug)
	}
	if err != nil {
		status.Stop(StopError, err.Error())
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer r.close()

	handle := rpc.NewHandle(ir.Invocation{
		Identity:    inst.Identity(),
		AccessKey:   r.accessKey,
		Credentials: creds,
		DebugMode:   opts.Debug,
		Socket:      r.socket,
	}, r.dispatcher, rpc.WithStager(r.stager), rpc.WithHandleLogger(slog.Default()))

	running, finished := progress(method)
	status.Status(running)
	outputs, err := handle.Invoke(ctx, method, inputs)
	if err != nil {
		if ctx.Err() != nil {
			status.Stop(StopCancel, "")
			return WrapExitError(ExitFailure, "canceled", err)
		}
		status.Stop(StopError, err.Error())
		return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", method), err)
	}

	status.Stop(StopDone, finished)
	return opts.formatter(cmd).Outputs(outputs)
}

// loadInstance reads and resolves the template in dir.
func loadInstance(dir, stage string) (template.Instance, error) {
	tree, path, err := template.LoadDir(dir)
	if err != nil {
		return template.Instance{}, WrapExitError(ExitCommandError, "failed to load template", err)
	}
	slog.Debug("template loaded", "path", path)

	env, err := config.Env(dir, stage)
	if err != nil {
		return template.Instance{}, WrapExitError(ExitCommandError, "failed to read env file", err)
	}
	resolved, err := template.Resolve(tree,
		template.WithEnv(env),
		template.WithLogger(slog.Default()),
	)
	if err != nil {
		return template.Instance{}, WrapExitError(ExitFailure, "failed to resolve template", err)
	}

	inst, err := template.InstanceData(resolved, stage)
	if err != nil {
		return template.Instance{}, WrapExitError(ExitCommandError, "invalid template", err)
	}
	if stage != "" {
		inst.Stage = stage
	}
	return inst, nil
}

// methodInputs picks the inputs for method. Template inputs belong to
// deploy; --inputs is merged on top for every method.
func methodInputs(opts *MethodOptions, inst template.Instance, method string) (ir.IRObject, error) {
	inputs := ir.IRObject{}
	if method == "deploy" {
		inputs = inst.Inputs.Clone()
	}
	if opts.Inputs != "" {
		var extra ir.IRObject
		if err := json.Unmarshal([]byte(opts.Inputs), &extra); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --inputs", err)
		}
		for k, v := range extra {
			inputs[k] = v
		}
	}
	return anchorSource(inputs, opts.Dir), nil
}

// anchorSource makes relative "src" inputs, including those of child
// declarations, relative to the project directory instead of the working
// directory.
func anchorSource(inputs ir.IRObject, dir string) ir.IRObject {
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.Contains(p, "://") || template.HasPlaceholder(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	anchorIn := func(in ir.IRObject) {
		switch src := in[artifact.SourceKey].(type) {
		case ir.IRString:
			in[artifact.SourceKey] = ir.IRString(anchor(string(src)))
		case ir.IRObject:
			if p, ok := src.GetString("src"); ok {
				cp := src.Clone()
				cp["src"] = ir.IRString(anchor(p))
				in[artifact.SourceKey] = cp
			}
		}
	}

	anchorIn(inputs)
	if decls, ok := inputs[ir.ComponentsKey].(ir.IRObject); ok {
		for _, v := range decls {
			decl, _ := v.(ir.IRObject)
			if child, ok := decl["inputs"].(ir.IRObject); ok {
				anchorIn(child)
			}
		}
	}
	return inputs
}

// localRun wires an in-process handler. Source is staged through a
// loopback package bucket so components see it exactly as they would
// behind the engine.
func localRun(opts *MethodOptions, cfg config.Config, status *StatusEngine) (*run, error) {
	r := &run{
		accessKey: cfg.AccessKey,
		socket:    &ir.Socket{ConnectionID: localAccessKey},
	}
	if r.accessKey == "" {
		r.accessKey = localAccessKey
	}

	states, closeStates, err := openStateStore(cfg, opts.Dir)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, closeStates)

	scratch, err := os.MkdirTemp("", "components-")
	if err != nil {
		r.close()
		return nil, err
	}
	r.closers = append(r.closers, func() { _ = os.RemoveAll(scratch) })

	bucket := artifact.NewBucket(filepath.Join(scratch, "packages"), slog.Default())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		r.close()
		return nil, err
	}
	srv := &http.Server{Handler: bucket}
	go func() { _ = srv.Serve(ln) }()
	r.closers = append(r.closers, func() { _ = srv.Close() })

	baseURL := "http://" + ln.Addr().String()
	r.stager = artifact.NewStager(
		artifact.TargetsFunc(func(context.Context, string, string) (ir.PackageURLs, error) {
			return bucket.URLs(baseURL), nil
		}),
		artifact.WithProgress(status.Status),
		artifact.WithStagerLogger(slog.Default()),
		artifact.WithScratchDir(scratch),
	)

	reg := opts.Registry
	if reg == nil {
		reg = builtin.Registry()
	}
	r.dispatcher = handler.New(reg,
		handler.WithLogger(slog.Default()),
		handler.WithStateStore(states),
		handler.WithSender(telemetry.NewSinkSender(status)),
		handler.WithStager(r.stager),
		handler.WithScratchDir(filepath.Join(scratch, "src")),
	)
	return r, nil
}

// remoteRun wires the engine client. In debug mode a telemetry socket is
// opened first so events from the whole call tree reach the display.
func remoteRun(ctx context.Context, cfg config.Config, status *StatusEngine, debug bool) (*run, error) {
	logger := slog.Default()
	client := rpc.NewClient(cfg.Endpoints.HTTP,
		rpc.WithTimeout(cfg.Timeout),
		rpc.WithClientLogger(logger),
	)
	r := &run{
		dispatcher: client,
		accessKey:  cfg.AccessKey,
		stager: artifact.NewStager(client,
			artifact.WithProgress(status.Status),
			artifact.WithStagerLogger(logger),
		),
	}
	if !debug {
		return r, nil
	}

	conn, err := telemetry.Dial(ctx, cfg.Endpoints.Socket, logger)
	if err != nil {
		return nil, err
	}
	socket := conn.Socket()
	r.socket = &socket

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := conn.Run(runCtx, status); err != nil && runCtx.Err() == nil {
			logger.Warn("telemetry socket closed", "error", err)
		}
	}()
	r.closers = append(r.closers, func() {
		cancel()
		_ = conn.Close()
		<-done
	})
	return r, nil
}

// openStateStore returns the sqlite store when one is configured, else
// the file store under the project directory.
func openStateStore(cfg config.Config, dir string) (store.StateStore, func(), error) {
	if cfg.StateDB == "" {
		return store.NewFileStore(filepath.Join(dir, store.DefaultStateDir)), func() {}, nil
	}
	st, err := store.Open(cfg.StateDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open state database: %w", err)
	}
	return st, func() {
		if err := st.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}, nil
}

// signalContext cancels on SIGINT or SIGTERM. Use the command's context
// if available (for testing).
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (o *MethodOptions) interactive(w io.Writer) bool {
	if o.Interactive != nil {
		return *o.Interactive
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// progress returns the status shown while method runs and after it
// succeeds.
func progress(method string) (string, string) {
	switch method {
	case "deploy":
		return "Deploying", "Deployed"
	case "remove":
		return "Removing", "Removed"
	default:
		return "Running " + method, "Done"
	}
}
