package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/components/internal/artifact"
	"github.com/roach88/components/internal/builtin"
	"github.com/roach88/components/internal/component"
	"github.com/roach88/components/internal/handler"
	"github.com/roach88/components/internal/ir"
	"github.com/roach88/components/internal/rpc"
	"github.com/roach88/components/internal/store"
	"github.com/roach88/components/internal/telemetry"
)

// Routes mounted by the serve command.
const (
	SocketPath = "/socket"
	EnginePath = "/engine/"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string
	Packages string
	BaseURL  string

	// Registry overrides the builtin components (for testing).
	Registry *component.Registry

	// ready is called with the listening address once the server accepts
	// connections (for testing).
	ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a components engine",
		Long: `Serve the engine API backed by the builtin components.

Routes:
  POST /engine/{fn}   runComponent, saveComponentState, getComponentState,
                      sendToConnection, getPackageUrls
  GET  /socket        telemetry websocket
  PUT|GET /packages/  code packages

Point the CLI at it with --engine-url and --socket-url.

Example:
  components serve --db ./engine.db --addr 127.0.0.1:8080
  components deploy --engine-url http://127.0.0.1:8080 --socket-url ws://127.0.0.1:8080/socket`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite state database (required)")
	cmd.Flags().StringVar(&opts.Packages, "packages", "", "directory holding code packages (default: next to the database)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "public URL of this server used in package URLs (default: http://<addr>)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	logger := slog.Default()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	addr := ln.Addr().String()

	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://" + addr
	}
	packages := opts.Packages
	if packages == "" {
		packages = filepath.Join(filepath.Dir(opts.Database), "packages")
	}

	hub := telemetry.NewHub(telemetry.WithHubLogger(logger))
	defer hub.Close()

	bucket := artifact.NewBucket(packages, logger)
	targets := artifact.TargetsFunc(func(context.Context, string, string) (ir.PackageURLs, error) {
		return bucket.URLs(baseURL), nil
	})

	reg := opts.Registry
	if reg == nil {
		reg = builtin.Registry()
	}
	h := handler.New(reg,
		handler.WithLogger(logger),
		handler.WithStateStore(st),
		handler.WithSender(hub),
		handler.WithStager(artifact.NewStager(targets, artifact.WithStagerLogger(logger))),
		handler.OnTransition(func(inv ir.Invocation, from, to handler.Phase) {
			if to.Terminal() {
				logger.Info("invocation finished", "name", inv.Name, "method", inv.Method, "phase", to.String())
			}
		}),
	)

	mux := http.NewServeMux()
	mux.Handle(SocketPath, hub)
	mux.Handle(artifact.BucketPrefix, bucket)
	mux.Handle(EnginePath, rpc.NewServer(h,
		rpc.WithStateStore(st),
		rpc.WithSender(hub),
		rpc.WithPackageTargets(targets),
		rpc.WithServerLogger(logger),
	))

	srv := &http.Server{Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	logger.Info("engine listening", "addr", addr, "db", opts.Database, "packages", packages)
	fmt.Fprintf(cmd.OutOrStdout(), "Engine listening on %s\n", baseURL)
	if opts.ready != nil {
		opts.ready(addr)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	logger.Info("engine stopped gracefully")
	return nil
}
