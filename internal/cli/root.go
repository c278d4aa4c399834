package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/components/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Dir     string

	v *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the components CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "components",
		Short: "Deploy and run serverless components",
		Long: `Resolve a serverless template and invoke its root component,
locally or through the components engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(cmd.ErrOrStderr(), opts)
			opts.v = config.New(opts.Dir)
			if err := config.Bind(opts.v, cmd.Root().PersistentFlags()); err != nil {
				return WrapExitError(ExitCommandError, "failed to bind flags", err)
			}
			if err := config.Bind(opts.v, cmd.Flags()); err != nil {
				return WrapExitError(ExitCommandError, "failed to bind flags", err)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVarP(&opts.Dir, "dir", "C", ".", "project directory holding the serverless template")
	pf.String(config.KeyAccessKey, "", "access key for the engine (env SERVERLESS_ACCESS_KEY)")
	pf.String(config.KeyPlatformStage, "", "platform stage selecting default endpoints (env SERVERLESS_PLATFORM_STAGE)")
	pf.String(config.KeyEngineURL, "", "engine base URL, overrides the platform stage default")
	pf.String(config.KeySocketURL, "", "telemetry socket URL, overrides the platform stage default")
	pf.Duration(config.KeyTimeout, 0, "bound on each remote component call, 0 for none")
	pf.String(config.KeyStateDB, "", "sqlite database for local state (default: files under .serverless)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewMethodCommand(opts, "deploy", "Deploy the root component"))
	cmd.AddCommand(NewMethodCommand(opts, "remove", "Remove the root component"))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Failures are reported on stderr, or as a JSON error response on stdout
// with --format json.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format, _ := cmd.PersistentFlags().GetString("format")
	if !isValidFormat(format) {
		format = "text"
	}
	verbose, _ := cmd.PersistentFlags().GetBool("verbose")
	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: verbose}
	if ferr := f.Failure(err); ferr != nil {
		fmt.Fprintln(stderr, err)
	}
	return GetExitCode(err)
}

// loadConfig resolves settings after flags are parsed.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if o.v == nil {
		o.v = config.New(o.Dir)
	}
	cfg, err := config.Load(o.v)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// setupLogging installs the default slog logger: text to stderr, JSON when
// the output format is json, debug level with --verbose.
func setupLogging(w io.Writer, opts *RootOptions) {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
