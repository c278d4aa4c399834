package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/components/internal/config"
	"github.com/roach88/components/internal/ir"
	"github.com/roach88/components/internal/template"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved serverless template",
		Long: `Load the serverless template in the project directory, resolve its
${...} references and print the result.

References to component outputs stay unresolved until deploy.

Example:
  components resolve -C ./site
  components resolve --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, rootOpts, stage)
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "stage used when the template names none")
	return cmd
}

func runResolve(cmd *cobra.Command, opts *RootOptions, stage string) error {
	tree, path, err := template.LoadDir(opts.Dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load template", err)
	}
	env, err := config.Env(opts.Dir, stage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read env file", err)
	}
	resolved, err := template.Resolve(tree,
		template.WithEnv(env),
		template.WithLogger(slog.Default()),
	)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to resolve template", err)
	}
	inst, err := template.InstanceData(resolved, stage)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid template", err)
	}

	f := opts.formatter(cmd)
	f.VerboseLog("template: %s", path)
	f.VerboseLog("instance: %s", inst.Identity().Key())

	obj := resolved.Object()
	if f.Format == "json" {
		return f.Success(obj)
	}
	enc := yaml.NewEncoder(f.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(ir.ToAny(obj)); err != nil {
		return WrapExitError(ExitFailure, "failed to print template", err)
	}
	return enc.Close()
}
