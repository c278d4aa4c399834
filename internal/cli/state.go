package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/components/internal/ir"
	"github.com/roach88/components/internal/store"
)

// StateOptions holds flags for the state commands.
type StateOptions struct {
	*RootOptions
	Stage string
}

// NewStateCommand creates the state command group.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect saved component state",
		Long: `Inspect the state saved by locally run components.

list and history need a state database (--state-db); show also reads
the per-project file store.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Stage, "stage", "", "stage of the instance (default: template stage, then dev)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every instance of the app and stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateList(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show [name]",
		Short: "Print the state of an instance (default: the root instance)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateShow(cmd, opts, args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "history [name]",
		Short: "Print every saved revision of an instance's state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateHistory(cmd, opts, args)
		},
	})
	return cmd
}

// stateTarget resolves the identity named by args, defaulting to the root
// instance of the template.
func (o *StateOptions) stateTarget(args []string) (ir.Identity, error) {
	inst, err := loadInstance(o.Dir, o.Stage)
	if err != nil {
		return ir.Identity{}, err
	}
	id := inst.Identity()
	if len(args) == 1 {
		id.Name = args[0]
		id.ComponentName, id.ComponentVersion = "", ""
	}
	return id, nil
}

func (o *StateOptions) openDatabase() (*store.SQLite, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.StateDB == "" {
		return nil, NewExitError(ExitCommandError, "a state database is required (--state-db)")
	}
	st, err := store.Open(cfg.StateDB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runStateList(cmd *cobra.Command, opts *StateOptions) error {
	id, err := opts.stateTarget(nil)
	if err != nil {
		return err
	}
	st, err := opts.openDatabase()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ListStates(cmd.Context(), id.Org, id.App, id.Stage)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list state", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintf(f.Writer, "No state saved for %s/%s/%s\n", id.Org, id.App, id.Stage)
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(f.Writer, "%s\t%s\t%d keys\n", rec.Name, rec.Ref(), len(rec.State))
	}
	return nil
}

func runStateShow(cmd *cobra.Command, opts *StateOptions, args []string) error {
	id, err := opts.stateTarget(args)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	states, closeStates, err := openStateStore(cfg, opts.Dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open state", err)
	}
	defer closeStates()

	state, err := states.ReadState(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read state", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(state)
	}
	if len(state) == 0 {
		fmt.Fprintf(f.Writer, "No state saved for %s\n", id.Key())
		return nil
	}
	RenderOutputs(f.Writer, state)
	return nil
}

func runStateHistory(cmd *cobra.Command, opts *StateOptions, args []string) error {
	id, err := opts.stateTarget(args)
	if err != nil {
		return err
	}
	st, err := opts.openDatabase()
	if err != nil {
		return err
	}
	defer st.Close()

	revisions, err := st.History(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read history", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(revisions)
	}
	for _, rev := range revisions {
		fmt.Fprintf(f.Writer, "revision %d %s\n", rev.Revision, ir.ShortDigest(rev.Digest))
		RenderOutputs(f.Writer, rev.State)
	}
	return nil
}
