package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dspec/internal/store"
)

// EjectOptions holds flags for the eject command.
type EjectOptions struct {
	*RootOptions
	DBPath string
}

// NewEjectCommand creates the eject command.
func NewEjectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eject <output-path>",
		Short: "Take over an artifact; the pipeline stops touching it",
		Long: `Transfer ownership of an artifact out of the pipeline.

After ejection the file belongs to you: later runs will neither skip,
restore, nor regenerate it. History is retained for reference. Ejection
is permanent.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEject(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", ".dspec/dspec.db", "provenance database path")

	return cmd
}

func runEject(opts *EjectOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openStore(formatter, opts.DBPath, true)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.MarkEjected(ctx, path); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return outputCommandError(formatter, ErrCodeStore, fmt.Sprintf("no history for %s", path))
		}
		return outputCommandError(formatter, ErrCodeStore, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"output_path": path, "ejected": true})
	}

	fmt.Fprintf(formatter.Writer, "✓ Ejected %s; the pipeline will no longer manage it\n", path)
	return nil
}
