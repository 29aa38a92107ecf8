package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DBPath string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <output-path>",
		Short: "Show the provenance ledger for an artifact",
		Long: `Show every recorded version of an artifact, newest first.

The path is the output path as named in the pipeline definition, for
example components/Button.tsx, not the on-disk location.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", ".dspec/dspec.db", "provenance database path")

	return cmd
}

func runHistory(opts *HistoryOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openStore(formatter, opts.DBPath, true)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.History(ctx, path)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error())
	}
	if len(entries) == 0 {
		return outputCommandError(formatter, ErrCodeStore, fmt.Sprintf("no history for %s", path))
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}

	fmt.Fprintf(formatter.Writer, "History for %s (%d entr%s)\n",
		path, len(entries), plural(len(entries), "y", "ies"))
	for _, e := range entries {
		line := fmt.Sprintf("  %s  %-9s %.12s  step %s",
			e.CreatedAt.Format(time.RFC3339), e.Kind, e.ArtifactHash, e.Step)
		if e.Model != "" {
			line += fmt.Sprintf("  [%s]", e.Model)
		}
		if e.Skipped {
			line += "  (skipped)"
		}
		if e.Ejected {
			line += "  (ejected)"
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
