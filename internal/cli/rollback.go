package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/dspec/internal/store"
)

// RollbackOptions holds flags for the rollback command.
type RollbackOptions struct {
	*RootOptions
	DBPath string
	OutDir string
	Back   int
}

// RollbackReport is the rollback command's JSON payload.
type RollbackReport struct {
	OutputPath   string `json:"output_path"`
	ArtifactHash string `json:"artifact_hash"`
	RunID        string `json:"run_id"`
}

// NewRollbackCommand creates the rollback command.
func NewRollbackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RollbackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rollback <output-path>",
		Short: "Restore an artifact's previous version",
		Long: `Restore a previous version of a generated artifact.

By default the immediately preceding version is restored; --back selects
an older generation. Nothing is deleted: the restoration is appended to
the ledger as its own entry, and the restored bytes are written back to
the output directory. Repeating a rollback to the same target is a no-op.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", ".dspec/dspec.db", "provenance database path")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "dist", "artifact output directory")
	cmd.Flags().IntVar(&opts.Back, "back", 1, "generations to roll back")

	return cmd
}

func runRollback(opts *RollbackOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openStore(formatter, opts.DBPath, true)
	if err != nil {
		return err
	}
	defer st.Close()

	entry, content, err := st.Rollback(ctx, path, opts.Back)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return outputCommandError(formatter, ErrCodeStore, fmt.Sprintf("no history for %s", path))
		}
		return outputCommandError(formatter, ErrCodeStore, err.Error())
	}

	target := filepath.Join(opts.OutDir, path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return outputCommandError(formatter, ErrCodeWrite, err.Error())
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return outputCommandError(formatter, ErrCodeWrite, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(RollbackReport{
			OutputPath:   path,
			ArtifactHash: entry.ArtifactHash,
			RunID:        entry.RunID,
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ Rolled back %s to %.12s\n", path, entry.ArtifactHash)
	fmt.Fprintf(formatter.Writer, "  restored %s\n", target)
	return nil
}
