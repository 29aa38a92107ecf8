package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dspec/internal/ir"
	"github.com/roach88/dspec/internal/store"
)

// OverrideOptions holds flags for the override command.
type OverrideOptions struct {
	*RootOptions
	DBPath string
	File   string
	Remove bool
}

// OverrideReport is the override command's JSON payload.
type OverrideReport struct {
	OutputPath string `json:"output_path"`
	BaseHash   string `json:"base_hash,omitempty"`
	Removed    bool   `json:"removed,omitempty"`
}

// NewOverrideCommand creates the override command.
func NewOverrideCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OverrideOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "override <output-path>",
		Short: "Pin an artifact to hand-edited content",
		Long: `Register a manual replacement for a generated artifact.

The override is a full replacement taken against the artifact's current
version. As long as the step's inputs are unchanged, runs keep the
override in place. If the inputs change, the run stops with a conflict
rather than silently merging or discarding your edit.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverride(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", ".dspec/dspec.db", "provenance database path")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "file holding the replacement content")
	cmd.Flags().BoolVar(&opts.Remove, "remove", false, "remove the override instead")

	return cmd
}

func runOverride(opts *OverrideOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openStore(formatter, opts.DBPath, true)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Remove {
		if err := st.DeleteOverride(ctx, path); err != nil {
			return outputCommandError(formatter, ErrCodeStore, err.Error())
		}
		if formatter.Format == "json" {
			return formatter.Success(OverrideReport{OutputPath: path, Removed: true})
		}
		fmt.Fprintf(formatter.Writer, "✓ Removed override for %s\n", path)
		return nil
	}

	if opts.File == "" {
		return outputCommandError(formatter, ErrCodeStore, "either --file or --remove is required")
	}
	content, err := os.ReadFile(opts.File)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, fmt.Sprintf("reading %s: %v", opts.File, err))
	}

	// The base is whatever the ledger currently holds for this path; an
	// override without a generated artifact to replace has no meaning.
	latest, err := st.LatestForPath(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return outputCommandError(formatter, ErrCodeStore,
			fmt.Sprintf("no generated artifact at %s to override", path))
	}
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error())
	}
	if ir.ArtifactHash(content) == latest.ArtifactHash {
		return outputCommandError(formatter, ErrCodeStore,
			"override content is identical to the current artifact")
	}

	override := store.Override{
		OutputPath: path,
		BaseHash:   latest.ArtifactHash,
		Content:    content,
	}
	if err := st.PutOverride(ctx, override); err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(OverrideReport{OutputPath: path, BaseHash: latest.ArtifactHash})
	}

	fmt.Fprintf(formatter.Writer, "✓ Override recorded for %s (base %.12s)\n", path, latest.ArtifactHash)
	return nil
}
