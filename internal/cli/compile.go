package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dspec/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Name    string
	Version string
	Output  string // output file path
}

// CompileReport is the compile command's JSON payload.
type CompileReport struct {
	SystemHash string           `json:"system_hash"`
	System     *ir.DesignSystem `json:"system"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile specs to resolved canonical IR",
		Long: `Compile YAML token and component documents into the resolved IR.

Every token reference is replaced by its literal value and the result is
normalized, so the same documents always produce the same IR and the same
system hash regardless of file or declaration order.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "design-system", "design system name")
	cmd.Flags().StringVar(&opts.Version, "version", "0.0.0", "design system version")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write IR JSON to a file")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	system, err := BuildSystem(formatter, specsDir, opts.Name, opts.Version)
	if err != nil {
		return err
	}

	hash, err := ir.SystemHash(system)
	if err != nil {
		return outputCommandError(formatter, ErrCodeWrite, fmt.Sprintf("hashing system: %v", err))
	}

	if opts.Output != "" {
		// Indented JSON for readability; canonical JSON is only for hashing.
		data, err := json.MarshalIndent(system, "", "  ")
		if err != nil {
			return outputCommandError(formatter, ErrCodeWrite, fmt.Sprintf("marshaling IR: %v", err))
		}
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
			return outputCommandError(formatter, ErrCodeWrite, fmt.Sprintf("writing %s: %v", opts.Output, err))
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(CompileReport{SystemHash: hash, System: system})
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %s@%s: %d token(s), %d component(s)\n",
		system.Name, system.Version, len(system.Tokens), len(system.Components))
	fmt.Fprintf(formatter.Writer, "  system hash %s\n", hash)
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "  wrote IR to %s\n", opts.Output)
	}
	return nil
}
