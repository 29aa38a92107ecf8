package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dspec/internal/compiler"
)

// ValidateReport is the validate command's JSON payload.
type ValidateReport struct {
	Valid    bool      `json:"valid"`
	Errors   []Finding `json:"errors,omitempty"`
	Warnings []Finding `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate spec documents without generating anything",
		Long: `Validate YAML token and component documents without running a pipeline.

Checks document schemas, cross-document consistency, and token references.
All findings are collected in one pass; unknown fields are reported as
warnings and never fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	docs, res, loadErrs := LoadSpecs(specsDir)
	if len(loadErrs) > 0 {
		return outputFindings(formatter, ExitCommandError, "load", errorFindings(loadErrs))
	}
	formatter.VerboseLog("Validating %d document(s) from %s", len(docs), specsDir)

	report := ValidateReport{
		Valid:    res.Valid(),
		Errors:   validationFindings(res.Errors),
		Warnings: validationFindings(res.Warnings),
	}

	// Reference resolution only makes sense on documents that passed
	// validation; its findings join the report so one invocation surfaces
	// dangling references and cycles too.
	if res.Valid() {
		if _, buildErrs := compiler.Build("validate", "0.0.0", docs); len(buildErrs) > 0 {
			report.Valid = false
			report.Errors = append(report.Errors, errorFindings(buildErrs)...)
		}
	}

	if !report.Valid {
		return outputValidateFailure(formatter, report)
	}
	return outputValidateSuccess(formatter, report, len(docs))
}

func outputValidateSuccess(formatter *OutputFormatter, report ValidateReport, docCount int) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d document(s) valid\n", docCount)
	for _, w := range report.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning %s %s: %s\n", w.Code, w.Path, w.Message)
	}
	return nil
}

func outputValidateFailure(formatter *OutputFormatter, report ValidateReport) error {
	exit := NewExitError(ExitFailure,
		fmt.Sprintf("validation failed with %d error(s)", len(report.Errors)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   report,
			Error: &CLIError{
				Code:    report.Errors[0].Code,
				Message: report.Errors[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exit
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, f := range report.Errors {
		if f.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d %s\n", f.File, f.Line, f.Path)
		} else if f.Path != "" {
			fmt.Fprintf(formatter.Writer, "%s %s\n", f.File, f.Path)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", f.Code, f.Message)
	}
	return exit
}
