package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/dspec/internal/compiler"
	"github.com/roach88/dspec/internal/ir"
	"github.com/roach88/dspec/internal/pipeline"
	"github.com/roach88/dspec/internal/spec"
	"github.com/roach88/dspec/internal/store"
)

// Command-level error codes, continuing the loader's E0xx range.
const (
	ErrCodeWrite   = "E005" // file write failure
	ErrCodeStore   = "E006" // provenance database unavailable
	ErrCodeService = "E007" // generation service unavailable
)

// Finding is the JSON shape of one load, validation, resolution, or
// pipeline preflight error.
type Finding struct {
	Code    string `json:"code,omitempty"`
	File    string `json:"file,omitempty"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// LoadSpecs loads every YAML document under dir and validates the set.
// A non-empty error slice means the documents could not be read at all;
// validation findings (errors and warnings) live in the result.
func LoadSpecs(dir string) ([]spec.Document, *spec.ValidationResult, []error) {
	docs, loadErrs := spec.LoadDir(dir)
	if len(loadErrs) > 0 {
		return docs, nil, loadErrs
	}
	return docs, spec.Validate(docs), nil
}

// BuildSystem compiles a spec directory into resolved IR, reporting any
// findings through the formatter. A non-nil error is an *ExitError ready
// to return from a RunE.
func BuildSystem(formatter *OutputFormatter, dir, name, version string) (*ir.DesignSystem, error) {
	docs, res, loadErrs := LoadSpecs(dir)
	if len(loadErrs) > 0 {
		return nil, outputFindings(formatter, ExitCommandError, "load", errorFindings(loadErrs))
	}
	formatter.VerboseLog("Loaded %d document(s) from %s", len(docs), dir)

	for _, w := range res.Warnings {
		formatter.VerboseLog("warning %s %s: %s", w.Code, w.Path, w.Message)
	}
	if !res.Valid() {
		return nil, outputFindings(formatter, ExitFailure, "validation", validationFindings(res.Errors))
	}

	system, buildErrs := compiler.Build(name, version, docs)
	if len(buildErrs) > 0 {
		return nil, outputFindings(formatter, ExitFailure, "resolution", errorFindings(buildErrs))
	}
	return system, nil
}

// validationFindings converts validator findings to the output shape.
func validationFindings(errs []spec.ValidationError) []Finding {
	out := make([]Finding, len(errs))
	for i, e := range errs {
		out[i] = Finding{Code: e.Code, File: e.File, Path: e.Path, Line: e.Line, Message: e.Message}
	}
	return out
}

// errorFindings converts load, resolution, and pipeline errors to the
// output shape.
func errorFindings(errs []error) []Finding {
	out := make([]Finding, 0, len(errs))
	for _, err := range errs {
		var le *spec.LoadError
		var re *compiler.ResolveError
		var pe *pipeline.PipelineError
		switch {
		case errors.As(err, &le):
			out = append(out, Finding{Code: le.Code, File: le.Path, Message: le.Message})
		case errors.As(err, &re):
			out = append(out, Finding{Code: re.Code, Path: re.Location, Message: re.Message})
		case errors.As(err, &pe):
			out = append(out, Finding{Code: pe.Code, Path: pe.Step, Message: pe.Message})
		default:
			out = append(out, Finding{Message: err.Error()})
		}
	}
	return out
}

// outputFindings reports a batch of findings and returns the ExitError
// that ends the command.
func outputFindings(formatter *OutputFormatter, exitCode int, what string, findings []Finding) error {
	exit := NewExitError(exitCode, fmt.Sprintf("%s failed with %d finding(s)", what, len(findings)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   findings,
			Error:  &CLIError{Code: findings[0].Code, Message: findings[0].Message},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exit
	}

	fmt.Fprintf(formatter.Writer, "✗ %s failed\n\n", what)
	for _, f := range findings {
		loc := f.File
		if f.Line > 0 {
			loc = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if f.Path != "" {
			if loc != "" {
				loc += " "
			}
			loc += f.Path
		}
		if loc != "" {
			fmt.Fprintln(formatter.Writer, loc)
		}
		if f.Code != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", f.Code, f.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s\n\n", f.Message)
		}
	}
	return exit
}

// outputCommandError reports a single hard failure (exit code 2).
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// openStore opens the provenance database. Commands that only inspect
// history set mustExist so a missing database is reported instead of
// silently created empty.
func openStore(formatter *OutputFormatter, path string, mustExist bool) (*store.Store, error) {
	if mustExist {
		if _, err := os.Stat(path); err != nil {
			return nil, outputCommandError(formatter, ErrCodeStore,
				fmt.Sprintf("no provenance database at %s", path))
		}
	} else if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, outputCommandError(formatter, ErrCodeStore,
				fmt.Sprintf("creating %s: %v", dir, err))
		}
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, outputCommandError(formatter, ErrCodeStore, err.Error())
	}
	return st, nil
}
