// Package harness runs end-to-end pipeline scenarios: a YAML scenario
// supplies spec documents, a pipeline definition, and a sequence of runs
// with expected step dispositions; the harness materializes a workspace,
// executes the pipeline against a fresh provenance database, and checks
// every expectation.
//
// Delegated steps are served from the scenario's canned responses, so
// scenarios are fully deterministic and never touch a live model.
package harness

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/dspec/internal/compiler"
	"github.com/roach88/dspec/internal/generator"
	"github.com/roach88/dspec/internal/pipeline"
	"github.com/roach88/dspec/internal/spec"
	"github.com/roach88/dspec/internal/store"
)

// Result is the outcome of one scenario execution.
type Result struct {
	// Runs holds the pipeline result of each run, in scenario order.
	Runs []*pipeline.RunResult

	// Failures lists every expectation that did not hold.
	Failures []string

	// Artifacts is the output tree after the final run, keyed by
	// relative path. Used for golden comparison.
	Artifacts map[string][]byte
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

func (r *Result) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// scriptedService replays canned responses keyed by directive. A directive
// without a scripted response is a scenario authoring error.
type scriptedService struct {
	responses map[string]string
	calls     int
}

func (s *scriptedService) Model() string { return "scripted" }

func (s *scriptedService) Generate(_ context.Context, req generator.Request) (*generator.Response, error) {
	content, ok := s.responses[req.Directive]
	if !ok {
		return nil, fmt.Errorf("no scripted response for directive %q", req.Directive)
	}
	s.calls++
	return &generator.Response{
		Content:    []byte(content),
		Model:      "scripted",
		ResponseID: fmt.Sprintf("scripted-%d", s.calls),
	}, nil
}

// Run executes a scenario in a fresh temporary workspace with its own
// provenance database. The returned error covers harness-level problems
// (unreadable specs, broken pipeline definitions); expectation mismatches
// land in Result.Failures instead.
func Run(scenario *Scenario) (*Result, error) {
	root, err := os.MkdirTemp("", "dspec-harness-*")
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	defer os.RemoveAll(root)

	for name, content := range scenario.Specs {
		if err := writeWorkspaceFile(root, filepath.Join("specs", name), content); err != nil {
			return nil, err
		}
	}
	for name, content := range scenario.Templates {
		if err := writeWorkspaceFile(root, filepath.Join("templates", name), content); err != nil {
			return nil, err
		}
	}
	if err := writeWorkspaceFile(root, "pipeline.yaml", scenario.Pipeline); err != nil {
		return nil, err
	}

	st, err := store.Open(filepath.Join(root, "dspec.db"))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	opts := pipeline.Options{OutDir: filepath.Join(root, "dist")}
	if len(scenario.Responses) > 0 {
		opts.Service = &scriptedService{responses: scenario.Responses}
	}

	result := &Result{}
	for i, run := range scenario.Runs {
		for rel, content := range run.Edit {
			if err := writeWorkspaceFile(root, rel, content); err != nil {
				return nil, fmt.Errorf("run %d: %w", i, err)
			}
		}

		runResult, err := executeRun(root, st, opts)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		result.Runs = append(result.Runs, runResult)
		checkRun(result, i, run, runResult, opts.OutDir)
	}

	result.Artifacts, err = collectArtifacts(opts.OutDir)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// executeRun reloads the pipeline and specs from the workspace (edits may
// have changed either) and performs one pipeline run.
func executeRun(root string, st *store.Store, opts pipeline.Options) (*pipeline.RunResult, error) {
	def, errs := pipeline.Load(filepath.Join(root, "pipeline.yaml"))
	if len(errs) > 0 {
		return nil, fmt.Errorf("loading pipeline: %w", errs[0])
	}

	docs, loadErrs := spec.LoadDir(filepath.Join(root, "specs"))
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("loading specs: %w", loadErrs[0])
	}
	if res := spec.Validate(docs); !res.Valid() {
		e := res.Errors[0]
		return nil, fmt.Errorf("spec validation: %s %s: %s", e.Code, e.Path, e.Message)
	}

	system, buildErrs := compiler.Build(def.System.Name, def.System.Version, docs)
	if len(buildErrs) > 0 {
		return nil, fmt.Errorf("building system: %w", buildErrs[0])
	}

	x, err := pipeline.New(def, system, st, opts)
	if err != nil {
		return nil, fmt.Errorf("constructing pipeline: %w", err)
	}
	return x.Run(context.Background())
}

// checkRun evaluates one run's expectations into the result's failures.
func checkRun(result *Result, i int, expect RunStep, actual *pipeline.RunResult, outDir string) {
	if string(actual.Outcome) != expect.Outcome {
		result.failf("run %d: outcome %s, want %s", i, actual.Outcome, expect.Outcome)
	}

	for _, name := range sortedKeys(expect.Steps) {
		sr := actual.Step(name)
		if sr == nil {
			result.failf("run %d: step %s not in result", i, name)
			continue
		}
		if string(sr.Status) != expect.Steps[name] {
			msg := fmt.Sprintf("run %d: step %s: status %s, want %s", i, name, sr.Status, expect.Steps[name])
			if sr.Error != "" {
				msg += " (" + sr.Error + ")"
			}
			result.failf("%s", msg)
		}
	}

	for _, rel := range sortedKeys(expect.Artifacts) {
		data, err := os.ReadFile(filepath.Join(outDir, rel))
		if err != nil {
			result.failf("run %d: artifact %s: %v", i, rel, err)
			continue
		}
		if !strings.Contains(string(data), expect.Artifacts[rel]) {
			result.failf("run %d: artifact %s does not contain %q", i, rel, expect.Artifacts[rel])
		}
	}
}

func writeWorkspaceFile(root, rel, content string) error {
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(rel), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

// collectArtifacts reads the output tree into memory. A missing output
// directory yields an empty map: a scenario whose every run fails writes
// nothing.
func collectArtifacts(outDir string) (map[string][]byte, error) {
	artifacts := map[string][]byte{}
	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		artifacts[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("collecting artifacts: %w", err)
	}
	return artifacts, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
