package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes one end-to-end pipeline exercise: a spec workspace,
// a pipeline definition, and a sequence of runs with expected dispositions.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Specs and Templates are materialized into the scenario workspace
	// under specs/ and templates/, keyed by file name.
	Specs     map[string]string `yaml:"specs"`
	Templates map[string]string `yaml:"templates,omitempty"`

	// Pipeline is the inline pipeline definition, written to pipeline.yaml
	// in the workspace root.
	Pipeline string `yaml:"pipeline"`

	// Responses supplies canned delegated-step replies keyed by directive,
	// so scenarios never reach a live generation service.
	Responses map[string]string `yaml:"responses,omitempty"`

	Runs []RunStep `yaml:"runs"`
}

// RunStep is one pipeline invocation with its expectations.
type RunStep struct {
	// Edit overwrites workspace files before this run, keyed by relative
	// path (e.g. "specs/tokens.yaml"). This is how scenarios model spec
	// changes between runs.
	Edit map[string]string `yaml:"edit,omitempty"`

	// Outcome is the expected run outcome: success, partial, or failed.
	Outcome string `yaml:"outcome"`

	// Steps maps step names to their expected status.
	Steps map[string]string `yaml:"steps"`

	// Artifacts maps output paths to a substring each artifact must
	// contain after the run.
	Artifacts map[string]string `yaml:"artifacts,omitempty"`
}

var validOutcomes = map[string]bool{
	"success": true,
	"partial": true,
	"failed":  true,
}

var validStatuses = map[string]bool{
	"generated":  true,
	"skipped":    true,
	"overridden": true,
	"ejected":    true,
	"failed":     true,
	"blocked":    true,
}

// LoadScenario loads and validates a scenario from a YAML file.
// Unknown fields are rejected so typos in scenario files fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields, collecting every problem so
// scenario authors see them all at once.
func validateScenario(s *Scenario) error {
	var errs []string

	if s.Name == "" {
		errs = append(errs, "name is required")
	}
	if len(s.Specs) == 0 {
		errs = append(errs, "at least one spec document is required")
	}
	if s.Pipeline == "" {
		errs = append(errs, "pipeline definition is required")
	}
	if len(s.Runs) == 0 {
		errs = append(errs, "at least one run is required")
	}

	for i, run := range s.Runs {
		if run.Outcome == "" {
			errs = append(errs, fmt.Sprintf("run %d: outcome is required", i))
		} else if !validOutcomes[run.Outcome] {
			errs = append(errs, fmt.Sprintf("run %d: unknown outcome %q", i, run.Outcome))
		}
		if len(run.Steps) == 0 {
			errs = append(errs, fmt.Sprintf("run %d: at least one step expectation is required", i))
		}
		for name, status := range run.Steps {
			if !validStatuses[status] {
				errs = append(errs, fmt.Sprintf("run %d: step %s: unknown status %q", i, name, status))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d validation error(s): %v", len(errs), errs)
	}
	return nil
}
