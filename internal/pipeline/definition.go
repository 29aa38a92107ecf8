package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dspec/internal/ir"
)

// Pipeline error codes (E30x).
const (
	ErrDefinition      = "E301" // unreadable or malformed definition
	ErrStepName        = "E302" // missing or duplicate step name
	ErrStepKind        = "E303" // unknown step kind
	ErrStepInput       = "E304" // invalid input selector
	ErrStepOutput      = "E305" // missing output or output collision
	ErrUnknownAfter    = "E306" // `after` names no step
	ErrDependencyCycle = "E307" // step dependencies form a cycle
	ErrConflict        = "E308" // override conflicts with regeneration
)

// Step kinds.
const (
	KindStatic    = "static"
	KindDelegated = "delegated"
	KindScript    = "script"
)

// PipelineError is a definition or execution failure tied to one step.
type PipelineError struct {
	Code    string
	Step    string // empty for pipeline-level failures
	Message string
}

func (e *PipelineError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// SystemMeta names the design system a pipeline builds.
type SystemMeta struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Duration wraps time.Duration so definitions can say "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// RetryPolicy bounds delegated generation attempts. Timeout applies per
// attempt; exceeding it counts as a failed attempt.
type RetryPolicy struct {
	Attempts int      `yaml:"attempts"`
	Timeout  Duration `yaml:"timeout"`
}

// Step is one unit of pipeline work.
type Step struct {
	Name      string      `yaml:"name"`
	Kind      string      `yaml:"kind"`
	Input     string      `yaml:"input"`     // IR slice selector
	Template  string      `yaml:"template"`  // static
	Directive string      `yaml:"directive"` // delegated
	Command   []string    `yaml:"command"`   // script
	Output    string      `yaml:"output"`    // path template, may hold {component}
	After     []string    `yaml:"after"`
	Optional  bool        `yaml:"optional"`
	Retry     RetryPolicy `yaml:"retry"`
	Validate  []string    `yaml:"validate"`  // gate names
}

// Definition is a parsed, preflight-checked pipeline.
type Definition struct {
	System SystemMeta `yaml:"system"`
	Steps  []Step     `yaml:"steps"`

	dir string // definition file's directory; template paths resolve here
}

// Dir returns the directory the definition was loaded from.
func (d *Definition) Dir() string { return d.dir }

// Step returns the named step, or nil.
func (d *Definition) Step(name string) *Step {
	for i := range d.Steps {
		if d.Steps[i].Name == name {
			return &d.Steps[i]
		}
	}
	return nil
}

// Load reads a pipeline definition and runs every preflight check.
// All findings are collected; a definition with any error is unusable.
func Load(path string) (*Definition, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{&PipelineError{Code: ErrDefinition, Message: err.Error()}}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, []error{&PipelineError{Code: ErrDefinition, Message: fmt.Sprintf("parsing %s: %v", path, err)}}
	}
	def.dir = filepath.Dir(path)

	if errs := def.Preflight(); len(errs) > 0 {
		return nil, errs
	}
	return &def, nil
}

// Preflight statically checks the definition before any step runs:
// step names are present and unique, kinds and input selectors are valid,
// output templates do not collide, `after` targets exist, and the
// dependency graph is acyclic.
func (d *Definition) Preflight() []error {
	var errs []error
	errf := func(code, step, format string, args ...any) {
		errs = append(errs, &PipelineError{Code: code, Step: step, Message: fmt.Sprintf(format, args...)})
	}

	if len(d.Steps) == 0 {
		errf(ErrDefinition, "", "pipeline has no steps")
		return errs
	}
	if d.System.Name == "" {
		errf(ErrDefinition, "", "system.name is required")
	}

	names := map[string]bool{}
	outputs := map[string]string{} // output template -> step
	for i := range d.Steps {
		st := &d.Steps[i]
		if st.Name == "" {
			errf(ErrStepName, "", "step %d has no name", i)
			continue
		}
		if names[st.Name] {
			errf(ErrStepName, st.Name, "duplicate step name")
		}
		names[st.Name] = true

		switch st.Kind {
		case KindStatic:
			if st.Template == "" {
				errf(ErrStepKind, st.Name, "static step needs a template")
			}
		case KindDelegated:
			if st.Directive == "" {
				errf(ErrStepKind, st.Name, "delegated step needs a directive")
			}
		case KindScript:
			if len(st.Command) == 0 {
				errf(ErrStepKind, st.Name, "script step needs a command")
			}
		default:
			errf(ErrStepKind, st.Name, "unknown kind %q (want %s, %s, or %s)",
				st.Kind, KindStatic, KindDelegated, KindScript)
		}

		if st.Input == "" {
			errf(ErrStepInput, st.Name, "input selector is required")
		} else if err := ir.ParseSelector(st.Input); err != nil {
			errf(ErrStepInput, st.Name, "%v", err)
		}

		if st.Output == "" {
			errf(ErrStepOutput, st.Name, "output path is required")
		} else if prev, dup := outputs[st.Output]; dup {
			errf(ErrStepOutput, st.Name, "output %q collides with step %s", st.Output, prev)
		} else {
			outputs[st.Output] = st.Name
		}
	}

	for i := range d.Steps {
		st := &d.Steps[i]
		for _, dep := range st.After {
			if !names[dep] {
				errf(ErrUnknownAfter, st.Name, "after names unknown step %q", dep)
			}
			if dep == st.Name {
				errf(ErrUnknownAfter, st.Name, "step cannot run after itself")
			}
		}
	}

	if len(errs) == 0 {
		if cycle := d.findCycle(); len(cycle) > 0 {
			errf(ErrDependencyCycle, cycle[0],
				"step dependency cycle: %s", strings.Join(cycle, " -> "))
		}
	}

	return errs
}

// findCycle runs DFS over the `after` graph and returns the first cycle
// found (closed: first element repeated at the end), or nil.
func (d *Definition) findCycle() []string {
	after := map[string][]string{}
	for i := range d.Steps {
		after[d.Steps[i].Name] = d.Steps[i].After
	}

	const (
		unvisited = 0
		visiting  = 1
		finished  = 2
	)
	state := map[string]int{}
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case finished:
			return false
		case visiting:
			start := 0
			for i, n := range stack {
				if n == name {
					start = i
					break
				}
			}
			cycle = append(append([]string{}, stack[start:]...), name)
			return true
		}
		state[name] = visiting
		stack = append(stack, name)
		deps := append([]string{}, after[name]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if visit(dep) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = finished
		return false
	}

	names := make([]string, 0, len(after))
	for name := range after {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if visit(name) {
			return cycle
		}
	}
	return nil
}
