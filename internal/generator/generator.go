package generator

import (
	"context"
	"fmt"

	"github.com/roach88/dspec/internal/ir"
)

// Generation error codes (E31x, within the pipeline's E3xx range).
const (
	ErrTemplate = "E310" // template load/parse/execute failure
	ErrService  = "E311" // delegated service call failure
	ErrGate     = "E312" // validation gate rejected the output
	ErrScript   = "E313" // script command failure
)

// GenerationError is a generator or gate failure for one step.
type GenerationError struct {
	Code    string
	Step    string
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] step %s: %s: %v", e.Code, e.Step, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] step %s: %s", e.Code, e.Step, e.Message)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StepConfig carries the per-step generation inputs. Exactly one of
// Template, Directive, or Command is meaningful, per the step kind.
type StepConfig struct {
	StepName     string
	Template     string   // static: template file path
	TemplateHash string   // static: content hash of the template body
	Directive    string   // delegated: generation instruction
	Command      []string // script: argv
}

// Fields returns the configuration as a flat string map for hashing.
// Changing any field changes the step's invalidation key. The template is
// covered by path and by content hash, so editing a template in place
// invalidates its step.
func (c StepConfig) Fields() map[string]string {
	fields := map[string]string{"step": c.StepName}
	if c.Template != "" {
		fields["template"] = c.Template
	}
	if c.TemplateHash != "" {
		fields["template_hash"] = c.TemplateHash
	}
	if c.Directive != "" {
		fields["directive"] = c.Directive
	}
	for i, arg := range c.Command {
		fields[fmt.Sprintf("command.%d", i)] = arg
	}
	return fields
}

// Output is one generated artifact's content plus generation metadata.
// Model and ResponseID are set only by delegated generation.
type Output struct {
	Content     []byte
	Diagnostics []string
	Model       string
	ResponseID  string
	CacheHit    bool
}

// Generator produces artifact content from an IR slice. Implementations
// must be safe for concurrent use; the executor invokes independent steps
// from a worker pool.
type Generator interface {
	Generate(ctx context.Context, slice *ir.Slice, cfg StepConfig) (*Output, error)
}
