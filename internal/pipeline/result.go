package pipeline

// Outcome classifies a completed run.
type Outcome string

const (
	// OutcomeSuccess: every step generated, skipped, or replayed an override.
	OutcomeSuccess Outcome = "success"
	// OutcomePartial: at least one optional step failed; the rest completed.
	OutcomePartial Outcome = "partial"
	// OutcomeFailed: a required step failed or an override conflict was
	// detected; dependent steps did not run.
	OutcomeFailed Outcome = "failed"
)

// StepStatus is one step's disposition within a run.
type StepStatus string

const (
	StatusGenerated  StepStatus = "generated"  // fresh content written
	StatusSkipped    StepStatus = "skipped"    // invalidation key matched, artifact reused
	StatusOverridden StepStatus = "overridden" // manual override content kept
	StatusEjected    StepStatus = "ejected"    // path is no longer pipeline-owned
	StatusFailed     StepStatus = "failed"
	StatusBlocked    StepStatus = "blocked" // never ran: a required predecessor failed
)

// StepResult records one step's resolution. Every step in the definition
// appears in RunResult.Steps exactly once, whatever order completions
// arrived in.
type StepResult struct {
	Step         string     `json:"step"`
	Status       StepStatus `json:"status"`
	OutputPath   string     `json:"output_path,omitempty"`
	ArtifactHash string     `json:"artifact_hash,omitempty"`
	Model        string     `json:"model,omitempty"`
	CacheHit     bool       `json:"cache_hit,omitempty"`
	Attempts     int        `json:"attempts,omitempty"`
	Diagnostics  []string   `json:"diagnostics,omitempty"`
	Error        string     `json:"error,omitempty"`
	// Conflict marks an override conflict, which halts the run even when
	// the step itself is optional.
	Conflict bool `json:"conflict,omitempty"`
}

// RunResult is the complete account of one pipeline run. It is only
// produced once every step has resolved.
type RunResult struct {
	RunID      string       `json:"run_id"`
	SystemHash string       `json:"system_hash"`
	Outcome    Outcome      `json:"outcome"`
	Steps      []StepResult `json:"steps"` // definition order
}

// Step returns the result for a named step, or nil.
func (r *RunResult) Step(name string) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Step == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Writes counts steps that wrote fresh content.
func (r *RunResult) Writes() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StatusGenerated {
			n++
		}
	}
	return n
}
