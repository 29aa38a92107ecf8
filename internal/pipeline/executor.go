package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roach88/dspec/internal/generator"
	"github.com/roach88/dspec/internal/ir"
	"github.com/roach88/dspec/internal/store"
)

const defaultWorkers = 4

// Options configures an Executor.
type Options struct {
	OutDir  string            // artifact tree root
	Workers int               // worker pool size, default 4
	Service generator.Service // delegated backend; required iff a step is delegated
	Gates   generator.Gates   // nil selects the built-in gates
}

// Executor runs a pipeline definition against a built design system,
// consulting the provenance store to skip unchanged steps. Steps with no
// dependency relationship run concurrently on a worker pool; completion
// order does not affect the RunResult.
type Executor struct {
	def     *Definition
	system  *ir.DesignSystem
	store   *store.Store
	outDir  string
	workers int

	gens      map[string]generator.Generator
	stepGates map[string][]generator.Gate
}

// New wires an executor, resolving generators and gate names up front so
// misconfiguration fails before any step runs.
func New(def *Definition, system *ir.DesignSystem, st *store.Store, opts Options) (*Executor, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	gates := opts.Gates
	if gates == nil {
		gates = generator.DefaultGates()
	}

	x := &Executor{
		def:     def,
		system:  system,
		store:   st,
		outDir:  opts.OutDir,
		workers: workers,
		gens: map[string]generator.Generator{
			KindStatic: generator.NewStatic(def.Dir()),
			KindScript: generator.NewScript(def.Dir()),
		},
		stepGates: map[string][]generator.Gate{},
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		if step.Kind == KindDelegated && x.gens[KindDelegated] == nil {
			if opts.Service == nil {
				return nil, &PipelineError{Code: ErrStepKind, Step: step.Name,
					Message: "delegated step but no generation service configured"}
			}
			x.gens[KindDelegated] = generator.NewDelegated(opts.Service, x.store)
		}
		resolved, err := gates.Lookup(step.Validate)
		if err != nil {
			return nil, &PipelineError{Code: ErrStepKind, Step: step.Name, Message: err.Error()}
		}
		x.stepGates[step.Name] = resolved
	}

	return x, nil
}

// Run executes the pipeline. The returned RunResult accounts for every
// step; Run returns a non-nil error only for infrastructure failures
// (store unavailable, unhashable system), never for step failures.
func (x *Executor) Run(ctx context.Context) (*RunResult, error) {
	systemHash, err := ir.SystemHash(x.system)
	if err != nil {
		return nil, err
	}
	runID, err := x.store.BeginRun(ctx, store.RunMeta{
		SystemName:      x.def.System.Name,
		SystemVersion:   x.def.System.Version,
		SystemHash:      systemHash,
		PipelineVersion: ir.PipelineVersion,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	indeg := map[string]int{}
	dependents := map[string][]string{}
	for i := range x.def.Steps {
		st := &x.def.Steps[i]
		indeg[st.Name] = len(st.After)
		for _, dep := range st.After {
			dependents[dep] = append(dependents[dep], st.Name)
		}
	}

	type completion struct {
		name string
		res  StepResult
	}
	ready := make(chan *Step, len(x.def.Steps))
	done := make(chan completion, len(x.def.Steps))

	var wg sync.WaitGroup
	for i := 0; i < x.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for st := range ready {
				done <- completion{st.Name, x.runStep(ctx, runID, st)}
			}
		}()
	}

	results := map[string]StepResult{}
	pending := len(x.def.Steps)
	halted := false

	// release marks a step runnable once its predecessors resolved. A failed
	// optional predecessor still counts as completed, so its dependents run;
	// steps downstream of a required failure, a conflict, or a blocked step
	// resolve as blocked, which in turn releases their own dependents.
	var release func(name string)
	release = func(name string) {
		st := x.def.Step(name)
		blocked := halted
		if !blocked {
			for _, dep := range st.After {
				r, ok := results[dep]
				if !ok {
					continue
				}
				if r.Status == StatusBlocked ||
					(r.Status == StatusFailed && (!x.def.Step(dep).Optional || r.Conflict)) {
					blocked = true
					break
				}
			}
		}
		if !blocked {
			ready <- st
			return
		}
		results[name] = StepResult{Step: name, Status: StatusBlocked}
		pending--
		for _, d := range dependents[name] {
			indeg[d]--
			if indeg[d] == 0 {
				release(d)
			}
		}
	}

	for i := range x.def.Steps {
		if indeg[x.def.Steps[i].Name] == 0 {
			release(x.def.Steps[i].Name)
		}
	}

	for pending > 0 {
		c := <-done
		pending--
		results[c.name] = c.res

		if c.res.Status == StatusFailed {
			st := x.def.Step(c.name)
			if !st.Optional || c.res.Conflict {
				// Required failure (or an override conflict, which is a hard
				// stop regardless of policy): no further steps start.
				if !halted {
					halted = true
					cancel()
				}
			}
		}

		for _, d := range dependents[c.name] {
			indeg[d]--
			if indeg[d] == 0 {
				release(d)
			}
		}
	}
	close(ready)
	wg.Wait()

	result := &RunResult{RunID: runID, SystemHash: systemHash}
	anyFailed := false
	for i := range x.def.Steps {
		r := results[x.def.Steps[i].Name]
		if r.Status == StatusFailed || r.Status == StatusBlocked {
			anyFailed = true
		}
		result.Steps = append(result.Steps, r)
	}
	switch {
	case halted:
		result.Outcome = OutcomeFailed
	case anyFailed:
		result.Outcome = OutcomePartial
	default:
		result.Outcome = OutcomeSuccess
	}

	if err := x.store.FinishRun(context.WithoutCancel(ctx), runID, string(result.Outcome)); err != nil {
		return nil, err
	}
	return result, nil
}

func (x *Executor) runStep(ctx context.Context, runID string, st *Step) StepResult {
	res := StepResult{Step: st.Name}
	fail := func(err error) StepResult {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	if ctx.Err() != nil {
		res.Status = StatusBlocked
		return res
	}

	slice, err := x.system.Slice(st.Input)
	if err != nil {
		return fail(&PipelineError{Code: ErrStepInput, Step: st.Name, Message: err.Error()})
	}
	sliceHash, err := slice.Hash()
	if err != nil {
		return fail(err)
	}

	cfg := generator.StepConfig{
		StepName:  st.Name,
		Template:  st.Template,
		Directive: st.Directive,
		Command:   st.Command,
	}
	if st.Kind == KindStatic && st.Template != "" {
		cfg.TemplateHash = x.templateHash(st.Template)
	}
	configHash := ir.ConfigHash(cfg.Fields())
	key := ir.InvalidationKey(sliceHash, configHash)

	outPath, err := resolveOutput(st.Output, slice)
	if err != nil {
		return fail(&PipelineError{Code: ErrStepOutput, Step: st.Name, Message: err.Error()})
	}
	res.OutputPath = outPath
	absPath := filepath.Join(x.outDir, outPath)

	// Ejected paths are not the pipeline's anymore: no write, no record.
	if latest, err := x.store.LatestForPath(ctx, outPath); err == nil && latest.Ejected {
		res.Status = StatusEjected
		return res
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fail(err)
	}

	override, err := x.store.GetOverride(ctx, outPath)
	hasOverride := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fail(err)
	}
	prior, err := x.store.Lookup(ctx, key)
	hasPrior := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fail(err)
	}

	if hasOverride {
		hash := ir.ArtifactHash(override.Content)
		// The override stands when the step's inputs are unchanged: the
		// latest entry for this key is either the artifact the override was
		// taken against, or the override itself from an earlier run.
		if hasPrior && (prior.ArtifactHash == override.BaseHash || prior.ArtifactHash == hash) {
			if err := x.writeArtifact(absPath, override.Content); err != nil {
				return fail(err)
			}
			if err := x.record(ctx, runID, st, outPath, key, sliceHash, configHash, hash, override.Content, true, nil); err != nil {
				return fail(err)
			}
			res.Status = StatusOverridden
			res.ArtifactHash = hash
			return res
		}
		// Regeneration would clobber a manual override taken against
		// different content. Surface the conflict and stop; no merge.
		res.Conflict = true
		return fail(&PipelineError{Code: ErrConflict, Step: st.Name,
			Message: fmt.Sprintf("override for %s is based on a superseded artifact; re-take or remove the override", outPath)})
	}

	if hasPrior {
		content, err := x.store.ArtifactContent(ctx, prior.ArtifactHash)
		if err != nil {
			return fail(err)
		}
		// Restore the file if it drifted or is missing; either way no
		// regeneration happens.
		if disk, err := os.ReadFile(absPath); err != nil || ir.ArtifactHash(disk) != prior.ArtifactHash {
			if err := x.writeArtifact(absPath, content); err != nil {
				return fail(err)
			}
		}
		if err := x.record(ctx, runID, st, outPath, key, sliceHash, configHash, prior.ArtifactHash, content, true, &prior); err != nil {
			return fail(err)
		}
		res.Status = StatusSkipped
		res.ArtifactHash = prior.ArtifactHash
		res.Model = prior.Model
		return res
	}

	out, attempts, err := x.generate(ctx, st, slice, cfg)
	res.Attempts = attempts
	if err != nil {
		return fail(err)
	}
	res.Diagnostics = out.Diagnostics
	res.Model = out.Model
	res.CacheHit = out.CacheHit

	hash := ir.ArtifactHash(out.Content)
	if err := x.writeArtifact(absPath, out.Content); err != nil {
		return fail(err)
	}
	entry := store.Entry{
		RunID:           runID,
		Step:            st.Name,
		OutputPath:      outPath,
		InvalidationKey: key,
		SliceHash:       sliceHash,
		ConfigHash:      configHash,
		ArtifactHash:    hash,
		Model:           out.Model,
		ResponseID:      out.ResponseID,
	}
	if err := x.store.Record(context.WithoutCancel(ctx), entry, out.Content); err != nil {
		return fail(err)
	}
	res.Status = StatusGenerated
	res.ArtifactHash = hash
	return res
}

// templateHash fingerprints the template body so in-place edits change the
// step's invalidation key. An unreadable template hashes empty; generation
// reports the read failure itself.
func (x *Executor) templateHash(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(x.def.Dir(), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return ir.ArtifactHash(data)
}

// generate runs the step's generator with the retry policy: delegated steps
// get bounded attempts with a per-attempt timeout, everything else runs
// once. Gate failures count as generation failures.
func (x *Executor) generate(ctx context.Context, st *Step, slice *ir.Slice, cfg generator.StepConfig) (*generator.Output, int, error) {
	gen := x.gens[st.Kind]

	attempts := 1
	if st.Kind == KindDelegated && st.Retry.Attempts > 1 {
		attempts = st.Retry.Attempts
	}

	var out *generator.Output
	var genErr error
	attempt := 0
	for attempt < attempts {
		attempt++

		actx := ctx
		cancel := func() {}
		if st.Kind == KindDelegated && st.Retry.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, time.Duration(st.Retry.Timeout))
		}
		out, genErr = gen.Generate(actx, slice, cfg)
		if genErr == nil {
			genErr = generator.RunGates(actx, x.stepGates[st.Name], st.Name, out.Content)
		}
		cancel()

		if genErr == nil || ctx.Err() != nil {
			break
		}
	}
	if genErr != nil {
		return nil, attempt, genErr
	}
	return out, attempt, nil
}

// record writes a provenance entry; skip markers reuse generation metadata
// from the prior entry when available.
func (x *Executor) record(ctx context.Context, runID string, st *Step, outPath, key, sliceHash, configHash, hash string, content []byte, skipped bool, prior *store.Entry) error {
	entry := store.Entry{
		RunID:           runID,
		Step:            st.Name,
		OutputPath:      outPath,
		InvalidationKey: key,
		SliceHash:       sliceHash,
		ConfigHash:      configHash,
		ArtifactHash:    hash,
		Skipped:         skipped,
	}
	if prior != nil {
		entry.Model = prior.Model
		entry.ResponseID = prior.ResponseID
	}
	return x.store.Record(context.WithoutCancel(ctx), entry, content)
}

// resolveOutput substitutes path-template placeholders from the step's
// slice: {component} (single-component slices only), {system}, {version}.
func resolveOutput(tmpl string, slice *ir.Slice) (string, error) {
	out := tmpl
	if strings.Contains(out, "{component}") {
		single := slice.Single()
		if single == nil {
			return "", fmt.Errorf("output %q uses {component} but selector %q matches %d components",
				tmpl, slice.Selector, len(slice.Components))
		}
		out = strings.ReplaceAll(out, "{component}", single.Name)
	}
	out = strings.ReplaceAll(out, "{system}", slice.System)
	out = strings.ReplaceAll(out, "{version}", slice.Version)
	return out, nil
}

// writeArtifact writes content atomically: temp file in the target
// directory, then rename. A crashed or cancelled step never leaves a
// half-written artifact.
func (x *Executor) writeArtifact(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".dspec-*")
	if err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	defer os.Remove(tmp.Name()) // No-op after successful rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}
