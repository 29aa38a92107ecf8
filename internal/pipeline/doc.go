// Package pipeline declares and executes generation pipelines: a YAML
// definition of steps over a built design system, preflight-checked, then
// run as a DAG on a worker pool. The executor consults the provenance
// store to skip steps whose invalidation key is unchanged, honors manual
// overrides (conflicts halt the run), applies retry policy to delegated
// steps, and writes artifacts atomically so cancellation never leaves
// partial files.
package pipeline
