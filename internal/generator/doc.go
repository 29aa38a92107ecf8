// Package generator produces artifact content from IR slices. One
// polymorphic contract covers all step kinds: deterministic template
// rendering, script execution, and generation delegated to an external
// service with cached, replayable responses. Validation gates check the
// produced content and report failures as generation errors so the
// executor's retry policy applies uniformly.
package generator
