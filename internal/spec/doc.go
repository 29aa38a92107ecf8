// Package spec models human-authored specification documents: token sets
// and component definitions written in YAML.
//
// Documents are read-only inputs to the pipeline and immutable per
// invocation. Loading is lenient - anything structurally parseable becomes a
// Document, and malformed content (bad types, floats, unknown fields) is
// reported by Validate as structured errors rather than thrown. This keeps
// the boundary contract simple: a run either fails to read a file at all
// (load error) or reports every problem the validator can find in one pass.
//
// Schema shape checking is delegated to an embedded CUE schema; cross-field
// constraints (default variant membership, enum defaults, duplicates) are
// checked in Go. Both report into the same ValidationResult.
package spec
