// Package ir defines the intermediate representation for a compiled design
// system: the fully resolved, platform-agnostic model of tokens and
// components that generators consume.
//
// The IR is the only input generators may read. It is built fresh per
// pipeline invocation, is immutable during generation, and contains no
// unresolved references.
//
// Two properties are load-bearing for the rest of the system:
//
//  1. Determinism. Identical resolved input always yields structurally
//     identical IR, independent of input document ordering. Collections are
//     canonicalized (lexicographic by name/path) at every level.
//  2. Canonical hashing. Content-addressed hashes over RFC 8785 canonical
//     JSON drive the provenance tracker's invalidation keys. Nondeterminism
//     here would cause spurious rebuilds or missed invalidations.
//
// Floats are forbidden in IR values: they break cross-platform hash
// stability. Numeric design values are either integers or strings
// (e.g. "0.5rem").
package ir
