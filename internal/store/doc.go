// Package store persists the provenance ledger behind incremental builds:
// which step produced which artifact from which inputs, plus overrides and
// cached delegated-generation responses.
//
// Storage is SQLite in WAL mode with an embedded schema and PRAGMA
// user_version migrations. The ledger is append-only: regeneration
// supersedes artifacts with new rows, rollback appends an entry pointing at
// superseded content, and ejection flips a flag while retaining history.
// All writes go through a single writer lock.
package store
