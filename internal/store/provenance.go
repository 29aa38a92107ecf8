package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provenance entry kinds.
const (
	KindGenerated = "generated"
	KindRollback  = "rollback"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// ErrNotFound reports a missing row for lookups that require one.
var ErrNotFound = errors.New("store: not found")

// RunMeta identifies one pipeline invocation.
type RunMeta struct {
	SystemName      string
	SystemVersion   string
	SystemHash      string
	PipelineVersion string
}

// Entry is one provenance record: which step wrote which artifact to which
// path, under which invalidation key. Model and ResponseID are set for
// delegated steps only.
type Entry struct {
	ID              int64     `json:"id"`
	RunID           string    `json:"run_id"`
	Step            string    `json:"step"`
	OutputPath      string    `json:"output_path"`
	InvalidationKey string    `json:"invalidation_key"`
	SliceHash       string    `json:"slice_hash"`
	ConfigHash      string    `json:"config_hash"`
	ArtifactHash    string    `json:"artifact_hash"`
	Kind            string    `json:"kind"`
	Model           string    `json:"model,omitempty"`
	ResponseID      string    `json:"response_id,omitempty"`
	Skipped         bool      `json:"skipped,omitempty"`
	Ejected         bool      `json:"ejected,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// BeginRun opens a new run record and returns its ID. UUIDv7 keeps run IDs
// time-ordered, so the ledger sorts chronologically by ID alone.
func (s *Store) BeginRun(ctx context.Context, meta RunMeta) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, system_name, system_version, system_hash, pipeline_version)
		VALUES (?, ?, ?, ?, ?)
	`, id.String(), meta.SystemName, meta.SystemVersion, meta.SystemHash, meta.PipelineVersion)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id.String(), nil
}

// FinishRun records the run's final outcome.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET outcome = ? WHERE id = ?`, outcome, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Record appends a provenance entry and its artifact content atomically.
// Artifact bodies are content-addressed: rewriting identical content is a
// no-op insert (ON CONFLICT DO NOTHING), so skip markers and reruns stay
// cheap. The single writer lock serializes concurrent step completions.
func (s *Store) Record(ctx context.Context, e Entry, content []byte) error {
	if e.Kind == "" {
		e.Kind = KindGenerated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record provenance: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO artifacts (hash, content) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, e.ArtifactHash, content)
	if err != nil {
		return fmt.Errorf("record provenance: artifact: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO provenance
		(run_id, step, output_path, invalidation_key, slice_hash, config_hash,
		 artifact_hash, kind, model, response_id, skipped, ejected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.RunID, e.Step, e.OutputPath, e.InvalidationKey, e.SliceHash, e.ConfigHash,
		e.ArtifactHash, e.Kind, e.Model, e.ResponseID, e.Skipped, e.Ejected,
	)
	if err != nil {
		return fmt.Errorf("record provenance: entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record provenance: commit: %w", err)
	}

	// Drop any cached entry for this key; the next Lookup reloads the full
	// row (with its assigned ID and timestamp) from the database.
	s.lookup.Remove(e.InvalidationKey)
	return nil
}

const entryColumns = `id, run_id, step, output_path, invalidation_key, slice_hash,
	config_hash, artifact_hash, kind, model, response_id, skipped, ejected, created_at`

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.RunID, &e.Step, &e.OutputPath, &e.InvalidationKey,
		&e.SliceHash, &e.ConfigHash, &e.ArtifactHash, &e.Kind, &e.Model,
		&e.ResponseID, &e.Skipped, &e.Ejected, &e.CreatedAt)
	return e, err
}

// Lookup returns the latest provenance entry for an invalidation key, or
// ErrNotFound. Ejected entries never match: an ejected artifact is no longer
// the pipeline's to reuse. Hot keys are served from an in-memory LRU.
func (s *Store) Lookup(ctx context.Context, invalidationKey string) (Entry, error) {
	if e, ok := s.lookup.Get(invalidationKey); ok && !e.Ejected {
		return e, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM provenance
		WHERE invalidation_key = ? AND ejected = 0
		ORDER BY id DESC LIMIT 1
	`, invalidationKey)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("lookup provenance: %w", err)
	}

	s.lookup.Add(invalidationKey, e)
	return e, nil
}

// LatestForPath returns the newest provenance entry for an output path.
func (s *Store) LatestForPath(ctx context.Context, path string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM provenance
		WHERE output_path = ?
		ORDER BY id DESC LIMIT 1
	`, path)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("latest for path: %w", err)
	}
	return e, nil
}

// History returns every provenance entry for a path, newest first.
func (s *Store) History(ctx context.Context, path string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM provenance
		WHERE output_path = ?
		ORDER BY id DESC
	`, path)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return entries, nil
}

// ArtifactContent returns the stored bytes for an artifact hash.
func (s *Store) ArtifactContent(ctx context.Context, hash string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM artifacts WHERE hash = ?`, hash).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("artifact content: %w", err)
	}
	return content, nil
}

// Rollback restores the artifact content from back generations before the
// newest generated version by appending a rollback entry; nothing is
// deleted. Generations are counted over distinct generated contents, so
// rollback entries themselves do not shift the count and rolling back to
// the same target twice is a no-op. A fresh run row (metadata copied from
// the current entry's run) ties the rollback into the ledger.
func (s *Store) Rollback(ctx context.Context, path string, back int) (Entry, []byte, error) {
	if back < 1 {
		back = 1
	}

	latest, err := s.LatestForPath(ctx, path)
	if err != nil {
		return Entry{}, nil, err
	}

	generations, err := s.generations(ctx, path)
	if err != nil {
		return Entry{}, nil, fmt.Errorf("rollback %s: %w", path, err)
	}
	if back >= len(generations) {
		return Entry{}, nil, fmt.Errorf("rollback %s: no earlier version %d generation(s) back", path, back)
	}
	prev := generations[back]

	if prev.ArtifactHash == latest.ArtifactHash {
		content, err := s.ArtifactContent(ctx, latest.ArtifactHash)
		return latest, content, err
	}

	runID, err := s.cloneRun(ctx, latest.RunID)
	if err != nil {
		return Entry{}, nil, fmt.Errorf("rollback %s: %w", path, err)
	}

	entry := Entry{
		RunID:           runID,
		Step:            latest.Step,
		OutputPath:      path,
		InvalidationKey: prev.InvalidationKey,
		SliceHash:       prev.SliceHash,
		ConfigHash:      prev.ConfigHash,
		ArtifactHash:    prev.ArtifactHash,
		Kind:            KindRollback,
		Model:           prev.Model,
		ResponseID:      prev.ResponseID,
	}
	content, err := s.ArtifactContent(ctx, prev.ArtifactHash)
	if err != nil {
		return Entry{}, nil, fmt.Errorf("rollback %s: %w", path, err)
	}
	if err := s.Record(ctx, entry, content); err != nil {
		return Entry{}, nil, err
	}

	recorded, err := s.LatestForPath(ctx, path)
	if err != nil {
		return Entry{}, nil, err
	}
	return recorded, content, nil
}

// generations lists one entry per distinct generated content for a path,
// newest first. Consecutive entries with the same hash (skip markers,
// reruns) collapse into one generation; rollback entries are excluded.
func (s *Store) generations(ctx context.Context, path string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM provenance
		WHERE output_path = ? AND kind = ?
		ORDER BY id DESC
	`, path, KindGenerated)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	lastHash := ""
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if e.ArtifactHash != lastHash {
			out = append(out, e)
			lastHash = e.ArtifactHash
		}
	}
	return out, rows.Err()
}

// cloneRun opens a new run carrying the same system metadata as an
// existing one, already marked successful.
func (s *Store) cloneRun(ctx context.Context, fromRunID string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, system_name, system_version, system_hash, pipeline_version, outcome)
		SELECT ?, system_name, system_version, system_hash, pipeline_version, ?
		FROM runs WHERE id = ?
	`, id.String(), OutcomeSuccess, fromRunID)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MarkEjected transfers ownership of a path's artifacts out of the
// pipeline. History is retained; the entries just stop matching lookups,
// so later runs regenerate nothing for this path.
func (s *Store) MarkEjected(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE provenance SET ejected = 1 WHERE output_path = ?`, path)
	if err != nil {
		return fmt.Errorf("mark ejected: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark ejected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark ejected %s: %w", path, ErrNotFound)
	}

	// Ejection invalidates cached lookups for this path's keys.
	s.lookup.Purge()
	return nil
}
