package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dspec/internal/ir"
)

func beginTestRun(t *testing.T, s *Store) string {
	t.Helper()
	runID, err := s.BeginRun(context.Background(), RunMeta{
		SystemName:      "brutalist",
		SystemVersion:   "1.0.0",
		SystemHash:      "sys-hash",
		PipelineVersion: ir.PipelineVersion,
	})
	require.NoError(t, err)
	return runID
}

func recordArtifact(t *testing.T, s *Store, runID, step, path, key string, content []byte) Entry {
	t.Helper()
	e := Entry{
		RunID:           runID,
		Step:            step,
		OutputPath:      path,
		InvalidationKey: key,
		SliceHash:       "slice-" + step,
		ConfigHash:      "config-" + step,
		ArtifactHash:    ir.ArtifactHash(content),
	}
	require.NoError(t, s.Record(context.Background(), e, content))
	return e
}

func TestRecordAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := beginTestRun(t, s)

	content := []byte("export const Button = 1;")
	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-1", content)

	e, err := s.Lookup(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "button", e.Step)
	assert.Equal(t, KindGenerated, e.Kind)
	assert.Equal(t, ir.ArtifactHash(content), e.ArtifactHash)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := s.ArtifactContent(ctx, e.ArtifactHash)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = s.Lookup(ctx, "key-absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupReturnsLatestEntry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := beginTestRun(t, s)

	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-1", []byte("v1"))
	second := recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-1", []byte("v2"))

	e, err := s.Lookup(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, second.ArtifactHash, e.ArtifactHash)
}

func TestIdenticalContentStoredOnce(t *testing.T) {
	s := openTestStore(t)
	runID := beginTestRun(t, s)

	content := []byte("shared")
	recordArtifact(t, s, runID, "a", "out/a.txt", "key-a", content)
	recordArtifact(t, s, runID, "b", "out/b.txt", "key-b", content)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM artifacts`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestHistoryNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := beginTestRun(t, s)

	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-1", []byte("v1"))
	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-2", []byte("v2"))

	entries, err := s.History(ctx, "components/Button.tsx")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ir.ArtifactHash([]byte("v2")), entries[0].ArtifactHash)
	assert.Equal(t, ir.ArtifactHash([]byte("v1")), entries[1].ArtifactHash)

	entries, err = s.History(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRollbackRestoresPreviousBytes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := beginTestRun(t, s)

	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-1", []byte("v1"))
	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-2", []byte("v2"))

	entry, content, err := s.Rollback(ctx, "components/Button.tsx", 1)
	require.NoError(t, err)
	assert.Equal(t, KindRollback, entry.Kind)
	assert.Equal(t, []byte("v1"), content)
	assert.Equal(t, ir.ArtifactHash([]byte("v1")), entry.ArtifactHash)

	// History keeps all three entries; nothing is deleted.
	entries, err := s.History(ctx, "components/Button.tsx")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRollbackIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := beginTestRun(t, s)

	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-1", []byte("v1"))
	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-2", []byte("v2"))

	first, firstContent, err := s.Rollback(ctx, "components/Button.tsx", 1)
	require.NoError(t, err)
	again, againContent, err := s.Rollback(ctx, "components/Button.tsx", 1)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID, "second rollback must be a no-op")
	assert.Equal(t, firstContent, againContent)
}

func TestRollbackSeveralGenerationsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := beginTestRun(t, s)

	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-1", []byte("v1"))
	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-2", []byte("v2"))
	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-3", []byte("v3"))

	entry, content, err := s.Rollback(ctx, "components/Button.tsx", 2)
	require.NoError(t, err)
	assert.Equal(t, KindRollback, entry.Kind)
	assert.Equal(t, []byte("v1"), content)

	// Asking for more generations than exist is an error.
	_, _, err = s.Rollback(ctx, "components/Button.tsx", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no earlier version")
}

func TestRollbackWithoutEarlierVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := beginTestRun(t, s)

	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-1", []byte("v1"))

	_, _, err := s.Rollback(ctx, "components/Button.tsx", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no earlier version")

	_, _, err = s.Rollback(ctx, "unknown", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkEjectedStopsLookups(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := beginTestRun(t, s)

	recordArtifact(t, s, runID, "button", "components/Button.tsx", "key-1", []byte("v1"))
	require.NoError(t, s.MarkEjected(ctx, "components/Button.tsx"))

	_, err := s.Lookup(ctx, "key-1")
	assert.ErrorIs(t, err, ErrNotFound, "ejected artifacts are not reusable")

	// History is retained as record.
	entries, err := s.History(ctx, "components/Button.tsx")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Ejected)

	err = s.MarkEjected(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinishRunRecordsOutcome(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := beginTestRun(t, s)

	require.NoError(t, s.FinishRun(ctx, runID, OutcomeSuccess))

	var outcome string
	require.NoError(t, s.db.QueryRow(
		`SELECT outcome FROM runs WHERE id = ?`, runID).Scan(&outcome))
	assert.Equal(t, OutcomeSuccess, outcome)
}
