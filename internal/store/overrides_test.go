package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dspec/internal/ir"
)

func TestOverrideRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := []byte("generated content")
	override := Override{
		OutputPath: "components/Button.tsx",
		BaseHash:   ir.ArtifactHash(base),
		Content:    []byte("hand-tuned content"),
	}
	require.NoError(t, s.PutOverride(ctx, override))

	got, err := s.GetOverride(ctx, "components/Button.tsx")
	require.NoError(t, err)
	assert.Equal(t, override.BaseHash, got.BaseHash)
	assert.Equal(t, override.Content, got.Content)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetOverride(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOverrideReplacement(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := Override{OutputPath: "a.txt", BaseHash: "h1", Content: []byte("one")}
	require.NoError(t, s.PutOverride(ctx, first))

	second := Override{OutputPath: "a.txt", BaseHash: "h2", Content: []byte("two")}
	require.NoError(t, s.PutOverride(ctx, second))

	got, err := s.GetOverride(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.BaseHash)
	assert.Equal(t, []byte("two"), got.Content)
}

func TestDeleteOverride(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutOverride(ctx, Override{
		OutputPath: "a.txt", BaseHash: "h1", Content: []byte("one"),
	}))
	require.NoError(t, s.DeleteOverride(ctx, "a.txt"))

	_, err := s.GetOverride(ctx, "a.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing override is not an error.
	assert.NoError(t, s.DeleteOverride(ctx, "a.txt"))
}
