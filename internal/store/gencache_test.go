package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dspec/internal/generator"
	"github.com/roach88/dspec/internal/ir"
)

func TestGenCacheRoundTrip(t *testing.T) {
	s := openTestStore(t)

	key := ir.GenCacheKey("slice-hash", "directive-hash", "gen-1")
	resp := &generator.Response{
		Content:    []byte("export const Button = 1;"),
		Model:      "gen-1",
		ResponseID: "resp-42",
	}
	require.NoError(t, s.PutResponse(key, resp))

	got, err := s.GetResponse(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, resp.Content, got.Content)
	assert.Equal(t, "gen-1", got.Model)
	assert.Equal(t, "resp-42", got.ResponseID)
}

func TestGenCacheMissReturnsNil(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetResponse("absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGenCacheFirstWriteWins(t *testing.T) {
	s := openTestStore(t)

	key := ir.GenCacheKey("slice", "directive", "gen-1")
	require.NoError(t, s.PutResponse(key, &generator.Response{Content: []byte("first"), Model: "gen-1"}))
	require.NoError(t, s.PutResponse(key, &generator.Response{Content: []byte("second"), Model: "gen-1"}))

	got, err := s.GetResponse(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte("first"), got.Content, "replays must stay byte-identical")
}
