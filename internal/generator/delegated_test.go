package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dspec/internal/ir"
)

// fakeService counts calls and replies with canned content.
type fakeService struct {
	model   string
	calls   int
	content string
	err     error
}

func (s *fakeService) Model() string { return s.model }

func (s *fakeService) Generate(_ context.Context, req Request) (*Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Response{
		Content:    []byte(s.content),
		Model:      s.model,
		ResponseID: "resp-1",
	}, nil
}

type memCache struct {
	entries map[string]*Response
}

func newMemCache() *memCache { return &memCache{entries: map[string]*Response{}} }

func (c *memCache) GetResponse(key string) (*Response, error) { return c.entries[key], nil }
func (c *memCache) PutResponse(key string, resp *Response) error {
	c.entries[key] = resp
	return nil
}

func delegatedSlice(t *testing.T) *ir.Slice {
	t.Helper()
	slice, err := testSystem().Slice("component:Button")
	require.NoError(t, err)
	return slice
}

func TestDelegatedCachesResponse(t *testing.T) {
	svc := &fakeService{model: "gen-1", content: "export const Button = 1;"}
	cache := newMemCache()
	gen := NewDelegated(svc, cache)
	cfg := StepConfig{StepName: "button", Directive: "render Button"}

	first, err := gen.Generate(context.Background(), delegatedSlice(t), cfg)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, "gen-1", first.Model)
	assert.Equal(t, "resp-1", first.ResponseID)

	second, err := gen.Generate(context.Background(), delegatedSlice(t), cfg)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, 1, svc.calls, "cache hit must not re-invoke the service")
}

func TestDelegatedCacheKeyedByModel(t *testing.T) {
	cache := newMemCache()
	cfg := StepConfig{StepName: "button", Directive: "render Button"}

	one := &fakeService{model: "gen-1", content: "v1"}
	_, err := NewDelegated(one, cache).Generate(context.Background(), delegatedSlice(t), cfg)
	require.NoError(t, err)

	// Same slice and directive, different model: no replay.
	two := &fakeService{model: "gen-2", content: "v2"}
	out, err := NewDelegated(two, cache).Generate(context.Background(), delegatedSlice(t), cfg)
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Equal(t, 1, two.calls)
}

func TestDelegatedCacheKeyedByDirective(t *testing.T) {
	svc := &fakeService{model: "gen-1", content: "out"}
	cache := newMemCache()
	gen := NewDelegated(svc, cache)

	_, err := gen.Generate(context.Background(), delegatedSlice(t),
		StepConfig{StepName: "a", Directive: "render Button"})
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), delegatedSlice(t),
		StepConfig{StepName: "a", Directive: "render Button with docs"})
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Equal(t, 2, svc.calls)
}

func TestDelegatedServiceFailure(t *testing.T) {
	svc := &fakeService{model: "gen-1", err: errors.New("backend unavailable")}
	gen := NewDelegated(svc, nil)

	_, err := gen.Generate(context.Background(), delegatedSlice(t),
		StepConfig{StepName: "button", Directive: "render"})
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ErrService, ge.Code)
	assert.Equal(t, "button", ge.Step)
}

func TestDelegatedRequiresDirective(t *testing.T) {
	gen := NewDelegated(&fakeService{model: "gen-1"}, nil)
	_, err := gen.Generate(context.Background(), delegatedSlice(t), StepConfig{StepName: "x"})
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ErrService, ge.Code)
}
