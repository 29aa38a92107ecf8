package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dspec/internal/ir"
	"github.com/roach88/dspec/internal/spec"
)

func parseDoc(t *testing.T, path, content string) spec.Document {
	t.Helper()
	doc, err := spec.Parse(path, []byte(content))
	require.NoError(t, err)
	return *doc
}

func TestResolveFollowsReferenceChains(t *testing.T) {
	docs := []spec.Document{parseDoc(t, "tokens.yaml", `schema: dspec/v1
kind: tokens
name: chain
tokens:
  colors:
    base:
      type: color
      value: "#04191B"
    surface:
      type: color
      value: $colors.base
    overlay:
      type: color
      value: $colors.surface
`)}

	res, errs := Resolve(docs)
	require.Empty(t, errs)

	for _, path := range []string{"colors.base", "colors.surface", "colors.overlay"} {
		v, ok := res.Lookup(path)
		require.True(t, ok, path)
		assert.Equal(t, ir.String("#04191B"), v)
	}
}

func TestResolveDanglingTokenReference(t *testing.T) {
	docs := []spec.Document{parseDoc(t, "tokens.yaml", `schema: dspec/v1
kind: tokens
name: dangling
tokens:
  colors:
    surface:
      type: color
      value: $colors.missing
`)}

	res, errs := Resolve(docs)
	require.Len(t, errs, 1)

	var re *ResolveError
	require.ErrorAs(t, errs[0], &re)
	assert.Equal(t, ErrDanglingRef, re.Code)
	assert.Equal(t, "tokens.colors.surface", re.Location)
	assert.Contains(t, re.Message, "$colors.missing")

	_, ok := res.Lookup("colors.surface")
	assert.False(t, ok)
	assert.True(t, res.Declared["colors.surface"])
}

func TestResolveReportsFullCycle(t *testing.T) {
	docs := []spec.Document{parseDoc(t, "tokens.yaml", `schema: dspec/v1
kind: tokens
name: cyclic
tokens:
  colors:
    a:
      type: color
      value: $colors.b
    b:
      type: color
      value: $colors.c
    c:
      type: color
      value: $colors.a
`)}

	_, errs := Resolve(docs)
	require.Len(t, errs, 1, "a cycle is reported once, not per member")

	var re *ResolveError
	require.ErrorAs(t, errs[0], &re)
	assert.Equal(t, ErrRefCycle, re.Code)
	assert.Equal(t, "colors.a -> colors.b -> colors.c -> colors.a",
		re.Message[len("token reference cycle: "):])
}

func TestResolveSelfReference(t *testing.T) {
	docs := []spec.Document{parseDoc(t, "tokens.yaml", `schema: dspec/v1
kind: tokens
name: selfref
tokens:
  colors:
    a:
      type: color
      value: $colors.a
`)}

	_, errs := Resolve(docs)
	require.Len(t, errs, 1)

	var re *ResolveError
	require.ErrorAs(t, errs[0], &re)
	assert.Equal(t, ErrRefCycle, re.Code)
	assert.Contains(t, re.Message, "colors.a -> colors.a")
}

func TestResolveCycleMembersDoNotResolve(t *testing.T) {
	docs := []spec.Document{parseDoc(t, "tokens.yaml", `schema: dspec/v1
kind: tokens
name: mixed
tokens:
  colors:
    a:
      type: color
      value: $colors.b
    b:
      type: color
      value: $colors.a
    ok:
      type: color
      value: "#FFFFFF"
`)}

	res, errs := Resolve(docs)
	require.Len(t, errs, 1)

	_, ok := res.Lookup("colors.a")
	assert.False(t, ok)
	_, ok = res.Lookup("colors.b")
	assert.False(t, ok)

	v, ok := res.Lookup("colors.ok")
	require.True(t, ok)
	assert.Equal(t, ir.String("#FFFFFF"), v)
}
