package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func pipelineCodes(errs []error) []string {
	var out []string
	for _, err := range errs {
		var pe *PipelineError
		if errors.As(err, &pe) {
			out = append(out, pe.Code)
		}
	}
	return out
}

func TestLoadValidDefinition(t *testing.T) {
	path := writeDefinition(t, `system:
  name: brutalist
  version: 1.0.0
steps:
  - name: tokens-css
    kind: static
    input: tokens
    template: templates/tokens.css.tmpl
    output: dist/tokens.css
  - name: button
    kind: delegated
    input: component:Button
    directive: Render the Button component
    output: components/{component}.tsx
    after: [tokens-css]
    optional: true
    retry:
      attempts: 3
      timeout: 30s
    validate: [nonempty]
`)

	def, errs := Load(path)
	require.Empty(t, errs)
	require.Len(t, def.Steps, 2)

	assert.Equal(t, "brutalist", def.System.Name)
	assert.Equal(t, filepath.Dir(path), def.Dir())

	button := def.Step("button")
	require.NotNil(t, button)
	assert.True(t, button.Optional)
	assert.Equal(t, 3, button.Retry.Attempts)
	assert.Equal(t, 30*time.Second, time.Duration(button.Retry.Timeout))
	assert.Equal(t, []string{"tokens-css"}, button.After)
}

func TestPreflightCollectsAllFindings(t *testing.T) {
	path := writeDefinition(t, `system:
  name: brutalist
  version: 1.0.0
steps:
  - name: a
    kind: static
    input: tokens
    template: t.tmpl
    output: out.css
  - name: a
    kind: mystery
    input: "token"
    output: out.css
  - name: b
    kind: static
    template: t.tmpl
    input: tokens
    output: b.css
    after: [ghost]
`)

	_, errs := Load(path)
	require.NotEmpty(t, errs)
	codes := pipelineCodes(errs)
	assert.Contains(t, codes, ErrStepName)    // duplicate "a"
	assert.Contains(t, codes, ErrStepKind)    // "mystery"
	assert.Contains(t, codes, ErrStepInput)   // "token" is not a selector
	assert.Contains(t, codes, ErrStepOutput)  // colliding out.css
	assert.Contains(t, codes, ErrUnknownAfter) // "ghost"
}

func TestPreflightDetectsDependencyCycle(t *testing.T) {
	path := writeDefinition(t, `system:
  name: brutalist
  version: 1.0.0
steps:
  - name: a
    kind: static
    input: tokens
    template: t.tmpl
    output: a.css
    after: [c]
  - name: b
    kind: static
    input: tokens
    template: t.tmpl
    output: b.css
    after: [a]
  - name: c
    kind: static
    input: tokens
    template: t.tmpl
    output: c.css
    after: [b]
`)

	_, errs := Load(path)
	require.Len(t, errs, 1)
	var pe *PipelineError
	require.ErrorAs(t, errs[0], &pe)
	assert.Equal(t, ErrDependencyCycle, pe.Code)
	assert.Contains(t, pe.Message, "a -> ")
}

func TestPreflightRequiresStepFields(t *testing.T) {
	path := writeDefinition(t, `system:
  name: brutalist
  version: 1.0.0
steps:
  - name: a
    kind: static
    input: tokens
    output: a.css
  - name: b
    kind: delegated
    input: components
    output: b.tsx
  - name: c
    kind: script
    input: all
    output: c.txt
`)

	_, errs := Load(path)
	codes := pipelineCodes(errs)
	assert.Len(t, codes, 3)
	for _, code := range codes {
		assert.Equal(t, ErrStepKind, code)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeDefinition(t, `system:
  name: brutalist
  version: 1.0.0
steps:
  - name: a
    kind: delegated
    input: components
    directive: render
    output: a.tsx
    retry:
      attempts: 2
      timeout: soon
`)

	_, errs := Load(path)
	require.Len(t, errs, 1)
	var pe *PipelineError
	require.ErrorAs(t, errs[0], &pe)
	assert.Equal(t, ErrDefinition, pe.Code)
	assert.Contains(t, pe.Message, "soon")
}

func TestLoadMissingFile(t *testing.T) {
	_, errs := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Len(t, errs, 1)
	var pe *PipelineError
	require.ErrorAs(t, errs[0], &pe)
	assert.Equal(t, ErrDefinition, pe.Code)
}
