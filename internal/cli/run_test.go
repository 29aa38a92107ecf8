package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliPipelineYAML = `system:
  name: brutalist
  version: 1.0.0
steps:
  - name: tokens-css
    kind: static
    input: tokens
    template: templates/tokens.css.tmpl
    output: tokens.css
`

// cliEnv is one complete CLI workspace: specs, pipeline, templates,
// output directory, and database path.
type cliEnv struct {
	specs    string
	pipeline string
	outDir   string
	dbPath   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	root := t.TempDir()
	specs := writeSpecs(t, root)

	tmplDir := filepath.Join(root, "templates")
	require.NoError(t, os.MkdirAll(tmplDir, 0o755))
	tmpl := "{{ range .Tokens }}--{{ .Path }}: {{ value .Value }};\n{{ end }}"
	require.NoError(t, os.WriteFile(filepath.Join(tmplDir, "tokens.css.tmpl"), []byte(tmpl), 0o644))

	pipeline := filepath.Join(root, "pipeline.yaml")
	require.NoError(t, os.WriteFile(pipeline, []byte(cliPipelineYAML), 0o644))

	return &cliEnv{
		specs:    specs,
		pipeline: pipeline,
		outDir:   filepath.Join(root, "dist"),
		dbPath:   filepath.Join(root, "dspec.db"),
	}
}

func (e *cliEnv) args(extra ...string) []string {
	base := []string{e.specs, "--pipeline", e.pipeline, "--out", e.outDir, "--db", e.dbPath}
	return append(base, extra...)
}

func (e *cliEnv) artifact(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.outDir, rel))
	require.NoError(t, err)
	return string(data)
}

// editToken rewrites the token fixture so the next run sees changed inputs.
func (e *cliEnv) editToken(t *testing.T, old, new string) {
	t.Helper()
	path := filepath.Join(e.specs, "tokens.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := strings.ReplaceAll(string(data), old, new)
	require.NotEqual(t, string(data), edited)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
}

func TestRunGeneratesArtifacts(t *testing.T) {
	e := newCLIEnv(t)

	out, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "generated")
	assert.Contains(t, e.artifact(t, "tokens.css"), "--colors.background.primary: #04191B;")
}

func TestRunSecondInvocationSkips(t *testing.T) {
	e := newCLIEnv(t)

	_, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.NoError(t, err)

	out, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped")
	assert.NotContains(t, out, "generated")
}

func TestRunRegeneratesAfterSpecEdit(t *testing.T) {
	e := newCLIEnv(t)

	_, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.NoError(t, err)

	e.editToken(t, "#04191B", "#111111")
	out, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.NoError(t, err)
	assert.Contains(t, out, "generated")
	assert.Contains(t, e.artifact(t, "tokens.css"), "#111111")
}

func TestRunJSON(t *testing.T) {
	e := newCLIEnv(t)

	out, _, err := execute(t, NewRunCommand, "json", e.args()...)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["run_id"])
	assert.Equal(t, "success", data["outcome"])
}

func TestRunFailedStepExitCode(t *testing.T) {
	e := newCLIEnv(t)
	require.NoError(t, os.Remove(strings.Replace(e.pipeline, "pipeline.yaml", "templates/tokens.css.tmpl", 1)))

	out, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "E310")
}

func TestRunRejectsBadPipelineDefinition(t *testing.T) {
	e := newCLIEnv(t)
	require.NoError(t, os.WriteFile(e.pipeline, []byte(`system:
  name: brutalist
  version: 1.0.0
steps:
  - name: a
    kind: static
    input: tokens
    template: t.tmpl
    output: a.css
    after: [a]
`), 0o644))

	out, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "pipeline preflight failed")
}
