package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runOnce drives the run command against the environment and requires a
// fully successful run.
func runOnce(t *testing.T, e *cliEnv) {
	t.Helper()
	_, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.NoError(t, err)
}

func TestHistoryListsVersionsNewestFirst(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)
	e.editToken(t, "#04191B", "#111111")
	runOnce(t, e)

	out, _, err := execute(t, NewHistoryCommand, "text", "tokens.css", "--db", e.dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "History for tokens.css (2 entries)")
	assert.Contains(t, out, "generated")
}

func TestHistoryJSON(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)

	out, _, err := execute(t, NewHistoryCommand, "json", "tokens.css", "--db", e.dbPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	entries, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "tokens.css", entry["output_path"])
	assert.Equal(t, "generated", entry["kind"])
}

func TestHistoryUnknownPath(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)

	out, _, err := execute(t, NewHistoryCommand, "text", "nope.css", "--db", e.dbPath)
	require.Error(t, err)
	assert.Contains(t, out, "no history for nope.css")
}

func TestHistoryMissingDatabase(t *testing.T) {
	out, _, err := execute(t, NewHistoryCommand, "text", "tokens.css",
		"--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no provenance database")
}

func TestRollbackRestoresPreviousVersion(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)
	e.editToken(t, "#04191B", "#111111")
	runOnce(t, e)
	require.Contains(t, e.artifact(t, "tokens.css"), "#111111")

	out, _, err := execute(t, NewRollbackCommand, "text",
		"tokens.css", "--db", e.dbPath, "--out", e.outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Rolled back tokens.css")
	assert.Contains(t, e.artifact(t, "tokens.css"), "#04191B")

	// History keeps all three entries; the rollback is an append.
	hist, _, err := execute(t, NewHistoryCommand, "text", "tokens.css", "--db", e.dbPath)
	require.NoError(t, err)
	assert.Contains(t, hist, "3 entries")
	assert.Contains(t, hist, "rollback")
}

func TestRollbackWithoutEarlierVersion(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)

	out, _, err := execute(t, NewRollbackCommand, "text",
		"tokens.css", "--db", e.dbPath, "--out", e.outDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no earlier version")
}

func TestEjectStopsPipelineOwnership(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)

	out, _, err := execute(t, NewEjectCommand, "text", "tokens.css", "--db", e.dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Ejected tokens.css")

	// The file is no longer restored or regenerated, even when deleted.
	require.NoError(t, os.Remove(filepath.Join(e.outDir, "tokens.css")))
	runOut, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.NoError(t, err)
	assert.Contains(t, runOut, "ejected")
	_, statErr := os.Stat(filepath.Join(e.outDir, "tokens.css"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestEjectUnknownPath(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)

	out, _, err := execute(t, NewEjectCommand, "text", "nope.css", "--db", e.dbPath)
	require.Error(t, err)
	assert.Contains(t, out, "no history for nope.css")
}

func TestOverrideThenRunKeepsContent(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)

	replacement := filepath.Join(t.TempDir(), "tokens.css")
	require.NoError(t, os.WriteFile(replacement, []byte("/* hand-tuned */\n"), 0o644))

	out, _, err := execute(t, NewOverrideCommand, "text",
		"tokens.css", "--db", e.dbPath, "--file", replacement)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Override recorded for tokens.css")

	runOut, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.NoError(t, err)
	assert.Contains(t, runOut, "overridden")
	assert.Equal(t, "/* hand-tuned */\n", e.artifact(t, "tokens.css"))
}

func TestOverrideConflictAfterSpecEdit(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)

	replacement := filepath.Join(t.TempDir(), "tokens.css")
	require.NoError(t, os.WriteFile(replacement, []byte("/* hand-tuned */\n"), 0o644))
	_, _, err := execute(t, NewOverrideCommand, "text",
		"tokens.css", "--db", e.dbPath, "--file", replacement)
	require.NoError(t, err)

	// Changed inputs would regenerate over the override: hard stop.
	e.editToken(t, "#04191B", "#111111")
	out, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E308")
}

func TestOverrideRemove(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)

	replacement := filepath.Join(t.TempDir(), "tokens.css")
	require.NoError(t, os.WriteFile(replacement, []byte("/* hand-tuned */\n"), 0o644))
	_, _, err := execute(t, NewOverrideCommand, "text",
		"tokens.css", "--db", e.dbPath, "--file", replacement)
	require.NoError(t, err)

	out, _, err := execute(t, NewOverrideCommand, "text",
		"tokens.css", "--db", e.dbPath, "--remove")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Removed override for tokens.css")

	// With the override gone, the pipeline reclaims the path.
	runOut, _, err := execute(t, NewRunCommand, "text", e.args()...)
	require.NoError(t, err)
	assert.Contains(t, runOut, "skipped")
}

func TestOverrideNeedsExistingArtifact(t *testing.T) {
	e := newCLIEnv(t)
	runOnce(t, e)

	replacement := filepath.Join(t.TempDir(), "tokens.css")
	require.NoError(t, os.WriteFile(replacement, []byte("x"), 0o644))

	out, _, err := execute(t, NewOverrideCommand, "text",
		"absent.css", "--db", e.dbPath, "--file", replacement)
	require.Error(t, err)
	assert.Contains(t, out, "no generated artifact at absent.css")
}
