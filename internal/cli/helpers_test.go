package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const cliTokensYAML = `schema: dspec/v1
kind: tokens
name: brutalist-tokens
tokens:
  colors:
    background:
      primary:
        type: color
        value: "#04191B"
  spacing:
    md:
      type: dimension
      value: 16px
`

const cliComponentYAML = `schema: dspec/v1
kind: component
name: Button
component:
  props:
    - name: label
      type: string
      required: true
  defaultVariant: primary
  variants:
    primary:
      backgroundColor: $colors.background.primary
    secondary:
      backgroundColor: transparent
`

// writeSpecs lays out a valid two-document spec directory under root.
func writeSpecs(t *testing.T, root string) string {
	t.Helper()
	specs := filepath.Join(root, "specs")
	require.NoError(t, os.MkdirAll(specs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(specs, "tokens.yaml"), []byte(cliTokensYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(specs, "button.yaml"), []byte(cliComponentYAML), 0o644))
	return specs
}

// execute builds a fresh command, runs it with captured writers, and
// returns stdout, stderr, and the command error.
func execute(t *testing.T, build func(*RootOptions) *cobra.Command, format string, args ...string) (string, string, error) {
	t.Helper()
	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := build(&RootOptions{Format: format})
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}
