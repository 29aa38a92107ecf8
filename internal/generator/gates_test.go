package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateChecks(t *testing.T) {
	tests := []struct {
		name    string
		gate    string
		content string
		pass    bool
	}{
		{"valid json", "json", `{"a": 1}`, true},
		{"invalid json", "json", `{"a":`, false},
		{"valid yaml", "yaml", "a: 1\nb: [2, 3]\n", true},
		{"invalid yaml", "yaml", "a: [unclosed", false},
		{"nonempty", "nonempty", "content", true},
		{"whitespace only", "nonempty", "  \n\t", false},
	}

	gates := DefaultGates()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, ok := gates[tt.gate]
			require.True(t, ok)
			err := gate.Check(context.Background(), []byte(tt.content))
			if tt.pass {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGatesLookup(t *testing.T) {
	gates := DefaultGates()

	resolved, err := gates.Lookup([]string{"json", "nonempty"})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "json", resolved[0].Name())

	_, err = gates.Lookup([]string{"typescript"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "typescript")
}

func TestRunGatesReportsGenerationError(t *testing.T) {
	gates, err := DefaultGates().Lookup([]string{"nonempty", "json"})
	require.NoError(t, err)

	err = RunGates(context.Background(), gates, "tokens-json", []byte("not json"))
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ErrGate, ge.Code)
	assert.Equal(t, "tokens-json", ge.Step)
	assert.Contains(t, ge.Message, "json")

	assert.NoError(t, RunGates(context.Background(), gates, "tokens-json", []byte(`{"ok": true}`)))
}

func TestCommandGate(t *testing.T) {
	pass := CommandGate{GateName: "noop", Argv: []string{"true"}}
	assert.NoError(t, pass.Check(context.Background(), []byte("x")))

	fail := CommandGate{GateName: "reject", Argv: []string{"false"}}
	assert.Error(t, fail.Check(context.Background(), []byte("x")))
}
