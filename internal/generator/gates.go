package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Gate checks a generated artifact's content after any generator, static or
// delegated. A failing gate is a generator failure for retry/halt purposes.
type Gate interface {
	Name() string
	Check(ctx context.Context, content []byte) error
}

// Gates is a named gate registry.
type Gates map[string]Gate

// DefaultGates returns the built-in syntactic gates.
func DefaultGates() Gates {
	return Gates{
		"json":     jsonGate{},
		"yaml":     yamlGate{},
		"nonempty": nonEmptyGate{},
	}
}

// Register adds a gate, replacing any existing gate of the same name.
func (g Gates) Register(gate Gate) { g[gate.Name()] = gate }

// Names returns the registered gate names, sorted.
func (g Gates) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a list of gate names from a step definition.
func (g Gates) Lookup(names []string) ([]Gate, error) {
	gates := make([]Gate, 0, len(names))
	for _, name := range names {
		gate, ok := g[name]
		if !ok {
			return nil, fmt.Errorf("unknown validation gate %q (have %v)", name, g.Names())
		}
		gates = append(gates, gate)
	}
	return gates, nil
}

// RunGates applies gates in order and fails on the first rejection.
func RunGates(ctx context.Context, gates []Gate, step string, content []byte) error {
	for _, gate := range gates {
		if err := gate.Check(ctx, content); err != nil {
			return &GenerationError{
				Code:    ErrGate,
				Step:    step,
				Message: "gate " + gate.Name() + " rejected output",
				Err:     err,
			}
		}
	}
	return nil
}

type jsonGate struct{}

func (jsonGate) Name() string { return "json" }
func (jsonGate) Check(_ context.Context, content []byte) error {
	if !json.Valid(content) {
		return fmt.Errorf("content is not valid JSON")
	}
	return nil
}

type yamlGate struct{}

func (yamlGate) Name() string { return "yaml" }
func (yamlGate) Check(_ context.Context, content []byte) error {
	var v any
	if err := yaml.Unmarshal(content, &v); err != nil {
		return fmt.Errorf("content is not valid YAML: %w", err)
	}
	return nil
}

type nonEmptyGate struct{}

func (nonEmptyGate) Name() string { return "nonempty" }
func (nonEmptyGate) Check(_ context.Context, content []byte) error {
	if len(bytes.TrimSpace(content)) == 0 {
		return fmt.Errorf("content is empty")
	}
	return nil
}

// CommandGate pipes content through an external checker (type-checker,
// linter, test runner). Exit status decides pass/fail; stderr becomes the
// failure detail.
type CommandGate struct {
	GateName string
	Argv     []string
	Dir      string
}

func (g CommandGate) Name() string { return g.GateName }

func (g CommandGate) Check(ctx context.Context, content []byte) error {
	if len(g.Argv) == 0 {
		return fmt.Errorf("gate %q has no command", g.GateName)
	}
	cmd := exec.CommandContext(ctx, g.Argv[0], g.Argv[1:]...)
	cmd.Dir = g.Dir
	cmd.Stdin = bytes.NewReader(content)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return err
		}
		return fmt.Errorf("%s: %w", msg, err)
	}
	return nil
}
