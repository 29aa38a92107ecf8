package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/roach88/dspec/internal/ir"
)

// Script runs an external command as a generator. The IR slice is written
// to the command's stdin as JSON; stdout becomes the artifact content and
// stderr lines become diagnostics.
type Script struct {
	dir string // working directory for commands
}

func NewScript(dir string) *Script {
	return &Script{dir: dir}
}

func (g *Script) Generate(ctx context.Context, slice *ir.Slice, cfg StepConfig) (*Output, error) {
	if len(cfg.Command) == 0 {
		return nil, &GenerationError{Code: ErrScript, Step: cfg.StepName, Message: "script step has no command"}
	}

	payload, err := json.Marshal(slice)
	if err != nil {
		return nil, &GenerationError{Code: ErrScript, Step: cfg.StepName, Message: "serializing input slice", Err: err}
	}

	cmd := exec.CommandContext(ctx, cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = g.dir
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "command failed"
		}
		return nil, &GenerationError{Code: ErrScript, Step: cfg.StepName, Message: msg, Err: err}
	}

	out := &Output{Content: stdout.Bytes()}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		out.Diagnostics = strings.Split(msg, "\n")
	}
	return out, nil
}
