package generator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/roach88/dspec/internal/ir"
)

// Static renders artifact content from a text template over an IR slice.
// Rendering is fully deterministic for a fixed slice and template: the
// slice's collections are already in canonical order and the only I/O is
// reading the template file.
type Static struct {
	root string // directory relative template paths resolve against
}

// NewStatic returns a template generator. Relative template paths in step
// configs resolve against root, typically the pipeline file's directory.
func NewStatic(root string) *Static {
	return &Static{root: root}
}

func (g *Static) Generate(_ context.Context, slice *ir.Slice, cfg StepConfig) (*Output, error) {
	if cfg.Template == "" {
		return nil, &GenerationError{Code: ErrTemplate, Step: cfg.StepName, Message: "static step has no template"}
	}

	path := cfg.Template
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.root, path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &GenerationError{Code: ErrTemplate, Step: cfg.StepName, Message: "reading template", Err: err}
	}

	tmpl, err := template.New(filepath.Base(cfg.Template)).
		Funcs(templateFuncs(slice)).
		Option("missingkey=error").
		Parse(string(src))
	if err != nil {
		return nil, &GenerationError{Code: ErrTemplate, Step: cfg.StepName, Message: "parsing template", Err: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, slice); err != nil {
		return nil, &GenerationError{Code: ErrTemplate, Step: cfg.StepName, Message: "executing template", Err: err}
	}
	return &Output{Content: buf.Bytes()}, nil
}

// templateFuncs exposes slice-aware helpers to templates:
//
//	{{ token "colors.background.primary" }}   token value by path
//	{{ value .Value }}                        render an IR value as text
func templateFuncs(slice *ir.Slice) template.FuncMap {
	return template.FuncMap{
		"value": renderValue,
		"token": func(path string) (string, error) {
			for _, t := range slice.Tokens {
				if t.Path == path {
					return renderValue(t.Value)
				}
			}
			return "", &GenerationError{Code: ErrTemplate, Message: "token " + path + " not in step input"}
		},
	}
}

// renderValue prints an IR value for artifact text. Scalars render bare;
// composites render as canonical JSON.
func renderValue(v ir.Value) (string, error) {
	switch t := v.(type) {
	case ir.String:
		return string(t), nil
	case ir.Int:
		return strconv.FormatInt(int64(t), 10), nil
	case ir.Bool:
		return strconv.FormatBool(bool(t)), nil
	default:
		data, err := ir.MarshalValue(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
