package spec

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE string

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
)

// compiledSchema compiles the embedded schema on first use and reuses the
// context and value for every later check.
func compiledSchema() (*cue.Context, cue.Value) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		schemaValue = schemaCtx.CompileString(schemaCUE)
		if err := schemaValue.Err(); err != nil {
			// The schema is embedded; failure here is a programming error.
			panic(fmt.Sprintf("embedded schema.cue does not compile: %v", err))
		}
	})
	return schemaCtx, schemaValue
}

// CheckSchema validates a document's shape against the embedded CUE schema.
// Uses the CUE SDK's Go API directly (not a CLI subprocess): the YAML source
// is extracted into a CUE value and unified with the schema definition for
// the document's kind.
//
// Returns hard errors and warnings separately. "Field not allowed" findings
// are warnings: unknown fields tolerate schema evolution and must not fail
// a run.
func CheckSchema(doc *Document) (errs, warnings []ValidationError) {
	defName, ok := schemaDefFor(doc.Kind)
	if !ok {
		return []ValidationError{{
			Code:    ErrUnsupportedKind,
			Path:    "kind",
			Message: fmt.Sprintf("unsupported document kind %q, must be %q or %q", doc.Kind, KindTokens, KindComponent),
		}}, nil
	}

	ctx, schema := compiledSchema()

	def := schema.LookupPath(cue.ParsePath(defName))
	if err := def.Err(); err != nil {
		panic(fmt.Sprintf("embedded schema.cue missing %s: %v", defName, err))
	}

	file, err := cueyaml.Extract(doc.Path, doc.source)
	if err != nil {
		return []ValidationError{{
			Code:    ErrCodeParse,
			Message: fmt.Sprintf("extracting YAML: %v", err),
		}}, nil
	}

	data := ctx.BuildFile(file)
	if err := data.Err(); err != nil {
		return cueErrorsToValidation(err, nil), nil
	}

	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		for _, ve := range cueErrorsToValidation(err, isUnknownField) {
			if ve.Code == WarnUnknownField {
				warnings = append(warnings, ve)
			} else {
				errs = append(errs, ve)
			}
		}
	}
	return errs, warnings
}

func schemaDefFor(kind Kind) (string, bool) {
	switch kind {
	case KindTokens:
		return "#TokensDoc", true
	case KindComponent:
		return "#ComponentDoc", true
	default:
		return "", false
	}
}

// isUnknownField classifies a CUE message as a closed-struct violation.
func isUnknownField(msg string) bool {
	return strings.Contains(msg, "field not allowed")
}

// cueErrorsToValidation converts a CUE error list into ValidationErrors with
// document field paths and source lines. Entries matching warnClassifier are
// returned in the error slice tagged with the warning code; the caller is
// expected to have passed nil when no warning split is wanted.
func cueErrorsToValidation(err error, warnClassifier func(string) bool) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Code:    ErrSchemaViolation,
			Path:    strings.Join(e.Path(), "."),
			Message: e.Error(),
		}
		if pos := e.Position(); pos.IsValid() {
			ve.Line = pos.Line()
		}
		if warnClassifier != nil && warnClassifier(e.Error()) {
			ve.Code = WarnUnknownField
		}
		out = append(out, ve)
	}
	return out
}
