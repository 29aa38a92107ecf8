package spec

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/roach88/dspec/internal/ir"
)

// Validation error codes (E1xx) and warnings (W1xx).
const (
	ErrUnsupportedSchema = "E101" // schema version not dspec/v1
	ErrUnsupportedKind   = "E102" // kind not tokens/component
	ErrSchemaViolation   = "E103" // CUE schema violation
	ErrMissingName       = "E104" // document has no name

	ErrBadTokenType   = "E110" // token type not recognized
	ErrBadTokenValue  = "E111" // token value missing or unrepresentable
	ErrDuplicateToken = "E112" // same token path declared twice

	ErrDuplicateComponent = "E120" // same component name declared twice
	ErrBadPropType        = "E121" // prop type not recognized
	ErrDefaultNotInEnum   = "E122" // prop default outside its enum
	ErrBadDefaultVariant  = "E123" // defaultVariant names no variant
	ErrDuplicateProp      = "E124" // same prop name declared twice
	ErrBadRefSyntax       = "E125" // reference is not a dotted path
	ErrBadStyleValue      = "E126" // style value unrepresentable

	WarnUnknownField = "W101" // field outside the schema, tolerated
)

// ValidationError is one finding against a document. Warnings share the
// shape, distinguished by a W-prefixed code.
type ValidationError struct {
	Code    string
	File    string // document path
	Path    string // field path within the document
	Message string
	Line    int
}

func (e ValidationError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, loc, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, loc, e.Message)
}

// ValidationResult aggregates every finding across a document set.
// Errors invalidate the run; warnings never do.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// Valid reports whether the document set can proceed to resolution.
func (r *ValidationResult) Valid() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) errf(code string, doc *Document, path string, line int, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{
		Code:    code,
		File:    doc.Path,
		Path:    path,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

// refPathPattern matches a dotted reference path: identifier segments
// separated by single dots.
var refPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*(\.[A-Za-z_][A-Za-z0-9_-]*)*$`)

// ValidPropTypes enumerates the prop type vocabulary. Enum membership is a
// constraint on string props, not a type of its own.
var ValidPropTypes = map[string]bool{
	"string": true,
	"int":    true,
	"bool":   true,
	"array":  true,
	"object": true,
}

// Validate checks every document and collects all findings in one pass.
// It never stops at the first problem: a spec author gets the complete
// picture per invocation.
func Validate(docs []Document) *ValidationResult {
	res := &ValidationResult{}

	tokenPaths := map[string]string{}     // token path -> declaring file
	componentNames := map[string]string{} // component name -> declaring file

	for i := range docs {
		doc := &docs[i]

		if doc.Schema != SchemaV1 {
			res.errf(ErrUnsupportedSchema, doc, "schema", 0,
				"unsupported schema %q, want %q", doc.Schema, SchemaV1)
		}
		if doc.Name == "" {
			res.errf(ErrMissingName, doc, "name", 0, "document has no name")
		}

		schemaErrs, schemaWarns := CheckSchema(doc)
		for i := range schemaErrs {
			schemaErrs[i].File = doc.Path
		}
		for i := range schemaWarns {
			schemaWarns[i].File = doc.Path
		}
		res.Errors = append(res.Errors, schemaErrs...)
		res.Warnings = append(res.Warnings, schemaWarns...)

		switch doc.Kind {
		case KindTokens:
			validateTokens(res, doc, tokenPaths)
		case KindComponent:
			validateComponent(res, doc, componentNames)
		}
	}

	return res
}

func validateTokens(res *ValidationResult, doc *Document, seen map[string]string) {
	for _, tok := range doc.Tokens {
		fieldPath := "tokens." + tok.Path

		if prev, dup := seen[tok.Path]; dup {
			res.errf(ErrDuplicateToken, doc, fieldPath, tok.Line,
				"token %q already declared in %s", tok.Path, prev)
		} else {
			seen[tok.Path] = doc.Path
		}

		if !ir.ValidTokenTypes[tok.Type] {
			res.errf(ErrBadTokenType, doc, fieldPath, tok.Line,
				"unknown token type %q, want one of %s", tok.Type, tokenTypeList())
		}

		checkRawValue(res, doc, fieldPath+".value", tok.Value, ErrBadTokenValue)
	}
}

func validateComponent(res *ValidationResult, doc *Document, seen map[string]string) {
	def := doc.Component
	if def == nil {
		res.errf(ErrSchemaViolation, doc, "component", 0, "component block is missing")
		return
	}

	if prev, dup := seen[def.Name]; dup {
		res.errf(ErrDuplicateComponent, doc, "component", def.Line,
			"component %q already declared in %s", def.Name, prev)
	} else {
		seen[def.Name] = doc.Path
	}

	propNames := map[string]bool{}
	for _, prop := range def.Props {
		fieldPath := "component.props." + prop.Name

		if propNames[prop.Name] {
			res.errf(ErrDuplicateProp, doc, fieldPath, prop.Line,
				"prop %q already declared", prop.Name)
		}
		propNames[prop.Name] = true

		if !ValidPropTypes[prop.Type] {
			res.errf(ErrBadPropType, doc, fieldPath, prop.Line,
				"unknown prop type %q, want one of %s", prop.Type, propTypeList())
		}

		if prop.Default != nil {
			checkRawValue(res, doc, fieldPath+".default", *prop.Default, ErrBadTokenValue)
			if len(prop.Enum) > 0 {
				checkEnumDefault(res, doc, fieldPath, prop)
			}
		}
	}

	for _, rv := range sortedStyle(def.Base) {
		checkRawValue(res, doc, "component.base."+rv.key, rv.val, ErrBadStyleValue)
	}

	variantNames := make([]string, 0, len(def.Variants))
	for name := range def.Variants {
		variantNames = append(variantNames, name)
	}
	sort.Strings(variantNames)
	for _, name := range variantNames {
		variant := def.Variants[name]
		for _, rv := range sortedStyle(variant.Style) {
			checkRawValue(res, doc, "component.variants."+name+"."+rv.key, rv.val, ErrBadStyleValue)
		}
	}

	if def.DefaultVariant != "" {
		if _, ok := def.Variants[def.DefaultVariant]; !ok {
			res.errf(ErrBadDefaultVariant, doc, "component.defaultVariant", def.Line,
				"defaultVariant %q names no declared variant (have %v)", def.DefaultVariant, variantNames)
		}
	}

	for _, test := range def.Tests {
		for _, rv := range sortedStyle(test.Props) {
			checkRawValue(res, doc, "component.tests."+test.Name+"."+rv.key, rv.val, ErrBadTokenValue)
		}
	}
}

// checkRawValue reports unrepresentable values and malformed reference paths.
func checkRawValue(res *ValidationResult, doc *Document, fieldPath string, rv RawValue, badCode string) {
	switch {
	case rv.Bad != "":
		res.errf(badCode, doc, fieldPath, rv.Line, "invalid value: %s", rv.Bad)
	case rv.IsRef():
		if !refPathPattern.MatchString(rv.Ref) {
			res.errf(ErrBadRefSyntax, doc, fieldPath, rv.Line,
				"malformed reference %q, want a dotted path like colors.primary", RefSigil+rv.Ref)
		}
	case rv.Literal == nil:
		res.errf(badCode, doc, fieldPath, rv.Line, "value is missing")
	}
}

// checkEnumDefault verifies a default against its enum. Only string defaults
// can satisfy an enum; anything else is outside it by construction.
func checkEnumDefault(res *ValidationResult, doc *Document, fieldPath string, prop PropDef) {
	rv := *prop.Default
	if rv.Bad != "" || rv.IsRef() {
		return
	}
	s, ok := rv.Literal.(ir.String)
	if !ok {
		res.errf(ErrDefaultNotInEnum, doc, fieldPath+".default", rv.Line,
			"default %s is not a member of enum %v", rv.String(), prop.Enum)
		return
	}
	for _, member := range prop.Enum {
		if string(s) == member {
			return
		}
	}
	res.errf(ErrDefaultNotInEnum, doc, fieldPath+".default", rv.Line,
		"default %q is not a member of enum %v", string(s), prop.Enum)
}

type styleEntry struct {
	key string
	val RawValue
}

// sortedStyle returns map entries in key order so findings are deterministic.
func sortedStyle(m map[string]RawValue) []styleEntry {
	entries := make([]styleEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, styleEntry{key: k, val: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return entries
}

func tokenTypeList() string {
	names := make([]string, 0, len(ir.ValidTokenTypes))
	for name := range ir.ValidTokenTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprint(names)
}

func propTypeList() string {
	names := make([]string, 0, len(ValidPropTypes))
	for name := range ValidPropTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprint(names)
}
