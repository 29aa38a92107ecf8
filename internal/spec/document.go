package spec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dspec/internal/ir"
)

// SchemaV1 is the only schema version this loader accepts.
const SchemaV1 = "dspec/v1"

// RefSigil prefixes a token reference inside a value string,
// e.g. "$colors.background.primary". A leading "$$" escapes a literal
// dollar sign.
const RefSigil = "$"

// Kind identifies the document type.
type Kind string

const (
	// KindTokens is a token-set document.
	KindTokens Kind = "tokens"
	// KindComponent is a component-definition document.
	KindComponent Kind = "component"
)

// Document is one named, versioned specification document.
// Exactly one of Tokens or Component is populated, per Kind.
type Document struct {
	Name   string
	Path   string // source file, for error reporting
	Kind   Kind
	Schema string // declared schema version

	Tokens    []TokenEntry
	Component *ComponentDef

	source []byte // raw file bytes, kept for CUE schema checking
}

// Source returns the raw document bytes.
func (d *Document) Source() []byte { return d.source }

// TokenEntry is one token declaration, addressed by its dotted path.
type TokenEntry struct {
	Path        string
	Type        string
	Value       RawValue
	Description string
	Line        int
}

// ComponentDef is the parsed form of a component document, before
// resolution. Style values may still be references.
type ComponentDef struct {
	Name           string
	Description    string
	Props          []PropDef
	DefaultVariant string
	Base           map[string]RawValue
	Variants       map[string]VariantDef
	Accessibility  *AccessibilityDef
	Tests          []TestDef
	Line           int
}

// PropDef is one typed component property declaration.
type PropDef struct {
	Name     string
	Type     string
	Required bool
	Default  *RawValue
	Enum     []string
	Line     int
}

// VariantDef holds one variant's style properties.
type VariantDef struct {
	Style map[string]RawValue
	Line  int
}

// AccessibilityDef carries accessibility declarations.
type AccessibilityDef struct {
	Role   string   `yaml:"role"`
	Checks []string `yaml:"checks"`
}

// TestDef declares a rendered test case.
type TestDef struct {
	Name  string
	Props map[string]RawValue
	Line  int
}

// RawValue is a value as authored: either a literal, a reference to a token
// path, or something the IR cannot represent (recorded in Bad and reported
// by Validate rather than failing the load).
type RawValue struct {
	Ref     string   // target token path, sigil stripped; empty if literal
	Literal ir.Value // nil if Ref or Bad is set
	Bad     string   // reason the value is unrepresentable (e.g. float)
	Line    int
}

// IsRef reports whether the value is an unresolved reference.
func (v RawValue) IsRef() bool { return v.Ref != "" }

// String renders the value for error messages.
func (v RawValue) String() string {
	switch {
	case v.Ref != "":
		return RefSigil + v.Ref
	case v.Bad != "":
		return "<invalid: " + v.Bad + ">"
	default:
		data, err := ir.MarshalValue(v.Literal)
		if err != nil {
			return "<unprintable>"
		}
		return string(data)
	}
}

// parseRawValue converts a YAML scalar/sequence/mapping node into a RawValue.
// Strings beginning with the reference sigil become references; "$$" escapes
// a literal dollar. Floats and nulls are captured as Bad, not errors.
func parseRawValue(node *yaml.Node) RawValue {
	rv := RawValue{Line: node.Line}

	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		s := node.Value
		if strings.HasPrefix(s, RefSigil+RefSigil) {
			rv.Literal = ir.String(s[1:]) // unescape "$$" -> "$"
			return rv
		}
		if strings.HasPrefix(s, RefSigil) {
			rv.Ref = s[1:]
			return rv
		}
		rv.Literal = ir.String(s)
		return rv
	}

	var raw any
	if err := node.Decode(&raw); err != nil {
		rv.Bad = err.Error()
		return rv
	}
	val, err := ir.FromGo(raw)
	if err != nil {
		rv.Bad = err.Error()
		return rv
	}
	rv.Literal = val
	return rv
}

// documentFile mirrors the top level of a spec document.
type documentFile struct {
	Schema    string    `yaml:"schema"`
	Kind      string    `yaml:"kind"`
	Name      string    `yaml:"name"`
	Tokens    yaml.Node `yaml:"tokens"`
	Component yaml.Node `yaml:"component"`
}

// Parse builds a Document from raw YAML bytes. Parse fails only when the
// bytes are not structurally valid YAML or the top-level shape is missing;
// content-level problems are left for Validate.
func Parse(path string, data []byte) (*Document, error) {
	var file documentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%s: parsing YAML: %w", path, err)
	}

	doc := &Document{
		Name:   file.Name,
		Path:   path,
		Kind:   Kind(file.Kind),
		Schema: file.Schema,
		source: data,
	}

	switch doc.Kind {
	case KindTokens:
		if file.Tokens.Kind != 0 {
			doc.Tokens = flattenTokens(&file.Tokens, nil)
		}
	case KindComponent:
		if file.Component.Kind != 0 {
			def, err := parseComponent(&file.Component, file.Name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			doc.Component = def
		}
	}

	return doc, nil
}

// flattenTokens walks a nested token tree and emits dotted-path entries.
// A mapping with a "value" key is a token; any other mapping is a group.
func flattenTokens(node *yaml.Node, prefix []string) []TokenEntry {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	if hasKey(node, "value") {
		entry := TokenEntry{
			Path: strings.Join(prefix, "."),
			Line: node.Line,
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			switch key.Value {
			case "type":
				entry.Type = val.Value
			case "value":
				entry.Value = parseRawValue(val)
			case "description":
				entry.Description = val.Value
			}
		}
		return []TokenEntry{entry}
	}

	var entries []TokenEntry
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		entries = append(entries, flattenTokens(val, append(prefix, key.Value))...)
	}
	return entries
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// parseComponent decodes the component block, keeping style values raw so
// references survive until resolution.
func parseComponent(node *yaml.Node, name string) (*ComponentDef, error) {
	var block struct {
		Description    string            `yaml:"description"`
		Props          []yaml.Node       `yaml:"props"`
		DefaultVariant string            `yaml:"defaultVariant"`
		Base           yaml.Node         `yaml:"base"`
		Variants       yaml.Node         `yaml:"variants"`
		Accessibility  *AccessibilityDef `yaml:"accessibility"`
		Tests          []yaml.Node       `yaml:"tests"`
	}
	if err := node.Decode(&block); err != nil {
		return nil, fmt.Errorf("decoding component block: %w", err)
	}

	def := &ComponentDef{
		Name:           name,
		Description:    block.Description,
		DefaultVariant: block.DefaultVariant,
		Accessibility:  block.Accessibility,
		Line:           node.Line,
	}

	for i := range block.Props {
		prop, err := parseProp(&block.Props[i])
		if err != nil {
			return nil, err
		}
		def.Props = append(def.Props, prop)
	}

	if block.Base.Kind == yaml.MappingNode {
		def.Base = parseStyleMap(&block.Base)
	}

	if block.Variants.Kind == yaml.MappingNode {
		def.Variants = make(map[string]VariantDef, len(block.Variants.Content)/2)
		for i := 0; i+1 < len(block.Variants.Content); i += 2 {
			key, val := block.Variants.Content[i], block.Variants.Content[i+1]
			def.Variants[key.Value] = VariantDef{
				Style: parseStyleMap(val),
				Line:  val.Line,
			}
		}
	}

	for i := range block.Tests {
		test, err := parseTest(&block.Tests[i])
		if err != nil {
			return nil, err
		}
		def.Tests = append(def.Tests, test)
	}

	return def, nil
}

func parseProp(node *yaml.Node) (PropDef, error) {
	var block struct {
		Name     string     `yaml:"name"`
		Type     string     `yaml:"type"`
		Required bool       `yaml:"required"`
		Default  yaml.Node  `yaml:"default"`
		Enum     []string   `yaml:"enum"`
	}
	if err := node.Decode(&block); err != nil {
		return PropDef{}, fmt.Errorf("decoding prop: %w", err)
	}

	prop := PropDef{
		Name:     block.Name,
		Type:     block.Type,
		Required: block.Required,
		Enum:     block.Enum,
		Line:     node.Line,
	}
	if !block.Default.IsZero() {
		rv := parseRawValue(&block.Default)
		prop.Default = &rv
	}
	return prop, nil
}

func parseStyleMap(node *yaml.Node) map[string]RawValue {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	style := make(map[string]RawValue, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		style[key.Value] = parseRawValue(val)
	}
	return style
}

func parseTest(node *yaml.Node) (TestDef, error) {
	var block struct {
		Name  string    `yaml:"name"`
		Props yaml.Node `yaml:"props"`
	}
	if err := node.Decode(&block); err != nil {
		return TestDef{}, fmt.Errorf("decoding test case: %w", err)
	}

	test := TestDef{Name: block.Name, Line: node.Line}
	if block.Props.Kind == yaml.MappingNode {
		test.Props = parseStyleMap(&block.Props)
	}
	return test, nil
}
