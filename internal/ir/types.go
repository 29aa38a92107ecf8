package ir

import "sort"

// DesignSystem is the fully resolved model for one design-system version.
// Tokens are sorted by path and components by name; nested collections are
// likewise canonicalized. Construction happens in internal/compiler; callers
// must treat the value as immutable.
type DesignSystem struct {
	Name       string      `json:"name"`
	Version    string      `json:"version"`
	Tokens     []Token     `json:"tokens"`
	Components []Component `json:"components"`
}

// Token is a named design value. After resolution Value is always literal.
type Token struct {
	Path        string `json:"path"` // dotted, e.g. "colors.background.primary"
	Type        string `json:"type"` // one of ValidTokenTypes
	Value       Value  `json:"value"`
	Description string `json:"description,omitempty"`
}

// ValidTokenTypes defines the allowed token type tags.
var ValidTokenTypes = map[string]bool{
	"color":      true,
	"dimension":  true,
	"duration":   true,
	"fontFamily": true,
	"fontWeight": true,
	"number":     true,
	"shadow":     true,
	"string":     true,
	"typography": true,
}

// Component describes a single generatable unit.
type Component struct {
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Props          []Prop         `json:"props"` // declaration order preserved
	Base           []StyleRule    `json:"base,omitempty"`
	Variants       []Variant      `json:"variants"` // sorted by name
	DefaultVariant string         `json:"default_variant,omitempty"`
	Accessibility  *Accessibility `json:"accessibility,omitempty"`
	Tests          []TestCase     `json:"tests,omitempty"`
}

// Prop is one typed component property.
type Prop struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // string|int|bool|array|object
	Required bool     `json:"required,omitempty"`
	Default  Value    `json:"default,omitempty"`
	Enum     []string `json:"enum,omitempty"`
}

// Variant maps a variant name to its style rules.
type Variant struct {
	Name  string      `json:"name"`
	Style []StyleRule `json:"style"` // sorted by property
}

// StyleRule is one resolved style property. Value is always literal.
type StyleRule struct {
	Property string `json:"property"` // e.g. "backgroundColor"
	Value    Value  `json:"value"`
}

// Accessibility carries a component's accessibility declarations.
type Accessibility struct {
	Role   string   `json:"role,omitempty"`
	Checks []string `json:"checks,omitempty"` // sorted
}

// TestCase declares one rendered test case for a component.
type TestCase struct {
	Name  string `json:"name"`
	Props Object `json:"props,omitempty"`
}

// Variant lookup helpers.

// VariantNames returns the component's variant names in sorted order.
func (c *Component) VariantNames() []string {
	names := make([]string, len(c.Variants))
	for i, v := range c.Variants {
		names[i] = v.Name
	}
	return names
}

// Variant returns the named variant, or nil if absent.
func (c *Component) Variant(name string) *Variant {
	for i := range c.Variants {
		if c.Variants[i].Name == name {
			return &c.Variants[i]
		}
	}
	return nil
}

// Component returns the named component, or nil if absent.
func (ds *DesignSystem) Component(name string) *Component {
	for i := range ds.Components {
		if ds.Components[i].Name == name {
			return &ds.Components[i]
		}
	}
	return nil
}

// Token returns the token at the given path, or nil if absent.
func (ds *DesignSystem) Token(path string) *Token {
	for i := range ds.Tokens {
		if ds.Tokens[i].Path == path {
			return &ds.Tokens[i]
		}
	}
	return nil
}

// Normalize sorts every collection into canonical order. The compiler calls
// this once before the system is handed to the executor; it is exported so
// tests can build systems by hand.
func (ds *DesignSystem) Normalize() {
	sort.Slice(ds.Tokens, func(i, j int) bool {
		return ds.Tokens[i].Path < ds.Tokens[j].Path
	})
	sort.Slice(ds.Components, func(i, j int) bool {
		return ds.Components[i].Name < ds.Components[j].Name
	})
	for i := range ds.Components {
		c := &ds.Components[i]
		sort.Slice(c.Variants, func(a, b int) bool {
			return c.Variants[a].Name < c.Variants[b].Name
		})
		sortStyle(c.Base)
		for j := range c.Variants {
			sortStyle(c.Variants[j].Style)
		}
		if c.Accessibility != nil {
			sort.Strings(c.Accessibility.Checks)
		}
		sort.Slice(c.Tests, func(a, b int) bool {
			return c.Tests[a].Name < c.Tests[b].Name
		})
	}
}

func sortStyle(rules []StyleRule) {
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Property < rules[j].Property
	})
}

// canonicalObject converts the design system into an Object suitable for
// MarshalCanonical. Collections become arrays in their (already canonical)
// order, so the canonical bytes are stable across invocations.
func (ds *DesignSystem) canonicalObject() Object {
	tokens := make(Array, len(ds.Tokens))
	for i, t := range ds.Tokens {
		tokens[i] = t.canonicalObject()
	}
	components := make(Array, len(ds.Components))
	for i, c := range ds.Components {
		components[i] = c.canonicalObject()
	}
	return Object{
		"name":       String(ds.Name),
		"version":    String(ds.Version),
		"tokens":     tokens,
		"components": components,
	}
}

func (t Token) canonicalObject() Object {
	obj := Object{
		"path":  String(t.Path),
		"type":  String(t.Type),
		"value": t.Value,
	}
	if t.Description != "" {
		obj["description"] = String(t.Description)
	}
	return obj
}

func (c Component) canonicalObject() Object {
	props := make(Array, len(c.Props))
	for i, p := range c.Props {
		props[i] = p.canonicalObject()
	}
	variants := make(Array, len(c.Variants))
	for i, v := range c.Variants {
		variants[i] = Object{
			"name":  String(v.Name),
			"style": styleArray(v.Style),
		}
	}
	obj := Object{
		"name":     String(c.Name),
		"props":    props,
		"variants": variants,
	}
	if c.Description != "" {
		obj["description"] = String(c.Description)
	}
	if len(c.Base) > 0 {
		obj["base"] = styleArray(c.Base)
	}
	if c.DefaultVariant != "" {
		obj["default_variant"] = String(c.DefaultVariant)
	}
	if c.Accessibility != nil {
		a := Object{}
		if c.Accessibility.Role != "" {
			a["role"] = String(c.Accessibility.Role)
		}
		if len(c.Accessibility.Checks) > 0 {
			checks := make(Array, len(c.Accessibility.Checks))
			for i, ch := range c.Accessibility.Checks {
				checks[i] = String(ch)
			}
			a["checks"] = checks
		}
		obj["accessibility"] = a
	}
	if len(c.Tests) > 0 {
		tests := make(Array, len(c.Tests))
		for i, tc := range c.Tests {
			t := Object{"name": String(tc.Name)}
			if len(tc.Props) > 0 {
				t["props"] = tc.Props
			}
			tests[i] = t
		}
		obj["tests"] = tests
	}
	return obj
}

func (p Prop) canonicalObject() Object {
	obj := Object{
		"name": String(p.Name),
		"type": String(p.Type),
	}
	if p.Required {
		obj["required"] = Bool(true)
	}
	if p.Default != nil {
		obj["default"] = p.Default
	}
	if len(p.Enum) > 0 {
		enum := make(Array, len(p.Enum))
		for i, e := range p.Enum {
			enum[i] = String(e)
		}
		obj["enum"] = enum
	}
	return obj
}

func styleArray(rules []StyleRule) Array {
	arr := make(Array, len(rules))
	for i, r := range rules {
		arr[i] = Object{
			"property": String(r.Property),
			"value":    r.Value,
		}
	}
	return arr
}
