package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/dspec/internal/ir"
	"github.com/roach88/dspec/internal/spec"
)

// Build resolves a validated document set into a canonical DesignSystem.
// Name and version identify the system as a whole and come from the
// pipeline definition, not the documents.
//
// All reference failures are collected; a nil system is returned only when
// at least one error occurred. The returned system is Normalized, so its
// canonical form (and therefore SystemHash) does not depend on document
// order or map iteration.
func Build(name, version string, docs []spec.Document) (*ir.DesignSystem, []error) {
	res, errs := Resolve(docs)
	b := &builder{res: res, errs: errs}

	ds := &ir.DesignSystem{Name: name, Version: version}
	for i := range docs {
		doc := &docs[i]
		switch doc.Kind {
		case spec.KindTokens:
			b.addTokens(ds, doc)
		case spec.KindComponent:
			b.addComponent(ds, doc)
		}
	}
	ds.Normalize()

	if len(b.errs) > 0 {
		return nil, b.errs
	}
	return ds, nil
}

type builder struct {
	res  *Resolution
	errs []error
}

func (b *builder) errf(code, location, format string, args ...any) {
	b.errs = append(b.errs, &ResolveError{
		Code:     code,
		Location: location,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (b *builder) addTokens(ds *ir.DesignSystem, doc *spec.Document) {
	seen := map[string]bool{}
	for _, t := range ds.Tokens {
		seen[t.Path] = true
	}
	for _, entry := range doc.Tokens {
		if seen[entry.Path] {
			continue // duplicate, reported by validation
		}
		val, ok := b.res.Lookup(entry.Path)
		if !ok {
			continue // resolution failure already reported
		}
		ds.Tokens = append(ds.Tokens, ir.Token{
			Path:        entry.Path,
			Type:        entry.Type,
			Value:       val,
			Description: entry.Description,
		})
		seen[entry.Path] = true
	}
}

func (b *builder) addComponent(ds *ir.DesignSystem, doc *spec.Document) {
	def := doc.Component
	if def == nil {
		return
	}
	loc := "components." + def.Name

	comp := ir.Component{
		Name:           def.Name,
		Description:    def.Description,
		DefaultVariant: def.DefaultVariant,
	}

	for _, p := range def.Props {
		prop := ir.Prop{
			Name:     p.Name,
			Type:     p.Type,
			Required: p.Required,
			Enum:     p.Enum,
		}
		if p.Default != nil {
			if v, ok := b.resolveValue(*p.Default, loc+".props."+p.Name+".default"); ok {
				prop.Default = v
			}
		}
		comp.Props = append(comp.Props, prop)
	}

	comp.Base = b.resolveStyle(def.Base, loc+".base")

	for _, name := range sortedKeys(def.Variants) {
		comp.Variants = append(comp.Variants, ir.Variant{
			Name:  name,
			Style: b.resolveStyle(def.Variants[name].Style, loc+".variants."+name),
		})
	}

	if def.Accessibility != nil {
		comp.Accessibility = &ir.Accessibility{
			Role:   def.Accessibility.Role,
			Checks: def.Accessibility.Checks,
		}
	}

	for _, test := range def.Tests {
		tc := ir.TestCase{Name: test.Name}
		if len(test.Props) > 0 {
			tc.Props = ir.Object{}
			for _, key := range sortedKeys(test.Props) {
				if v, ok := b.resolveValue(test.Props[key], loc+".tests."+test.Name+"."+key); ok {
					tc.Props[key] = v
				}
			}
		}
		comp.Tests = append(comp.Tests, tc)
	}

	ds.Components = append(ds.Components, comp)
}

// resolveStyle resolves a raw style map into rules. Keys are walked in
// sorted order so any errors come out deterministically; Normalize sorts
// the rules themselves by property.
func (b *builder) resolveStyle(style map[string]spec.RawValue, loc string) []ir.StyleRule {
	var rules []ir.StyleRule
	for _, prop := range sortedKeys(style) {
		if v, ok := b.resolveValue(style[prop], loc+"."+prop); ok {
			rules = append(rules, ir.StyleRule{Property: prop, Value: v})
		}
	}
	return rules
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolveValue turns a raw value into a literal, reporting a dangling
// reference at the given location. References to tokens that exist but
// failed to resolve produce no second error.
func (b *builder) resolveValue(rv spec.RawValue, location string) (ir.Value, bool) {
	switch {
	case rv.IsRef():
		if v, ok := b.res.Lookup(rv.Ref); ok {
			return v, true
		}
		if !b.res.Declared[rv.Ref] {
			b.errf(ErrDanglingRef, location,
				"reference %s%s names no declared token", spec.RefSigil, rv.Ref)
		}
		return nil, false
	case rv.Literal != nil:
		return rv.Literal, true
	default:
		return nil, false // unrepresentable, reported by validation
	}
}
