package ir

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Slice is the portion of a design system a pipeline step consumes. It is
// the unit that gets hashed into the step's invalidation key: a step whose
// slice is unchanged can be skipped even when other parts of the system
// changed.
type Slice struct {
	Selector   string      `json:"selector"`
	System     string      `json:"system"`
	Version    string      `json:"version"`
	Tokens     []Token     `json:"tokens,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// Selector grammar:
//
//	all                whole system (tokens + components)
//	tokens             all tokens
//	components         all components
//	component:<glob>   components whose name matches the glob,
//	                   e.g. "component:Button" or "component:Form*"
const (
	SelectorAll        = "all"
	SelectorTokens     = "tokens"
	SelectorComponents = "components"

	componentPrefix = "component:"
)

// ParseSelector validates a selector expression without applying it.
// Returns an error for unknown forms or malformed glob patterns.
func ParseSelector(expr string) error {
	switch expr {
	case SelectorAll, SelectorTokens, SelectorComponents:
		return nil
	}
	if pattern, ok := strings.CutPrefix(expr, componentPrefix); ok {
		if pattern == "" {
			return fmt.Errorf("empty component pattern in selector %q", expr)
		}
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid component pattern %q: %w", pattern, err)
		}
		return nil
	}
	return fmt.Errorf("unknown input selector %q (want all, tokens, components, or component:<pattern>)", expr)
}

// Slice extracts the subset of the design system selected by expr.
// The returned slice shares no mutable state obligations with the system:
// both are treated as immutable.
//
// A component selector that matches nothing is an error - a step with an
// empty input would silently generate from nothing.
func (ds *DesignSystem) Slice(expr string) (*Slice, error) {
	s := &Slice{
		Selector: expr,
		System:   ds.Name,
		Version:  ds.Version,
	}

	switch expr {
	case SelectorAll:
		s.Tokens = ds.Tokens
		s.Components = ds.Components
		return s, nil
	case SelectorTokens:
		s.Tokens = ds.Tokens
		return s, nil
	case SelectorComponents:
		s.Components = ds.Components
		return s, nil
	}

	pattern, ok := strings.CutPrefix(expr, componentPrefix)
	if !ok {
		return nil, fmt.Errorf("unknown input selector %q", expr)
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid component pattern %q: %w", pattern, err)
	}

	for _, c := range ds.Components {
		if g.Match(c.Name) {
			s.Components = append(s.Components, c)
		}
	}
	if len(s.Components) == 0 {
		return nil, fmt.Errorf("selector %q matches no components", expr)
	}
	return s, nil
}

// Single returns the slice's sole component, or nil when the slice holds
// zero or several. Output-path templates use this for {{.Component}}.
func (s *Slice) Single() *Component {
	if len(s.Components) == 1 {
		return &s.Components[0]
	}
	return nil
}

// Hash computes the content-addressed hash of the slice.
func (s *Slice) Hash() (string, error) {
	tokens := make(Array, len(s.Tokens))
	for i, t := range s.Tokens {
		tokens[i] = t.canonicalObject()
	}
	components := make(Array, len(s.Components))
	for i, c := range s.Components {
		components[i] = c.canonicalObject()
	}
	obj := Object{
		"selector":   String(s.Selector),
		"system":     String(s.System),
		"version":    String(s.Version),
		"tokens":     tokens,
		"components": components,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("slice hash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSlice, canonical), nil
}
