package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/dspec/internal/ir"
	"github.com/roach88/dspec/internal/spec"
)

// Resolution error codes (E2xx).
const (
	ErrDanglingRef = "E201" // reference names no declared token
	ErrRefCycle    = "E202" // token references form a cycle
)

// ResolveError is one reference-resolution failure, located by the field
// path of the referencing value.
type ResolveError struct {
	Code     string
	Location string // e.g. "components.Button.variants.primary.backgroundColor"
	Message  string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Location, e.Message)
}

// Resolution holds every token resolved to a literal value. Declared tracks
// token paths that exist but failed to resolve (cycle members), so callers
// can tell a dangling reference from an already-reported failure.
type Resolution struct {
	Tokens   map[string]ir.Value
	Declared map[string]bool
}

// Lookup returns the resolved value for a token path.
func (r *Resolution) Lookup(path string) (ir.Value, bool) {
	v, ok := r.Tokens[path]
	return v, ok
}

// Resolve walks the token reference graph of a document set and resolves
// every token to a literal value. Token-to-token references may chain; the
// walk is depth-first with a visiting set, so a cycle is detected the first
// time an in-progress token is re-entered and reported once with the full
// cycle path. Tokens are visited in sorted path order, which makes both the
// outcome and the error list independent of document order.
func Resolve(docs []spec.Document) (*Resolution, []error) {
	r := &resolver{
		entries:  map[string]spec.TokenEntry{},
		resolved: map[string]ir.Value{},
		state:    map[string]visitState{},
	}

	for _, doc := range docs {
		if doc.Kind != spec.KindTokens {
			continue
		}
		for _, entry := range doc.Tokens {
			// Duplicates are a validation finding; first declaration wins here.
			if _, dup := r.entries[entry.Path]; !dup {
				r.entries[entry.Path] = entry
			}
		}
	}

	paths := make([]string, 0, len(r.entries))
	for path := range r.entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		r.resolve(path)
	}

	res := &Resolution{
		Tokens:   r.resolved,
		Declared: make(map[string]bool, len(r.entries)),
	}
	for path := range r.entries {
		res.Declared[path] = true
	}
	return res, r.errs
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	finished
)

type resolver struct {
	entries  map[string]spec.TokenEntry
	resolved map[string]ir.Value
	state    map[string]visitState
	stack    []string // current DFS chain, for cycle reporting
	errs     []error
}

func (r *resolver) errf(code, location, format string, args ...any) {
	r.errs = append(r.errs, &ResolveError{
		Code:     code,
		Location: location,
		Message:  fmt.Sprintf(format, args...),
	})
}

// resolve returns the literal value for a token path, following reference
// chains. A false return means the token exists but could not resolve; the
// failure has already been reported.
func (r *resolver) resolve(path string) (ir.Value, bool) {
	switch r.state[path] {
	case finished:
		v, ok := r.resolved[path]
		return v, ok
	case visiting:
		r.reportCycle(path)
		return nil, false
	}

	entry := r.entries[path]
	r.state[path] = visiting
	r.stack = append(r.stack, path)

	var val ir.Value
	var ok bool
	rv := entry.Value
	switch {
	case rv.IsRef():
		if _, exists := r.entries[rv.Ref]; !exists {
			r.errf(ErrDanglingRef, "tokens."+path,
				"reference %s%s names no declared token", spec.RefSigil, rv.Ref)
		} else {
			val, ok = r.resolve(rv.Ref)
		}
	case rv.Literal != nil:
		val, ok = rv.Literal, true
	}

	r.stack = r.stack[:len(r.stack)-1]
	r.state[path] = finished
	if ok {
		r.resolved[path] = val
	}
	return val, ok
}

// reportCycle emits one error naming the full cycle, from the first
// occurrence of the re-entered token through the back edge.
func (r *resolver) reportCycle(path string) {
	start := 0
	for i, p := range r.stack {
		if p == path {
			start = i
			break
		}
	}
	cycle := append(append([]string{}, r.stack[start:]...), path)
	r.errf(ErrRefCycle, "tokens."+path,
		"token reference cycle: %s", strings.Join(cycle, " -> "))
}
