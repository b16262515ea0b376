// Package mapping holds the field-mapping registry shared by the condition
// generators.
//
// A registry maps logical field names to backend entries. A logical name may
// carry a "#token" suffix; all entries sharing a base name form a combined
// field and are compiled as alternative physical targets for the same values.
package mapping

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var namePattern = regexp.MustCompile(`^@?[A-Za-z_][A-Za-z0-9_.\-]*(#[A-Za-z0-9_\-]+)?$`)

// Name is a parsed logical field name.
type Name struct {
	Base  string
	Token string
}

// String reassembles the full name.
func (n Name) String() string {
	if n.Token == "" {
		return n.Base
	}
	return n.Base + "#" + n.Token
}

// OrderOnly reports whether the name is an "@" sort pseudo-field.
func (n Name) OrderOnly() bool {
	return strings.HasPrefix(n.Base, "@")
}

// ParseName validates and splits a logical field name.
func ParseName(name string) (Name, error) {
	if !namePattern.MatchString(name) {
		return Name{}, &Error{Code: ErrCodeInvalidName, Field: name, Message: "malformed field name", Err: ErrInvalidFieldName}
	}
	base, token, _ := strings.Cut(name, "#")
	return Name{Base: base, Token: token}, nil
}

// Entry is one registered mapping.
type Entry[E any] struct {
	Name  Name
	Value E
}

// Registry maps logical names to backend entries.
//
// A registry is populated before the first compile and frozen afterwards.
// It is not safe for concurrent mutation.
type Registry[E any] struct {
	entries map[string]map[string]E
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry[E any]() *Registry[E] {
	return &Registry[E]{entries: make(map[string]map[string]E)}
}

// Set registers or replaces the entry for name.
func (r *Registry[E]) Set(name string, entry E) error {
	if r.frozen {
		return &Error{Code: ErrCodeFrozen, Field: name, Message: "field registered after first compile", Err: ErrRegistryFrozen}
	}
	n, err := ParseName(name)
	if err != nil {
		return err
	}
	tokens, ok := r.entries[n.Base]
	if !ok {
		tokens = make(map[string]E)
		r.entries[n.Base] = tokens
	}
	tokens[n.Token] = entry
	return nil
}

// Lookup returns the entries for a base name, sorted by token.
// Combined fields therefore compile in ascending token order, regardless of
// the order they were registered in.
func (r *Registry[E]) Lookup(base string) []Entry[E] {
	tokens, ok := r.entries[base]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entry[E], 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry[E]{Name: Name{Base: base, Token: k}, Value: tokens[k]})
	}
	return out
}

// Has reports whether any entry exists for base.
func (r *Registry[E]) Has(base string) bool {
	_, ok := r.entries[base]
	return ok
}

// Names returns every registered full name, sorted.
func (r *Registry[E]) Names() []string {
	var names []string
	for base, tokens := range r.entries {
		for token := range tokens {
			names = append(names, Name{Base: base, Token: token}.String())
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered entries.
func (r *Registry[E]) Len() int {
	n := 0
	for _, tokens := range r.entries {
		n += len(tokens)
	}
	return n
}

// Freeze rejects further registration.
func (r *Registry[E]) Freeze() {
	r.frozen = true
}

// Frozen reports whether Freeze was called.
func (r *Registry[E]) Frozen() bool {
	return r.frozen
}

// Signature returns [name, describe(entry)] pairs sorted by full name.
//
// The result does not depend on registration order, so registering the same
// fields in a different sequence yields the same cache key.
func (r *Registry[E]) Signature(describe func(E) any) []any {
	names := r.Names()
	out := make([]any, 0, len(names))
	for _, full := range names {
		base, token, _ := strings.Cut(full, "#")
		out = append(out, []any{full, describe(r.entries[base][token])})
	}
	return out
}

// String is used in diagnostics.
func (r *Registry[E]) String() string {
	return fmt.Sprintf("Registry(%d entries, frozen=%t)", r.Len(), r.frozen)
}
