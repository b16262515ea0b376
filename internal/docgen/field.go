package docgen

import (
	"regexp"
	"strings"

	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/mapping"
)

// LevelKind is the kind of wrapper a path level produces.
type LevelKind string

const (
	LevelHasChild LevelKind = "has_child"
	LevelNested   LevelKind = "nested"
)

// Level is one wrapper between the root document and the property.
//
// For has_child levels Name is the child type; for nested levels it is the
// dotted nested path.
type Level struct {
	Kind LevelKind
	Name string
}

// LevelCondition is a static restriction added inside a wrapper level.
type LevelCondition struct {
	Field  string
	Values []any
}

func (c LevelCondition) clause() map[string]any {
	if len(c.Values) == 1 {
		return map[string]any{"term": map[string]any{c.Field: c.Values[0]}}
	}
	return map[string]any{"terms": map[string]any{c.Field: c.Values}}
}

// ValueFunc transforms a value before it is emitted.
type ValueFunc func(value any, hints Hints) (any, error)

// Hints is the context handed to a ValueFunc.
type Hints struct {
	Field      string
	Path       string
	Property   string
	Value      any
	Occurrence int
}

type valueConversion struct {
	name string
	fn   ValueFunc
}

// Field is a registered document mapping.
type Field struct {
	// Path is the registered path with parameters resolved.
	Path            string
	Property        string
	Levels          []Level
	LevelConditions map[string][]LevelCondition
	Descriptor      mapping.FieldDescriptor

	conversion *valueConversion
}

// FieldOption configures a Field on registration.
type FieldOption func(*Field)

// WithLevelConditions adds static conditions keyed by level name (child type
// or nested path). They are emitted only when the field is used.
func WithLevelConditions(conds map[string][]LevelCondition) FieldOption {
	return func(f *Field) {
		f.LevelConditions = conds
	}
}

// WithValueConversion transforms every value of the field. name identifies
// the conversion in cache keys.
func WithValueConversion(name string, fn ValueFunc) FieldOption {
	return func(f *Field) {
		f.conversion = &valueConversion{name: name, fn: fn}
	}
}

// WithDescriptor restricts the value kinds the field accepts.
func WithDescriptor(d mapping.FieldDescriptor) FieldOption {
	return func(f *Field) {
		f.Descriptor = d
	}
}

var pathParam = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

func resolvePath(field, path string, params map[string]string) (string, error) {
	var missing []string
	resolved := pathParam.ReplaceAllStringFunc(path, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := params[key]; ok {
			return v
		}
		missing = append(missing, key)
		return m
	})
	if len(missing) > 0 {
		return "", mapping.InvalidMapping(field, "unresolved path parameter {%s}", missing[0])
	}
	if strings.ContainsAny(resolved, "{}") {
		return "", mapping.InvalidMapping(field, "malformed path parameter in %q", path)
	}
	return resolved, nil
}

// parsePath splits "type>type>a[].b[].c" into wrapper levels (outermost
// first) and the full dotted property.
func parsePath(field, path string) ([]Level, string, error) {
	var levels []Level
	segments := strings.Split(path, ">")
	for _, seg := range segments[:len(segments)-1] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return nil, "", mapping.InvalidMapping(field, "empty child type in path %q", path)
		}
		levels = append(levels, Level{Kind: LevelHasChild, Name: seg})
	}

	parts := strings.Split(strings.TrimSpace(segments[len(segments)-1]), ".")
	props := make([]string, 0, len(parts))
	for i, part := range parts {
		nested := strings.HasSuffix(part, "[]")
		part = strings.TrimSuffix(part, "[]")
		if part == "" {
			return nil, "", mapping.InvalidMapping(field, "empty property segment in path %q", path)
		}
		props = append(props, part)
		if nested {
			if i == len(parts)-1 {
				return nil, "", mapping.InvalidMapping(field, "path %q ends with a nested level", path)
			}
			levels = append(levels, Level{Kind: LevelNested, Name: strings.Join(props, ".")})
		}
	}
	return levels, strings.Join(props, "."), nil
}

func (f *Field) validateLevelConditions(field string) error {
	for key := range f.LevelConditions {
		found := false
		for _, lvl := range f.Levels {
			if lvl.Name == key {
				found = true
				break
			}
		}
		if !found {
			return mapping.InvalidMapping(field, "level condition %q names no level of path %q", key, f.Path)
		}
	}
	return nil
}

// hasChild reports whether any level is a has_child wrapper.
func (f *Field) hasChild() bool {
	for _, lvl := range f.Levels {
		if lvl.Kind == LevelHasChild {
			return true
		}
	}
	return false
}

// wrap applies the wrapper levels around q, innermost first.
func (f *Field) wrap(q map[string]any) map[string]any {
	for i := len(f.Levels) - 1; i >= 0; i-- {
		lvl := f.Levels[i]
		q = f.withLevelConditions(lvl, q)
		switch lvl.Kind {
		case LevelNested:
			q = map[string]any{"nested": map[string]any{"path": lvl.Name, "query": q}}
		case LevelHasChild:
			q = map[string]any{"has_child": map[string]any{"type": lvl.Name, "query": q}}
		}
	}
	return q
}

func (f *Field) withLevelConditions(lvl Level, q map[string]any) map[string]any {
	conds := f.LevelConditions[lvl.Name]
	if len(conds) == 0 {
		return q
	}
	must := []any{q}
	for _, c := range conds {
		must = append(must, c.clause())
	}
	return boolQuery(map[string]any{"must": must})
}

func (f *Field) signature() any {
	conv := ""
	if f.conversion != nil {
		conv = f.conversion.name
		if conv == "" {
			conv = "anonymous"
		}
	}

	levels := make(map[string]any, len(f.LevelConditions))
	for key, conds := range f.LevelConditions {
		list := make([]any, 0, len(conds))
		for _, c := range conds {
			values := make([]any, len(c.Values))
			for i, v := range c.Values {
				values[i] = condition.Tag(v)
			}
			list = append(list, []any{c.Field, values})
		}
		levels[key] = list
	}

	return map[string]any{
		"path":       f.Path,
		"conversion": conv,
		"levels":     levels,
		"kinds":      f.Descriptor.Signature(),
	}
}
