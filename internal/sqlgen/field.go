package sqlgen

import (
	"errors"

	"github.com/roach88/searchgen/internal/mapping"
)

// ErrMissingCondition is a setup error: a generator needs a condition.
var ErrMissingCondition = errors.New("sqlgen: search condition is required")

// PlaceholderStyle selects the character introducing a named placeholder.
type PlaceholderStyle string

const (
	// StyleColon renders ":search_0" (SQLite, sqlx, Doctrine style).
	StyleColon PlaceholderStyle = ":"

	// StyleAt renders "@search_0" (pgx named args, SQL Server).
	StyleAt PlaceholderStyle = "@"
)

func (s PlaceholderStyle) placeholder(name string) string {
	return string(s) + name
}

// DefaultParamPrefix names placeholders search_0, search_1, ...
const DefaultParamPrefix = "search_"

// Option configures a Generator.
type Option func(*Generator)

// WithPlaceholderStyle sets the placeholder style. Default is StyleColon.
func WithPlaceholderStyle(style PlaceholderStyle) Option {
	return func(g *Generator) {
		g.style = style
	}
}

// WithParamPrefix sets the parameter name prefix.
func WithParamPrefix(prefix string) Option {
	return func(g *Generator) {
		g.paramPrefix = prefix
	}
}

// Field is the physical target of one logical field.
type Field struct {
	Column     string
	Alias      string
	Type       string
	Conversion *Conversion
	Descriptor mapping.FieldDescriptor
}

// Qualified returns the column reference, prefixed with the alias when set.
func (f Field) Qualified() string {
	if f.Alias == "" {
		return f.Column
	}
	return f.Alias + "." + f.Column
}

// FieldOption configures a Field on registration.
type FieldOption func(*Field)

// WithAlias sets the table alias.
func WithAlias(alias string) FieldOption {
	return func(f *Field) {
		f.Alias = alias
	}
}

// WithType sets the declared parameter type passed to Binder.BindNamed.
func WithType(typ string) FieldOption {
	return func(f *Field) {
		f.Type = typ
	}
}

// WithConversion attaches column and value conversion hooks.
func WithConversion(conv Conversion) FieldOption {
	return func(f *Field) {
		c := conv
		f.Conversion = &c
	}
}

// WithDescriptor restricts the value kinds the field accepts.
func WithDescriptor(d mapping.FieldDescriptor) FieldOption {
	return func(f *Field) {
		f.Descriptor = d
	}
}

func (f Field) signature() any {
	conv := ""
	if f.Conversion != nil {
		conv = f.Conversion.identity()
	}
	return map[string]any{
		"column":     f.Column,
		"alias":      f.Alias,
		"type":       f.Type,
		"conversion": conv,
		"kinds":      f.Descriptor.Signature(),
	}
}
