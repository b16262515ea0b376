package sqlgen

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Clause is a compiled WHERE fragment with its parameters.
type Clause struct {
	SQL     string   `json:"sql"`
	Params  []Param  `json:"params"`
	OrderBy []string `json:"order_by,omitempty"`
}

// Param is one named parameter. Name carries no placeholder character.
type Param struct {
	Name  string
	Value any
	Type  string
}

// Empty reports whether the clause has no condition text.
func (c Clause) Empty() bool {
	return c.SQL == ""
}

// WithPrefix returns c with prefix prepended to a non-empty SQL text.
func (c Clause) WithPrefix(prefix string) Clause {
	if prefix == "" || c.SQL == "" {
		return c
	}
	c.SQL = prefix + c.SQL
	return c
}

// OrderByClause renders "ORDER BY a ASC, b DESC", or "" without sort entries.
func (c Clause) OrderByClause() string {
	if len(c.OrderBy) == 0 {
		return ""
	}
	return "ORDER BY " + strings.Join(c.OrderBy, ", ")
}

// Binder is a prepared statement accepting named parameters.
type Binder interface {
	BindNamed(name string, value any, typ string) error
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(name string, value any, typ string) error

// BindNamed calls f.
func (f BinderFunc) BindNamed(name string, value any, typ string) error {
	return f(name, value, typ)
}

// BindTo binds every parameter by name, in order.
func (c Clause) BindTo(b Binder) error {
	for _, p := range c.Params {
		if err := b.BindNamed(p.Name, p.Value, p.Type); err != nil {
			return fmt.Errorf("bind %s: %w", p.Name, err)
		}
	}
	return nil
}

// NamedArgs returns the parameters as database/sql named arguments.
func (c Clause) NamedArgs() []any {
	args := make([]any, len(c.Params))
	for i, p := range c.Params {
		args[i] = sql.Named(p.Name, p.Value)
	}
	return args
}

// PgxArgs returns the parameters for a pgx query compiled with StyleAt.
func (c Clause) PgxArgs() pgx.NamedArgs {
	args := make(pgx.NamedArgs, len(c.Params))
	for _, p := range c.Params {
		args[p.Name] = p.Value
	}
	return args
}

// Map returns the parameters keyed by name, for sqlx named queries.
func (c Clause) Map() map[string]any {
	m := make(map[string]any, len(c.Params))
	for _, p := range c.Params {
		m[p.Name] = p.Value
	}
	return m
}

// Clone returns a copy of c that shares no slices with it.
func (c Clause) Clone() Clause {
	out := Clause{SQL: c.SQL, OrderBy: slices.Clone(c.OrderBy)}
	if c.Params != nil {
		out.Params = make([]Param, len(c.Params))
		for i, p := range c.Params {
			if b, ok := p.Value.([]byte); ok {
				p.Value = slices.Clone(b)
			}
			out.Params[i] = p
		}
	}
	return out
}

// paramJSON keeps the Go kind of the value so a decoded clause binds the
// same types as a freshly compiled one.
type paramJSON struct {
	Name  string          `json:"name"`
	Type  string          `json:"type,omitempty"`
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (p Param) MarshalJSON() ([]byte, error) {
	kind, err := valueKind(p.Value)
	if err != nil {
		return nil, fmt.Errorf("param %s: %w", p.Name, err)
	}
	raw, err := json.Marshal(p.Value)
	if err != nil {
		return nil, fmt.Errorf("param %s: %w", p.Name, err)
	}
	return json.Marshal(paramJSON{Name: p.Name, Type: p.Type, Kind: kind, Value: raw})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Param) UnmarshalJSON(data []byte) error {
	var pj paramJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	v, err := decodeValue(pj.Kind, pj.Value)
	if err != nil {
		return fmt.Errorf("param %s: %w", pj.Name, err)
	}
	*p = Param{Name: pj.Name, Value: v, Type: pj.Type}
	return nil
}

func valueKind(v any) (string, error) {
	switch v.(type) {
	case nil:
		return "null", nil
	case string:
		return "string", nil
	case bool:
		return "bool", nil
	case int:
		return "int", nil
	case int32:
		return "int32", nil
	case int64:
		return "int64", nil
	case uint:
		return "uint", nil
	case uint64:
		return "uint64", nil
	case float32:
		return "float32", nil
	case float64:
		return "float64", nil
	case time.Time:
		return "time", nil
	case uuid.UUID:
		return "uuid", nil
	case []byte:
		return "bytes", nil
	}
	return "", fmt.Errorf("unsupported parameter type %T", v)
}

func decodeValue(kind string, raw json.RawMessage) (any, error) {
	switch kind {
	case "null":
		return nil, nil
	case "string":
		return decodeAs[string](raw)
	case "bool":
		return decodeAs[bool](raw)
	case "int":
		return decodeAs[int](raw)
	case "int32":
		return decodeAs[int32](raw)
	case "int64":
		return decodeAs[int64](raw)
	case "uint":
		return decodeAs[uint](raw)
	case "uint64":
		return decodeAs[uint64](raw)
	case "float32":
		return decodeAs[float32](raw)
	case "float64":
		return decodeAs[float64](raw)
	case "time":
		return decodeAs[time.Time](raw)
	case "uuid":
		return decodeAs[uuid.UUID](raw)
	case "bytes":
		return decodeAs[[]byte](raw)
	}
	return nil, fmt.Errorf("unknown parameter kind %q", kind)
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
