package sqlgen

// Conversion changes how one field is rendered.
//
// Name identifies the conversion in the generator signature. Two conversions
// with the same Name are assumed to render identically, so changing the
// behaviour of a named conversion must also change its Name for cached
// results to be invalidated.
type Conversion struct {
	Name     string
	Column   ColumnFunc
	Value    ValueFunc
	Strategy StrategyFunc
}

// ColumnFunc returns the left-hand expression used in place of column.
// For ORDER BY entries it is called with a nil hints.Value and a zero
// hints.Strategy.
type ColumnFunc func(column string, hints Hints) (string, error)

// ValueFunc returns the SQL expression used in place of a bare placeholder.
// Use hints.Param to bind the value.
type ValueFunc func(value any, hints Hints) (string, error)

// StrategyFunc picks a rendering strategy per value, for fields whose
// conversion depends on the value type (an age integer versus a birth date
// on the same column, for example). It is only called for compared values,
// never for ORDER BY columns.
type StrategyFunc func(value any) int

func (c *Conversion) identity() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Column == nil && c.Value == nil && c.Strategy == nil {
		return ""
	}
	return "anonymous"
}

// Hints is the context handed to conversion hooks.
type Hints struct {
	// Field is the full logical name, including any "#token" suffix.
	Field  string
	Column string
	Alias  string
	Type   string

	// Value is the raw value being compared.
	Value any

	// Strategy is the result of Conversion.Strategy for Value, or 0. It is
	// always 0 when rendering an ORDER BY column.
	Strategy int

	// Occurrence counts column renderings for this field within one compile.
	Occurrence int

	c *compiler
}

// Param binds v as a new parameter and returns its placeholder.
func (h Hints) Param(v any, typ string) string {
	return h.c.bind(v, typ)
}
