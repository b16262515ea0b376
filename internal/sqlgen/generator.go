package sqlgen

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/mapping"
)

// Generator compiles one SearchCondition to SQL.
//
// Fields are registered with SetField before the first Compile; the registry
// is frozen afterwards. Compile itself keeps no state between calls, so
// compiling twice yields identical output.
type Generator struct {
	cond        *condition.SearchCondition
	fields      *mapping.Registry[Field]
	style       PlaceholderStyle
	paramPrefix string
}

// New creates a Generator for cond.
func New(cond *condition.SearchCondition, opts ...Option) (*Generator, error) {
	if cond == nil {
		return nil, ErrMissingCondition
	}
	g := &Generator{
		cond:        cond,
		fields:      mapping.NewRegistry[Field](),
		style:       StyleColon,
		paramPrefix: DefaultParamPrefix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// SetField maps a logical field (optionally "name#token") to a column.
func (g *Generator) SetField(name, column string, opts ...FieldOption) error {
	if strings.TrimSpace(column) == "" {
		return mapping.InvalidMapping(name, "column is required")
	}
	f := Field{Column: column}
	for _, opt := range opts {
		opt(&f)
	}
	return g.fields.Set(name, f)
}

// Condition returns the condition being compiled.
func (g *Generator) Condition() *condition.SearchCondition {
	return g.cond
}

// Fields returns the registered field names, sorted.
func (g *Generator) Fields() []string {
	return g.fields.Names()
}

// Compile renders the condition. prefix (e.g. "WHERE ") is prepended only
// when the result is non-empty.
func (g *Generator) Compile(prefix string) (Clause, error) {
	g.fields.Freeze()

	c := &compiler{gen: g}
	sql, err := c.condition()
	if err != nil {
		return Clause{}, err
	}
	order, err := c.orderBy()
	if err != nil {
		return Clause{}, err
	}
	clause := Clause{SQL: sql, Params: c.params, OrderBy: order}
	return clause.WithPrefix(prefix), nil
}

// piece is a rendered fragment. Compound fragments contain a top-level
// AND/OR and need parentheses when combined with siblings.
type piece struct {
	sql      string
	compound bool
}

func (p piece) empty() bool {
	return p.sql == ""
}

func (p piece) wrapped() string {
	if p.compound {
		return "(" + p.sql + ")"
	}
	return p.sql
}

// join combines pieces with op. A single piece is returned as-is; several
// are parenthesized as a list.
func join(pieces []piece, op string) piece {
	switch len(pieces) {
	case 0:
		return piece{}
	case 1:
		return pieces[0]
	}
	parts := make([]string, len(pieces))
	for i, p := range pieces {
		parts[i] = p.wrapped()
	}
	return piece{sql: "(" + strings.Join(parts, " "+op+" ") + ")"}
}

// compiler holds the per-compile state: the parameter list.
type compiler struct {
	gen    *Generator
	params []Param
}

func (c *compiler) bind(v any, typ string) string {
	name := fmt.Sprintf("%s%d", c.gen.paramPrefix, len(c.params))
	c.params = append(c.params, Param{Name: name, Value: v, Type: typ})
	return c.gen.style.placeholder(name)
}

// condition compiles the primary group first so its parameters come first.
func (c *compiler) condition() (string, error) {
	var primary piece
	if p := c.gen.cond.Primary; p != nil && p.Group != nil {
		var err error
		if primary, err = c.group(p.Group); err != nil {
			return "", fmt.Errorf("primary: %w", err)
		}
	}
	root, err := c.group(c.gen.cond.Root)
	if err != nil {
		return "", err
	}

	switch {
	case primary.empty():
		return root.sql, nil
	case root.empty():
		return primary.sql, nil
	}
	return primary.wrapped() + " AND " + root.wrapped(), nil
}

func (c *compiler) group(g *condition.ValuesGroup) (piece, error) {
	if g == nil {
		return piece{}, nil
	}
	var pieces []piece
	for _, name := range g.FieldNames() {
		bag, _ := g.Lookup(name)
		p, err := c.field(name, bag)
		if err != nil {
			return piece{}, err
		}
		if !p.empty() {
			pieces = append(pieces, p)
		}
	}
	for i, child := range g.Children() {
		p, err := c.group(child)
		if err != nil {
			return piece{}, fmt.Errorf("group %d: %w", i, err)
		}
		if !p.empty() {
			pieces = append(pieces, piece{sql: "((" + p.sql + "))"})
		}
	}

	switch len(pieces) {
	case 0:
		return piece{}, nil
	case 1:
		return pieces[0], nil
	}
	parts := make([]string, len(pieces))
	for i, p := range pieces {
		parts[i] = p.wrapped()
	}
	return piece{sql: strings.Join(parts, " "+string(g.Logical())+" "), compound: true}, nil
}

// target is one physical mapping being rendered for a field.
type target struct {
	name       mapping.Name
	field      Field
	occurrence int
}

func (c *compiler) field(name string, bag *condition.ValuesBag) (piece, error) {
	if bag.Empty() {
		return piece{}, nil
	}
	entries := c.gen.fields.Lookup(name)
	if len(entries) == 0 {
		return piece{}, nil
	}

	var incl, excl []piece
	for _, e := range entries {
		if err := e.Value.Descriptor.Check(e.Name.String(), bag); err != nil {
			return piece{}, err
		}
		t := &target{name: e.Name, field: e.Value}
		in, err := c.inclusions(t, bag)
		if err != nil {
			return piece{}, err
		}
		ex, err := c.exclusions(t, bag)
		if err != nil {
			return piece{}, err
		}
		incl = append(incl, in...)
		excl = append(excl, ex...)
	}

	in := join(incl, "OR")
	ex := join(excl, "AND")
	switch {
	case ex.empty():
		return in, nil
	case in.empty():
		return ex, nil
	}
	return piece{sql: "(" + in.wrapped() + " AND " + ex.wrapped() + ")"}, nil
}

func (c *compiler) inclusions(t *target, bag *condition.ValuesBag) ([]piece, error) {
	var out []piece
	for _, v := range bag.SimpleValues() {
		s, err := c.compare(t, v, "=", false)
		if err != nil {
			return nil, err
		}
		out = append(out, piece{sql: s})
	}
	for _, r := range bag.Ranges() {
		lower, upper := ">", "<"
		if r.InclusiveLower {
			lower = ">="
		}
		if r.InclusiveUpper {
			upper = "<="
		}
		p, err := c.bounds(t, r, lower, upper, "AND")
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	var directional []piece
	for _, cmp := range bag.Compares() {
		if cmp.Excludes() {
			continue
		}
		s, err := c.compare(t, cmp.Value, string(cmp.Operator), false)
		if err != nil {
			return nil, err
		}
		directional = append(directional, piece{sql: s})
	}
	switch len(directional) {
	case 0:
	case 1:
		out = append(out, directional[0])
	default:
		parts := make([]string, len(directional))
		for i, p := range directional {
			parts[i] = p.sql
		}
		out = append(out, piece{sql: strings.Join(parts, " AND "), compound: true})
	}

	for _, p := range bag.PatternMatches() {
		if p.Negated {
			continue
		}
		s, err := c.pattern(t, p)
		if err != nil {
			return nil, err
		}
		out = append(out, piece{sql: s})
	}
	return out, nil
}

func (c *compiler) exclusions(t *target, bag *condition.ValuesBag) ([]piece, error) {
	var out []piece
	for _, v := range bag.ExcludedSimpleValues() {
		s, err := c.compare(t, v, "<>", false)
		if err != nil {
			return nil, err
		}
		out = append(out, piece{sql: s})
	}
	for _, r := range bag.ExcludedRanges() {
		lower, upper := "<=", ">="
		if r.InclusiveLower {
			lower = "<"
		}
		if r.InclusiveUpper {
			upper = ">"
		}
		p, err := c.bounds(t, r, lower, upper, "OR")
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	for _, cmp := range bag.Compares() {
		if !cmp.Excludes() {
			continue
		}
		s, err := c.compare(t, cmp.Value, "<>", false)
		if err != nil {
			return nil, err
		}
		out = append(out, piece{sql: s})
	}
	for _, p := range bag.PatternMatches() {
		if !p.Negated {
			continue
		}
		s, err := c.pattern(t, p)
		if err != nil {
			return nil, err
		}
		out = append(out, piece{sql: s})
	}
	return out, nil
}

func (c *compiler) bounds(t *target, r condition.Range, lowerOp, upperOp, logical string) (piece, error) {
	lower, err := c.compare(t, r.Lower, lowerOp, false)
	if err != nil {
		return piece{}, err
	}
	upper, err := c.compare(t, r.Upper, upperOp, false)
	if err != nil {
		return piece{}, err
	}
	return piece{sql: lower + " " + logical + " " + upper, compound: true}, nil
}

var lowerCaser = cases.Lower(language.Und)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (c *compiler) pattern(t *target, p condition.PatternMatch) (string, error) {
	value := p.Value
	if p.CaseInsensitive {
		value = lowerCaser.String(value)
	}

	if p.Kind == condition.PatternEquals {
		op := "="
		if p.Negated {
			op = "<>"
		}
		return c.compare(t, value, op, p.CaseInsensitive)
	}

	escaped := likeEscaper.Replace(value)
	switch p.Kind {
	case condition.PatternContains:
		value = "%" + escaped + "%"
	case condition.PatternStartsWith:
		value = escaped + "%"
	case condition.PatternEndsWith:
		value = "%" + escaped
	default:
		return "", fmt.Errorf("field %s: unknown pattern kind %q", t.name, p.Kind)
	}
	op := "LIKE"
	if p.Negated {
		op = "NOT LIKE"
	}
	s, err := c.compare(t, value, op, p.CaseInsensitive)
	if err != nil {
		return "", err
	}
	return s + ` ESCAPE '\'`, nil
}

// compare renders "column op value" with conversions applied.
func (c *compiler) compare(t *target, value any, op string, lower bool) (string, error) {
	h := c.hints(t, value)
	col, err := c.column(t, h)
	if err != nil {
		return "", err
	}
	val, err := c.value(t, value, h)
	if err != nil {
		return "", err
	}
	if lower && !isLowered(col) {
		col = "LOWER(" + col + ")"
	}
	return col + " " + op + " " + val, nil
}

// isLowered reports whether col is a single LOWER(...) call, so a
// case-insensitive comparison does not wrap it twice.
func isLowered(col string) bool {
	const fn = "LOWER("
	if len(col) <= len(fn) || !strings.EqualFold(col[:len(fn)], fn) || col[len(col)-1] != ')' {
		return false
	}
	depth := 0
	for i := len(fn) - 1; i < len(col); i++ {
		switch col[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i == len(col)-1
			}
		}
	}
	return false
}

func (c *compiler) hints(t *target, value any) Hints {
	h := Hints{
		Field:      t.name.String(),
		Column:     t.field.Column,
		Alias:      t.field.Alias,
		Type:       t.field.Type,
		Value:      value,
		Occurrence: t.occurrence,
		c:          c,
	}
	t.occurrence++
	if conv := t.field.Conversion; conv != nil && conv.Strategy != nil {
		h.Strategy = conv.Strategy(value)
	}
	return h
}

// sortHints describes a column rendered for ORDER BY. There is no value, so
// the strategy hook is not consulted.
func (c *compiler) sortHints(t *target) Hints {
	return Hints{
		Field:  t.name.String(),
		Column: t.field.Column,
		Alias:  t.field.Alias,
		Type:   t.field.Type,
		c:      c,
	}
}

func (c *compiler) column(t *target, h Hints) (string, error) {
	col := t.field.Qualified()
	conv := t.field.Conversion
	if conv == nil || conv.Column == nil {
		return col, nil
	}
	out, err := conv.Column(col, h)
	if err != nil {
		return "", fmt.Errorf("field %s: column conversion: %w", t.name, err)
	}
	return out, nil
}

func (c *compiler) value(t *target, value any, h Hints) (string, error) {
	conv := t.field.Conversion
	if conv == nil || conv.Value == nil {
		return c.bind(value, t.field.Type), nil
	}
	out, err := conv.Value(value, h)
	if err != nil {
		return "", fmt.Errorf("field %s: value conversion: %w", t.name, err)
	}
	return out, nil
}

// orderBy renders the sort entries of the condition followed by those of the
// primary condition. Unmapped fields are skipped.
func (c *compiler) orderBy() ([]string, error) {
	entries := c.gen.cond.Order
	if p := c.gen.cond.Primary; p != nil {
		entries = append(append([]condition.OrderEntry(nil), entries...), p.Order...)
	}

	var out []string
	for _, o := range entries {
		name, err := mapping.ParseName(o.Field)
		if err != nil {
			return nil, err
		}
		targets := c.gen.fields.Lookup(name.Base)
		if len(targets) == 0 {
			continue
		}
		t := &target{name: targets[0].Name, field: targets[0].Value}
		col, err := c.column(t, c.sortHints(t))
		if err != nil {
			return nil, err
		}
		out = append(out, col+" "+string(o.Direction))
	}
	return out, nil
}
