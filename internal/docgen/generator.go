// Package docgen compiles a condition tree into a document-search query
// structure (bool, term, terms, range, nested, has_child).
//
// The output is plain maps and slices so it can be serialized with
// encoding/json and sent to the search backend as-is.
package docgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/mapping"
)

// ErrMissingCondition is a setup error: a generator needs a condition.
var ErrMissingCondition = errors.New("docgen: search condition is required")

// Query is a compiled request body: {"query": ..., "sort": [...]}.
type Query map[string]any

// Clone returns a deep copy of the nested maps and slices of q. Leaf
// values are shared.
func (q Query) Clone() Query {
	if q == nil {
		return nil
	}
	return Query(cloneValue(map[string]any(q)).(map[string]any))
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return val
		}
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case Query:
		return val.Clone()
	case []any:
		if val == nil {
			return val
		}
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		if val == nil {
			return val
		}
		out := make([]map[string]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e).(map[string]any)
		}
		return out
	}
	return v
}

// UsedMapping records one field mapping that contributed to a compile.
type UsedMapping struct {
	Field  string `json:"field"`
	Target string `json:"target"`
}

// Option configures a Generator.
type Option func(*Generator)

// WithPathParams supplies values for {token} placeholders in mapping paths.
// Placeholders are resolved when the field is registered.
func WithPathParams(params map[string]string) Option {
	return func(g *Generator) {
		g.params = params
	}
}

// Generator compiles one SearchCondition to a document query.
type Generator struct {
	cond   *condition.SearchCondition
	fields *mapping.Registry[*Field]
	params map[string]string
	used   []UsedMapping
}

// New creates a Generator for cond.
func New(cond *condition.SearchCondition, opts ...Option) (*Generator, error) {
	if cond == nil {
		return nil, ErrMissingCondition
	}
	g := &Generator{
		cond:   cond,
		fields: mapping.NewRegistry[*Field](),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// RegisterField maps a logical field (optionally "name#token") to a
// document path.
func (g *Generator) RegisterField(name, path string, opts ...FieldOption) error {
	if strings.TrimSpace(path) == "" {
		return mapping.InvalidMapping(name, "path is required")
	}
	resolved, err := resolvePath(name, path, g.params)
	if err != nil {
		return err
	}
	levels, property, err := parsePath(name, resolved)
	if err != nil {
		return err
	}

	f := &Field{Path: resolved, Property: property, Levels: levels}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.validateLevelConditions(name); err != nil {
		return err
	}
	return g.fields.Set(name, f)
}

// Condition returns the condition being compiled.
func (g *Generator) Condition() *condition.SearchCondition {
	return g.cond
}

// UsedMappings lists the mappings used by the last Compile, in first-use order.
// It is empty until Compile runs, so a result served from a cache has none;
// use ResolveUsedMappings there.
func (g *Generator) UsedMappings() []UsedMapping {
	out := make([]UsedMapping, len(g.used))
	copy(out, g.used)
	return out
}

// ResolveUsedMappings walks the condition without rendering it and returns
// the mappings a successful Compile uses, in the same order.
func (g *Generator) ResolveUsedMappings() []UsedMapping {
	c := &compiler{gen: g, seen: make(map[string]bool)}
	if p := g.cond.Primary; p != nil {
		c.collect(p.Group)
	}
	c.collect(g.cond.Root)
	for _, o := range c.orderEntries() {
		name, err := mapping.ParseName(o.Field)
		if err != nil {
			continue
		}
		if targets := g.fields.Lookup(name.Base); len(targets) > 0 {
			c.use(targets[0])
		}
	}
	return c.used
}

// Compile renders the condition. An empty condition yields a match_all query.
func (g *Generator) Compile() (Query, error) {
	g.fields.Freeze()

	c := &compiler{gen: g, seen: make(map[string]bool)}
	q, err := c.condition()
	if err != nil {
		return nil, err
	}
	sort, scoring, err := c.sort()
	if err != nil {
		return nil, err
	}

	if q == nil {
		q = map[string]any{"match_all": map[string]any{}}
	}
	if len(scoring) > 0 {
		q = boolQuery(map[string]any{"must": []any{q}, "should": scoring})
	}

	out := Query{"query": q}
	if len(sort) > 0 {
		out["sort"] = sort
	}
	g.used = c.used
	return out, nil
}

type compiler struct {
	gen  *Generator
	used []UsedMapping
	seen map[string]bool
}

func (c *compiler) use(e mapping.Entry[*Field]) {
	name := e.Name.String()
	if c.seen[name] {
		return
	}
	c.seen[name] = true
	c.used = append(c.used, UsedMapping{Field: name, Target: e.Value.Path})
}

func (c *compiler) condition() (map[string]any, error) {
	var primary map[string]any
	if p := c.gen.cond.Primary; p != nil && p.Group != nil {
		var err error
		if primary, err = c.group(p.Group); err != nil {
			return nil, fmt.Errorf("primary: %w", err)
		}
	}
	root, err := c.group(c.gen.cond.Root)
	if err != nil {
		return nil, err
	}

	switch {
	case primary == nil:
		return root, nil
	case root == nil:
		return primary, nil
	}
	return boolQuery(map[string]any{"must": []any{primary, root}}), nil
}

// collect records the mappings of g in the order group and field visit them.
func (c *compiler) collect(g *condition.ValuesGroup) {
	if g == nil {
		return
	}
	for _, name := range g.FieldNames() {
		bag, _ := g.Lookup(name)
		if bag.Empty() {
			continue
		}
		for _, e := range c.gen.fields.Lookup(name) {
			c.use(e)
		}
	}
	for _, child := range g.Children() {
		c.collect(child)
	}
}

// fieldQuery is one field's compiled inclusion and exclusion clauses.
type fieldQuery struct {
	include map[string]any
	exclude []any
}

func (f fieldQuery) empty() bool {
	return f.include == nil && len(f.exclude) == 0
}

// standalone renders the field as a single clause, for OR groups.
func (f fieldQuery) standalone() map[string]any {
	if len(f.exclude) == 0 {
		return f.include
	}
	body := map[string]any{"must_not": f.exclude}
	if f.include != nil {
		body["must"] = []any{f.include}
	}
	return boolQuery(body)
}

func (c *compiler) group(g *condition.ValuesGroup) (map[string]any, error) {
	if g == nil {
		return nil, nil
	}
	var must, mustNot, should []any

	for _, name := range g.FieldNames() {
		bag, _ := g.Lookup(name)
		fq, err := c.field(name, bag)
		if err != nil {
			return nil, err
		}
		if fq.empty() {
			continue
		}
		if g.Logical() == condition.LogicalOr {
			should = append(should, fq.standalone())
			continue
		}
		if fq.include != nil {
			must = append(must, fq.include)
		}
		mustNot = append(mustNot, fq.exclude...)
	}

	for i, child := range g.Children() {
		q, err := c.group(child)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		if q == nil {
			continue
		}
		if g.Logical() == condition.LogicalOr {
			should = append(should, q)
		} else {
			must = append(must, q)
		}
	}

	body := make(map[string]any)
	if len(must) > 0 {
		body["must"] = must
	}
	if len(mustNot) > 0 {
		body["must_not"] = mustNot
	}
	if len(should) > 0 {
		body["should"] = should
		body["minimum_should_match"] = 1
	}
	if len(body) == 0 {
		return nil, nil
	}
	return boolQuery(body), nil
}

func (c *compiler) field(name string, bag *condition.ValuesBag) (fieldQuery, error) {
	if bag.Empty() {
		return fieldQuery{}, nil
	}
	entries := c.gen.fields.Lookup(name)
	if len(entries) == 0 {
		return fieldQuery{}, nil
	}

	var alternatives, exclusions []any
	for _, e := range entries {
		if err := e.Value.Descriptor.Check(e.Name.String(), bag); err != nil {
			return fieldQuery{}, err
		}
		c.use(e)

		r := &renderer{name: e.Name.String(), field: e.Value}
		incl, err := r.inclusions(bag)
		if err != nil {
			return fieldQuery{}, err
		}
		excl, err := r.exclusions(bag)
		if err != nil {
			return fieldQuery{}, err
		}

		if len(e.Value.Levels) == 0 {
			alternatives = append(alternatives, incl...)
			exclusions = append(exclusions, excl...)
			continue
		}
		if len(incl) > 0 {
			alternatives = append(alternatives, e.Value.wrap(anyOf(incl)))
		}
		for _, q := range excl {
			exclusions = append(exclusions, e.Value.wrap(q.(map[string]any)))
		}
	}

	var fq fieldQuery
	if len(alternatives) > 0 {
		fq.include = anyOf(alternatives)
	}
	fq.exclude = exclusions
	return fq, nil
}

// anyOf returns the single clause, or a should-bool over several.
func anyOf(clauses []any) map[string]any {
	if len(clauses) == 1 {
		return clauses[0].(map[string]any)
	}
	return boolQuery(map[string]any{"should": clauses, "minimum_should_match": 1})
}

func boolQuery(body map[string]any) map[string]any {
	return map[string]any{"bool": body}
}
