package docgen

import (
	"fmt"
	"strings"

	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/mapping"
)

// sort compiles order entries, then the primary condition's entries.
//
// A field inside a has_child level cannot be sorted on directly. It
// contributes a scoring clause instead, and the sort entry orders by _score.
func (c *compiler) sort() ([]any, []any, error) {
	var sort, scoring []any
	for _, o := range c.orderEntries() {
		name, err := mapping.ParseName(o.Field)
		if err != nil {
			return nil, nil, err
		}
		targets := c.gen.fields.Lookup(name.Base)
		if len(targets) == 0 {
			continue
		}
		e := targets[0]
		c.use(e)

		dir := strings.ToLower(string(o.Direction))
		f := e.Value
		if f.hasChild() {
			scoring = append(scoring, f.scoreClause(dir))
			sort = append(sort, map[string]any{"_score": map[string]any{"order": dir}})
			continue
		}

		opts := map[string]any{"order": dir}
		if nested := f.nestedSort(); nested != nil {
			opts["nested"] = nested
		}
		sort = append(sort, map[string]any{f.Property: opts})
	}
	return sort, scoring, nil
}

func (c *compiler) orderEntries() []condition.OrderEntry {
	entries := c.gen.cond.Order
	if p := c.gen.cond.Primary; p != nil {
		entries = append(append([]condition.OrderEntry(nil), entries...), p.Order...)
	}
	return entries
}

// nestedSort builds the nested sort chain, outermost path first.
func (f *Field) nestedSort() map[string]any {
	var out map[string]any
	for i := len(f.Levels) - 1; i >= 0; i-- {
		lvl := f.Levels[i]
		m := map[string]any{"path": lvl.Name}
		if conds := f.LevelConditions[lvl.Name]; len(conds) > 0 {
			m["filter"] = f.withLevelConditions(lvl, map[string]any{"match_all": map[string]any{}})
		}
		if out != nil {
			m["nested"] = out
		}
		out = m
	}
	return out
}

// scoreClause scores parents by the child property: the highest child value
// for descending order, the lowest for ascending.
func (f *Field) scoreClause(dir string) map[string]any {
	mode := "max"
	if dir == "asc" {
		mode = "min"
	}
	q := map[string]any{
		"function_score": map[string]any{
			"query": map[string]any{"match_all": map[string]any{}},
			"script_score": map[string]any{
				"script": map[string]any{
					"source": fmt.Sprintf("doc['%s'].value", f.Property),
				},
			},
		},
	}
	for i := len(f.Levels) - 1; i >= 0; i-- {
		lvl := f.Levels[i]
		q = f.withLevelConditions(lvl, q)
		switch lvl.Kind {
		case LevelNested:
			q = map[string]any{"nested": map[string]any{"path": lvl.Name, "score_mode": mode, "query": q}}
		case LevelHasChild:
			q = map[string]any{"has_child": map[string]any{"type": lvl.Name, "score_mode": mode, "query": q}}
		}
	}
	return q
}
