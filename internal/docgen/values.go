package docgen

import (
	"fmt"
	"strings"

	"github.com/roach88/searchgen/internal/condition"
)

// renderer emits the clauses of one field entry.
type renderer struct {
	name       string
	field      *Field
	occurrence int
}

func (r *renderer) value(v any) (any, error) {
	conv := r.field.conversion
	if conv == nil || conv.fn == nil {
		return v, nil
	}
	h := Hints{
		Field:      r.name,
		Path:       r.field.Path,
		Property:   r.field.Property,
		Value:      v,
		Occurrence: r.occurrence,
	}
	r.occurrence++
	out, err := conv.fn(v, h)
	if err != nil {
		return nil, fmt.Errorf("field %s: value conversion: %w", r.name, err)
	}
	return out, nil
}

func (r *renderer) values(in []any) ([]any, error) {
	out := make([]any, len(in))
	for i, v := range in {
		cv, err := r.value(v)
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

// equality renders one term, or a terms clause for several values.
func (r *renderer) equality(values []any) (map[string]any, error) {
	vs, err := r.values(values)
	if err != nil {
		return nil, err
	}
	prop := r.field.Property
	if len(vs) == 1 {
		return map[string]any{"term": map[string]any{prop: vs[0]}}, nil
	}
	return map[string]any{"terms": map[string]any{prop: vs}}, nil
}

func (r *renderer) rangeClause(rg condition.Range) (map[string]any, error) {
	lower, err := r.value(rg.Lower)
	if err != nil {
		return nil, err
	}
	upper, err := r.value(rg.Upper)
	if err != nil {
		return nil, err
	}
	bounds := map[string]any{}
	if rg.InclusiveLower {
		bounds["gte"] = lower
	} else {
		bounds["gt"] = lower
	}
	if rg.InclusiveUpper {
		bounds["lte"] = upper
	} else {
		bounds["lt"] = upper
	}
	return map[string]any{"range": map[string]any{r.field.Property: bounds}}, nil
}

var compareKeys = map[condition.CompareOperator]string{
	condition.OpLess:         "lt",
	condition.OpLessEqual:    "lte",
	condition.OpGreater:      "gt",
	condition.OpGreaterEqual: "gte",
}

// compares merges directional comparisons into range clauses. A bound that
// is already taken starts a new clause; several clauses are AND-ed.
func (r *renderer) compares(cmps []condition.Compare) (map[string]any, error) {
	var bounds []map[string]any
	for _, cmp := range cmps {
		key, ok := compareKeys[cmp.Operator]
		if !ok {
			continue
		}
		v, err := r.value(cmp.Value)
		if err != nil {
			return nil, err
		}
		placed := false
		for _, b := range bounds {
			if _, taken := b[key]; !taken {
				b[key] = v
				placed = true
				break
			}
		}
		if !placed {
			bounds = append(bounds, map[string]any{key: v})
		}
	}

	switch len(bounds) {
	case 0:
		return nil, nil
	case 1:
		return map[string]any{"range": map[string]any{r.field.Property: bounds[0]}}, nil
	}
	must := make([]any, len(bounds))
	for i, b := range bounds {
		must[i] = map[string]any{"range": map[string]any{r.field.Property: b}}
	}
	return boolQuery(map[string]any{"must": must}), nil
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

func (r *renderer) pattern(p condition.PatternMatch) (map[string]any, error) {
	cv, err := r.value(p.Value)
	if err != nil {
		return nil, err
	}
	prop := r.field.Property

	var kind string
	var value any
	switch p.Kind {
	case condition.PatternEquals:
		if !p.CaseInsensitive {
			return map[string]any{"term": map[string]any{prop: cv}}, nil
		}
		kind, value = "term", cv
	case condition.PatternStartsWith:
		kind, value = "prefix", cv
	case condition.PatternContains:
		kind, value = "wildcard", "*"+wildcardEscaper.Replace(fmt.Sprint(cv))+"*"
	case condition.PatternEndsWith:
		kind, value = "wildcard", "*"+wildcardEscaper.Replace(fmt.Sprint(cv))
	default:
		return nil, fmt.Errorf("field %s: unknown pattern kind %q", r.name, p.Kind)
	}

	body := map[string]any{"value": value}
	if p.CaseInsensitive {
		body["case_insensitive"] = true
	}
	return map[string]any{kind: map[string]any{prop: body}}, nil
}

func (r *renderer) inclusions(bag *condition.ValuesBag) ([]any, error) {
	var out []any
	if vs := bag.SimpleValues(); len(vs) > 0 {
		q, err := r.equality(vs)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	for _, rg := range bag.Ranges() {
		q, err := r.rangeClause(rg)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	q, err := r.compares(bag.Compares())
	if err != nil {
		return nil, err
	}
	if q != nil {
		out = append(out, q)
	}
	for _, p := range bag.PatternMatches() {
		if p.Negated {
			continue
		}
		q, err := r.pattern(p)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (r *renderer) exclusions(bag *condition.ValuesBag) ([]any, error) {
	var out []any
	if vs := bag.ExcludedSimpleValues(); len(vs) > 0 {
		q, err := r.equality(vs)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	for _, rg := range bag.ExcludedRanges() {
		q, err := r.rangeClause(rg)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	for _, cmp := range bag.Compares() {
		if !cmp.Excludes() {
			continue
		}
		q, err := r.equality([]any{cmp.Value})
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	for _, p := range bag.PatternMatches() {
		if !p.Negated {
			continue
		}
		q, err := r.pattern(p)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}
