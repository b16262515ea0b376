package loader

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/searchgen/internal/condition"
)

// ConditionFile is a search condition fixture.
//
//	logical: AND
//	fields:
//	  - name: status
//	    values: [1, 2]
//	    excluded: [3]
//	  - name: created
//	    ranges:
//	      - {lower: {time: "2024-01-01T00:00:00Z"}, upper: {time: "2024-02-01T00:00:00Z"}}
//	groups:
//	  - logical: OR
//	    fields:
//	      - name: title
//	        patterns: [{kind: CONTAINS, value: "go", case_insensitive: true}]
//	order:
//	  - {field: created, direction: DESC}
//
// Fields are a list so that field order, which is observable in the
// compiled output, survives decoding.
//
// A value is a scalar, or a single-key map tagging its type:
// {time: RFC3339}, {uuid: string}, {float: number}.
type ConditionFile struct {
	GroupSpec `yaml:",inline"`
	Primary   *PrimarySpec `yaml:"primary" json:"primary,omitempty"`
	Order     []OrderSpec  `yaml:"order" json:"order,omitempty"`
}

// GroupSpec is one group of the fixture.
type GroupSpec struct {
	Logical string      `yaml:"logical" json:"logical,omitempty"`
	Fields  []BagSpec   `yaml:"fields" json:"fields,omitempty"`
	Groups  []GroupSpec `yaml:"groups" json:"groups,omitempty"`
}

// PrimarySpec is the primary condition of the fixture.
type PrimarySpec struct {
	GroupSpec `yaml:",inline"`
	Order     []OrderSpec `yaml:"order" json:"order,omitempty"`
}

// BagSpec holds the values of one field.
type BagSpec struct {
	Name           string        `yaml:"name" json:"name"`
	Values         []any         `yaml:"values" json:"values,omitempty"`
	Excluded       []any         `yaml:"excluded" json:"excluded,omitempty"`
	Ranges         []RangeSpec   `yaml:"ranges" json:"ranges,omitempty"`
	ExcludedRanges []RangeSpec   `yaml:"excluded_ranges" json:"excluded_ranges,omitempty"`
	Compares       []CompareSpec `yaml:"compares" json:"compares,omitempty"`
	Patterns       []PatternSpec `yaml:"patterns" json:"patterns,omitempty"`
}

// RangeSpec is inclusive on both bounds unless stated otherwise.
type RangeSpec struct {
	Lower          any   `yaml:"lower" json:"lower"`
	Upper          any   `yaml:"upper" json:"upper"`
	InclusiveLower *bool `yaml:"inclusive_lower" json:"inclusive_lower,omitempty"`
	InclusiveUpper *bool `yaml:"inclusive_upper" json:"inclusive_upper,omitempty"`
}

type CompareSpec struct {
	Op    string `yaml:"op" json:"op"`
	Value any    `yaml:"value" json:"value"`
}

type PatternSpec struct {
	Kind            string `yaml:"kind" json:"kind"`
	Value           string `yaml:"value" json:"value"`
	Negated         bool   `yaml:"negated" json:"negated,omitempty"`
	CaseInsensitive bool   `yaml:"case_insensitive" json:"case_insensitive,omitempty"`
}

type OrderSpec struct {
	Field     string `yaml:"field" json:"field"`
	Direction string `yaml:"direction" json:"direction,omitempty"`
}

// LoadCondition reads a condition fixture (.yaml, .yml or .cue) and
// returns a validated SearchCondition.
func LoadCondition(path string) (*condition.SearchCondition, error) {
	var cf ConditionFile
	if err := decodeFile(path, &cf); err != nil {
		return nil, err
	}
	cond, err := cf.Build()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Path: path, Message: err.Error(), Err: err}
	}
	return cond, nil
}

// Build converts the fixture into a SearchCondition.
func (cf *ConditionFile) Build() (*condition.SearchCondition, error) {
	root, err := cf.GroupSpec.build("root")
	if err != nil {
		return nil, err
	}
	cond := condition.New(root)
	cond.Order = orderEntries(cf.Order)

	if cf.Primary != nil {
		group, err := cf.Primary.GroupSpec.build("primary")
		if err != nil {
			return nil, err
		}
		cond.WithPrimary(group, orderEntries(cf.Primary.Order)...)
	}

	if err := cond.Validate(); err != nil {
		return nil, err
	}
	return cond, nil
}

func (gs GroupSpec) build(path string) (*condition.ValuesGroup, error) {
	logical := condition.LogicalAnd
	if gs.Logical != "" {
		logical = condition.Logical(gs.Logical)
		if !logical.Valid() {
			return nil, fmt.Errorf("%s: invalid logical operator %q", path, gs.Logical)
		}
	}
	g := condition.NewGroup(logical)

	for _, bs := range gs.Fields {
		if bs.Name == "" {
			return nil, fmt.Errorf("%s: field without name", path)
		}
		if _, dup := g.Lookup(bs.Name); dup {
			return nil, fmt.Errorf("%s: field %q listed twice", path, bs.Name)
		}
		if err := bs.fill(g.Field(bs.Name)); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", path, bs.Name, err)
		}
	}
	for i, child := range gs.Groups {
		cg, err := child.build(fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		g.AddChild(cg)
	}
	return g, nil
}

func (bs BagSpec) fill(bag *condition.ValuesBag) error {
	for _, raw := range bs.Values {
		v, err := NormalizeValue(raw)
		if err != nil {
			return err
		}
		bag.AddSimpleValue(v)
	}
	for _, raw := range bs.Excluded {
		v, err := NormalizeValue(raw)
		if err != nil {
			return err
		}
		bag.AddExcludedSimpleValue(v)
	}
	for _, rs := range bs.Ranges {
		r, err := rs.build()
		if err != nil {
			return err
		}
		bag.AddRange(r)
	}
	for _, rs := range bs.ExcludedRanges {
		r, err := rs.build()
		if err != nil {
			return err
		}
		bag.AddExcludedRange(r)
	}
	for _, cs := range bs.Compares {
		v, err := NormalizeValue(cs.Value)
		if err != nil {
			return err
		}
		bag.AddCompare(condition.Compare{Operator: condition.CompareOperator(cs.Op), Value: v})
	}
	for _, ps := range bs.Patterns {
		bag.AddPatternMatch(condition.PatternMatch{
			Value:           ps.Value,
			Kind:            condition.PatternKind(ps.Kind),
			Negated:         ps.Negated,
			CaseInsensitive: ps.CaseInsensitive,
		})
	}
	return nil
}

func (rs RangeSpec) build() (condition.Range, error) {
	lower, err := NormalizeValue(rs.Lower)
	if err != nil {
		return condition.Range{}, err
	}
	upper, err := NormalizeValue(rs.Upper)
	if err != nil {
		return condition.Range{}, err
	}
	r := condition.NewRange(lower, upper)
	if rs.InclusiveLower != nil {
		r.InclusiveLower = *rs.InclusiveLower
	}
	if rs.InclusiveUpper != nil {
		r.InclusiveUpper = *rs.InclusiveUpper
	}
	return r, nil
}

func orderEntries(specs []OrderSpec) []condition.OrderEntry {
	if len(specs) == 0 {
		return nil
	}
	out := make([]condition.OrderEntry, 0, len(specs))
	for _, s := range specs {
		dir := condition.Asc
		if s.Direction != "" {
			dir = condition.Direction(s.Direction)
		}
		out = append(out, condition.OrderEntry{Field: s.Field, Direction: dir})
	}
	return out
}

func normalizeValues(raw []any) ([]any, error) {
	out := make([]any, 0, len(raw))
	for _, r := range raw {
		v, err := NormalizeValue(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// NormalizeValue maps decoded YAML/CUE values onto the Go types the
// generators bind: int, float64, string, bool, time.Time, uuid.UUID.
func NormalizeValue(raw any) (any, error) {
	switch v := raw.(type) {
	case nil, string, bool, int, float64:
		return v, nil
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return nil, fmt.Errorf("integer %d out of range", v)
		}
		return int(v), nil
	case uint64:
		if v > math.MaxInt {
			return nil, fmt.Errorf("integer %d out of range", v)
		}
		return int(v), nil
	case map[string]any:
		return taggedValue(v)
	default:
		return nil, fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}

func taggedValue(m map[string]any) (any, error) {
	if len(m) != 1 {
		return nil, fmt.Errorf("typed value must have exactly one key, got %d", len(m))
	}
	for tag, raw := range m {
		switch tag {
		case "time":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("time value must be a string, got %T", raw)
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("time value: %w", err)
			}
			return t.UTC(), nil
		case "uuid":
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("uuid value must be a string, got %T", raw)
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("uuid value: %w", err)
			}
			return id, nil
		case "float":
			switch n := raw.(type) {
			case float64:
				return n, nil
			case int:
				return float64(n), nil
			case int64:
				return float64(n), nil
			}
			return nil, fmt.Errorf("float value must be a number, got %T", raw)
		default:
			return nil, fmt.Errorf("unknown value tag %q", tag)
		}
	}
	return nil, nil
}
