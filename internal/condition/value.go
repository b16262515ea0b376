package condition

import "fmt"

// Value is a sealed interface for the value kinds a ValuesBag can hold.
// Only types in this package implement it.
type Value interface {
	conditionValue()
}

// ValueKind identifies one slot of a ValuesBag.
type ValueKind string

const (
	KindSimpleValue         ValueKind = "simple_value"
	KindExcludedSimpleValue ValueKind = "excluded_simple_value"
	KindRange               ValueKind = "range"
	KindExcludedRange       ValueKind = "excluded_range"
	KindCompare             ValueKind = "compare"
	KindPatternMatch        ValueKind = "pattern_match"
)

// AllKinds lists every ValueKind in a stable order.
var AllKinds = []ValueKind{
	KindSimpleValue,
	KindExcludedSimpleValue,
	KindRange,
	KindExcludedRange,
	KindCompare,
	KindPatternMatch,
}

// SingleValue is one equality candidate.
type SingleValue struct {
	Value any
}

func (SingleValue) conditionValue() {}

// Range matches values between Lower and Upper.
//
// Inclusivity is per bound: InclusiveLower=true renders ">=", false renders ">".
type Range struct {
	Lower          any
	Upper          any
	InclusiveLower bool
	InclusiveUpper bool
}

func (Range) conditionValue() {}

// NewRange creates a range that is inclusive on both bounds.
func NewRange(lower, upper any) Range {
	return Range{Lower: lower, Upper: upper, InclusiveLower: true, InclusiveUpper: true}
}

// CompareOperator is a directional or inequality comparison.
type CompareOperator string

const (
	OpLess         CompareOperator = "<"
	OpLessEqual    CompareOperator = "<="
	OpGreater      CompareOperator = ">"
	OpGreaterEqual CompareOperator = ">="
	OpNotEqual     CompareOperator = "<>"
)

// Valid reports whether op is one of the known operators.
func (op CompareOperator) Valid() bool {
	switch op {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpNotEqual:
		return true
	}
	return false
}

// Compare is a single comparison against Value.
type Compare struct {
	Value    any
	Operator CompareOperator
}

func (Compare) conditionValue() {}

// Excludes reports whether the comparison belongs to the exclusion set.
func (c Compare) Excludes() bool {
	return c.Operator == OpNotEqual
}

// PatternKind selects how a PatternMatch value is matched.
type PatternKind string

const (
	PatternContains   PatternKind = "CONTAINS"
	PatternStartsWith PatternKind = "STARTS_WITH"
	PatternEndsWith   PatternKind = "ENDS_WITH"
	PatternEquals     PatternKind = "EQUALS"
)

// Valid reports whether k is one of the known pattern kinds.
func (k PatternKind) Valid() bool {
	switch k {
	case PatternContains, PatternStartsWith, PatternEndsWith, PatternEquals:
		return true
	}
	return false
}

// PatternMatch is a textual pattern. Negated patterns belong to the exclusion set.
type PatternMatch struct {
	Value           string
	Kind            PatternKind
	Negated         bool
	CaseInsensitive bool
}

func (PatternMatch) conditionValue() {}

// String renders the pattern for diagnostics.
func (p PatternMatch) String() string {
	neg := ""
	if p.Negated {
		neg = "!"
	}
	ci := ""
	if p.CaseInsensitive {
		ci = "i"
	}
	return fmt.Sprintf("%s%s%s(%q)", neg, p.Kind, ci, p.Value)
}
