package condition

// ValuesBag holds one field's values within one group.
//
// Values keep their insertion order. Duplicates are kept as given; the bag
// performs no deduplication.
type ValuesBag struct {
	simple         []any
	excluded       []any
	ranges         []Range
	excludedRanges []Range
	compares       []Compare
	patterns       []PatternMatch
}

// NewValuesBag creates an empty bag.
func NewValuesBag() *ValuesBag {
	return &ValuesBag{}
}

// AddSimpleValue adds an included equality value.
func (b *ValuesBag) AddSimpleValue(v any) *ValuesBag {
	b.simple = append(b.simple, v)
	return b
}

// AddExcludedSimpleValue adds an excluded equality value.
func (b *ValuesBag) AddExcludedSimpleValue(v any) *ValuesBag {
	b.excluded = append(b.excluded, v)
	return b
}

// AddRange adds an included range.
func (b *ValuesBag) AddRange(r Range) *ValuesBag {
	b.ranges = append(b.ranges, r)
	return b
}

// AddExcludedRange adds an excluded range.
func (b *ValuesBag) AddExcludedRange(r Range) *ValuesBag {
	b.excludedRanges = append(b.excludedRanges, r)
	return b
}

// AddCompare adds a comparison.
func (b *ValuesBag) AddCompare(c Compare) *ValuesBag {
	b.compares = append(b.compares, c)
	return b
}

// AddPatternMatch adds a pattern match.
func (b *ValuesBag) AddPatternMatch(p PatternMatch) *ValuesBag {
	b.patterns = append(b.patterns, p)
	return b
}

// Add dispatches on the value kind. Excluded values use AddExcluded.
func (b *ValuesBag) Add(v Value) *ValuesBag {
	switch val := v.(type) {
	case SingleValue:
		return b.AddSimpleValue(val.Value)
	case Range:
		return b.AddRange(val)
	case Compare:
		return b.AddCompare(val)
	case PatternMatch:
		return b.AddPatternMatch(val)
	}
	return b
}

// AddExcluded adds an excluded SingleValue or Range.
// Compare and PatternMatch carry their own negation and are added as-is.
func (b *ValuesBag) AddExcluded(v Value) *ValuesBag {
	switch val := v.(type) {
	case SingleValue:
		return b.AddExcludedSimpleValue(val.Value)
	case Range:
		return b.AddExcludedRange(val)
	default:
		return b.Add(v)
	}
}

func (b *ValuesBag) SimpleValues() []any            { return b.simple }
func (b *ValuesBag) ExcludedSimpleValues() []any    { return b.excluded }
func (b *ValuesBag) Ranges() []Range                { return b.ranges }
func (b *ValuesBag) ExcludedRanges() []Range        { return b.excludedRanges }
func (b *ValuesBag) Compares() []Compare            { return b.compares }
func (b *ValuesBag) PatternMatches() []PatternMatch { return b.patterns }

// Count returns the total number of values in the bag.
func (b *ValuesBag) Count() int {
	return len(b.simple) + len(b.excluded) + len(b.ranges) + len(b.excludedRanges) +
		len(b.compares) + len(b.patterns)
}

// Empty reports whether the bag holds no values.
func (b *ValuesBag) Empty() bool {
	return b == nil || b.Count() == 0
}

// Has reports whether the bag holds at least one value of the given kind.
func (b *ValuesBag) Has(kind ValueKind) bool {
	if b == nil {
		return false
	}
	switch kind {
	case KindSimpleValue:
		return len(b.simple) > 0
	case KindExcludedSimpleValue:
		return len(b.excluded) > 0
	case KindRange:
		return len(b.ranges) > 0
	case KindExcludedRange:
		return len(b.excludedRanges) > 0
	case KindCompare:
		return len(b.compares) > 0
	case KindPatternMatch:
		return len(b.patterns) > 0
	}
	return false
}

// Kinds returns the kinds present in the bag, in AllKinds order.
func (b *ValuesBag) Kinds() []ValueKind {
	var kinds []ValueKind
	for _, k := range AllKinds {
		if b.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
