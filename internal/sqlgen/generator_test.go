package sqlgen

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/mapping"
)

// newGen builds a generator with "col" mapped to column "col".
func newGen(t *testing.T, cond *condition.SearchCondition, opts ...Option) *Generator {
	t.Helper()
	gen, err := New(cond, opts...)
	require.NoError(t, err)
	require.NoError(t, gen.SetField("col", "col"))
	return gen
}

func singleField(build func(b *condition.ValuesBag)) *condition.SearchCondition {
	root := condition.NewGroup(condition.LogicalAnd)
	build(root.Field("col"))
	return condition.New(root)
}

func TestNewRequiresCondition(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrMissingCondition)
}

func TestCompile_FieldComposition(t *testing.T) {
	tests := []struct {
		name   string
		build  func(b *condition.ValuesBag)
		sql    string
		params []any
	}{
		{
			name:   "single include",
			build:  func(b *condition.ValuesBag) { b.AddSimpleValue(2) },
			sql:    "col = :search_0",
			params: []any{2},
		},
		{
			name:   "two includes",
			build:  func(b *condition.ValuesBag) { b.AddSimpleValue(2).AddSimpleValue(5) },
			sql:    "(col = :search_0 OR col = :search_1)",
			params: []any{2, 5},
		},
		{
			name:   "include and exclude",
			build:  func(b *condition.ValuesBag) { b.AddSimpleValue(2).AddExcludedSimpleValue(5) },
			sql:    "(col = :search_0 AND col <> :search_1)",
			params: []any{2, 5},
		},
		{
			name:   "inclusive range",
			build:  func(b *condition.ValuesBag) { b.AddRange(condition.NewRange(2, 5)) },
			sql:    "col >= :search_0 AND col <= :search_1",
			params: []any{2, 5},
		},
		{
			name: "exclusive lower bound",
			build: func(b *condition.ValuesBag) {
				b.AddRange(condition.Range{Lower: 60, Upper: 70, InclusiveLower: false, InclusiveUpper: true})
			},
			sql:    "col > :search_0 AND col <= :search_1",
			params: []any{60, 70},
		},
		{
			name:   "excluded range",
			build:  func(b *condition.ValuesBag) { b.AddExcludedRange(condition.NewRange(2, 5)) },
			sql:    "col < :search_0 OR col > :search_1",
			params: []any{2, 5},
		},
		{
			name: "excluded range with exclusive bounds",
			build: func(b *condition.ValuesBag) {
				b.AddExcludedRange(condition.Range{Lower: 2, Upper: 5})
			},
			sql:    "col <= :search_0 OR col >= :search_1",
			params: []any{2, 5},
		},
		{
			name: "value and range",
			build: func(b *condition.ValuesBag) {
				b.AddSimpleValue(1).AddRange(condition.NewRange(2, 5))
			},
			sql:    "(col = :search_0 OR (col >= :search_1 AND col <= :search_2))",
			params: []any{1, 2, 5},
		},
		{
			name: "range and excluded value",
			build: func(b *condition.ValuesBag) {
				b.AddRange(condition.NewRange(2, 5)).AddExcludedSimpleValue(3)
			},
			sql:    "((col >= :search_0 AND col <= :search_1) AND col <> :search_2)",
			params: []any{2, 5, 3},
		},
		{
			name: "single compare",
			build: func(b *condition.ValuesBag) {
				b.AddCompare(condition.Compare{Value: 10, Operator: condition.OpGreater})
			},
			sql:    "col > :search_0",
			params: []any{10},
		},
		{
			name: "directional compares are AND-ed",
			build: func(b *condition.ValuesBag) {
				b.AddSimpleValue(1).
					AddCompare(condition.Compare{Value: 10, Operator: condition.OpGreater}).
					AddCompare(condition.Compare{Value: 20, Operator: condition.OpLessEqual})
			},
			sql:    "(col = :search_0 OR (col > :search_1 AND col <= :search_2))",
			params: []any{1, 10, 20},
		},
		{
			name: "not-equal compare is an exclusion",
			build: func(b *condition.ValuesBag) {
				b.AddCompare(condition.Compare{Value: 10, Operator: condition.OpNotEqual}).
					AddExcludedSimpleValue(11)
			},
			sql:    "(col <> :search_0 AND col <> :search_1)",
			params: []any{11, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newGen(t, singleField(tt.build))
			clause, err := gen.Compile("")
			require.NoError(t, err)
			assert.Equal(t, tt.sql, clause.SQL)
			assert.Equal(t, tt.params, paramValues(clause))
		})
	}
}

func paramValues(c Clause) []any {
	out := make([]any, len(c.Params))
	for i, p := range c.Params {
		out[i] = p.Value
	}
	return out
}

func TestCompile_Patterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern condition.PatternMatch
		sql     string
		value   string
	}{
		{
			name:    "contains",
			pattern: condition.PatternMatch{Value: "foo", Kind: condition.PatternContains},
			sql:     `col LIKE :search_0 ESCAPE '\'`,
			value:   "%foo%",
		},
		{
			name:    "starts with escapes wildcards",
			pattern: condition.PatternMatch{Value: "50%_off", Kind: condition.PatternStartsWith},
			sql:     `col LIKE :search_0 ESCAPE '\'`,
			value:   `50\%\_off%`,
		},
		{
			name:    "ends with",
			pattern: condition.PatternMatch{Value: "bar", Kind: condition.PatternEndsWith},
			sql:     `col LIKE :search_0 ESCAPE '\'`,
			value:   "%bar",
		},
		{
			name:    "equals",
			pattern: condition.PatternMatch{Value: "bar", Kind: condition.PatternEquals},
			sql:     `col = :search_0`,
			value:   "bar",
		},
		{
			name:    "negated contains",
			pattern: condition.PatternMatch{Value: "foo", Kind: condition.PatternContains, Negated: true},
			sql:     `col NOT LIKE :search_0 ESCAPE '\'`,
			value:   "%foo%",
		},
		{
			name:    "negated equals",
			pattern: condition.PatternMatch{Value: "foo", Kind: condition.PatternEquals, Negated: true},
			sql:     `col <> :search_0`,
			value:   "foo",
		},
		{
			name:    "case insensitive",
			pattern: condition.PatternMatch{Value: "FOO", Kind: condition.PatternContains, CaseInsensitive: true},
			sql:     `LOWER(col) LIKE :search_0 ESCAPE '\'`,
			value:   "%foo%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newGen(t, singleField(func(b *condition.ValuesBag) { b.AddPatternMatch(tt.pattern) }))
			clause, err := gen.Compile("")
			require.NoError(t, err)
			assert.Equal(t, tt.sql, clause.SQL)
			assert.Equal(t, []any{tt.value}, paramValues(clause))
		})
	}
}

func TestCompile_EmptyCondition(t *testing.T) {
	gen := newGen(t, condition.New(nil))
	clause, err := gen.Compile("WHERE ")
	require.NoError(t, err)
	assert.Equal(t, "", clause.SQL)
	assert.Empty(t, clause.Params)
	assert.True(t, clause.Empty())
}

func TestCompile_Prefix(t *testing.T) {
	gen := newGen(t, singleField(func(b *condition.ValuesBag) { b.AddSimpleValue(2) }))
	clause, err := gen.Compile("WHERE ")
	require.NoError(t, err)
	assert.Equal(t, "WHERE col = :search_0", clause.SQL)
}

func TestCompile_CombinedField(t *testing.T) {
	root := condition.NewGroup(condition.LogicalAnd)
	root.Field("name").AddSimpleValue(2).AddSimpleValue(5)
	cond := condition.New(root)

	gen, err := New(cond)
	require.NoError(t, err)
	// Registered out of token order on purpose.
	require.NoError(t, gen.SetField("name#2", "b"))
	require.NoError(t, gen.SetField("name#1", "a"))

	clause, err := gen.Compile("")
	require.NoError(t, err)
	assert.Equal(t, "(a = :search_0 OR a = :search_1 OR b = :search_2 OR b = :search_3)", clause.SQL)
	assert.Equal(t, []any{2, 5, 2, 5}, paramValues(clause))
}

func TestCompile_CombinedFieldExclusions(t *testing.T) {
	root := condition.NewGroup(condition.LogicalAnd)
	root.Field("name").AddSimpleValue(2).AddExcludedSimpleValue(3)

	gen, err := New(condition.New(root))
	require.NoError(t, err)
	require.NoError(t, gen.SetField("name#1", "a"))
	require.NoError(t, gen.SetField("name#2", "b"))

	clause, err := gen.Compile("")
	require.NoError(t, err)
	assert.Equal(t,
		"((a = :search_0 OR b = :search_2) AND (a <> :search_1 AND b <> :search_3))",
		clause.SQL)
}

func TestCompile_NestedGroups(t *testing.T) {
	root := condition.NewGroup(condition.LogicalOr)
	root.Group(condition.LogicalAnd).Field("col").AddSimpleValue(2)
	root.Group(condition.LogicalAnd).Field("col").AddSimpleValue(3)

	gen := newGen(t, condition.New(root))
	clause, err := gen.Compile("")
	require.NoError(t, err)
	assert.Equal(t, "((col = :search_0)) OR ((col = :search_1))", clause.SQL)
	assert.Equal(t, []any{2, 3}, paramValues(clause))
}

func TestCompile_FieldsAndChildren(t *testing.T) {
	root := condition.NewGroup(condition.LogicalAnd)
	root.Field("col").AddRange(condition.NewRange(1, 9))
	child := root.Group(condition.LogicalOr)
	child.Field("col").AddSimpleValue(3)
	child.Field("other").AddSimpleValue(4)
	root.Group(condition.LogicalAnd) // empty child contributes nothing

	gen := newGen(t, condition.New(root))
	require.NoError(t, gen.SetField("other", "other", WithAlias("o")))

	clause, err := gen.Compile("")
	require.NoError(t, err)
	assert.Equal(t,
		"(col >= :search_0 AND col <= :search_1) AND ((col = :search_2 OR o.other = :search_3))",
		clause.SQL)
}

func TestCompile_UnmappedFieldsDropped(t *testing.T) {
	root := condition.NewGroup(condition.LogicalAnd)
	root.Field("unknown").AddSimpleValue(1)
	root.Field("col").AddSimpleValue(2)

	gen := newGen(t, condition.New(root))
	clause, err := gen.Compile("")
	require.NoError(t, err)
	assert.Equal(t, "col = :search_0", clause.SQL)
}

func TestCompile_PrimaryCondition(t *testing.T) {
	primary := condition.NewGroup(condition.LogicalAnd)
	primary.Field("status").AddSimpleValue(1).AddSimpleValue(2)

	t.Run("empty root yields primary alone", func(t *testing.T) {
		cond := condition.New(nil).WithPrimary(primary)
		gen := newGen(t, cond)
		require.NoError(t, gen.SetField("status", "status"))

		clause, err := gen.Compile("WHERE ")
		require.NoError(t, err)
		assert.Equal(t, "WHERE (status = :search_0 OR status = :search_1)", clause.SQL)
	})

	t.Run("primary is AND-ed before an OR root", func(t *testing.T) {
		root := condition.NewGroup(condition.LogicalOr)
		root.Field("col").AddSimpleValue(7)
		root.Field("other").AddSimpleValue(8)
		cond := condition.New(root).WithPrimary(primary)

		gen := newGen(t, cond)
		require.NoError(t, gen.SetField("status", "status"))
		require.NoError(t, gen.SetField("other", "other"))

		clause, err := gen.Compile("")
		require.NoError(t, err)
		assert.Equal(t,
			"(status = :search_0 OR status = :search_1) AND (col = :search_2 OR other = :search_3)",
			clause.SQL)
		assert.Equal(t, []any{1, 2, 7, 8}, paramValues(clause))
	})
}

func TestCompile_Idempotent(t *testing.T) {
	root := condition.NewGroup(condition.LogicalOr)
	root.Field("col").AddSimpleValue(1).AddRange(condition.NewRange(3, 4))
	root.Group(condition.LogicalAnd).Field("col").AddExcludedSimpleValue(9)

	gen := newGen(t, condition.New(root))
	first, err := gen.Compile("WHERE ")
	require.NoError(t, err)
	second, err := gen.Compile("WHERE ")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSetField_Errors(t *testing.T) {
	gen, err := New(condition.New(nil))
	require.NoError(t, err)

	err = gen.SetField("id", "")
	assert.ErrorIs(t, err, mapping.ErrInvalidMapping)

	err = gen.SetField("bad name", "col")
	assert.ErrorIs(t, err, mapping.ErrInvalidFieldName)

	require.NoError(t, gen.SetField("id", "id"))
	_, err = gen.Compile("")
	require.NoError(t, err)

	err = gen.SetField("late", "late")
	assert.ErrorIs(t, err, mapping.ErrRegistryFrozen)
}

func TestCompile_UnsupportedValueKind(t *testing.T) {
	cond := singleField(func(b *condition.ValuesBag) {
		b.AddRange(condition.NewRange(1, 2))
	})
	gen, err := New(cond)
	require.NoError(t, err)
	require.NoError(t, gen.SetField("col", "col",
		WithDescriptor(mapping.Accepts(condition.KindSimpleValue))))

	_, err = gen.Compile("")
	assert.ErrorIs(t, err, mapping.ErrUnsupportedValueKind)
}

func TestCompile_TypeHint(t *testing.T) {
	gen, err := New(singleField(func(b *condition.ValuesBag) { b.AddSimpleValue(2) }))
	require.NoError(t, err)
	require.NoError(t, gen.SetField("col", "id", WithAlias("u"), WithType("integer")))

	clause, err := gen.Compile("")
	require.NoError(t, err)
	assert.Equal(t, "u.id = :search_0", clause.SQL)
	assert.Equal(t, []Param{{Name: "search_0", Value: 2, Type: "integer"}}, clause.Params)
}

func TestCompile_PlaceholderOptions(t *testing.T) {
	gen := newGen(t,
		singleField(func(b *condition.ValuesBag) { b.AddSimpleValue(2) }),
		WithPlaceholderStyle(StyleAt),
		WithParamPrefix("p"),
	)
	clause, err := gen.Compile("")
	require.NoError(t, err)
	assert.Equal(t, "col = @p0", clause.SQL)
	assert.Equal(t, "p0", clause.Params[0].Name)
}

func TestCompile_Conversions(t *testing.T) {
	birthday := time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)
	cond := singleField(func(b *condition.ValuesBag) {
		b.AddSimpleValue(18).AddSimpleValue(birthday)
	})

	const (
		strategyAge = iota + 1
		strategyDate
	)
	var seen []Hints
	conv := Conversion{
		Name: "age",
		Strategy: func(v any) int {
			if _, ok := v.(int); ok {
				return strategyAge
			}
			return strategyDate
		},
		Column: func(column string, h Hints) (string, error) {
			seen = append(seen, h)
			if h.Strategy == strategyAge {
				return "date_part('year', age(" + column + "))", nil
			}
			return column, nil
		},
		Value: func(v any, h Hints) (string, error) {
			if h.Strategy == strategyDate {
				return "CAST(" + h.Param(v, "date") + " AS DATE)", nil
			}
			return h.Param(v, h.Type), nil
		},
	}

	gen, err := New(cond)
	require.NoError(t, err)
	require.NoError(t, gen.SetField("col", "birthday", WithAlias("u"), WithType("integer"), WithConversion(conv)))

	clause, err := gen.Compile("")
	require.NoError(t, err)
	assert.Equal(t,
		"(date_part('year', age(u.birthday)) = :search_0 OR u.birthday = CAST(:search_1 AS DATE))",
		clause.SQL)
	assert.Equal(t, []Param{
		{Name: "search_0", Value: 18, Type: "integer"},
		{Name: "search_1", Value: birthday, Type: "date"},
	}, clause.Params)

	require.Len(t, seen, 2)
	assert.Equal(t, "col", seen[0].Field)
	assert.Equal(t, "u", seen[0].Alias)
	assert.Equal(t, 0, seen[0].Occurrence)
	assert.Equal(t, 1, seen[1].Occurrence)
	assert.Equal(t, birthday, seen[1].Value)
}

func TestCompile_ConversionError(t *testing.T) {
	boom := errors.New("boom")
	gen, err := New(singleField(func(b *condition.ValuesBag) { b.AddSimpleValue(1) }))
	require.NoError(t, err)
	require.NoError(t, gen.SetField("col", "col", WithConversion(Conversion{
		Value: func(any, Hints) (string, error) { return "", boom },
	})))

	_, err = gen.Compile("")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "value conversion")
}

func TestCompile_OrderBy(t *testing.T) {
	root := condition.NewGroup(condition.LogicalAnd)
	root.Field("col").AddSimpleValue(1)
	primary := condition.NewGroup(condition.LogicalAnd)
	cond := condition.New(root).
		OrderBy("@id", condition.Desc).
		OrderBy("unmapped", condition.Asc).
		WithPrimary(primary, condition.OrderEntry{Field: "col", Direction: condition.Asc})

	gen := newGen(t, cond)
	require.NoError(t, gen.SetField("@id", "id", WithAlias("u")))

	clause, err := gen.Compile("")
	require.NoError(t, err)
	assert.Equal(t, []string{"u.id DESC", "col ASC"}, clause.OrderBy)
	assert.Equal(t, "ORDER BY u.id DESC, col ASC", clause.OrderByClause())
	assert.Equal(t, "", Clause{}.OrderByClause())
}

func TestCompile_OrderByDoesNotCallStrategy(t *testing.T) {
	cond := singleField(func(b *condition.ValuesBag) { b.AddSimpleValue(18) }).
		OrderBy("col", condition.Desc)

	var sorted []Hints
	conv := Conversion{
		Name:     "age",
		Strategy: func(v any) int { return v.(int) },
		Column: func(column string, h Hints) (string, error) {
			if h.Value == nil {
				sorted = append(sorted, h)
				return column, nil
			}
			return "date_part('year', age(" + column + "))", nil
		},
	}
	gen, err := New(cond)
	require.NoError(t, err)
	require.NoError(t, gen.SetField("col", "birthday", WithConversion(conv)))

	var clause Clause
	require.NotPanics(t, func() {
		clause, err = gen.Compile("")
	})
	require.NoError(t, err)
	assert.Equal(t, "date_part('year', age(birthday)) = :search_0", clause.SQL)
	assert.Equal(t, []string{"birthday DESC"}, clause.OrderBy)
	require.Len(t, sorted, 1)
	assert.Equal(t, 0, sorted[0].Strategy)
	assert.Equal(t, "col", sorted[0].Field)
}

func TestCompile_CaseInsensitiveConvertedColumn(t *testing.T) {
	tests := []struct {
		name   string
		column func(string) string
		sql    string
	}{
		{"already lowered", func(c string) string { return "LOWER(" + c + ")" }, `LOWER(col) LIKE :search_0 ESCAPE '\'`},
		{"lower case call", func(c string) string { return "lower(" + c + ")" }, `lower(col) LIKE :search_0 ESCAPE '\'`},
		{"trimmed", func(c string) string { return "TRIM(" + c + ")" }, `LOWER(TRIM(col)) LIKE :search_0 ESCAPE '\'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := singleField(func(b *condition.ValuesBag) {
				b.AddPatternMatch(condition.PatternMatch{Value: "Ada", Kind: condition.PatternContains, CaseInsensitive: true})
			})
			gen, err := New(cond)
			require.NoError(t, err)
			require.NoError(t, gen.SetField("col", "col", WithConversion(Conversion{
				Name: tt.name,
				Column: func(column string, _ Hints) (string, error) {
					return tt.column(column), nil
				},
			})))

			clause, err := gen.Compile("")
			require.NoError(t, err)
			assert.Equal(t, tt.sql, clause.SQL)
			assert.Equal(t, []any{"%ada%"}, paramValues(clause))
		})
	}
}

func TestIsLowered(t *testing.T) {
	tests := []struct {
		col  string
		want bool
	}{
		{"LOWER(u.email)", true},
		{"lower(u.email)", true},
		{"LOWER(TRIM(u.email))", true},
		{"LOWER(a) || LOWER(b)", false},
		{"LOWER(a) || UPPER(b)", false},
		{"TRIM(LOWER(a))", false},
		{"LOWER()", true},
		{"LOWER(", false},
		{"u.email", false},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			assert.Equal(t, tt.want, isLowered(tt.col))
		})
	}
}

func TestSignature_OrderIndependent(t *testing.T) {
	cond := condition.New(nil)

	a, err := New(cond)
	require.NoError(t, err)
	require.NoError(t, a.SetField("id", "id"))
	require.NoError(t, a.SetField("name", "name", WithConversion(Conversion{Name: "lower"})))

	b, err := New(cond)
	require.NoError(t, err)
	require.NoError(t, b.SetField("name", "name", WithConversion(Conversion{Name: "lower"})))
	require.NoError(t, b.SetField("id", "id"))

	assert.Equal(t, a.Signature(), b.Signature())

	c, err := New(cond)
	require.NoError(t, err)
	require.NoError(t, c.SetField("id", "identifier"))
	require.NoError(t, c.SetField("name", "name", WithConversion(Conversion{Name: "lower"})))
	assert.NotEqual(t, a.Signature(), c.Signature())
}

func TestBindTo(t *testing.T) {
	clause := Clause{Params: []Param{
		{Name: "search_0", Value: 1, Type: "integer"},
		{Name: "search_1", Value: "x"},
	}}

	var bound []string
	err := clause.BindTo(BinderFunc(func(name string, value any, typ string) error {
		bound = append(bound, fmt.Sprintf("%s=%v/%s", name, value, typ))
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"search_0=1/integer", "search_1=x/"}, bound)

	fail := errors.New("closed")
	err = clause.BindTo(BinderFunc(func(string, any, string) error { return fail }))
	assert.ErrorIs(t, err, fail)
	assert.Contains(t, err.Error(), "bind search_0")
}

func TestClauseArgs(t *testing.T) {
	clause := Clause{Params: []Param{{Name: "search_0", Value: 1}, {Name: "search_1", Value: "x"}}}

	assert.Equal(t, map[string]any{"search_0": 1, "search_1": "x"}, clause.Map())
	assert.Equal(t, 1, clause.PgxArgs()["search_0"])
	assert.Len(t, clause.NamedArgs(), 2)
}
