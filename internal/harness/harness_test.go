package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usersMapping = "testdata/mappings/users.yaml"
	usersSetup   = "INSERT INTO users (id, name, email, age, status) VALUES (1, 'Ada', 'ada@example.com', 36, 'active'), (2, 'Alan', 'Alan@Example.com', 41, 'active')"
)

func usersScenario(condition string) *Scenario {
	return &Scenario{
		Name:        "inline",
		Description: "inline scenario",
		Mapping:     usersMapping,
		Condition:   filepath.Join("testdata", "conditions", condition),
		Setup: []string{
			"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT, age INTEGER, status TEXT)",
			usersSetup,
		},
	}
}

func strPtr(s string) *string { return &s }

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_RecordsOutput(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/sql_values_and_ranges.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NotNil(t, result.Clause)
	assert.Equal(t, "WHERE u.status = :search_0 AND (u.age >= :search_1 AND u.age <= :search_2)", result.Clause.SQL)
	assert.Equal(t, [][]any{{4, 2}}, result.Rows)
	assert.Nil(t, result.Query)
	assert.Empty(t, result.CompileError)
}

func TestRun_DocumentRecordsUsedMappings(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/document_nested.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Nil(t, result.Clause)
	require.NotNil(t, result.Query)
	require.Len(t, result.UsedMappings, 2)
	assert.Equal(t, "comments[].author", result.UsedMappings[1].Target)
}

func TestRun_SQLMismatch(t *testing.T) {
	s := usersScenario("active_adults.yaml")
	s.Expect = &Expect{
		SQL:     strPtr("u.status = :search_0"),
		OrderBy: []string{"u.age ASC"},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "sql mismatch")
	assert.Contains(t, result.Errors[1], "order_by mismatch")
}

func TestRun_ParamMismatch(t *testing.T) {
	tests := []struct {
		name    string
		params  []ParamSpec
		wantErr string
	}{
		{
			name:    "count",
			params:  []ParamSpec{{Name: "search_0", Value: "active"}},
			wantErr: "param count mismatch: expected 1, got 3",
		},
		{
			name: "value type",
			params: []ParamSpec{
				{Name: "search_0", Value: "active"},
				{Name: "search_1", Value: map[string]any{"float": 40}, Type: "integer"},
				{Name: "search_2", Value: 80, Type: "integer"},
			},
			wantErr: "params[1]: expected value 40 (float64), got 40 (int)",
		},
		{
			name: "type",
			params: []ParamSpec{
				{Name: "search_0", Value: "active", Type: "text"},
				{Name: "search_1", Value: 40, Type: "integer"},
				{Name: "search_2", Value: 80, Type: "integer"},
			},
			wantErr: `params[0]: expected type "text", got ""`,
		},
		{
			name: "name",
			params: []ParamSpec{
				{Name: "p0", Value: "active"},
				{Name: "search_1", Value: 40, Type: "integer"},
				{Name: "search_2", Value: 80, Type: "integer"},
			},
			wantErr: "params[0]: expected name p0, got search_0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := usersScenario("active_adults.yaml")
			s.Expect = &Expect{Params: tt.params}

			result, err := Run(s)
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.NotEmpty(t, result.Errors)
			assert.Equal(t, tt.wantErr, result.Errors[0])
		})
	}
}

func TestRun_RowsMismatch(t *testing.T) {
	s := usersScenario("active_adults.yaml")
	s.Assertions = []Assertion{{Type: AssertRows, Query: "SELECT u.id FROM users u", Rows: []any{1}}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected rows [1], got [2]")
}

func TestRun_RowsQueryError(t *testing.T) {
	s := usersScenario("active_adults.yaml")
	s.Assertions = []Assertion{{Type: AssertRows, Query: "SELECT u.id FROM missing u", Rows: []any{}}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no such table")
}

func TestRun_SetupFailure(t *testing.T) {
	s := usersScenario("active_adults.yaml")
	s.Setup = []string{"CREATE TABLE"}
	s.Assertions = []Assertion{{Type: AssertRows, Query: "SELECT 1"}}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0]")
}

func TestRun_StringColumns(t *testing.T) {
	s := usersScenario("active_adults.yaml")
	s.Assertions = []Assertion{{Type: AssertRows, Query: "SELECT u.name FROM users u", Rows: []any{"Alan"}}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ExpectedErrorNotRaised(t *testing.T) {
	s := usersScenario("active_adults.yaml")
	s.Expect = &Expect{Error: "boom"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{`expected error containing "boom", compile succeeded`}, result.Errors)
}

func TestRun_ErrorMismatch(t *testing.T) {
	s := usersScenario("status_pattern.yaml")
	s.Expect = &Expect{Error: "something else"}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "error mismatch")
	assert.Contains(t, result.CompileError, "pattern_match")
}

func TestRun_UnexpectedError(t *testing.T) {
	s := usersScenario("status_pattern.yaml")
	s.Assertions = []Assertion{{Type: AssertCacheStable}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
}

func TestRun_AssertionFailures(t *testing.T) {
	t.Run("param_count", func(t *testing.T) {
		s := usersScenario("active_adults.yaml")
		s.Assertions = []Assertion{{Type: AssertParamCount, Count: 2}}

		result, err := Run(s)
		require.NoError(t, err)
		assert.Equal(t, []string{"assertions[0] (param_count): expected 2 params, got 3"}, result.Errors)
	})

	t.Run("contains", func(t *testing.T) {
		s := usersScenario("active_adults.yaml")
		s.Assertions = []Assertion{{Type: AssertContains, Text: "LIKE"}}

		result, err := Run(s)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Contains(t, result.Errors[0], `"LIKE" not found`)
	})

	t.Run("used_mappings", func(t *testing.T) {
		s := usersScenario("doc_terms.yaml")
		s.Backend = "document"
		s.Assertions = []Assertion{{Type: AssertUsedMappings, Fields: []string{"name", "id"}}}

		result, err := Run(s)
		require.NoError(t, err)
		assert.Equal(t, []string{"assertions[0] (used_mappings): expected [name id], got [id name]"}, result.Errors)
	})
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(1, 1))
	assert.False(t, valuesEqual(1, int64(1)))
	assert.True(t, valuesEqual("a", "a"))
	assert.False(t, valuesEqual("a", 1))
}

func TestColumnValue(t *testing.T) {
	assert.Equal(t, 3, columnValue(int64(3)))
	assert.Equal(t, "x", columnValue([]byte("x")))
	assert.Equal(t, 1.5, columnValue(1.5))
	assert.Nil(t, columnValue(nil))
}
