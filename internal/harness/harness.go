package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/searchgen/internal/cache"
	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/docgen"
	"github.com/roach88/searchgen/internal/loader"
	"github.com/roach88/searchgen/internal/sqlgen"
)

// harness holds the state of one scenario run.
type harness struct {
	scenario *Scenario
	mapping  *loader.MappingFile
	cond     *condition.SearchCondition

	// body is the un-prefixed SQL clause used by rows assertions.
	body sqlgen.Clause
	db   *sqlx.DB
}

// Run executes a scenario and returns the result.
//
// Load, setup and compile errors are compared against expect.error and
// recorded on the result. The returned error is reserved for failures of
// the harness itself, such as the SQLite database not opening.
func Run(scenario *Scenario) (*Result, error) {
	h := &harness{scenario: scenario}
	defer h.close()

	result := NewResult()
	if err := h.compile(result); err != nil {
		if !h.expectError(result, err) {
			result.AddError(fmt.Sprintf("unexpected error: %v", err))
		}
		return result, nil
	}
	if exp := scenario.Expect; exp != nil && exp.Error != "" {
		result.AddError(fmt.Sprintf("expected error containing %q, compile succeeded", exp.Error))
		return result, nil
	}

	h.checkExpect(result)

	ctx := context.Background()
	for i, a := range scenario.Assertions {
		if err := h.evaluate(ctx, i, a, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (h *harness) close() {
	if h.db != nil {
		h.db.Close()
	}
}

// compile loads both input files and compiles for the scenario backend.
func (h *harness) compile(result *Result) error {
	mf, err := loader.LoadMappings(h.scenario.Mapping)
	if err != nil {
		return err
	}
	cond, err := loader.LoadCondition(h.scenario.Condition)
	if err != nil {
		return err
	}
	h.mapping, h.cond = mf, cond

	switch h.scenario.backend() {
	case sqlgen.Kind:
		gen, err := h.sqlGenerator()
		if err != nil {
			return err
		}
		body, err := gen.Generate()
		if err != nil {
			return err
		}
		h.body = body
		clause := body.WithPrefix(h.scenario.Prefix)
		result.Clause = &clause
	case docgen.Kind:
		gen, err := h.documentGenerator()
		if err != nil {
			return err
		}
		q, err := gen.Compile()
		if err != nil {
			return err
		}
		result.Query = q
		result.UsedMappings = gen.UsedMappings()
	}
	return nil
}

func (h *harness) sqlGenerator() (*sqlgen.Generator, error) {
	gen, err := sqlgen.New(h.cond, h.mapping.SQLOptions()...)
	if err != nil {
		return nil, err
	}
	if err := h.mapping.ApplySQL(gen, loader.SQLConversions()); err != nil {
		return nil, err
	}
	return gen, nil
}

func (h *harness) documentGenerator() (*docgen.Generator, error) {
	gen, err := docgen.New(h.cond, h.mapping.DocumentOptions()...)
	if err != nil {
		return nil, err
	}
	if err := h.mapping.ApplyDocument(gen, loader.DocumentConversions()); err != nil {
		return nil, err
	}
	return gen, nil
}

// expectError reports whether err is the error the scenario expects.
func (h *harness) expectError(result *Result, err error) bool {
	result.CompileError = err.Error()
	exp := h.scenario.Expect
	if exp == nil || exp.Error == "" {
		return false
	}
	if !strings.Contains(err.Error(), exp.Error) {
		result.AddError(fmt.Sprintf("error mismatch: expected %q in %q", exp.Error, err.Error()))
	}
	return true
}

func (h *harness) checkExpect(result *Result) {
	exp := h.scenario.Expect
	if exp == nil || result.Clause == nil {
		return
	}
	clause := result.Clause

	if exp.SQL != nil && *exp.SQL != clause.SQL {
		result.AddError(fmt.Sprintf("sql mismatch:\n  expected: %s\n  actual:   %s", *exp.SQL, clause.SQL))
	}
	if exp.Params != nil {
		checkParams(result, exp.Params, clause.Params)
	}
	if exp.OrderBy != nil && !slices.Equal(exp.OrderBy, clause.OrderBy) {
		result.AddError(fmt.Sprintf("order_by mismatch: expected %v, got %v", exp.OrderBy, clause.OrderBy))
	}
}

func checkParams(result *Result, want []ParamSpec, got []sqlgen.Param) {
	if len(want) != len(got) {
		result.AddError(fmt.Sprintf("param count mismatch: expected %d, got %d", len(want), len(got)))
		return
	}
	for i, w := range want {
		g := got[i]
		if w.Name != g.Name {
			result.AddError(fmt.Sprintf("params[%d]: expected name %s, got %s", i, w.Name, g.Name))
		}
		if w.Type != g.Type {
			result.AddError(fmt.Sprintf("params[%d]: expected type %q, got %q", i, w.Type, g.Type))
		}
		value, err := loader.NormalizeValue(w.Value)
		if err != nil {
			result.AddError(fmt.Sprintf("params[%d]: %v", i, err))
			continue
		}
		if !valuesEqual(value, g.Value) {
			result.AddError(fmt.Sprintf("params[%d]: expected value %v (%T), got %v (%T)", i, value, value, g.Value, g.Value))
		}
	}
}

func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

// evaluate checks one assertion. Only harness failures are returned.
func (h *harness) evaluate(ctx context.Context, index int, a Assertion, result *Result) error {
	prefix := fmt.Sprintf("assertions[%d] (%s)", index, a.Type)

	switch a.Type {
	case AssertRows:
		rows, err := h.queryRows(ctx, a.Query)
		if err != nil {
			if h.db == nil {
				return err
			}
			result.AddError(fmt.Sprintf("%s: %v", prefix, err))
			return nil
		}
		result.Rows = append(result.Rows, rows)
		if err := compareRows(a.Rows, rows); err != nil {
			result.AddError(fmt.Sprintf("%s: %v", prefix, err))
		}

	case AssertParamCount:
		if got := len(result.Clause.Params); got != a.Count {
			result.AddError(fmt.Sprintf("%s: expected %d params, got %d", prefix, a.Count, got))
		}

	case AssertUsedMappings:
		got := make([]string, len(result.UsedMappings))
		for i, u := range result.UsedMappings {
			got[i] = u.Field
		}
		if !slices.Equal(a.Fields, got) {
			result.AddError(fmt.Sprintf("%s: expected %v, got %v", prefix, a.Fields, got))
		}

	case AssertContains:
		text, err := outputText(result)
		if err != nil {
			return err
		}
		if !strings.Contains(text, a.Text) {
			result.AddError(fmt.Sprintf("%s: %q not found in %s", prefix, a.Text, text))
		}

	case AssertCacheStable:
		if err := h.cacheStable(ctx); err != nil {
			result.AddError(fmt.Sprintf("%s: %v", prefix, err))
		}
	}
	return nil
}

// outputText is the SQL text, or the query JSON for the document backend.
func outputText(result *Result) (string, error) {
	if result.Clause != nil {
		return result.Clause.SQL, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result.Query); err != nil {
		return "", fmt.Errorf("encoding query: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// openDB creates the in-memory database and runs the setup statements.
func (h *harness) openDB(ctx context.Context) error {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for i, stmt := range h.scenario.Setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	h.db = db
	return nil
}

// queryRows appends the clause to query and returns the first column of
// each row. Integers come back as int and text as string.
func (h *harness) queryRows(ctx context.Context, query string) ([]any, error) {
	if h.db == nil {
		if err := h.openDB(ctx); err != nil {
			return nil, err
		}
	}

	parts := []string{query}
	if !h.body.Empty() {
		parts = append(parts, h.body.WithPrefix("WHERE ").SQL)
	}
	if order := h.body.OrderByClause(); order != "" {
		parts = append(parts, order)
	}
	stmt := strings.Join(parts, " ")

	rows, err := h.db.QueryxContext(ctx, stmt, h.body.NamedArgs()...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", stmt, err)
	}
	defer rows.Close()

	out := []any{}
	for rows.Next() {
		cols, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("query %q returned no columns", stmt)
		}
		out = append(out, columnValue(cols[0]))
	}
	return out, rows.Err()
}

func columnValue(v any) any {
	switch val := v.(type) {
	case int64:
		return int(val)
	case []byte:
		return string(val)
	}
	return v
}

func compareRows(want, got []any) error {
	expected := make([]any, 0, len(want))
	for _, raw := range want {
		v, err := loader.NormalizeValue(raw)
		if err != nil {
			return err
		}
		expected = append(expected, v)
	}
	if !reflect.DeepEqual(expected, got) {
		return fmt.Errorf("expected rows %v, got %v", expected, got)
	}
	return nil
}

// countingSource counts Generate calls of the wrapped source.
type countingSource[T any] struct {
	cache.Source[T]
	calls int
}

func (s *countingSource[T]) Generate() (T, error) {
	s.calls++
	return s.Source.Generate()
}

// cacheStable compiles twice through a fresh memory cache.
func (h *harness) cacheStable(ctx context.Context) error {
	if h.scenario.backend() == docgen.Kind {
		gen, err := h.documentGenerator()
		if err != nil {
			return err
		}
		return checkCached[docgen.Query](ctx, gen)
	}
	gen, err := h.sqlGenerator()
	if err != nil {
		return err
	}
	return checkCached[sqlgen.Clause](ctx, gen)
}

func checkCached[T any](ctx context.Context, source cache.Source[T]) error {
	src := &countingSource[T]{Source: source}
	gen, err := cache.New[T](src, cache.NewMemoryStore[T]())
	if err != nil {
		return err
	}
	first, err := gen.Compile(ctx)
	if err != nil {
		return err
	}
	second, err := gen.Compile(ctx)
	if err != nil {
		return err
	}
	if src.calls != 1 {
		return fmt.Errorf("expected 1 compile, got %d", src.calls)
	}
	if !reflect.DeepEqual(first, second) {
		return fmt.Errorf("cached result differs from compiled result")
	}
	return nil
}
