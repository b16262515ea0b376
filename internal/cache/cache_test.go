package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/docgen"
	"github.com/roach88/searchgen/internal/sqlgen"
)

// countingSource counts Generate calls on the wrapped source.
type countingSource[T any] struct {
	Source[T]
	calls int
	err   error
}

func (s *countingSource[T]) Generate() (T, error) {
	s.calls++
	if s.err != nil {
		var zero T
		return zero, s.err
	}
	return s.Source.Generate()
}

// failingStore returns err from every method.
type failingStore[T any] struct {
	err error
}

func (s failingStore[T]) Has(context.Context, string) (bool, error) { return false, s.err }
func (s failingStore[T]) Get(context.Context, string) (T, error) {
	var zero T
	return zero, s.err
}
func (s failingStore[T]) Set(context.Context, string, T, time.Duration) error { return s.err }

// fakeClock is a settable clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func statusCondition(values ...any) *condition.SearchCondition {
	root := condition.NewGroup(condition.LogicalAnd)
	bag := root.Field("status")
	for _, v := range values {
		bag.AddSimpleValue(v)
	}
	return condition.New(root)
}

func sqlSource(t *testing.T, cond *condition.SearchCondition, column string) *countingSource[sqlgen.Clause] {
	t.Helper()
	gen, err := sqlgen.New(cond)
	require.NoError(t, err)
	require.NoError(t, gen.SetField("status", column))
	return &countingSource[sqlgen.Clause]{Source: gen}
}

func TestNew_SetupErrors(t *testing.T) {
	src := sqlSource(t, statusCondition(1), "status")

	_, err := New[sqlgen.Clause](src, nil)
	assert.ErrorIs(t, err, ErrMissingStore)

	_, err = New[sqlgen.Clause](nil, NewMemoryStore[sqlgen.Clause]())
	assert.ErrorIs(t, err, ErrMissingSource)

	_, err = NewSQL(nil, NewMemoryStore[sqlgen.Clause]())
	assert.ErrorIs(t, err, ErrMissingSource)
}

func TestCompile_MissThenHit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[sqlgen.Clause]()
	src := sqlSource(t, statusCondition(1, 2), "status")

	gen, err := New[sqlgen.Clause](src, store)
	require.NoError(t, err)

	first, err := gen.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "(status = :search_0 OR status = :search_1)", first.SQL)

	second, err := gen.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "hit must not invoke the delegate")
	assert.Equal(t, first, second)
}

func TestCompile_MappingChangeChangesKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[sqlgen.Clause]()
	cond := statusCondition(1)

	a := sqlSource(t, cond, "status")
	genA, err := New[sqlgen.Clause](a, store)
	require.NoError(t, err)
	_, err = genA.Compile(ctx)
	require.NoError(t, err)

	b := sqlSource(t, cond, "state")
	genB, err := New[sqlgen.Clause](b, store)
	require.NoError(t, err)
	clause, err := genB.Compile(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, b.calls)
	assert.Equal(t, "state = :search_0", clause.SQL)
	assert.Equal(t, 2, store.Len())

	keyA, err := genA.Key()
	require.NoError(t, err)
	keyB, err := genB.Key()
	require.NoError(t, err)
	assert.NotEqual(t, keyA, keyB)
}

func TestCompile_SameMappingSharesEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[sqlgen.Clause]()

	a := sqlSource(t, statusCondition(1), "status")
	genA, err := New[sqlgen.Clause](a, store)
	require.NoError(t, err)
	_, err = genA.Compile(ctx)
	require.NoError(t, err)

	// A separately built but identical condition and mapping.
	b := sqlSource(t, statusCondition(1), "status")
	genB, err := New[sqlgen.Clause](b, store)
	require.NoError(t, err)
	_, err = genB.Compile(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, b.calls)
	assert.Equal(t, 1, store.Len())
}

func TestCompile_ValueTypeChangesKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[sqlgen.Clause]()

	_, err := mustSQL(t, statusCondition(2), store).Compile(ctx)
	require.NoError(t, err)
	_, err = mustSQL(t, statusCondition("2"), store).Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func mustSQL(t *testing.T, cond *condition.SearchCondition, store Store[sqlgen.Clause]) *Generator[sqlgen.Clause] {
	t.Helper()
	gen, err := New[sqlgen.Clause](sqlSource(t, cond, "status"), store)
	require.NoError(t, err)
	return gen
}

func TestCompile_DelegateErrorNotCached(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[sqlgen.Clause]()
	src := sqlSource(t, statusCondition(1), "status")
	boom := errors.New("boom")
	src.err = boom

	gen, err := New[sqlgen.Clause](src, store)
	require.NoError(t, err)

	_, err = gen.Compile(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Len())

	src.err = nil
	_, err = gen.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 1, store.Len())
}

func TestCompile_StoreErrorsPropagateUnmodified(t *testing.T) {
	down := errors.New("store down")
	src := sqlSource(t, statusCondition(1), "status")

	gen, err := New[sqlgen.Clause](src, failingStore[sqlgen.Clause]{err: down})
	require.NoError(t, err)

	_, err = gen.Compile(context.Background())
	assert.Same(t, down, err)
	assert.Equal(t, 0, src.calls)
}

func TestCompile_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock[sqlgen.Clause](clock.Now))
	src := sqlSource(t, statusCondition(1), "status")

	gen, err := New[sqlgen.Clause](src, store, WithTTL(time.Minute))
	require.NoError(t, err)

	_, err = gen.Compile(ctx)
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	_, err = gen.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	clock.Advance(time.Minute)
	_, err = gen.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestSQLGenerator_Prefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[sqlgen.Clause]()

	gen, err := sqlgen.New(statusCondition(1))
	require.NoError(t, err)
	require.NoError(t, gen.SetField("status", "status"))

	cached, err := NewSQL(gen, store)
	require.NoError(t, err)

	where, err := cached.Compile(ctx, "WHERE ")
	require.NoError(t, err)
	assert.Equal(t, "WHERE status = :search_0", where.SQL)

	and, err := cached.Compile(ctx, "AND ")
	require.NoError(t, err)
	assert.Equal(t, "AND status = :search_0", and.SQL)

	key, err := cached.Key()
	require.NoError(t, err)
	stored, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "status = :search_0", stored.SQL, "stored body carries no prefix")
}

func TestSQLGenerator_EmptyBodyGetsNoPrefix(t *testing.T) {
	ctx := context.Background()
	gen, err := sqlgen.New(condition.New(nil))
	require.NoError(t, err)

	cached, err := NewSQL(gen, NewMemoryStore[sqlgen.Clause]())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		clause, err := cached.Compile(ctx, "WHERE ")
		require.NoError(t, err)
		assert.Equal(t, "", clause.SQL)
	}
}

func TestCompile_Document(t *testing.T) {
	ctx := context.Background()
	gen, err := docgen.New(statusCondition(1, 2))
	require.NoError(t, err)
	require.NoError(t, gen.RegisterField("status", "status"))

	src := &countingSource[docgen.Query]{Source: gen}
	cached, err := New[docgen.Query](src, NewMemoryStore[docgen.Query]())
	require.NoError(t, err)

	first, err := cached.Compile(ctx)
	require.NoError(t, err)
	second, err := cached.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)

	key, err := cached.Key()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "searchgen:document:"))
}

func TestKey(t *testing.T) {
	cond := statusCondition(1)
	sig := map[string]any{"fields": []any{[]any{"status", "status"}}}

	k1, err := Key("sql", cond, sig)
	require.NoError(t, err)
	k2, err := Key("sql", statusCondition(1), sig)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "searchgen:sql:"))
	assert.Len(t, strings.TrimPrefix(k1, "searchgen:sql:"), 36)

	k3, err := Key("document", cond, sig)
	require.NoError(t, err)
	assert.NotEqual(t, strings.TrimPrefix(k1, "searchgen:sql:"), strings.TrimPrefix(k3, "searchgen:document:"))

	_, err = Key("sql", nil, sig)
	assert.Error(t, err)

	_, err = Key("sql", cond, map[string]any{"ttl": 1.5})
	assert.ErrorContains(t, err, "mapping signature")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[string]()

	ok, err := store.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	ok, err = store.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestCompile_HitIsIsolatedFromCallerMutation(t *testing.T) {
	ctx := context.Background()
	src := sqlSource(t, statusCondition(1, 2), "status")
	gen, err := New[sqlgen.Clause](src, NewMemoryStore[sqlgen.Clause]())
	require.NoError(t, err)

	first, err := gen.Compile(ctx)
	require.NoError(t, err)
	require.Len(t, first.Params, 2)
	first.Params[0].Value = "tampered"

	second, err := gen.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Params[0].Value)
	second.Params[1].Value = "tampered"

	third, err := gen.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Params[1].Value)
	assert.Equal(t, 1, src.calls)
}

func TestCompile_DocumentHitIsIsolatedFromCallerMutation(t *testing.T) {
	ctx := context.Background()
	gen, err := docgen.New(statusCondition(1, 2))
	require.NoError(t, err)
	require.NoError(t, gen.RegisterField("status", "status"))
	want, err := gen.Compile()
	require.NoError(t, err)

	cached, err := New[docgen.Query](gen, NewMemoryStore[docgen.Query]())
	require.NoError(t, err)

	first, err := cached.Compile(ctx)
	require.NoError(t, err)
	inner, ok := first["query"].(map[string]any)
	require.True(t, ok)
	for k := range inner {
		delete(inner, k)
	}
	first["sort"] = []any{"tampered"}

	second, err := cached.Compile(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, second)
}

func TestMemoryStore_CopiesClauses(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[sqlgen.Clause]()
	clause := sqlgen.Clause{
		SQL:     "a = :p0",
		Params:  []sqlgen.Param{{Name: "p0", Value: []byte("raw")}},
		OrderBy: []string{"a ASC"},
	}
	require.NoError(t, store.Set(ctx, "k", clause, 0))

	clause.OrderBy[0] = "b DESC"
	clause.Params[0].Value.([]byte)[0] = 'X'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"a ASC"}, got.OrderBy)
	assert.Equal(t, []byte("raw"), got.Params[0].Value)
}
