package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/sqlgen"
)

// Source is a condition generator that can be cached.
// *sqlgen.Generator and *docgen.Generator implement it.
type Source[T any] interface {
	Generate() (T, error)
	Condition() *condition.SearchCondition
	Signature() any
	Kind() string
}

// DefaultTTL is used when no TTL option is given.
const DefaultTTL = time.Hour

// Option configures a Generator.
type Option func(*options)

type options struct {
	ttl time.Duration
}

// WithTTL sets the lifetime of stored results. Zero or less never expires.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// Generator memoizes the output of a Source in a Store.
type Generator[T any] struct {
	source Source[T]
	store  Store[T]
	ttl    time.Duration
}

// New wraps source with store.
func New[T any](source Source[T], store Store[T], opts ...Option) (*Generator[T], error) {
	if source == nil {
		return nil, ErrMissingSource
	}
	if store == nil {
		return nil, ErrMissingStore
	}
	o := options{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return &Generator[T]{source: source, store: store, ttl: o.ttl}, nil
}

// Key returns the cache key for the wrapped source in its current state.
func (g *Generator[T]) Key() (string, error) {
	return Key(g.source.Kind(), g.source.Condition(), g.source.Signature())
}

// Compile returns the stored result, or compiles once and stores it.
//
// Store errors are returned unmodified. A compile error is returned and
// nothing is stored.
func (g *Generator[T]) Compile(ctx context.Context) (T, error) {
	var zero T
	key, err := g.Key()
	if err != nil {
		return zero, err
	}

	ok, err := g.store.Has(ctx, key)
	if err != nil {
		return zero, err
	}
	if ok {
		v, err := g.store.Get(ctx, key)
		if err == nil {
			slog.Debug("cache hit", "key", key, "kind", g.source.Kind())
			return v, nil
		}
		// Expired between Has and Get: compile as a miss.
		if !errors.Is(err, ErrKeyNotFound) {
			return zero, err
		}
	}

	slog.Debug("cache miss", "key", key, "kind", g.source.Kind())
	v, err := g.source.Generate()
	if err != nil {
		return zero, err
	}
	if err := g.store.Set(ctx, key, v, g.ttl); err != nil {
		return zero, err
	}
	slog.Debug("cache store", "key", key, "ttl", g.ttl)
	return v, nil
}

// SQLGenerator caches un-prefixed SQL clauses and applies the prefix on
// the way out, so one stored body serves every prefix.
type SQLGenerator struct {
	*Generator[sqlgen.Clause]
}

// NewSQL wraps a SQL generator.
func NewSQL(gen *sqlgen.Generator, store Store[sqlgen.Clause], opts ...Option) (*SQLGenerator, error) {
	if gen == nil {
		return nil, ErrMissingSource
	}
	inner, err := New[sqlgen.Clause](gen, store, opts...)
	if err != nil {
		return nil, err
	}
	return &SQLGenerator{Generator: inner}, nil
}

// Compile returns the clause with prefix prepended when it is non-empty.
func (g *SQLGenerator) Compile(ctx context.Context, prefix string) (sqlgen.Clause, error) {
	clause, err := g.Generator.Compile(ctx)
	if err != nil {
		return sqlgen.Clause{}, err
	}
	return clause.WithPrefix(prefix), nil
}
