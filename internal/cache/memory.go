package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem[T any] struct {
	value   T
	expires time.Time
}

// MemoryStore is an in-process Store with per-key expiry.
//
// Values with a Clone() T method (sqlgen.Clause, docgen.Query) are copied
// on Set and on Get, so a caller mutating a result cannot change what the
// next hit returns.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]memoryItem[T]
	now   func() time.Time
}

type cloner[T any] interface {
	Clone() T
}

func clone[T any](v T) T {
	if c, ok := any(v).(cloner[T]); ok {
		return c.Clone()
	}
	return v
}

// MemoryOption configures a MemoryStore.
type MemoryOption[T any] func(*MemoryStore[T])

// WithClock replaces time.Now, for tests.
func WithClock[T any](now func() time.Time) MemoryOption[T] {
	return func(s *MemoryStore[T]) {
		s.now = now
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore[T any](opts ...MemoryOption[T]) *MemoryStore[T] {
	s := &MemoryStore[T]{
		items: make(map[string]memoryItem[T]),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore[T]) lookup(key string) (memoryItem[T], bool) {
	item, ok := s.items[key]
	if !ok {
		return item, false
	}
	if !item.expires.IsZero() && !s.now().Before(item.expires) {
		return item, false
	}
	return item, true
}

// Has reports whether key holds an unexpired value.
func (s *MemoryStore[T]) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookup(key)
	return ok, nil
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *MemoryStore[T]) Get(_ context.Context, key string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.lookup(key)
	if !ok {
		var zero T
		return zero, ErrKeyNotFound
	}
	return clone(item.value), nil
}

// Set stores value. A ttl of zero or less never expires.
func (s *MemoryStore[T]) Set(_ context.Context, key string, value T, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := memoryItem[T]{value: clone(value)}
	if ttl > 0 {
		item.expires = s.now().Add(ttl)
	}
	s.items[key] = item
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
