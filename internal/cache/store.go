// Package cache memoizes compiled conditions.
//
// A Generator wraps a condition generator (a Source) and a key/value Store.
// The cache key covers both the condition tree and the field mapping
// configuration, so a changed mapping never serves a stale result.
//
//	Cold --miss--> Computing --> Stored
//	Cold --hit---> Stored
//
// A failed compile leaves the store untouched.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned by Store.Get for a missing or expired key.
	ErrKeyNotFound = errors.New("cache: key not found")

	// ErrMissingStore is a setup error: a cached generator needs a store.
	ErrMissingStore = errors.New("cache: store is required")

	// ErrMissingSource is a setup error: a cached generator needs a source.
	ErrMissingSource = errors.New("cache: condition generator is required")
)

// Store is the minimal key/value contract the cached generator needs.
//
// Set must be atomic for a single key. No cross-key guarantees are required.
type Store[T any] interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
}

// Codec converts values for byte-oriented stores.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec encodes values with encoding/json.
type JSONCodec[T any] struct{}

// Encode implements Codec.
func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

// Decode implements Codec.
func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
