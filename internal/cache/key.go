package cache

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/searchgen/internal/canonical"
	"github.com/roach88/searchgen/internal/condition"
)

// KeyPrefix starts every cache key.
const KeyPrefix = "searchgen:"

// keyNamespace is the UUIDv5 namespace for cache keys.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/roach88/searchgen/cache"))

// Key derives the cache key for a condition compiled by a backend with the
// given mapping signature.
//
// Format: searchgen:<kind>:<uuid v5>. The UUID is derived from the
// domain-separated hashes of the canonical condition and mapping signatures,
// so it is stable across processes.
func Key(kind string, cond *condition.SearchCondition, mappingSig any) (string, error) {
	if cond == nil {
		return "", fmt.Errorf("cache key: nil condition")
	}
	condHash, err := canonical.HashValue(canonical.DomainCondition, cond.Signature())
	if err != nil {
		return "", fmt.Errorf("cache key: condition signature: %w", err)
	}
	mapHash, err := canonical.HashValue(canonical.DomainMapping, mappingSig)
	if err != nil {
		return "", fmt.Errorf("cache key: mapping signature: %w", err)
	}
	digest := canonical.Hash(canonical.DomainCacheKey, []byte(kind), []byte(condHash), []byte(mapHash))
	return KeyPrefix + kind + ":" + uuid.NewSHA1(keyNamespace, []byte(digest)).String(), nil
}
