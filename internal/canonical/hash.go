package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for signature hashes.
// Version suffix enables future algorithm migration.
const (
	DomainCondition = "searchgen/condition/v1"
	DomainMapping   = "searchgen/mapping/v1"
	DomainCacheKey  = "searchgen/cache-key/v1"
)

// Hash computes SHA-256 with domain separation.
// Format: SHA256(domain 0x00 part1 0x00 part2 ...), hex encoded.
// The null separator prevents part boundary ambiguity.
func Hash(domain string, parts ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashValue canonically encodes v and hashes it under domain.
func HashValue(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical hash %s: %w", domain, err)
	}
	return Hash(domain, data), nil
}
