package crypto

import (
	"github.com/keon-labs/marketops/pkg/canonicalize"
)

// Hasher provides deterministic hashing for marketops artifacts.
type Hasher interface {
	Hash(v interface{}) (string, error)
}

// CanonicalHasher hashes values via the package-wide JCS canonicalizer.
type CanonicalHasher struct{}

func NewCanonicalHasher() *CanonicalHasher {
	return &CanonicalHasher{}
}

func (h *CanonicalHasher) Hash(v interface{}) (string, error) {
	return canonicalize.HashObject(v)
}
