package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/keon-labs/marketops/pkg/canonicalize"
)

// ErrFCKeyEmpty is returned when an HMACSigner is constructed with a
// zero-length key.
var ErrFCKeyEmpty = errors.New("crypto: fast-confirmation key must not be empty")

// HMACSigner is the "fast-confirmation" signer used for advisory judge
// receipts. It trades asymmetric non-repudiation for speed: every holder
// of the shared key can both sign and verify, which is why advisory
// receipts can never satisfy an enforceable gate decision on their own.
type HMACSigner struct {
	key []byte
	kid string
}

// NewHMACSigner builds a signer over a shared secret key, identified by
// kid in receipt metadata (not part of the signed payload).
func NewHMACSigner(key []byte, kid string) (*HMACSigner, error) {
	if len(key) == 0 {
		return nil, ErrFCKeyEmpty
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return &HMACSigner{key: cp, kid: kid}, nil
}

// KeyID returns the signer's key identifier.
func (s *HMACSigner) KeyID() string { return s.kid }

// Sign computes a Base64 HMAC-SHA256 MAC over data.
func (s *HMACSigner) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignCanonical canonicalizes v and signs the resulting bytes.
func (s *HMACSigner) SignCanonical(v interface{}) (string, []byte, error) {
	canon, err := canonicalize.Canonicalize(v)
	if err != nil {
		return "", nil, fmt.Errorf("crypto: canonicalize for fc-sign: %w", err)
	}
	return s.Sign(canon), canon, nil
}

// Verify reports whether mac is a valid HMAC-SHA256 over data under the
// signer's key, using a constant-time comparison.
func (s *HMACSigner) Verify(data []byte, mac string) bool {
	decoded, err := base64.StdEncoding.DecodeString(mac)
	if err != nil {
		return false
	}
	expected := hmac.New(sha256.New, s.key)
	expected.Write(data)
	return hmac.Equal(decoded, expected.Sum(nil))
}

// VerifyCanonical canonicalizes v and verifies mac against the result.
func (s *HMACSigner) VerifyCanonical(v interface{}, mac string) (bool, error) {
	canon, err := canonicalize.Canonicalize(v)
	if err != nil {
		return false, fmt.Errorf("crypto: canonicalize for fc-verify: %w", err)
	}
	return s.Verify(canon, mac), nil
}
