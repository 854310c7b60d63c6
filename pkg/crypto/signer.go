package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// KeyIDPrefix is the protocol constant for Ed25519 manifest-signing keys.
// It is part of the canonical wire protocol — change it only with a new
// canon version.
const KeyIDPrefix = "keon.marketops.proofpack.ed25519.v1"

// Ed25519Signer signs and verifies Proof Pack run manifests.
//
// The private key never travels inside a Proof Pack; only the public key
// and a fingerprint-derived KeyID do.
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	keyID   string
}

// NewEd25519Signer loads a 32-byte Ed25519 private key from path. If dev is
// true and the file does not exist, a fresh key is generated and persisted
// at path (0600) for reuse across runs — never for production use.
func NewEd25519Signer(path string, dev bool) (*Ed25519Signer, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is operator-configured
	switch {
	case err == nil:
		if len(raw) != ed25519.SeedSize {
			return nil, fmt.Errorf("crypto: private key at %s has invalid length %d", path, len(raw))
		}
		return newEd25519SignerFromSeed(raw), nil
	case os.IsNotExist(err) && dev:
		seed := make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("crypto: key generation failed: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("crypto: key dir creation failed: %w", err)
		}
		if err := os.WriteFile(path, seed, 0o600); err != nil {
			return nil, fmt.Errorf("crypto: key persist failed: %w", err)
		}
		return newEd25519SignerFromSeed(seed), nil
	default:
		return nil, fmt.Errorf("crypto: loading private key from %s: %w", path, err)
	}
}

func newEd25519SignerFromSeed(seed []byte) *Ed25519Signer {
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{
		privKey: priv,
		pubKey:  pub,
		keyID:   KeyIDPrefix + ":" + Fingerprint(pub),
	}
}

// Fingerprint returns the first 16 lowercase-hex chars of sha256(pubKey).
func Fingerprint(pubKey ed25519.PublicKey) string {
	sum := sha256.Sum256(pubKey)
	return hex.EncodeToString(sum[:])[:16]
}

// KeyID returns "keon.marketops.proofpack.ed25519.v1:<fingerprint>".
func (s *Ed25519Signer) KeyID() string { return s.keyID }

// PublicKey returns the raw Ed25519 public key bytes.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey { return s.pubKey }

// Sign returns a Base64 Ed25519 signature over data.
func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	sig := ed25519.Sign(s.privKey, data)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// SignCanonical signs the UTF-8 bytes of a canonical JSON document.
func (s *Ed25519Signer) SignCanonical(canonicalJSON []byte) (string, error) {
	return s.Sign(canonicalJSON)
}

// VerifyEd25519 is a pure function verifying an Ed25519 signature.
// pubKey and signature are raw bytes; signature is expected Base64-decoded
// by the caller when it arrives over the wire (see VerifyEd25519Base64).
func VerifyEd25519(pubKey ed25519.PublicKey, data, signature []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pubKey, data, signature)
}

// VerifyEd25519Base64 verifies a Base64-encoded Ed25519 signature against
// raw public key bytes.
func VerifyEd25519Base64(pubKey ed25519.PublicKey, data []byte, signatureB64 string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, fmt.Errorf("crypto: invalid base64 signature: %w", err)
	}
	return VerifyEd25519(pubKey, data, sig), nil
}
