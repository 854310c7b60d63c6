package crypto

import (
	"crypto/ed25519"
	"fmt"
	"sync"
)

// KeyRing holds multiple Ed25519 public keys for verification across key
// rotation: a pack signed last month must still verify today even after the
// active signing key has rotated, as long as the old key's entry remains.
type KeyRing struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey // keyID -> public key
	seq  []string                     // insertion order, oldest first
}

// NewKeyRing creates an empty KeyRing.
func NewKeyRing() *KeyRing {
	return &KeyRing{keys: make(map[string]ed25519.PublicKey)}
}

// Add registers a public key under its fingerprint-derived keyID. The most
// recently added key becomes the active key for NewestKeyID.
func (k *KeyRing) Add(keyID string, pub ed25519.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.keys[keyID]; !exists {
		k.seq = append(k.seq, keyID)
	}
	k.keys[keyID] = pub
}

// Revoke removes a key from the ring. Packs signed under a revoked key no
// longer verify.
func (k *KeyRing) Revoke(keyID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, keyID)
	for i, id := range k.seq {
		if id == keyID {
			k.seq = append(k.seq[:i], k.seq[i+1:]...)
			break
		}
	}
}

// NewestKeyID returns the most recently added, still-active keyID.
func (k *KeyRing) NewestKeyID() (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if len(k.seq) == 0 {
		return "", false
	}
	return k.seq[len(k.seq)-1], true
}

// Verify checks a Base64 signature over data against the public key
// registered under keyID.
func (k *KeyRing) Verify(keyID string, data []byte, signatureB64 string) (bool, error) {
	k.mu.RLock()
	pub, exists := k.keys[keyID]
	k.mu.RUnlock()
	if !exists {
		return false, fmt.Errorf("crypto: unknown or revoked key %q", keyID)
	}
	return VerifyEd25519Base64(pub, data, signatureB64)
}

// KeyIDs returns all registered key IDs, oldest first.
func (k *KeyRing) KeyIDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]string, len(k.seq))
	copy(out, k.seq)
	return out
}
