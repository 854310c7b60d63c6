package crypto

import (
	"path/filepath"
	"testing"
)

func TestKeyRing_VerifyAgainstRegisteredKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.key")
	signer, err := NewEd25519Signer(path, true)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}

	ring := NewKeyRing()
	ring.Add(signer.KeyID(), signer.PublicKey())

	data := []byte("manifest-bytes")
	sig, err := signer.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	ok, err := ring.Verify(signer.KeyID(), data, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("expected verification against registered key to succeed")
	}
}

func TestKeyRing_RevokedKeyFailsVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.key")
	signer, err := NewEd25519Signer(path, true)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}

	ring := NewKeyRing()
	ring.Add(signer.KeyID(), signer.PublicKey())
	ring.Revoke(signer.KeyID())

	sig, err := signer.Sign([]byte("data"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := ring.Verify(signer.KeyID(), []byte("data"), sig); err == nil {
		t.Error("expected revoked key to fail verification")
	}
}

func TestKeyRing_NewestKeyIDTracksRotation(t *testing.T) {
	ring := NewKeyRing()
	if _, ok := ring.NewestKeyID(); ok {
		t.Error("expected no newest key on empty ring")
	}

	pathA := filepath.Join(t.TempDir(), "a.key")
	signerA, err := NewEd25519Signer(pathA, true)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	pathB := filepath.Join(t.TempDir(), "b.key")
	signerB, err := NewEd25519Signer(pathB, true)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}

	ring.Add(signerA.KeyID(), signerA.PublicKey())
	ring.Add(signerB.KeyID(), signerB.PublicKey())

	newest, ok := ring.NewestKeyID()
	if !ok || newest != signerB.KeyID() {
		t.Errorf("expected newest key to be %s, got %s (ok=%v)", signerB.KeyID(), newest, ok)
	}
}

func TestKeyRing_UnknownKeyIDRejected(t *testing.T) {
	ring := NewKeyRing()
	if _, err := ring.Verify("nonexistent", []byte("data"), "sig"); err == nil {
		t.Error("expected error verifying against unknown key")
	}
}
