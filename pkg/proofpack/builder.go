// Package proofpack builds and verifies Proof Packs: the durable,
// Ed25519-sealed, on-disk evidence bundle produced once a batch of runs
// has completed (C11 Builder, C12 Verifier).
package proofpack

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/keon-labs/marketops/pkg/artifacts"
	"github.com/keon-labs/marketops/pkg/canonicalize"
	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/crypto"
)

const publicKeyRelPath = "keys/proofpack_signing_public.ed25519"

// RunInput is one completed run's artifact set, as handed to the builder.
type RunInput struct {
	RunID    string
	Scenario string
	TenantID string
	Set      artifacts.Set
}

// Builder assembles Proof Packs from completed run artifact sets. fcSigner
// is optional: when set, fc-binding.json cross-checks the HMAC signature
// on any dry-run advisory receipt. keyRing registers signer's public key
// under its fingerprint-derived keyID at construction, so a same-process
// Verifier can be handed TrustedKeys() and resolve manifest signatures by
// keyId against a pinned key rather than whatever bytes sit on disk.
type Builder struct {
	signer   *crypto.Ed25519Signer
	fcSigner *crypto.HMACSigner
	keyRing  *crypto.KeyRing
}

// NewBuilder builds a Builder over the Ed25519 key used to seal run
// manifests.
func NewBuilder(signer *crypto.Ed25519Signer, fcSigner *crypto.HMACSigner) *Builder {
	keyRing := crypto.NewKeyRing()
	keyRing.Add(signer.KeyID(), signer.PublicKey())
	return &Builder{signer: signer, fcSigner: fcSigner, keyRing: keyRing}
}

// TrustedKeys returns the KeyRing holding this builder's signing key,
// keyed by its fingerprint-derived keyID. Hand it to NewVerifier so the
// verifier resolves manifest signatures by keyId against this pinned key
// instead of trusting whatever public key file happens to sit on disk.
func (b *Builder) TrustedKeys() *crypto.KeyRing { return b.keyRing }

// Build writes a complete Proof Pack under outDir and returns its index.
// All runs must share one tenantId.
func (b *Builder) Build(outDir string, runs []RunInput) (contracts.PackIndex, error) {
	if len(runs) == 0 {
		return contracts.PackIndex{}, fmt.Errorf("proofpack: cannot build a pack with zero runs")
	}

	tenantID := runs[0].TenantID
	entries := make([]contracts.PackRunEntry, 0, len(runs))
	hashByRun := make(map[string]string, len(runs))

	for _, run := range runs {
		if run.TenantID != tenantID {
			return contracts.PackIndex{}, fmt.Errorf("proofpack: run %s tenant %q does not match pack tenant %q", run.RunID, run.TenantID, tenantID)
		}
		entry, err := b.buildRun(outDir, run)
		if err != nil {
			return contracts.PackIndex{}, err
		}
		entries = append(entries, entry)
		hashByRun[entry.RunID] = entry.SHA256
	}

	sorted := append([]contracts.PackRunEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RunID < sorted[j].RunID })

	concat := ""
	for _, e := range sorted {
		concat += hashByRun[e.RunID]
	}
	packSha := canonicalize.Hash([]byte(concat))

	index := contracts.PackIndex{
		PackID:     uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		TenantID:   tenantID,
		Runs:       entries,
		PackSha256: packSha,
	}

	if err := writeCanonicalFile(filepath.Join(outDir, "PACK_INDEX.json"), index); err != nil {
		return contracts.PackIndex{}, err
	}
	if err := os.MkdirAll(filepath.Join(outDir, "keys"), 0o755); err != nil {
		return contracts.PackIndex{}, fmt.Errorf("proofpack: keys dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, publicKeyRelPath), b.signer.PublicKey(), 0o644); err != nil {
		return contracts.PackIndex{}, fmt.Errorf("proofpack: writing public key: %w", err)
	}

	return index, nil
}

func (b *Builder) buildRun(outDir string, run RunInput) (contracts.PackRunEntry, error) {
	runDir := filepath.Join(outDir, "runs", run.RunID)
	artifactsDir := filepath.Join(runDir, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return contracts.PackRunEntry{}, fmt.Errorf("proofpack: run dir for %s: %w", run.RunID, err)
	}

	var manifestArtifacts []contracts.ManifestArtifact
	add := func(name string, v interface{}) error {
		path := filepath.Join(artifactsDir, name)
		data, err := canonicalize.Canonicalize(v)
		if err != nil {
			return fmt.Errorf("proofpack: canonicalize %s for run %s: %w", name, run.RunID, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("proofpack: writing %s for run %s: %w", name, run.RunID, err)
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return fmt.Errorf("proofpack: relative path for %s: %w", name, err)
		}
		manifestArtifacts = append(manifestArtifacts, contracts.ManifestArtifact{
			Name:   name,
			Path:   filepath.ToSlash(rel),
			SHA256: canonicalize.Hash(data),
			Bytes:  int64(len(data)),
		})
		return nil
	}

	if err := add("publication-plan.json", run.Set.Plan); err != nil {
		return contracts.PackRunEntry{}, err
	}
	if err := add("proof-ledger.json", run.Set.Ledger); err != nil {
		return contracts.PackRunEntry{}, err
	}
	var advisoryPayload interface{} = struct{}{}
	if run.Set.Advisory != nil {
		advisoryPayload = *run.Set.Advisory
	}
	if err := add("judge-advisory-receipt.json", advisoryPayload); err != nil {
		return contracts.PackRunEntry{}, err
	}
	if err := add("approver-summary.json", run.Set.Summary); err != nil {
		return contracts.PackRunEntry{}, err
	}

	mdPath := filepath.Join(artifactsDir, "approver-summary.md")
	mdBytes := []byte(run.Set.SummaryMarkdown)
	if err := os.WriteFile(mdPath, mdBytes, 0o644); err != nil {
		return contracts.PackRunEntry{}, fmt.Errorf("proofpack: writing approver-summary.md for run %s: %w", run.RunID, err)
	}
	relMd, err := filepath.Rel(outDir, mdPath)
	if err != nil {
		return contracts.PackRunEntry{}, fmt.Errorf("proofpack: relative path for summary markdown: %w", err)
	}
	manifestArtifacts = append(manifestArtifacts, contracts.ManifestArtifact{
		Name:   "approver-summary.md",
		Path:   filepath.ToSlash(relMd),
		SHA256: canonicalize.Hash(mdBytes),
		Bytes:  int64(len(mdBytes)),
	})

	if run.Set.Advisory != nil {
		if err := b.writeFCBinding(runDir, run); err != nil {
			return contracts.PackRunEntry{}, err
		}
	}

	manifest := contracts.RunManifest{
		RunID:     run.RunID,
		Scenario:  run.Scenario,
		TenantID:  run.TenantID,
		Scope:     contracts.ManifestScope{TenantID: run.TenantID},
		Artifacts: manifestArtifacts,
	}

	canonicalBytes, err := canonicalize.Canonicalize(manifest.WithoutSignature())
	if err != nil {
		return contracts.PackRunEntry{}, fmt.Errorf("proofpack: canonicalize manifest for %s: %w", run.RunID, err)
	}
	sig, err := b.signer.SignCanonical(canonicalBytes)
	if err != nil {
		return contracts.PackRunEntry{}, fmt.Errorf("proofpack: signing manifest for %s: %w", run.RunID, err)
	}
	manifest.ManifestSignature = &contracts.ManifestSignature{
		Algorithm:     "Ed25519",
		KeyID:         b.signer.KeyID(),
		PublicKeyPath: publicKeyRelPath,
		Value:         sig,
	}

	manifestBytes, err := canonicalize.Canonicalize(manifest)
	if err != nil {
		return contracts.PackRunEntry{}, fmt.Errorf("proofpack: canonicalize signed manifest for %s: %w", run.RunID, err)
	}
	manifestPath := filepath.Join(runDir, "RUN_MANIFEST.json")
	if err := os.WriteFile(manifestPath, manifestBytes, 0o644); err != nil {
		return contracts.PackRunEntry{}, fmt.Errorf("proofpack: writing manifest for %s: %w", run.RunID, err)
	}

	relManifest, err := filepath.Rel(outDir, manifestPath)
	if err != nil {
		return contracts.PackRunEntry{}, fmt.Errorf("proofpack: relative path for manifest: %w", err)
	}
	return contracts.PackRunEntry{
		RunID:    run.RunID,
		Scenario: run.Scenario,
		Path:     filepath.ToSlash(relManifest),
		SHA256:   canonicalize.Hash(manifestBytes),
	}, nil
}

func writeCanonicalFile(path string, v interface{}) error {
	data, err := canonicalize.Canonicalize(v)
	if err != nil {
		return fmt.Errorf("proofpack: canonicalize %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// writeFCBinding emits the cross-hash verification/fc-binding.json for a
// run that minted an advisory receipt: every check a verifier will later
// re-derive, recorded once at build time for quick inspection.
func (b *Builder) writeFCBinding(runDir string, run RunInput) error {
	verifyDir := filepath.Join(runDir, "verification")
	if err := os.MkdirAll(verifyDir, 0o755); err != nil {
		return fmt.Errorf("proofpack: verification dir for %s: %w", run.RunID, err)
	}

	receipt := *run.Set.Advisory
	planHash, err := canonicalize.HashObject(run.Set.Plan)
	if err != nil {
		return fmt.Errorf("proofpack: hashing plan for fc-binding: %w", err)
	}
	ledgerHash, err := canonicalize.HashObject(run.Set.Ledger.WithoutReceiptFields())
	if err != nil {
		return fmt.Errorf("proofpack: hashing ledger for fc-binding: %w", err)
	}

	hmacValid := false
	if b.fcSigner != nil {
		hmacValid, _ = b.fcSigner.VerifyCanonical(receipt.WithoutSignature(), receipt.Signature.Value)
	}

	checks := []contracts.FCBindingCheck{
		{Name: "receipt_present", Passed: true},
		{Name: "plan_digest_matches", Passed: receipt.Subject.SubjectDigests.PlanSha256 == planHash},
		{Name: "ledger_digest_matches", Passed: receipt.Subject.SubjectDigests.LedgerSha256 == ledgerHash},
		{Name: "hmac_signature_valid", Passed: hmacValid},
		{Name: "ledger_receipt_backreference", Passed: run.Set.Ledger.ReceiptID == receipt.ID && run.Set.Ledger.ReceiptDigest == receipt.Digests.ReceiptSha256},
		{
			Name: "tenant_consistency",
			Passed: receipt.TenantID == run.TenantID &&
				run.Set.Plan.TenantID == run.TenantID &&
				run.Set.Ledger.TenantID == run.TenantID &&
				run.Set.Summary.TenantID == run.TenantID,
		},
	}

	binding := contracts.FCBinding{RunID: run.RunID, Checks: checks}
	return writeCanonicalFile(filepath.Join(verifyDir, "fc-binding.json"), binding)
}
