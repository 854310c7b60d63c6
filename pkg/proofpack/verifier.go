package proofpack

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/keon-labs/marketops/pkg/canonicalize"
	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/crypto"
)

// CheckResult is the outcome of one verification assertion.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// RunVerification is the verification outcome for one run in a pack.
type RunVerification struct {
	RunID  string        `json:"runId"`
	Passed bool          `json:"passed"`
	Checks []CheckResult `json:"checks"`
}

// Report is the full pack verification outcome: every check attempted,
// never just the ones that failed.
type Report struct {
	Passed       bool              `json:"passed"`
	ChecksTotal  int               `json:"checksTotal"`
	ChecksFailed int               `json:"checksFailed"`
	PackChecks   []CheckResult     `json:"packChecks"`
	Runs         []RunVerification `json:"runs"`
}

// Verifier re-derives and checks every assertion a Proof Pack makes about
// itself: a single fail-closed pass over the directory tree, trusting no
// value the pack claims without recomputing it from bytes on disk. fcSigner
// is the same shared HMAC key the builder signed advisory receipts with;
// without it the verifier cannot independently re-derive a signature check
// and fails that check closed rather than trusting the pack's own record.
// keyRing resolves a manifest signature's public key by the keyId the
// manifest embeds, never by "whatever key is on disk right now": a keyId
// already pinned in the ring (trustedKeys passed to NewVerifier) wins over
// a same-named key read fresh from the pack's own key file.
type Verifier struct {
	fcSigner *crypto.HMACSigner
	keyRing  *crypto.KeyRing
}

// NewVerifier builds a Verifier. fcSigner may be nil for a deployment that
// verifies pack structure and signatures only; fc_binding_hmac_signature_valid
// then always fails, since no value the pack claims is trusted unverified.
// trustedKeys may be nil, in which case the verifier trusts each pack's own
// embedded public key on first read (still resolved strictly by keyId
// through the ring, never by position or file path alone).
func NewVerifier(fcSigner *crypto.HMACSigner, trustedKeys *crypto.KeyRing) *Verifier {
	if trustedKeys == nil {
		trustedKeys = crypto.NewKeyRing()
	}
	return &Verifier{fcSigner: fcSigner, keyRing: trustedKeys}
}

// Verify walks packDir and produces a full Report. A Go error means the
// pack's top-level index could not be read at all; anything short of
// that is reported as a failing check, not an error.
func (v *Verifier) Verify(packDir string) (Report, error) {
	index, err := readPackIndex(packDir)
	if err != nil {
		return Report{}, err
	}

	report := Report{}
	report.PackChecks = append(report.PackChecks, CheckResult{
		Name:   "pack_tenant_nonempty",
		Passed: index.TenantID != "",
	})

	hashByRun := make(map[string]string, len(index.Runs))
	for _, entry := range index.Runs {
		rv, manifestHash := v.verifyRun(packDir, index, entry)
		report.Runs = append(report.Runs, rv)
		hashByRun[entry.RunID] = manifestHash
	}

	sorted := append([]contracts.PackRunEntry(nil), index.Runs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RunID < sorted[j].RunID })
	concat := ""
	for _, e := range sorted {
		concat += hashByRun[e.RunID]
	}
	recomputed := canonicalize.Hash([]byte(concat))
	report.PackChecks = append(report.PackChecks, CheckResult{
		Name:   "pack_sha256_matches",
		Passed: recomputed == index.PackSha256,
		Detail: fmt.Sprintf("recomputed=%s declared=%s", recomputed, index.PackSha256),
	})

	total, failed := 0, 0
	allPassed := true
	for _, c := range report.PackChecks {
		total++
		if !c.Passed {
			failed++
			allPassed = false
		}
	}
	for _, rv := range report.Runs {
		for _, c := range rv.Checks {
			total++
			if !c.Passed {
				failed++
			}
		}
		if !rv.Passed {
			allPassed = false
		}
	}
	report.ChecksTotal = total
	report.ChecksFailed = failed
	report.Passed = allPassed

	return report, nil
}

func readPackIndex(packDir string) (contracts.PackIndex, error) {
	raw, err := os.ReadFile(filepath.Join(packDir, "PACK_INDEX.json"))
	if err != nil {
		return contracts.PackIndex{}, fmt.Errorf("proofpack: reading PACK_INDEX.json: %w", err)
	}
	var index contracts.PackIndex
	if err := json.Unmarshal(raw, &index); err != nil {
		return contracts.PackIndex{}, fmt.Errorf("proofpack: parsing PACK_INDEX.json: %w", err)
	}
	return index, nil
}

func (v *Verifier) verifyRun(packDir string, index contracts.PackIndex, entry contracts.PackRunEntry) (RunVerification, string) {
	rv := RunVerification{RunID: entry.RunID}
	add := func(name string, passed bool, detail string) {
		rv.Checks = append(rv.Checks, CheckResult{Name: name, Passed: passed, Detail: detail})
	}

	manifestPath := filepath.Join(packDir, filepath.FromSlash(entry.Path))
	manifestBytes, err := os.ReadFile(manifestPath)
	if err != nil {
		add("manifest_readable", false, err.Error())
		rv.Passed = false
		return rv, ""
	}
	add("manifest_readable", true, "")

	manifestHash := canonicalize.Hash(manifestBytes)
	add("manifest_hash_matches_index", manifestHash == entry.SHA256, fmt.Sprintf("recomputed=%s declared=%s", manifestHash, entry.SHA256))

	var manifest contracts.RunManifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		add("manifest_parseable", false, err.Error())
		rv.Passed = allChecksPassed(rv.Checks)
		return rv, manifestHash
	}
	add("manifest_parseable", true, "")

	v.verifySignature(packDir, manifest, add)
	v.verifyArtifacts(packDir, manifest, add)

	add("manifest_tenant_nonempty", manifest.TenantID != "", "")
	add("manifest_scope_tenant_matches", manifest.Scope.TenantID == manifest.TenantID, "")
	add("pack_tenant_matches_run", index.TenantID != "" && index.TenantID == manifest.TenantID,
		fmt.Sprintf("pack=%s run=%s", index.TenantID, manifest.TenantID))

	v.verifyFCBinding(packDir, manifest, add)

	rv.Passed = allChecksPassed(rv.Checks)
	return rv, manifestHash
}

func (v *Verifier) verifySignature(packDir string, manifest contracts.RunManifest, add func(name string, passed bool, detail string)) {
	if manifest.ManifestSignature == nil {
		add("manifest_signature_present", false, "")
		return
	}
	add("manifest_signature_present", true, "")

	pubKeyBytes, err := os.ReadFile(filepath.Join(packDir, filepath.FromSlash(manifest.ManifestSignature.PublicKeyPath)))
	if err != nil {
		add("public_key_readable", false, err.Error())
		return
	}
	add("public_key_readable", true, "")

	pubKey := ed25519.PublicKey(pubKeyBytes)
	expectedKeyID := crypto.KeyIDPrefix + ":" + crypto.Fingerprint(pubKey)
	add("key_id_matches_fingerprint", manifest.ManifestSignature.KeyID == expectedKeyID,
		fmt.Sprintf("expected=%s got=%s", expectedKeyID, manifest.ManifestSignature.KeyID))

	canonicalBytes, err := canonicalize.Canonicalize(manifest.WithoutSignature())
	if err != nil {
		add("manifest_canonicalizes", false, err.Error())
		return
	}

	// Resolve strictly by the keyId the manifest embeds. A key already
	// pinned in the ring under that id is used as-is; only an unknown id
	// falls back to trusting the key this pack itself carries on disk.
	keyID := manifest.ManifestSignature.KeyID
	ok, err := v.keyRing.Verify(keyID, canonicalBytes, manifest.ManifestSignature.Value)
	if err != nil {
		v.keyRing.Add(keyID, pubKey)
		ok, err = v.keyRing.Verify(keyID, canonicalBytes, manifest.ManifestSignature.Value)
	}
	if err != nil {
		add("manifest_signature_valid", false, err.Error())
		return
	}
	add("manifest_signature_valid", ok, "")
}

func (v *Verifier) verifyArtifacts(packDir string, manifest contracts.RunManifest, add func(name string, passed bool, detail string)) {
	for _, artifact := range manifest.Artifacts {
		data, err := os.ReadFile(filepath.Join(packDir, filepath.FromSlash(artifact.Path)))
		prefix := "artifact_" + artifact.Name
		if err != nil {
			add(prefix+"_readable", false, err.Error())
			continue
		}
		add(prefix+"_size_matches", int64(len(data)) == artifact.Bytes,
			fmt.Sprintf("expected=%d got=%d", artifact.Bytes, len(data)))
		gotHash := canonicalize.Hash(data)
		add(prefix+"_hash_matches", gotHash == artifact.SHA256,
			fmt.Sprintf("expected=%s got=%s", artifact.SHA256, gotHash))

		switch artifact.Name {
		case "publication-plan.json", "proof-ledger.json", "approver-summary.json":
			if tenant, ok := jsonTenantID(data); ok {
				add(prefix+"_tenant_matches_manifest", tenant == manifest.TenantID,
					fmt.Sprintf("artifact=%s manifest=%s", tenant, manifest.TenantID))
			}
		case "judge-advisory-receipt.json":
			if tenant, ok := jsonTenantID(data); ok {
				add("receipt_tenant_matches_manifest", tenant == manifest.TenantID,
					fmt.Sprintf("artifact=%s manifest=%s", tenant, manifest.TenantID))
			}
		}
	}
}

func jsonTenantID(data []byte) (string, bool) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return "", false
	}
	t, ok := m["tenantId"].(string)
	return t, ok
}

func allChecksPassed(checks []CheckResult) bool {
	for _, c := range checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// verifyFCBinding re-derives every fc-binding cross-check directly from the
// plan/ledger/receipt bytes on disk, the same way verifyArtifacts and
// verifySignature already do. It never reads verification/fc-binding.json:
// that file is the builder's own precomputed record and recording its
// booleans here would let a tampered artifact pass by citing an
// unverified claim about itself.
func (v *Verifier) verifyFCBinding(packDir string, manifest contracts.RunManifest, add func(name string, passed bool, detail string)) {
	receiptBytes, ok := readManifestArtifact(packDir, manifest, "judge-advisory-receipt.json")
	if !ok {
		return
	}
	var receipt contracts.JudgeAdvisoryReceipt
	if err := json.Unmarshal(receiptBytes, &receipt); err != nil || receipt.ID == "" {
		// Prod runs mint no advisory; the artifact is the empty struct{}
		// placeholder the builder writes in its place. Nothing to bind.
		return
	}

	add("fc_binding_receipt_present", true, "")

	planTenant := ""
	planBytes, ok := readManifestArtifact(packDir, manifest, "publication-plan.json")
	if !ok {
		add("fc_binding_plan_digest_matches", false, "publication-plan.json not found in manifest")
	} else {
		planHash := canonicalize.Hash(planBytes)
		add("fc_binding_plan_digest_matches", receipt.Subject.SubjectDigests.PlanSha256 == planHash,
			fmt.Sprintf("receipt=%s recomputed=%s", receipt.Subject.SubjectDigests.PlanSha256, planHash))
		planTenant, _ = jsonTenantID(planBytes)
	}

	var ledger contracts.ProofLedger
	ledgerBytes, ok := readManifestArtifact(packDir, manifest, "proof-ledger.json")
	if !ok {
		add("fc_binding_ledger_digest_matches", false, "proof-ledger.json not found in manifest")
		add("fc_binding_ledger_receipt_backreference", false, "proof-ledger.json not found in manifest")
	} else if err := json.Unmarshal(ledgerBytes, &ledger); err != nil {
		add("fc_binding_ledger_digest_matches", false, err.Error())
		add("fc_binding_ledger_receipt_backreference", false, err.Error())
	} else {
		ledgerHash, err := canonicalize.HashObject(ledger.WithoutReceiptFields())
		if err != nil {
			add("fc_binding_ledger_digest_matches", false, err.Error())
		} else {
			add("fc_binding_ledger_digest_matches", receipt.Subject.SubjectDigests.LedgerSha256 == ledgerHash,
				fmt.Sprintf("receipt=%s recomputed=%s", receipt.Subject.SubjectDigests.LedgerSha256, ledgerHash))
		}
		add("fc_binding_ledger_receipt_backreference",
			ledger.ReceiptID == receipt.ID && ledger.ReceiptDigest == receipt.Digests.ReceiptSha256,
			fmt.Sprintf("ledger.receiptId=%s receipt.id=%s", ledger.ReceiptID, receipt.ID))
	}

	if v.fcSigner == nil {
		add("fc_binding_hmac_signature_valid", false, "no fc signer configured to independently verify")
	} else {
		valid, err := v.fcSigner.VerifyCanonical(receipt.WithoutSignature(), receipt.Signature.Value)
		if err != nil {
			add("fc_binding_hmac_signature_valid", false, err.Error())
		} else {
			add("fc_binding_hmac_signature_valid", valid, "")
		}
	}

	summaryTenant := ""
	if summaryBytes, ok := readManifestArtifact(packDir, manifest, "approver-summary.json"); ok {
		summaryTenant, _ = jsonTenantID(summaryBytes)
	}
	add("fc_binding_tenant_consistency",
		receipt.TenantID == manifest.TenantID &&
			planTenant == manifest.TenantID &&
			ledger.TenantID == manifest.TenantID &&
			summaryTenant == manifest.TenantID,
		fmt.Sprintf("receipt=%s plan=%s ledger=%s summary=%s manifest=%s", receipt.TenantID, planTenant, ledger.TenantID, summaryTenant, manifest.TenantID))
}

// readManifestArtifact looks up name in manifest's own artifact list and
// reads its bytes from disk by the path the manifest records, so a
// recomputation can never silently check the wrong file.
func readManifestArtifact(packDir string, manifest contracts.RunManifest, name string) ([]byte, bool) {
	for _, a := range manifest.Artifacts {
		if a.Name != name {
			continue
		}
		data, err := os.ReadFile(filepath.Join(packDir, filepath.FromSlash(a.Path)))
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return nil, false
}
