package proofpack

import (
	"os"
	"path/filepath"
	"testing"
)

func buildTestPack(t *testing.T) string {
	t.Helper()
	outDir := t.TempDir()
	builder := NewBuilder(testEd25519Signer(t), testHMACSigner(t))
	runs := []RunInput{
		{RunID: "run-1", Scenario: "hygiene-sweep", TenantID: "keon-public", Set: testDryRunSet(t, "run-1")},
	}
	if _, err := builder.Build(outDir, runs); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return outDir
}

func TestVerifier_PassesOnFreshPack(t *testing.T) {
	outDir := buildTestPack(t)

	report, err := NewVerifier(testHMACSigner(t), nil).Verify(outDir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.Passed {
		t.Fatalf("expected a fresh pack to pass, got %+v", report)
	}
	if report.ChecksFailed != 0 {
		t.Errorf("expected zero failed checks, got %d of %d", report.ChecksFailed, report.ChecksTotal)
	}
}

func TestVerifier_DetectsArtifactTamper(t *testing.T) {
	outDir := buildTestPack(t)
	planPath := filepath.Join(outDir, "runs", "run-1", "artifacts", "publication-plan.json")

	data, err := os.ReadFile(planPath)
	if err != nil {
		t.Fatalf("reading plan artifact: %v", err)
	}
	tampered := append(append([]byte{}, data...), ' ')
	if err := os.WriteFile(planPath, tampered, 0o644); err != nil {
		t.Fatalf("writing tampered plan artifact: %v", err)
	}

	report, err := NewVerifier(testHMACSigner(t), nil).Verify(outDir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.Passed {
		t.Fatal("expected verification to fail after an artifact was tampered with")
	}
}

func TestVerifier_DetectsManifestSignatureTamper(t *testing.T) {
	outDir := buildTestPack(t)
	manifestPath := filepath.Join(outDir, "runs", "run-1", "RUN_MANIFEST.json")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	tampered := append(append([]byte{}, data...), ' ')
	if err := os.WriteFile(manifestPath, tampered, 0o644); err != nil {
		t.Fatalf("writing tampered manifest: %v", err)
	}

	report, err := NewVerifier(testHMACSigner(t), nil).Verify(outDir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.Passed {
		t.Fatal("expected verification to fail after the manifest was tampered with")
	}
	found := false
	for _, rv := range report.Runs {
		for _, c := range rv.Checks {
			if c.Name == "manifest_hash_matches_index" && !c.Passed {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected the manifest_hash_matches_index check to fail")
	}
}

func TestVerifier_FailsClosedOnMissingPackIndex(t *testing.T) {
	if _, err := NewVerifier(testHMACSigner(t), nil).Verify(t.TempDir()); err == nil {
		t.Error("expected an error when PACK_INDEX.json is absent")
	}
}
