package proofpack

import (
	"path/filepath"
	"testing"

	"github.com/keon-labs/marketops/pkg/artifacts"
	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/crypto"
)

func testEd25519Signer(t *testing.T) *crypto.Ed25519Signer {
	t.Helper()
	signer, err := crypto.NewEd25519Signer(filepath.Join(t.TempDir(), "signing.key"), true)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	return signer
}

func testHMACSigner(t *testing.T) *crypto.HMACSigner {
	t.Helper()
	signer, err := crypto.NewHMACSigner([]byte("fc-shared-secret"), "fc-key-1")
	if err != nil {
		t.Fatalf("NewHMACSigner: %v", err)
	}
	return signer
}

func testDryRunSet(t *testing.T, runID string) artifacts.Set {
	t.Helper()
	gen := artifacts.NewGenerator(testHMACSigner(t), contracts.ReceiptIssuer{ID: "keon-judge", Endpoint: "https://judge.internal"})
	run := contracts.MarketOpsRun{RunID: runID, TenantID: "keon-public", Mode: contracts.ModeDryRun}
	plan := contracts.PublicationPlan{RunID: runID, TenantID: "keon-public", Mode: contracts.ModeDryRun, WouldShip: []string{"a"}, Reasons: map[string]string{}}
	ledger := contracts.ProofLedger{RunID: runID, TenantID: "keon-public", Mode: contracts.ModeDryRun}

	set, err := gen.Build(run, plan, ledger)
	if err != nil {
		t.Fatalf("Build artifact set: %v", err)
	}
	return set
}

func TestBuilder_ProducesReadableManifestAndIndex(t *testing.T) {
	outDir := t.TempDir()
	builder := NewBuilder(testEd25519Signer(t), testHMACSigner(t))

	runs := []RunInput{
		{RunID: "run-a", Scenario: "hygiene-sweep", TenantID: "keon-public", Set: testDryRunSet(t, "run-a")},
	}

	index, err := builder.Build(outDir, runs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if index.PackSha256 == "" {
		t.Error("expected a non-empty pack hash")
	}
	if len(index.Runs) != 1 {
		t.Fatalf("expected 1 run entry, got %d", len(index.Runs))
	}

	report, err := NewVerifier(testHMACSigner(t), nil).Verify(outDir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.Passed {
		t.Errorf("expected a freshly built pack to verify clean: %+v", report)
	}
}

func TestBuilder_RejectsMixedTenants(t *testing.T) {
	outDir := t.TempDir()
	builder := NewBuilder(testEd25519Signer(t), testHMACSigner(t))

	runs := []RunInput{
		{RunID: "run-a", Scenario: "s", TenantID: "tenant-a", Set: testDryRunSet(t, "run-a")},
		{RunID: "run-b", Scenario: "s", TenantID: "tenant-b", Set: testDryRunSet(t, "run-b")},
	}

	if _, err := builder.Build(outDir, runs); err == nil {
		t.Error("expected an error for a pack spanning two tenants")
	}
}

func TestBuilder_PackSealIsOrderIndependentOfRunInputOrder(t *testing.T) {
	builder := NewBuilder(testEd25519Signer(t), testHMACSigner(t))

	setA := testDryRunSet(t, "run-a")
	setB := testDryRunSet(t, "run-b")

	dir1 := t.TempDir()
	index1, err := builder.Build(dir1, []RunInput{
		{RunID: "run-a", Scenario: "s", TenantID: "keon-public", Set: setA},
		{RunID: "run-b", Scenario: "s", TenantID: "keon-public", Set: setB},
	})
	if err != nil {
		t.Fatalf("Build (order 1): %v", err)
	}

	dir2 := t.TempDir()
	index2, err := builder.Build(dir2, []RunInput{
		{RunID: "run-b", Scenario: "s", TenantID: "keon-public", Set: setB},
		{RunID: "run-a", Scenario: "s", TenantID: "keon-public", Set: setA},
	})
	if err != nil {
		t.Fatalf("Build (order 2): %v", err)
	}

	if index1.PackSha256 != index2.PackSha256 {
		t.Error("expected packSha256 to be independent of RunInput ordering, since entries are sorted by runId before concatenation")
	}
}
