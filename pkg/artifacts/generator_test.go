package artifacts

import (
	"testing"

	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/crypto"
)

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	signer, err := crypto.NewHMACSigner([]byte("fc-shared-secret"), "fc-key-1")
	if err != nil {
		t.Fatalf("NewHMACSigner: %v", err)
	}
	return NewGenerator(signer, contracts.ReceiptIssuer{ID: "keon-judge", Endpoint: "https://judge.internal"})
}

func TestGenerator_DryRunProducesAdvisoryReceipt(t *testing.T) {
	gen := testGenerator(t)
	run := contracts.MarketOpsRun{RunID: "run-1", TenantID: "keon-public", Mode: contracts.ModeDryRun}
	plan := contracts.PublicationPlan{RunID: "run-1", TenantID: "keon-public", Mode: contracts.ModeDryRun, WouldShip: []string{"a"}, Reasons: map[string]string{}}
	ledger := contracts.ProofLedger{RunID: "run-1", TenantID: "keon-public", Mode: contracts.ModeDryRun}

	set, err := gen.Build(run, plan, ledger)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if set.Advisory == nil {
		t.Fatal("expected an advisory receipt for a dry run")
	}
	if set.Advisory.Enforceable {
		t.Error("expected advisory receipt to be non-enforceable")
	}
	if set.Ledger.ReceiptID != set.Advisory.ID {
		t.Error("expected ledger to carry the advisory's receipt id back-reference")
	}
	if set.Ledger.ReceiptDigest != set.Advisory.Digests.ReceiptSha256 {
		t.Error("expected ledger receipt digest to match advisory's receipt hash")
	}
}

func TestGenerator_ProdRunHasNoAdvisory(t *testing.T) {
	gen := testGenerator(t)
	run := contracts.MarketOpsRun{RunID: "run-2", TenantID: "keon-public", Mode: contracts.ModeProd}
	plan := contracts.PublicationPlan{RunID: "run-2", TenantID: "keon-public", Mode: contracts.ModeProd, Reasons: map[string]string{}}
	ledger := contracts.ProofLedger{RunID: "run-2", TenantID: "keon-public", Mode: contracts.ModeProd}

	set, err := gen.Build(run, plan, ledger)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if set.Advisory != nil {
		t.Error("expected no advisory receipt outside dry run")
	}
}

func TestGenerator_SummaryMarkdownIsRenderOfJSON(t *testing.T) {
	gen := testGenerator(t)
	run := contracts.MarketOpsRun{RunID: "run-3", TenantID: "keon-public", Mode: contracts.ModeDryRun}
	plan := contracts.PublicationPlan{RunID: "run-3", TenantID: "keon-public", Mode: contracts.ModeDryRun, Reasons: map[string]string{}}
	ledger := contracts.ProofLedger{
		RunID:    "run-3",
		TenantID: "keon-public",
		Mode:     contracts.ModeDryRun,
		SideEffectIntents: []contracts.SideEffectIntent{
			{IntentID: "i1", Target: contracts.SideEffectTarget{System: "github"}, BlockedByPolicy: true, PolicyDenialReasons: []contracts.PolicyDenialReasonID{contracts.ReasonDirectPushMain}},
		},
	}

	set, err := gen.Build(run, plan, ledger)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if set.SummaryMarkdown == "" {
		t.Error("expected non-empty markdown summary")
	}
	if set.Summary.PolicyVerdict != "approved" {
		t.Errorf("expected verdict to follow the plan (no wouldNotShip entries), got %s", set.Summary.PolicyVerdict)
	}
}
