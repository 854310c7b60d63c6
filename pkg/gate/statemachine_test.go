package gate

import (
	"context"
	"testing"

	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/crypto"
	"github.com/keon-labs/marketops/pkg/governance"
)

func testPacket() contracts.PublishPacket {
	return contracts.PublishPacket{
		ArtifactID:    "artifact-1",
		ArtifactType:  "release",
		TenantID:      "keon-public",
		CorrelationID: "corr-1",
		ActorID:       "actor-1",
		Destinations:  []string{"npm"},
		PayloadRef:    contracts.PayloadRef{Kind: contracts.PayloadKindFile, Path: "dist/pkg.tgz"},
	}
}

func testConfig() Config {
	return NewConfig("keon-public", "actor-1", "keon.publish", "/tmp/marketops-audit", []string{"npm"})
}

func TestStateMachine_AllowsWellFormedPacket(t *testing.T) {
	sm := New(testConfig(), governance.NewMemorySDK(), crypto.NewMemoryAuditLog(), nil)

	result := sm.Run(context.Background(), testPacket())
	if !result.Allowed {
		t.Fatalf("expected allow, got denial %s at stage %s: %s", result.DenialCode, result.FailureStage, result.DenialMessage)
	}
	if !result.Invariant() {
		t.Error("expected allowed GateResult to satisfy its invariant")
	}
}

func TestStateMachine_TenantMismatchFailsAtPrecheck(t *testing.T) {
	sm := New(testConfig(), governance.NewMemorySDK(), crypto.NewMemoryAuditLog(), nil)

	packet := testPacket()
	packet.TenantID = "other"

	result := sm.Run(context.Background(), packet)
	if result.Allowed {
		t.Fatal("expected denial for tenant mismatch")
	}
	if result.FailureStage != contracts.StagePrecheck || result.DenialCode != contracts.CodeTenantMismatch {
		t.Errorf("expected Precheck/TENANT_MISMATCH, got %s/%s", result.FailureStage, result.DenialCode)
	}
	if result.PacketHashSha256 != unavailableInPrecheck {
		t.Errorf("expected packetHashSha256 to be %q, got %q", unavailableInPrecheck, result.PacketHashSha256)
	}
}

func TestStateMachine_DestinationNotAllowed(t *testing.T) {
	sm := New(testConfig(), governance.NewMemorySDK(), crypto.NewMemoryAuditLog(), nil)

	packet := testPacket()
	packet.Destinations = []string{"not-allowed"}

	result := sm.Run(context.Background(), packet)
	if result.Allowed || result.DenialCode != contracts.CodeDestinationDenied {
		t.Errorf("expected DESTINATION_NOT_ALLOWED, got %s", result.DenialCode)
	}
}

func TestStateMachine_DecisionDeniedStopsBeforeAuditAndVerify(t *testing.T) {
	sdk := governance.NewMemorySDK()
	deny := false
	sdk.Approve = &deny

	sm := New(testConfig(), sdk, crypto.NewMemoryAuditLog(), nil)

	result := sm.Run(context.Background(), testPacket())
	if result.Allowed {
		t.Fatal("expected denial")
	}
	if result.FailureStage != contracts.StageDecision || result.DenialCode != contracts.CodeDecisionNotApprove {
		t.Errorf("expected Decision/DECISION_NOT_APPROVED, got %s/%s", result.FailureStage, result.DenialCode)
	}
}

func TestStateMachine_Precheck_NeverContactsSDK(t *testing.T) {
	sm := New(testConfig(), governance.NewMemorySDK(), crypto.NewMemoryAuditLog(), nil)

	res := sm.Precheck(testPacket())
	if !res.Passed {
		t.Errorf("expected precheck to pass, got denial %s: %s", res.DenialCode, res.DenialMessage)
	}
}

func TestStateMachine_Precheck_FailsOnActorMismatch(t *testing.T) {
	sm := New(testConfig(), governance.NewMemorySDK(), crypto.NewMemoryAuditLog(), nil)

	packet := testPacket()
	packet.ActorID = "someone-else"

	res := sm.Precheck(packet)
	if res.Passed || res.DenialCode != contracts.CodeActorMismatch {
		t.Errorf("expected ACTOR_MISMATCH, got passed=%v code=%s", res.Passed, res.DenialCode)
	}
}

func TestStateMachine_RepeatedRunIsIdempotent(t *testing.T) {
	sm := New(testConfig(), governance.NewMemorySDK(), crypto.NewMemoryAuditLog(), nil)

	packet := testPacket()
	first := sm.Run(context.Background(), packet)
	second := sm.Run(context.Background(), packet)

	if !first.Allowed || !second.Allowed {
		t.Fatalf("expected both runs to be allowed, got first=%v second=%v", first.Allowed, second.Allowed)
	}
	if first.Governance == nil || second.Governance == nil {
		t.Fatal("expected governance evidence on both results")
	}
	if first.Governance.ReceiptID != second.Governance.ReceiptID {
		t.Errorf("expected a retried call for the same packet hash to replay the cached decision, got distinct receipt ids %q and %q", first.Governance.ReceiptID, second.Governance.ReceiptID)
	}
}

func TestStateMachine_IdempotentReplaySkipsDecisionStageCall(t *testing.T) {
	sdk := governance.NewMemorySDK()
	sm := New(testConfig(), sdk, crypto.NewMemoryAuditLog(), nil)

	packet := testPacket()
	sm.Run(context.Background(), packet)

	deny := false
	sdk.Approve = &deny // if the second call reached the SDK, it would now be denied
	replay := sm.Run(context.Background(), packet)

	if !replay.Allowed {
		t.Error("expected the cached result to be replayed rather than re-evaluated against the SDK's current behavior")
	}
}
