package governance

import (
	"context"
	"testing"
)

func TestMemorySDK_DecideApprovesByDefault(t *testing.T) {
	sdk := NewMemorySDK()
	res, err := sdk.Invoke(context.Background(), ToolDecide, nil, InvokeContext{Tenant: "keon-public"}, "")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !res.Success || res.Outcome != OutcomeApproved {
		t.Errorf("expected approved decision, got %+v", res)
	}
}

func TestMemorySDK_DecideDeniedWhenOverridden(t *testing.T) {
	sdk := NewMemorySDK()
	deny := false
	sdk.Approve = &deny

	res, err := sdk.Invoke(context.Background(), ToolDecide, nil, InvokeContext{Tenant: "keon-public"}, "")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Outcome != OutcomeDenied {
		t.Errorf("expected denied outcome, got %s", res.Outcome)
	}
}

func TestMemoryEvidenceService_CreateDownloadRoundTrip(t *testing.T) {
	svc := NewMemoryEvidenceService()
	ctx := context.Background()

	created, err := svc.Create(ctx, EvidenceCreateRequest{ReceiptID: "r-1", Content: []byte("evidence-bytes")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	downloaded, err := svc.Download(ctx, EvidenceDownloadRequest{EvidenceID: created.EvidenceID, ExpectedDigest: created.Digest})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(downloaded.Content) != "evidence-bytes" {
		t.Errorf("unexpected content: %s", downloaded.Content)
	}
}

func TestMemoryEvidenceService_DownloadFailsClosedOnDigestMismatch(t *testing.T) {
	svc := NewMemoryEvidenceService()
	ctx := context.Background()

	created, err := svc.Create(ctx, EvidenceCreateRequest{Content: []byte("evidence-bytes")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Download(ctx, EvidenceDownloadRequest{EvidenceID: created.EvidenceID, ExpectedDigest: "wrong-digest"}); err == nil {
		t.Error("expected download to fail closed on digest mismatch")
	}
}

func TestMemoryEvidenceService_VerifyRejectsEmptyHash(t *testing.T) {
	svc := NewMemoryEvidenceService()
	res, err := svc.Verify(context.Background(), "")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.IsValid {
		t.Error("expected empty pack hash to fail verification")
	}
}
