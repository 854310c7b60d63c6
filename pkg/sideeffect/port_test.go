package sideeffect

import (
	"context"
	"errors"
	"testing"

	"github.com/keon-labs/marketops/pkg/contracts"
)

func dryRun() contracts.MarketOpsRun {
	return contracts.MarketOpsRun{RunID: "run-1", TenantID: "keon-public", Mode: contracts.ModeDryRun}
}

func prodRun() contracts.MarketOpsRun {
	return contracts.MarketOpsRun{RunID: "run-2", TenantID: "keon-public", Mode: contracts.ModeProd}
}

func TestNullSinkPort_RecordsIntentAndReturnsNil(t *testing.T) {
	store := NewMemoryIntentStore()
	port := NewNullSinkPort(store)

	receipt, err := port.OpenPr(context.Background(), dryRun(), Request{Target: contracts.SideEffectTarget{System: "github", Ref: "refs/heads/feature"}}, nil)
	if err != nil {
		t.Fatalf("OpenPr: %v", err)
	}
	if receipt != nil {
		t.Errorf("expected nil receipt from null-sink port, got %+v", receipt)
	}

	snap := store.Snapshot("run-1")
	if len(snap) != 1 {
		t.Fatalf("expected 1 recorded intent, got %d", len(snap))
	}
	if !snap[0].BlockedByMode {
		t.Error("expected recorded intent to be blockedByMode")
	}
}

func TestNullSinkPort_RefusesProdMode(t *testing.T) {
	port := NewNullSinkPort(NewMemoryIntentStore())
	if _, err := port.OpenPr(context.Background(), prodRun(), Request{}, nil); err == nil {
		t.Error("expected null-sink port to refuse a Prod-mode run")
	}
}

type stubBackend struct {
	err error
}

func (b *stubBackend) Publish(context.Context, contracts.SideEffectKind, contracts.SideEffectTarget, map[string]interface{}) error {
	return b.err
}

type stubValidator struct {
	allow  bool
	reason string
	err    error
}

func (v *stubValidator) Validate(context.Context, contracts.MarketOpsRun, Request, *Authorization) (bool, string, error) {
	return v.allow, v.reason, v.err
}

func TestLivePort_RefusesDryRunMode(t *testing.T) {
	port := NewLivePort(&stubBackend{}, &stubValidator{allow: true})
	if _, err := port.TagRepo(context.Background(), dryRun(), Request{}, nil); err == nil {
		t.Error("expected live port to refuse a DryRun-mode run")
	}
}

func TestLivePort_DeniedAuthorizationYieldsFailedReceiptNoExecution(t *testing.T) {
	backend := &stubBackend{}
	port := NewLivePort(backend, &stubValidator{allow: false, reason: "not authorized"})

	receipt, err := port.TagRepo(context.Background(), prodRun(), Request{}, nil)
	if err != nil {
		t.Fatalf("TagRepo: %v", err)
	}
	if receipt.Success {
		t.Error("expected failed receipt on authorization denial")
	}
	if receipt.ErrorMessage != "not authorized" {
		t.Errorf("unexpected error message: %s", receipt.ErrorMessage)
	}
}

func TestLivePort_BackendErrorBecomesFailedReceipt(t *testing.T) {
	port := NewLivePort(&stubBackend{err: errors.New("network down")}, &stubValidator{allow: true})

	receipt, err := port.PublishRelease(context.Background(), prodRun(), Request{}, nil)
	if err != nil {
		t.Fatalf("expected backend error to be captured, not propagated: %v", err)
	}
	if receipt.Success {
		t.Error("expected failed receipt on backend error")
	}
}

func TestLivePort_SuccessfulExecutionYieldsSuccessReceipt(t *testing.T) {
	port := NewLivePort(&stubBackend{}, &stubValidator{allow: true})

	receipt, err := port.PublishRelease(context.Background(), prodRun(), Request{}, nil)
	if err != nil {
		t.Fatalf("PublishRelease: %v", err)
	}
	if !receipt.Success {
		t.Errorf("expected successful receipt, got error %q", receipt.ErrorMessage)
	}
}

func TestMemoryIntentStore_SnapshotIsDefensiveCopy(t *testing.T) {
	store := NewMemoryIntentStore()
	store.Append("run-1", contracts.SideEffectIntent{IntentID: "a"})

	snap := store.Snapshot("run-1")
	snap[0].IntentID = "mutated"

	again := store.Snapshot("run-1")
	if again[0].IntentID != "a" {
		t.Error("expected snapshot mutation not to affect stored state")
	}
}
