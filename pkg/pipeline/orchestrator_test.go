package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/policy"
	"github.com/keon-labs/marketops/pkg/sideeffect"
)

func writeRepoFixture(t *testing.T, dir string, withHygiene bool) {
	t.Helper()
	if withHygiene {
		readme := "# Repo\n\n## Installation\n\n## Usage\n\n## License\n"
		if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(readme), 0o644); err != nil {
			t.Fatalf("write README: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "CODEOWNERS"), []byte("* @owner\n"), 0o644); err != nil {
			t.Fatalf("write CODEOWNERS: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, ".editorconfig"), []byte("root = true\n"), 0o644); err != nil {
			t.Fatalf("write .editorconfig: %v", err)
		}
	}
}

func TestOrchestrator_HygieneSweepDryRun(t *testing.T) {
	dir := t.TempDir()
	writeRepoFixture(t, dir, false)

	evaluator, err := policy.NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	store := sideeffect.NewMemoryIntentStore()
	port := sideeffect.NewNullSinkPort(store)
	orch := New(evaluator, port, nil, nil, nil)

	run := contracts.MarketOpsRun{
		RunID:    "run-1",
		TenantID: "keon-public",
		Mode:     contracts.ModeDryRun,
		Input:    map[string]interface{}{"repos": []interface{}{dir}},
	}

	result := orch.Execute(context.Background(), run)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.ErrorMessage)
	}
	if len(result.Ledger.SideEffectIntents) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(result.Ledger.SideEffectIntents))
	}
	if !result.Ledger.SideEffectIntents[0].BlockedByMode {
		t.Error("expected intent to be blockedByMode in dry run")
	}
	if len(result.Ledger.SideEffectReceipts) != 0 {
		t.Error("expected zero receipts for dry run")
	}
	if len(result.Plan.WouldShip) != 1 {
		t.Errorf("expected 1 artifact in wouldShip, got %d", len(result.Plan.WouldShip))
	}

	snap := store.Snapshot(run.RunID)
	if len(snap) != 1 {
		t.Errorf("expected 1 intent recorded at the port boundary, got %d", len(snap))
	}
}

func TestOrchestrator_DirectPushViolationMovesAllToWouldNotShip(t *testing.T) {
	dir := t.TempDir()

	evaluator, err := policy.NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	port := sideeffect.NewNullSinkPort(sideeffect.NewMemoryIntentStore())
	orch := New(evaluator, port, nil, nil, nil)

	run := contracts.MarketOpsRun{
		RunID:    "run-2",
		TenantID: "keon-public",
		Mode:     contracts.ModeDryRun,
		Input: map[string]interface{}{
			"repos":             []interface{}{dir},
			"simulateViolation": "direct_push_main",
		},
	}

	result := orch.Execute(context.Background(), run)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.ErrorMessage)
	}
	if len(result.Ledger.SideEffectIntents) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(result.Ledger.SideEffectIntents))
	}
	if len(result.Plan.WouldShip) != 0 || len(result.Plan.WouldNotShip) != 2 {
		t.Errorf("expected all candidates moved to wouldNotShip, got ship=%d notShip=%d", len(result.Plan.WouldShip), len(result.Plan.WouldNotShip))
	}
}

func TestOrchestrator_RejectsInvalidMode(t *testing.T) {
	evaluator, err := policy.NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	port := sideeffect.NewNullSinkPort(sideeffect.NewMemoryIntentStore())
	orch := New(evaluator, port, nil, nil, nil)

	result := orch.Execute(context.Background(), contracts.MarketOpsRun{RunID: "run-3"})
	if result.Success {
		t.Error("expected failure for a run with no mode")
	}
}

func TestDiscover_SkipsMissingDirectorySilently(t *testing.T) {
	artifacts := Discover(discardLogger(), contracts.MarketOpsRun{
		Input: map[string]interface{}{"repos": []interface{}{"/nonexistent/path/xyz"}},
	})
	if len(artifacts) != 0 {
		t.Errorf("expected no artifacts for a missing directory, got %d", len(artifacts))
	}
}

func TestDiscover_FlagsMissingHygieneFiles(t *testing.T) {
	dir := t.TempDir()
	artifacts := Discover(discardLogger(), contracts.MarketOpsRun{
		Input: map[string]interface{}{"repos": []interface{}{dir}},
	})
	if len(artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(artifacts))
	}
	if len(artifacts[0].Issues) != 3 {
		t.Errorf("expected 3 hygiene issues on an empty repo, got %d", len(artifacts[0].Issues))
	}
}
