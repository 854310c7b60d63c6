package policy

import (
	"testing"

	"github.com/keon-labs/marketops/pkg/contracts"
)

func intent(kind contracts.SideEffectKind, ref string, params map[string]interface{}) contracts.SideEffectIntent {
	return contracts.SideEffectIntent{
		IntentID: "intent-" + ref,
		Kind:     kind,
		Target:   contracts.SideEffectTarget{System: "github", Ref: ref},
		Params:   params,
	}
}

func TestEvaluator_ApprovesOpenPr(t *testing.T) {
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	res, err := ev.Evaluate([]contracts.SideEffectIntent{
		intent(contracts.KindOpenPr, "refs/heads/feature-x", nil),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.IsApproved {
		t.Errorf("expected approval, got denials: %v", res.DenialReasons)
	}
}

func TestEvaluator_DeniesDirectPushToMain(t *testing.T) {
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	res, err := ev.Evaluate([]contracts.SideEffectIntent{
		intent(contracts.KindTagRepo, "refs/heads/main", nil),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.IsApproved {
		t.Error("expected denial for direct push to main")
	}
	if len(res.DenialReasons) != 1 || res.DenialReasons[0] != contracts.ReasonDirectPushMain {
		t.Errorf("expected direct-push-main reason, got %v", res.DenialReasons)
	}
}

func TestEvaluator_DeniesDirectPushViaBranchParam(t *testing.T) {
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	res, err := ev.Evaluate([]contracts.SideEffectIntent{
		intent(contracts.KindTagRepo, "refs/tags/v1", map[string]interface{}{"branch": "main"}),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.IsApproved {
		t.Error("expected denial when params.branch is main")
	}
}

func TestEvaluator_DeniesCIWorkflowWeakening(t *testing.T) {
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	res, err := ev.Evaluate([]contracts.SideEffectIntent{
		intent(contracts.KindOpenPr, ".github/workflows/ci.yml", map[string]interface{}{"action": "disable"}),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.IsApproved {
		t.Error("expected denial for CI weakening")
	}
	if res.DenialReasons[0] != contracts.ReasonCIWeaken {
		t.Errorf("expected ci-weaken reason, got %v", res.DenialReasons)
	}
}

func TestEvaluator_DeterministicReasonOrder(t *testing.T) {
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	intents := []contracts.SideEffectIntent{
		intent(contracts.KindTagRepo, "refs/heads/main", nil),
		intent(contracts.KindOpenPr, "refs/heads/feature", nil),
		intent(contracts.KindOpenPr, ".github/workflows/ci.yml", map[string]interface{}{"action": "remove"}),
	}

	first, err := ev.Evaluate(intents)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	second, err := ev.Evaluate(intents)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(first.DenialReasons) != len(second.DenialReasons) {
		t.Fatalf("nondeterministic reason count: %d vs %d", len(first.DenialReasons), len(second.DenialReasons))
	}
	for i := range first.DenialReasons {
		if first.DenialReasons[i] != second.DenialReasons[i] {
			t.Errorf("nondeterministic reason order at %d: %s vs %s", i, first.DenialReasons[i], second.DenialReasons[i])
		}
	}
}

func TestEvaluator_OpenPrToMainIsAllowed(t *testing.T) {
	ev, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	// kind == OpenPr is exempt from the direct-push rule regardless of ref.
	res, err := ev.Evaluate([]contracts.SideEffectIntent{
		intent(contracts.KindOpenPr, "refs/heads/main", nil),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.IsApproved {
		t.Errorf("expected OpenPr against main to be approved, got denials: %v", res.DenialReasons)
	}
}
