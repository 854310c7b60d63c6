package main

import (
	"context"
	"fmt"

	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/governance"
	"github.com/keon-labs/marketops/pkg/sideeffect"
)

// governanceValidator is the Prod-mode sideeffect.AuthorizationValidator:
// it clears a proposed mutation through the Governance SDK's
// "keon.decide" tool rather than deciding locally.
type governanceValidator struct {
	sdk governance.ToolInvoker
}

func (v *governanceValidator) Validate(ctx context.Context, run contracts.MarketOpsRun, req sideeffect.Request, auth *sideeffect.Authorization) (bool, string, error) {
	decisionReceiptID := ""
	if auth != nil {
		decisionReceiptID = auth.GovernanceReceiptID
	}

	result, err := v.sdk.Invoke(ctx, governance.ToolDecide, map[string]interface{}{
		"kind":   string(req.Kind),
		"target": req.Target,
		"params": req.Params,
	}, governance.InvokeContext{
		Tenant:      run.TenantID,
		Correlation: run.CorrelationID,
		Operation:   string(req.Kind),
	}, decisionReceiptID)
	if err != nil {
		return false, "", fmt.Errorf("sideeffect_adapters: keon.decide invocation: %w", err)
	}
	if !result.Success || result.Outcome != governance.OutcomeApproved {
		return false, fmt.Sprintf("governance decision: %s", result.Outcome), nil
	}
	return true, "", nil
}

// governanceBackend is the Prod-mode sideeffect.Backend: it performs the
// actual mutation through the Governance SDK's "keon.execute" tool. The
// real downstream system the SDK ultimately calls is out of scope here.
type governanceBackend struct {
	sdk governance.ToolInvoker
}

func (b *governanceBackend) Publish(ctx context.Context, kind contracts.SideEffectKind, target contracts.SideEffectTarget, params map[string]interface{}) error {
	result, err := b.sdk.Invoke(ctx, governance.ToolExecute, map[string]interface{}{
		"kind":   string(kind),
		"target": target,
		"params": params,
	}, governance.InvokeContext{Operation: string(kind)}, "")
	if err != nil {
		return fmt.Errorf("sideeffect_adapters: keon.execute invocation: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("sideeffect_adapters: keon.execute reported failure: %s", result.FailureMsg)
	}
	return nil
}
