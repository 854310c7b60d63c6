// Package artifacts builds the four durable run artifacts (C8):
// publication plan, proof ledger, judge advisory receipt, and approver
// summary (JSON + Markdown).
package artifacts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keon-labs/marketops/pkg/canonicalize"
	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/crypto"
)

// Generator builds and signs the artifact set for one run.
type Generator struct {
	fcSigner *crypto.HMACSigner
	issuer   contracts.ReceiptIssuer
}

// NewGenerator builds a Generator over the fast-confirmation signer used
// for advisory/enforceable receipts.
func NewGenerator(fcSigner *crypto.HMACSigner, issuer contracts.ReceiptIssuer) *Generator {
	return &Generator{fcSigner: fcSigner, issuer: issuer}
}

// Set is the full artifact bundle for one run.
type Set struct {
	Plan     contracts.PublicationPlan
	Ledger   contracts.ProofLedger
	Advisory *contracts.JudgeAdvisoryReceipt // nil outside dry-run
	Summary  contracts.ApproverSummary
	SummaryMarkdown string
}

// Build assembles the artifact set. An advisory receipt is only minted
// for DryRun runs, per §4.8.
func (g *Generator) Build(run contracts.MarketOpsRun, plan contracts.PublicationPlan, ledger contracts.ProofLedger) (Set, error) {
	set := Set{Plan: plan, Ledger: ledger}

	if run.Mode == contracts.ModeDryRun {
		advisory, sealedLedger, err := g.mintAdvisory(run, plan, ledger)
		if err != nil {
			return Set{}, err
		}
		set.Advisory = &advisory
		set.Ledger = sealedLedger
	}

	set.Summary = buildSummary(run, plan, set.Ledger)
	set.SummaryMarkdown = renderSummaryMarkdown(set.Summary)
	return set, nil
}

// mintAdvisory builds and signs a non-enforceable receipt bound to the
// plan and (receipt-field-free) ledger hashes, then seals the ledger with
// the receipt's back-reference.
func (g *Generator) mintAdvisory(run contracts.MarketOpsRun, plan contracts.PublicationPlan, ledger contracts.ProofLedger) (contracts.JudgeAdvisoryReceipt, contracts.ProofLedger, error) {
	planHash, err := canonicalize.HashObject(plan)
	if err != nil {
		return contracts.JudgeAdvisoryReceipt{}, contracts.ProofLedger{}, fmt.Errorf("artifacts: hash plan: %w", err)
	}
	ledgerHash, err := canonicalize.HashObject(ledger.WithoutReceiptFields())
	if err != nil {
		return contracts.JudgeAdvisoryReceipt{}, contracts.ProofLedger{}, fmt.Errorf("artifacts: hash ledger: %w", err)
	}

	var reasons []string
	for _, intent := range ledger.SideEffectIntents {
		for _, code := range intent.PolicyDenialReasons {
			reasons = append(reasons, string(code))
		}
	}

	receipt := contracts.JudgeAdvisoryReceipt{
		ID:          uuid.NewString(),
		Issuer:      g.issuer,
		RunID:       run.RunID,
		TenantID:    run.TenantID,
		Enforceable: false,
		Reasons:     reasons,
		Subject: contracts.ReceiptSubject{
			TenantID: run.TenantID,
			SubjectDigests: contracts.SubjectDigests{
				PlanSha256:   planHash,
				LedgerSha256: ledgerHash,
			},
		},
		IssuedAt: time.Now().UTC(),
	}

	receiptHash, err := canonicalize.HashObject(receipt.WithoutSignature())
	if err != nil {
		return contracts.JudgeAdvisoryReceipt{}, contracts.ProofLedger{}, fmt.Errorf("artifacts: hash receipt: %w", err)
	}
	receipt.Digests = contracts.ReceiptDigests{ReceiptSha256: receiptHash}

	mac, _, err := g.fcSigner.SignCanonical(receipt.WithoutSignature())
	if err != nil {
		return contracts.JudgeAdvisoryReceipt{}, contracts.ProofLedger{}, fmt.Errorf("artifacts: sign receipt: %w", err)
	}
	receipt.Signature = contracts.ReceiptSignature{
		Algorithm: "HMAC-SHA256",
		KeyID:     g.fcSigner.KeyID(),
		Value:     mac,
	}

	sealedLedger := ledger.WithReceipt(receipt.ID, receipt.Digests.ReceiptSha256)
	return receipt, sealedLedger, nil
}

func buildSummary(run contracts.MarketOpsRun, plan contracts.PublicationPlan, ledger contracts.ProofLedger) contracts.ApproverSummary {
	issueCounts := make(map[string]int)
	targetMap := make(map[string]*contracts.TargetBreakdown)

	for _, intent := range ledger.SideEffectIntents {
		system := intent.Target.System
		tb, ok := targetMap[system]
		if !ok {
			tb = &contracts.TargetBreakdown{Target: system}
			targetMap[system] = tb
		}
		if intent.BlockedByPolicy {
			tb.Blocked++
			for _, reason := range intent.PolicyDenialReasons {
				issueCounts[string(reason)]++
			}
		} else {
			tb.WouldShip++
		}
	}

	targets := make([]contracts.TargetBreakdown, 0, len(targetMap))
	for _, tb := range targetMap {
		targets = append(targets, *tb)
	}

	verdict := "approved"
	if len(plan.WouldNotShip) > 0 {
		verdict = "denied"
	}

	status := "completed"
	return contracts.ApproverSummary{
		RunID:             run.RunID,
		TenantID:          run.TenantID,
		Mode:              run.Mode,
		Status:            status,
		IssueCountsByType: issueCounts,
		Targets:           targets,
		PolicyVerdict:      verdict,
	}
}

func renderSummaryMarkdown(s contracts.ApproverSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Approver Summary — %s\n\n", s.RunID)
	fmt.Fprintf(&b, "- Tenant: %s\n", s.TenantID)
	fmt.Fprintf(&b, "- Mode: %s\n", s.Mode)
	fmt.Fprintf(&b, "- Status: %s\n", s.Status)
	fmt.Fprintf(&b, "- Policy verdict: %s\n\n", s.PolicyVerdict)

	b.WriteString("## Targets\n\n")
	for _, t := range s.Targets {
		fmt.Fprintf(&b, "- %s: %d would ship, %d blocked\n", t.Target, t.WouldShip, t.Blocked)
	}

	if len(s.IssueCountsByType) > 0 {
		b.WriteString("\n## Issues\n\n")
		for kind, count := range s.IssueCountsByType {
			fmt.Fprintf(&b, "- %s: %d\n", kind, count)
		}
	}
	return b.String()
}
