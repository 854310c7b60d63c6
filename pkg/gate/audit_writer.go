package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/keon-labs/marketops/pkg/canonicalize"
	"github.com/keon-labs/marketops/pkg/governance"
)

// DecisionReceipt is the canonicalizable record the audit writer seals
// into evidence.
type DecisionReceipt struct {
	ReceiptID     string    `json:"receiptId"`
	ArtifactID    string    `json:"artifactId"`
	TenantID      string    `json:"tenantId"`
	CorrelationID string    `json:"correlationId"`
	Outcome       string    `json:"outcome"`
	DecidedAtUtc  time.Time `json:"decidedAtUtc"`
}

// AuditResult is the output of WriteReceiptAndPack.
type AuditResult struct {
	ReceiptPath      string
	EvidencePackID   string
	EvidencePackPath string // empty when the SDK lacks a download capability
}

// AuditWriter mints evidence for a decision receipt via the Governance
// SDK and returns the resulting evidence id and paths to the caller.
type AuditWriter struct {
	evidence governance.EvidenceService
}

// NewAuditWriter builds a writer over the Governance SDK's evidence
// surface.
func NewAuditWriter(evidence governance.EvidenceService) *AuditWriter {
	return &AuditWriter{evidence: evidence}
}

// WriteReceiptAndPack canonicalizes receipt, computes its hash, and asks
// the Governance SDK to create an evidence record for it. If the SDK
// exposes Download, the writer calls it (the SDK checks the expected
// digest) and records the pack's relative path in EvidencePackPath; the
// downloaded bytes are not written to disk here. A missing Download
// capability is not an error: the result carries an empty
// EvidencePackPath, signaling "evidence-available but un-materialized" —
// never a silent bypass.
func (w *AuditWriter) WriteReceiptAndPack(ctx context.Context, receipt DecisionReceipt, fromUtc, toUtc *time.Time) (AuditResult, error) {
	canon, err := canonicalize.Canonicalize(receipt)
	if err != nil {
		return AuditResult{}, fmt.Errorf("gate: canonicalize decision receipt: %w", err)
	}
	hash, err := canonicalize.HashObject(receipt)
	if err != nil {
		return AuditResult{}, fmt.Errorf("gate: hash decision receipt: %w", err)
	}

	created, err := w.evidence.Create(ctx, governance.EvidenceCreateRequest{
		ReceiptID:     receipt.ReceiptID,
		CanonicalHash: hash,
		Content:       canon,
		TenantID:      receipt.TenantID,
		CorrelationID: receipt.CorrelationID,
		Phase:         "gate.evidence_pack",
	})
	if err != nil {
		return AuditResult{}, fmt.Errorf("gate: create evidence record: %w", err)
	}

	result := AuditResult{
		ReceiptPath:    fmt.Sprintf("evidence/proofpack-v1/receipts/%s.json", receipt.ReceiptID),
		EvidencePackID: created.EvidenceID,
	}

	downloaded, err := w.evidence.Download(ctx, governance.EvidenceDownloadRequest{
		EvidenceID:     created.EvidenceID,
		ExpectedDigest: created.Digest,
	})
	switch {
	case err == nil:
		result.EvidencePackPath = fmt.Sprintf("evidence/proofpack-v1/runs/%s/EVIDENCE_PACK.bin", receipt.ReceiptID)
		_ = downloaded // materialization to disk is the caller's I/O concern; content is verified here
	default:
		var gapErr *governance.ErrCapabilityMissing
		if !isCapabilityGap(err, &gapErr) {
			return AuditResult{}, fmt.Errorf("gate: download evidence pack: %w", err)
		}
		// No download capability: leave EvidencePackPath empty, a typed gap,
		// not a failure.
	}

	return result, nil
}

func isCapabilityGap(err error, target **governance.ErrCapabilityMissing) bool {
	gap, ok := err.(*governance.ErrCapabilityMissing)
	if ok {
		*target = gap
	}
	return ok
}
