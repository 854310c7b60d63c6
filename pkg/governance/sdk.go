// Package governance models the downstream Governance SDK as a Go
// interface: the gate state machine and audit writer consume it, but the
// service it fronts — the thing that actually mints decision receipts and
// evidence packs — is an out-of-scope external collaborator.
package governance

import (
	"context"
	"time"

	"github.com/keon-labs/marketops/pkg/contracts"
)

// ToolID names a Governance SDK tool invocation.
type ToolID string

const (
	ToolDecide  ToolID = "keon.decide"
	ToolExecute ToolID = "keon.execute"
)

// Outcome is the result of a "keon.decide" invocation.
type Outcome string

const (
	OutcomeApproved Outcome = "Approved"
	OutcomeDenied   Outcome = "Denied"
)

// InvokeContext carries the caller-supplied metadata for a tool
// invocation.
type InvokeContext struct {
	Tenant      string
	Correlation string
	Tags        []string
	Operation   string
}

// InvokeResult is the outcome of tools.invoke.
type InvokeResult struct {
	Success    bool
	Outcome    Outcome
	ReceiptID  string
	DecidedAt  time.Time
	FailureMsg string
}

// EvidenceCreateRequest is the input to evidence.create.
type EvidenceCreateRequest struct {
	ReceiptID     string
	CanonicalHash string
	Content       []byte
	TenantID      string
	CorrelationID string
	Phase         string
}

// EvidenceCreateResult is the output of evidence.create.
type EvidenceCreateResult struct {
	EvidenceID string
	Digest     string
	CreatedAt  time.Time
}

// EvidenceDownloadRequest is the input to evidence.download.
type EvidenceDownloadRequest struct {
	EvidenceID     string
	ExpectedDigest string
}

// EvidenceDownloadResult is the output of evidence.download.
type EvidenceDownloadResult struct {
	Content []byte
	Digest  string
}

// EvidenceVerifyResult is the output of evidence.verify.
type EvidenceVerifyResult struct {
	IsValid bool
	Verdict string
}

// ErrCapabilityMissing is returned when the configured SDK implementation
// does not expose an optional capability (e.g. evidence.download). Callers
// must treat this as a typed gap, never a silent bypass.
type ErrCapabilityMissing struct {
	Capability string
}

func (e *ErrCapabilityMissing) Error() string {
	return "governance: capability not available: " + e.Capability
}

// ToolInvoker is the "tools.invoke" surface of the Governance SDK.
type ToolInvoker interface {
	Invoke(ctx context.Context, toolID ToolID, input map[string]interface{}, ictx InvokeContext, decisionReceiptID string) (InvokeResult, error)
}

// EvidenceService is the "evidence.*" surface of the Governance SDK.
type EvidenceService interface {
	Create(ctx context.Context, req EvidenceCreateRequest) (EvidenceCreateResult, error)
	// Download is optional: implementations without a materialization
	// backend return *ErrCapabilityMissing.
	Download(ctx context.Context, req EvidenceDownloadRequest) (EvidenceDownloadResult, error)
	Verify(ctx context.Context, packHash string) (EvidenceVerifyResult, error)
}

// SDK bundles both surfaces the gate and audit writer depend on.
type SDK interface {
	ToolInvoker
	Evidence() EvidenceService
}

// DecisionProjection is the packet-derived input sent to "keon.decide".
func DecisionProjection(p contracts.PublishPacket) map[string]interface{} {
	return map[string]interface{}{
		"artifactId":   p.ArtifactID,
		"artifactType": p.ArtifactType,
		"tenantId":     p.TenantID,
		"destinations": p.Destinations,
	}
}
