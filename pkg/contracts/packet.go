package contracts

import (
	"path"
	"strings"
)

// PayloadRefKind enumerates where a publish packet's payload bytes live.
type PayloadRefKind string

const (
	PayloadKindFile         PayloadRefKind = "file"
	PayloadKindRepoPath     PayloadRefKind = "repoPath"
	PayloadKindArtifactStore PayloadRefKind = "artifactStore"
)

// PayloadRef locates the payload bytes of a publish packet.
type PayloadRef struct {
	Kind        PayloadRefKind `json:"kind"`
	Path        string         `json:"path"`
	ContentType string         `json:"contentType,omitempty"`
	SHA256      string         `json:"sha256,omitempty"`
}

// GovernanceEvidence is the evidence block a GateResult attaches to a
// packet on allow; it is absent until the gate succeeds.
type GovernanceEvidence struct {
	ReceiptID            string `json:"receiptId"`
	Outcome              string `json:"outcome"`
	DecidedAtUtc         string `json:"decidedAtUtc"`
	ReceiptPath          string `json:"receiptPath,omitempty"`
	EvidencePackPath     string `json:"evidencePackPath,omitempty"`
	VerificationSummary  string `json:"verificationSummary,omitempty"`
}

// PublishPacket is the input to the gate state machine.
type PublishPacket struct {
	ArtifactID    string             `json:"artifactId"`
	ArtifactType  string             `json:"artifactType"`
	CreatedAtUtc  string             `json:"createdAtUtc"`
	TenantID      string             `json:"tenantId"`
	CorrelationID string             `json:"correlationId"`
	ActorID       string             `json:"actorId"`
	SourceRefs    []string           `json:"sourceRefs"`
	PayloadRef    PayloadRef         `json:"payloadRef"`
	Destinations  []string           `json:"destinations"`
	Governance    *GovernanceEvidence `json:"governance,omitempty"`
}

// WithGovernance returns a copy of p with the governance evidence attached.
func (p PublishPacket) WithGovernance(g GovernanceEvidence) PublishPacket {
	p.Governance = &g
	return p
}

// WithoutGovernance returns a copy of p with the governance block cleared,
// the projection used for the Hash stage's packetHashSha256 computation.
func (p PublishPacket) WithoutGovernance() PublishPacket {
	p.Governance = nil
	return p
}

// Validate checks §3 shape invariants and returns the first violated
// DenialCode, or "" if the packet is well-formed. It does not check
// tenant/actor/destination policy — that is the caller's job (Precheck
// stage), since it requires configuration this package does not hold.
func (p PublishPacket) Validate() DenialCode {
	if p.ArtifactID == "" {
		return CodeArtifactIDMissing
	}
	if p.TenantID == "" {
		return CodeTenantIDMissing
	}
	if p.CorrelationID == "" {
		return CodeCorrelationMissing
	}
	if len(p.Destinations) == 0 {
		return CodeDestinationsEmpty
	}
	for _, d := range p.Destinations {
		if !isCleanToken(d) {
			return CodeDestinationInvalid
		}
	}
	if p.PayloadRef.Path == "" {
		return CodePayloadRefMissing
	}
	if !isSafeRelativePath(p.PayloadRef.Path) {
		return CodePayloadRefInvalid
	}
	return ""
}

func isCleanToken(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// isSafeRelativePath rejects absolute paths, parent traversal, and colons
// inside any segment (a Windows drive-letter or ADS smuggling vector).
func isSafeRelativePath(p string) bool {
	if p == "" || path.IsAbs(p) || strings.HasPrefix(p, "/") {
		return false
	}
	clean := path.Clean(p)
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." || strings.Contains(seg, ":") {
			return false
		}
	}
	return !strings.HasPrefix(clean, "../") && clean != ".."
}

// GateResult is the outcome of running a PublishPacket through the gate.
type GateResult struct {
	Allowed          bool                `json:"allowed"`
	DenialCode       DenialCode          `json:"denialCode,omitempty"`
	DenialMessage    string              `json:"denialMessage,omitempty"`
	FailureStage     FailureStage        `json:"failureStage,omitempty"`
	PacketHashSha256 string              `json:"packetHashSha256,omitempty"`
	Packet           PublishPacket       `json:"packet"`
	Governance       *GovernanceEvidence `json:"governance,omitempty"`
}

// Deny builds a terminal, disallowed GateResult.
func Deny(packet PublishPacket, stage FailureStage, code DenialCode, message string) GateResult {
	return GateResult{
		Allowed:       false,
		DenialCode:    code,
		DenialMessage: message,
		FailureStage:  stage,
		Packet:        packet,
	}
}

// Allow builds a successful GateResult.
func Allow(packet PublishPacket, packetHash string, governance GovernanceEvidence) GateResult {
	return GateResult{
		Allowed:          true,
		PacketHashSha256: packetHash,
		Packet:           packet.WithGovernance(governance),
		Governance:       &governance,
	}
}

// Invariant reports whether the (Allowed, FailureStage, DenialCode,
// Governance) tuple satisfies the §3 GateResult invariant.
func (r GateResult) Invariant() bool {
	clean := r.FailureStage == "" && r.DenialCode == ""
	hasGovernance := r.Governance != nil
	return r.Allowed == (clean && hasGovernance)
}
