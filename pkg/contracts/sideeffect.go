package contracts

import "time"

// SideEffectKind enumerates the four mutating operations exposed at the
// side-effect boundary.
type SideEffectKind string

const (
	KindPublishRelease SideEffectKind = "PublishRelease"
	KindPublishPost    SideEffectKind = "PublishPost"
	KindTagRepo        SideEffectKind = "TagRepo"
	KindOpenPr         SideEffectKind = "OpenPr"
)

// SideEffectTarget names the external system and ref a side effect acts on.
type SideEffectTarget struct {
	System string `json:"system"`
	Ref    string `json:"ref"`
}

// RequiredAuthorization describes what authority a side effect needs
// before it may execute.
type RequiredAuthorization struct {
	ReceiptType         string `json:"receiptType"`
	EnforceableRequired bool   `json:"enforceableRequired"`
}

// SideEffectIntent is a recorded proposal to mutate something external.
// Recording an intent never itself causes a mutation.
type SideEffectIntent struct {
	IntentID              string                 `json:"intentId"`
	RunID                 string                 `json:"runId"`
	Mode                  Mode                   `json:"mode"`
	Kind                  SideEffectKind         `json:"kind"`
	Target                SideEffectTarget       `json:"target"`
	Params                map[string]interface{} `json:"params"`
	CreatedAtUtc          time.Time              `json:"createdAtUtc"`
	BlockedByMode         bool                   `json:"blockedByMode"`
	RequiredAuthorization RequiredAuthorization  `json:"requiredAuthorization"`
	BlockedByPolicy       bool                   `json:"blockedByPolicy"`
	PolicyDenialReasons   []PolicyDenialReasonID `json:"policyDenialReasons"`
	IntentDigest          string                 `json:"intentDigest,omitempty"`
}

// Invariant checks the §3 SideEffectIntent mode invariants.
func (i SideEffectIntent) Invariant() bool {
	if i.Mode == ModeDryRun && !i.BlockedByMode {
		return false
	}
	if i.Mode == ModeProd && !i.RequiredAuthorization.EnforceableRequired {
		return false
	}
	return true
}

// SideEffectReceipt is the recorded actual effect of a prod-mode side
// effect, whether it succeeded or failed.
type SideEffectReceipt struct {
	ID           string           `json:"id"`
	Mode         Mode             `json:"mode"`
	Kind         SideEffectKind   `json:"kind"`
	Target       SideEffectTarget `json:"target"`
	Success      bool             `json:"success"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	ExecutedAt   time.Time        `json:"executedAt"`
}

// BlockedByModeReceipt is the standard error message a dry-run receipt
// carries.
const BlockedByModeReceipt = "blocked_by_mode"

// Invariant checks the §3 SideEffectReceipt dry-run invariant.
func (r SideEffectReceipt) Invariant() bool {
	if r.Mode != ModeDryRun {
		return true
	}
	return !r.Success && r.ErrorMessage == BlockedByModeReceipt
}
