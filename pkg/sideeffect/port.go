// Package sideeffect is the sole gateway for external mutations (C4): a
// polymorphic port with a null-sink variant for dry runs and a live
// variant for prod, sharing one interface so the pipeline orchestrator
// never branches on mode itself.
package sideeffect

import (
	"context"

	"github.com/keon-labs/marketops/pkg/contracts"
)

// Request describes one proposed mutation. Intent, when set, is the exact
// SideEffectIntent the pipeline proposed for this mutation — the null-sink
// port records it with its identity and policy fields kept, so the intent
// store and the sealed ledger agree
// on intent identity and policy fields rather than diverging copies.
type Request struct {
	Kind   contracts.SideEffectKind
	Target contracts.SideEffectTarget
	Params map[string]interface{}
	Intent contracts.SideEffectIntent
}

// Authorization is the governance authority backing a live-mode mutation.
type Authorization struct {
	ReceiptType         string
	Enforceable         bool
	GovernanceReceiptID string
}

// Port is the single boundary through which a run may mutate the outside
// world. Both variants implement the same four operations; which one a
// pipeline uses is decided entirely by the run's Mode.
type Port interface {
	PublishRelease(ctx context.Context, run contracts.MarketOpsRun, req Request, auth *Authorization) (*contracts.SideEffectReceipt, error)
	PublishPost(ctx context.Context, run contracts.MarketOpsRun, req Request, auth *Authorization) (*contracts.SideEffectReceipt, error)
	TagRepo(ctx context.Context, run contracts.MarketOpsRun, req Request, auth *Authorization) (*contracts.SideEffectReceipt, error)
	OpenPr(ctx context.Context, run contracts.MarketOpsRun, req Request, auth *Authorization) (*contracts.SideEffectReceipt, error)
}

// IntentStore is an append-only, per-run queue of recorded intents. It
// must be safe for multi-producer append and single-consumer snapshot.
type IntentStore interface {
	Append(runID string, intent contracts.SideEffectIntent)
	Snapshot(runID string) []contracts.SideEffectIntent
}
