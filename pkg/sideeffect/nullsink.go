package sideeffect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keon-labs/marketops/pkg/contracts"
)

// NullSinkPort is the dry-run variant: it performs no I/O against any
// external system. Every call records a SideEffectIntent in the intent
// store and returns a nil receipt.
type NullSinkPort struct {
	store IntentStore
}

// NewNullSinkPort builds a dry-run port backed by store.
func NewNullSinkPort(store IntentStore) *NullSinkPort {
	return &NullSinkPort{store: store}
}

// record reconciles req.Intent — the same SideEffectIntent object the
// pipeline will seal into the run's ledger — into the intent store. It
// never mints a competing intent: it keeps req.Intent's identity and
// policy fields, sets RunID, Mode, Kind, Target and Params from run, kind
// and req, fills in the fields the dry-run mode boundary itself is
// responsible for (BlockedByMode, RequiredAuthorization) and, when the
// caller left IntentID/CreatedAtUtc unset, identity/timestamp defaults.
func (p *NullSinkPort) record(run contracts.MarketOpsRun, kind contracts.SideEffectKind, req Request) (*contracts.SideEffectReceipt, error) {
	if run.Mode != contracts.ModeDryRun {
		return nil, fmt.Errorf("sideeffect: null-sink port invoked for mode %q, only DryRun is permitted", run.Mode)
	}

	intent := req.Intent
	if intent.IntentID == "" {
		intent.IntentID = uuid.NewString()
	}
	if intent.CreatedAtUtc.IsZero() {
		intent.CreatedAtUtc = time.Now().UTC()
	}
	intent.RunID = run.RunID
	intent.Mode = run.Mode
	intent.Kind = kind
	intent.Target = req.Target
	intent.Params = req.Params
	intent.BlockedByMode = true
	intent.RequiredAuthorization = contracts.RequiredAuthorization{
		ReceiptType:         "advisory",
		EnforceableRequired: false,
	}
	if !intent.Invariant() {
		return nil, fmt.Errorf("sideeffect: constructed intent %s violates the dry-run mode invariant", intent.IntentID)
	}

	p.store.Append(run.RunID, intent)
	return nil, nil
}

func (p *NullSinkPort) PublishRelease(_ context.Context, run contracts.MarketOpsRun, req Request, _ *Authorization) (*contracts.SideEffectReceipt, error) {
	return p.record(run, contracts.KindPublishRelease, req)
}

func (p *NullSinkPort) PublishPost(_ context.Context, run contracts.MarketOpsRun, req Request, _ *Authorization) (*contracts.SideEffectReceipt, error) {
	return p.record(run, contracts.KindPublishPost, req)
}

func (p *NullSinkPort) TagRepo(_ context.Context, run contracts.MarketOpsRun, req Request, _ *Authorization) (*contracts.SideEffectReceipt, error) {
	return p.record(run, contracts.KindTagRepo, req)
}

func (p *NullSinkPort) OpenPr(_ context.Context, run contracts.MarketOpsRun, req Request, _ *Authorization) (*contracts.SideEffectReceipt, error) {
	return p.record(run, contracts.KindOpenPr, req)
}
