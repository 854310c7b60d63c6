package sideeffect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keon-labs/marketops/pkg/contracts"
)

// Backend performs the actual external mutation once authorization has
// cleared. It is an out-of-scope external collaborator; LivePort only
// defines the contract it is called through.
type Backend interface {
	Publish(ctx context.Context, kind contracts.SideEffectKind, target contracts.SideEffectTarget, params map[string]interface{}) error
}

// AuthorizationValidator decides whether a proposed mutation may proceed.
type AuthorizationValidator interface {
	Validate(ctx context.Context, run contracts.MarketOpsRun, req Request, auth *Authorization) (bool, string, error)
}

// LivePort is the prod variant: every call first clears an authorization
// check, then performs the real mutation through Backend. Backend errors
// are captured into a failed receipt rather than propagated; only
// invariant violations (this port invoked outside Prod mode) return an
// error to the caller.
type LivePort struct {
	backend   Backend
	validator AuthorizationValidator
}

// NewLivePort builds a prod port.
func NewLivePort(backend Backend, validator AuthorizationValidator) *LivePort {
	return &LivePort{backend: backend, validator: validator}
}

func (p *LivePort) execute(ctx context.Context, run contracts.MarketOpsRun, kind contracts.SideEffectKind, req Request, auth *Authorization) (*contracts.SideEffectReceipt, error) {
	if run.Mode != contracts.ModeProd {
		return nil, fmt.Errorf("sideeffect: live port invoked for mode %q, only Prod is permitted", run.Mode)
	}

	allowed, reason, err := p.validator.Validate(ctx, run, req, auth)
	if err != nil {
		return failedReceipt(kind, req.Target, fmt.Sprintf("authorization_error: %v", err)), nil
	}
	if !allowed {
		return failedReceipt(kind, req.Target, reason), nil
	}

	if err := p.backend.Publish(ctx, kind, req.Target, req.Params); err != nil {
		return failedReceipt(kind, req.Target, err.Error()), nil
	}

	return &contracts.SideEffectReceipt{
		ID:         uuid.NewString(),
		Mode:       contracts.ModeProd,
		Kind:       kind,
		Target:     req.Target,
		Success:    true,
		ExecutedAt: time.Now().UTC(),
	}, nil
}

func failedReceipt(kind contracts.SideEffectKind, target contracts.SideEffectTarget, errMsg string) *contracts.SideEffectReceipt {
	return &contracts.SideEffectReceipt{
		ID:           uuid.NewString(),
		Mode:         contracts.ModeProd,
		Kind:         kind,
		Target:       target,
		Success:      false,
		ErrorMessage: errMsg,
		ExecutedAt:   time.Now().UTC(),
	}
}

func (p *LivePort) PublishRelease(ctx context.Context, run contracts.MarketOpsRun, req Request, auth *Authorization) (*contracts.SideEffectReceipt, error) {
	return p.execute(ctx, run, contracts.KindPublishRelease, req, auth)
}

func (p *LivePort) PublishPost(ctx context.Context, run contracts.MarketOpsRun, req Request, auth *Authorization) (*contracts.SideEffectReceipt, error) {
	return p.execute(ctx, run, contracts.KindPublishPost, req, auth)
}

func (p *LivePort) TagRepo(ctx context.Context, run contracts.MarketOpsRun, req Request, auth *Authorization) (*contracts.SideEffectReceipt, error) {
	return p.execute(ctx, run, contracts.KindTagRepo, req, auth)
}

func (p *LivePort) OpenPr(ctx context.Context, run contracts.MarketOpsRun, req Request, auth *Authorization) (*contracts.SideEffectReceipt, error) {
	return p.execute(ctx, run, contracts.KindOpenPr, req, auth)
}
