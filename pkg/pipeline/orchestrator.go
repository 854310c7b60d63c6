package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	runartifacts "github.com/keon-labs/marketops/pkg/artifacts"
	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/policy"
	"github.com/keon-labs/marketops/pkg/sideeffect"
	"github.com/keon-labs/marketops/pkg/wsevents"
)

// Result is the outcome of one orchestrator execution.
type Result struct {
	Success      bool
	ErrorMessage string
	Plan         contracts.PublicationPlan
	Ledger       contracts.ProofLedger
	Artifacts    runartifacts.Set
}

// Orchestrator sequences the seven pipeline stages, branches at the
// Execute boundary on run mode, seals the resulting ledger, and — when a
// generator is configured — mints the run's judge advisory receipt before
// declaring the run complete.
type Orchestrator struct {
	evaluator *policy.Evaluator
	port      sideeffect.Port
	generator *runartifacts.Generator
	emitter   wsevents.Emitter
	logger    *slog.Logger
}

// New builds an Orchestrator. port must be the variant matching the
// deployment's capability (NullSinkPort for a dry-run-only deployment,
// LivePort for one that also serves Prod runs); the caller is responsible
// for selecting the port consistent with the runs it will execute.
// generator may be nil, in which case Execute seals only the plan and
// ledger and never mints an advisory receipt or judge event.
func New(evaluator *policy.Evaluator, port sideeffect.Port, generator *runartifacts.Generator, emitter wsevents.Emitter, logger *slog.Logger) *Orchestrator {
	if emitter == nil {
		emitter = wsevents.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{evaluator: evaluator, port: port, generator: generator, emitter: emitter, logger: logger}
}

// Execute validates mode first (fail closed), runs the fixed stage
// sequence, seals a ProofLedger, and mints the run's artifact set —
// emitting the judge events in between ledger sealing and run completion,
// the position the canonical event sequence requires. Event emission is
// best-effort and must never affect the return value.
func (o *Orchestrator) Execute(ctx context.Context, run contracts.MarketOpsRun) Result {
	if !run.Mode.Valid() {
		return Result{Success: false, ErrorMessage: fmt.Sprintf("pipeline: run %s has no valid mode", run.RunID)}
	}

	o.emit(run, wsevents.EventRunStarted, "", "started")

	result, err := o.runStages(ctx, run)
	if err != nil {
		o.emit(run, wsevents.EventRunCompleted, "", "failed")
		return Result{Success: false, ErrorMessage: err.Error()}
	}

	if o.generator != nil {
		set, err := o.generator.Build(run, result.Plan, result.Ledger)
		if err != nil {
			o.emit(run, wsevents.EventRunCompleted, "", "failed")
			return Result{Success: false, ErrorMessage: fmt.Sprintf("pipeline: minting artifacts: %v", err)}
		}
		if set.Advisory != nil {
			o.emit(run, wsevents.EventJudgeAdvisory, "judge", "issued")
			o.emit(run, wsevents.EventJudgeReceiptIssued, "judge", set.Advisory.ID)
		}
		result.Ledger = set.Ledger
		result.Artifacts = set
	}

	o.emit(run, wsevents.EventRunCompleted, "", "completed")
	return result
}

func (o *Orchestrator) runStages(ctx context.Context, run contracts.MarketOpsRun) (Result, error) {
	o.emit(run, wsevents.EventStageStarted, "discover", "running")
	artifacts := Discover(o.logger, run)
	o.emit(run, wsevents.EventStageCompleted, "discover", "done")

	o.emit(run, wsevents.EventStageStarted, "select", "running")
	artifacts = Select(artifacts)
	o.emit(run, wsevents.EventStageCompleted, "select", "done")

	o.emit(run, wsevents.EventStageStarted, "verify", "running")
	artifacts = Verify(artifacts)
	o.emit(run, wsevents.EventStageCompleted, "verify", "done")

	o.emit(run, wsevents.EventStageStarted, "evaluate", "running")
	intents, policyResult, err := Evaluate(o.evaluator, run, artifacts)
	if err != nil {
		return Result{}, err
	}
	o.emit(run, wsevents.EventStageCompleted, "evaluate", "done")

	o.emit(run, wsevents.EventStageStarted, "plan", "running")
	plan := Plan(run, intents, policyResult)
	o.emit(run, wsevents.EventStageCompleted, "plan", "done")
	o.emit(run, wsevents.EventPlanGenerated, "plan", "ok")

	receipts, err := o.executeStage(ctx, run, intents)
	if err != nil {
		return Result{}, err
	}

	ledger := contracts.ProofLedger{
		RunID:              run.RunID,
		TenantID:           run.TenantID,
		Mode:               run.Mode,
		SideEffectIntents:  intents,
		SideEffectReceipts: receipts,
	}
	o.emit(run, wsevents.EventLedgerSealed, "seal", "ok")

	return Result{Success: true, Plan: plan, Ledger: ledger}, nil
}

// executeStage is stage 6: it branches on mode, the single place the
// dry-run and prod paths diverge.
func (o *Orchestrator) executeStage(ctx context.Context, run contracts.MarketOpsRun, intents []contracts.SideEffectIntent) ([]contracts.SideEffectReceipt, error) {
	o.emit(run, wsevents.EventStageStarted, "execute", "running")
	defer o.emit(run, wsevents.EventStageCompleted, "execute", "done")

	if run.Mode == contracts.ModeDryRun {
		o.emit(run, wsevents.EventExecuteBlocked, "execute", "blocked_by_mode")
		// Mutated in place: intents shares its backing array with the
		// caller's ledger-bound slice, so the BlockedByMode the null-sink
		// port requires is also what gets sealed into the ledger.
		for i := range intents {
			intents[i].BlockedByMode = true
			req := sideeffect.Request{Intent: intents[i], Target: intents[i].Target, Params: intents[i].Params}
			if _, err := invokeByKind(ctx, o.port, run, intents[i].Kind, req, nil); err != nil {
				return nil, fmt.Errorf("pipeline: null-sink port rejected intent %s: %w", intents[i].IntentID, err)
			}
		}
		return nil, nil
	}

	receipts := make([]contracts.SideEffectReceipt, 0, len(intents))
	for _, intent := range intents {
		req := sideeffect.Request{Intent: intent, Target: intent.Target, Params: intent.Params}
		receipt, err := invokeByKind(ctx, o.port, run, intent.Kind, req, nil)
		if err != nil {
			return nil, fmt.Errorf("pipeline: live port call for intent %s: %w", intent.IntentID, err)
		}
		if receipt != nil {
			receipts = append(receipts, *receipt)
		}
	}
	o.emit(run, wsevents.EventReceiptsIssued, "execute", fmt.Sprintf("%d", len(receipts)))
	return receipts, nil
}

func invokeByKind(ctx context.Context, port sideeffect.Port, run contracts.MarketOpsRun, kind contracts.SideEffectKind, req sideeffect.Request, auth *sideeffect.Authorization) (*contracts.SideEffectReceipt, error) {
	switch kind {
	case contracts.KindPublishRelease:
		return port.PublishRelease(ctx, run, req, auth)
	case contracts.KindPublishPost:
		return port.PublishPost(ctx, run, req, auth)
	case contracts.KindTagRepo:
		return port.TagRepo(ctx, run, req, auth)
	case contracts.KindOpenPr:
		return port.OpenPr(ctx, run, req, auth)
	default:
		return nil, fmt.Errorf("pipeline: unknown side-effect kind %q", kind)
	}
}

func (o *Orchestrator) emit(run contracts.MarketOpsRun, eventType wsevents.EventType, stage, status string) {
	o.emitter.Emit(wsevents.Event{
		EventType: eventType,
		RunID:     run.RunID,
		Mode:      string(run.Mode),
		Stage:     stage,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}
