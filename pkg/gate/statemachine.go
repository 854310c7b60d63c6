package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keon-labs/marketops/pkg/canonicalize"
	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/crypto"
	"github.com/keon-labs/marketops/pkg/governance"
)

// StateMachine is the central fail-closed authority check: packet →
// decision → exec → audit → verify, with first-failure-wins across six
// ordered stages.
type StateMachine struct {
	cfg       Config
	sdk       governance.SDK
	auditLog  crypto.AuditLog
	writer    *AuditWriter
	execution ExecutionClient // optional

	resultsMu sync.Mutex
	results   map[string]contracts.GateResult // keyed by packetHashSha256
}

// New builds a gate state machine. execution may be nil when bound
// execution is not configured for this deployment.
func New(cfg Config, sdk governance.SDK, auditLog crypto.AuditLog, execution ExecutionClient) *StateMachine {
	return &StateMachine{
		cfg:       cfg,
		sdk:       sdk,
		auditLog:  auditLog,
		writer:    NewAuditWriter(sdk.Evidence()),
		execution: execution,
		results:   make(map[string]contracts.GateResult),
	}
}

const unavailableInPrecheck = "unavailable-in-precheck"

// Run drives a PublishPacket through all six stages, stopping at the
// first failure. ctx cancellation aborts the current in-flight call and
// surfaces as FailureStage Exception; no later stage is attempted.
func (m *StateMachine) Run(ctx context.Context, packet contracts.PublishPacket) contracts.GateResult {
	m.audit("gate", "STAGE_PRECHECK_START", packet.ArtifactID)
	if code := m.precheck(packet); code != "" {
		m.audit("gate", "STAGE_PRECHECK_END", code)
		result := contracts.Deny(packet, contracts.StagePrecheck, code, string(code))
		result.PacketHashSha256 = unavailableInPrecheck
		return result
	}
	m.audit("gate", "STAGE_PRECHECK_END", "ok")

	select {
	case <-ctx.Done():
		return contracts.Deny(packet, contracts.StageException, contracts.CodeGateException, ctx.Err().Error())
	default:
	}

	m.audit("gate", "STAGE_HASH_START", packet.ArtifactID)
	packetHash, err := m.hash(packet)
	if err != nil {
		m.audit("gate", "STAGE_HASH_END", "failed")
		return contracts.Deny(packet, contracts.StageHash, "", err.Error())
	}
	m.audit("gate", "STAGE_HASH_END", packetHash)

	if cached, ok := m.cachedResult(packetHash); ok {
		m.audit("gate", "STAGE_DECISION_START", packet.ArtifactID)
		m.audit("gate", "STAGE_DECISION_END", "idempotent-replay")
		return cached
	}

	// deny ends the run at stage; a failure seen after ctx was cancelled
	// surfaces as Exception instead and is not cached.
	deny := func(stage contracts.FailureStage, code contracts.DenialCode, msg string) contracts.GateResult {
		if ctx.Err() != nil {
			return contracts.Deny(packet, contracts.StageException, contracts.CodeGateException, ctx.Err().Error())
		}
		return m.cacheResult(packetHash, contracts.Deny(packet, stage, code, msg))
	}

	m.audit("gate", "STAGE_DECISION_START", packet.ArtifactID)
	decisionReceiptID, decidedAt, code, msg := m.decide(ctx, packet)
	if code != "" {
		m.audit("gate", "STAGE_DECISION_END", code)
		return deny(contracts.StageDecision, code, msg)
	}
	m.audit("gate", "STAGE_DECISION_END", "approved")

	if m.execution != nil {
		m.audit("gate", "STAGE_EXECUTION_START", packet.ArtifactID)
		if code, msg := m.execute(ctx, packet, decisionReceiptID, packetHash); code != "" {
			m.audit("gate", "STAGE_EXECUTION_END", code)
			return deny(contracts.StageExecution, code, msg)
		}
		m.audit("gate", "STAGE_EXECUTION_END", "ok")
	}

	m.audit("gate", "STAGE_EVIDENCEPACK_START", packet.ArtifactID)
	auditResult, err := m.writer.WriteReceiptAndPack(ctx, DecisionReceipt{
		ReceiptID:     decisionReceiptID,
		ArtifactID:    packet.ArtifactID,
		TenantID:      packet.TenantID,
		CorrelationID: packet.CorrelationID,
		Outcome:       string(governance.OutcomeApproved),
		DecidedAtUtc:  decidedAt,
	}, nil, nil)
	if err != nil {
		m.audit("gate", "STAGE_EVIDENCEPACK_END", "failed")
		return deny(contracts.StageEvidencePack, contracts.CodeEvidencePackFailed, err.Error())
	}
	m.audit("gate", "STAGE_EVIDENCEPACK_END", auditResult.EvidencePackID)

	m.audit("gate", "STAGE_VERIFY_START", packet.ArtifactID)
	verifyResult, err := m.sdk.Evidence().Verify(ctx, packetHash)
	if err != nil {
		m.audit("gate", "STAGE_VERIFY_END", "exception")
		return deny(contracts.StageVerify, contracts.CodeVerifyException, err.Error())
	}
	if !verifyResult.IsValid {
		m.audit("gate", "STAGE_VERIFY_END", "failed")
		return m.cacheResult(packetHash, contracts.Deny(packet, contracts.StageVerify, contracts.CodeVerifyFailed, verifyResult.Verdict))
	}
	m.audit("gate", "STAGE_VERIFY_END", "ok")

	return m.cacheResult(packetHash, contracts.Allow(packet, packetHash, contracts.GovernanceEvidence{
		ReceiptID:           decisionReceiptID,
		Outcome:             string(governance.OutcomeApproved),
		DecidedAtUtc:        decidedAt.Format(time.RFC3339Nano),
		ReceiptPath:         auditResult.ReceiptPath,
		EvidencePackPath:    auditResult.EvidencePackPath,
		VerificationSummary: verifyResult.Verdict,
	}))
}

// cachedResult returns a previously recorded result for packetHash, if
// any, so a retried call short-circuits rather than re-running the
// Governance SDK call and re-proposing side-effect intents.
func (m *StateMachine) cachedResult(packetHash string) (contracts.GateResult, bool) {
	m.resultsMu.Lock()
	defer m.resultsMu.Unlock()
	result, ok := m.results[packetHash]
	return result, ok
}

// cacheResult records result under packetHash and returns it unchanged,
// so callers can wrap a return statement with it.
func (m *StateMachine) cacheResult(packetHash string, result contracts.GateResult) contracts.GateResult {
	m.resultsMu.Lock()
	m.results[packetHash] = result
	m.resultsMu.Unlock()
	return result
}

// PrecheckResult is the narrower outcome of running only the Precheck
// stage: it never carries governance evidence, since the decision stage
// is never reached.
type PrecheckResult struct {
	Passed        bool
	DenialCode    contracts.DenialCode
	DenialMessage string
	Packet        contracts.PublishPacket
}

// Precheck runs only the Precheck stage, never contacting the Governance
// SDK and never verifying evidence — the semantics the CLI's "precheck"
// subcommand requires.
func (m *StateMachine) Precheck(packet contracts.PublishPacket) PrecheckResult {
	if code := m.precheck(packet); code != "" {
		return PrecheckResult{Passed: false, DenialCode: code, DenialMessage: string(code), Packet: packet}
	}
	return PrecheckResult{Passed: true, Packet: packet}
}

func (m *StateMachine) precheck(packet contracts.PublishPacket) contracts.DenialCode {
	if err := validatePacketSchema(packet); err != nil {
		return contracts.CodePacketSchemaInvalid
	}
	if code := packet.Validate(); code != "" {
		return code
	}
	if packet.TenantID != m.cfg.TenantID {
		return contracts.CodeTenantMismatch
	}
	if packet.ActorID != m.cfg.ActorID {
		return contracts.CodeActorMismatch
	}
	for _, dest := range packet.Destinations {
		if !m.cfg.destinationAllowed(dest) {
			return contracts.CodeDestinationDenied
		}
	}
	return ""
}

func (m *StateMachine) hash(packet contracts.PublishPacket) (string, error) {
	return canonicalize.HashObject(packet.WithoutGovernance())
}

func (m *StateMachine) decide(ctx context.Context, packet contracts.PublishPacket) (receiptID string, decidedAt time.Time, code contracts.DenialCode, msg string) {
	result, err := m.sdk.Invoke(ctx, governance.ToolDecide, governance.DecisionProjection(packet), governance.InvokeContext{
		Tenant:      packet.TenantID,
		Correlation: packet.CorrelationID,
		Tags:        []string{"pipeline=marketops", "stage=gate"},
		Operation:   "publish",
	}, "")
	if err != nil || !result.Success {
		return "", time.Time{}, contracts.CodeDecisionFailed, errMsgOr(err, result.FailureMsg)
	}
	if result.Outcome != governance.OutcomeApproved {
		return "", time.Time{}, contracts.CodeDecisionNotApprove, string(result.Outcome)
	}
	return result.ReceiptID, result.DecidedAt, "", ""
}

func (m *StateMachine) execute(ctx context.Context, packet contracts.PublishPacket, decisionReceiptID, packetHash string) (contracts.DenialCode, string) {
	// Defensive re-check before dispatch: re-derive the packet hash from the
	// packet itself rather than trusting the value computed at the Hash
	// stage, so a packet mutated in between cannot slip an execution request
	// bound to a stale hash past this boundary.
	recomputedHash, err := m.hash(packet)
	if err != nil {
		return contracts.CodeExecutionParamsInvalid, fmt.Sprintf("recomputing packet hash before execution dispatch: %v", err)
	}
	if recomputedHash != packetHash {
		return contracts.CodeExecutionParamsInvalid, "packet hash mismatch before execution dispatch"
	}

	params := map[string]interface{}{"packetHashSha256": packetHash}
	result, err := m.execution.Execute(ctx, ExecutionRequest{DecisionReceiptID: decisionReceiptID, Params: params})
	if err != nil {
		return contracts.CodeExecutionFailed, err.Error()
	}
	if !result.Success {
		return contracts.CodeExecutionFailed, result.FailureMsg
	}
	return "", ""
}

func (m *StateMachine) audit(actor, action, detail string) {
	if m.auditLog == nil {
		return
	}
	_ = m.auditLog.Append(actor, action, detail)
}

func errMsgOr(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
