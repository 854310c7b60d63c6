package contracts

// FailureStage tags the gate stage at which a run terminated. The zero
// value is not a valid stage; a GateResult that allowed the run carries no
// FailureStage at all.
type FailureStage string

const (
	StagePrecheck     FailureStage = "Precheck"
	StageHash         FailureStage = "Hash"
	StageDecision     FailureStage = "Decision"
	StageExecution    FailureStage = "Execution"
	StageEvidencePack FailureStage = "EvidencePack"
	StageVerify       FailureStage = "Verify"
	StageException    FailureStage = "Exception"
)

// DenialCode is a stable string code surfaced on GateResult.DenialCode.
type DenialCode string

const (
	CodePacketNull         DenialCode = "PACKET_NULL"
	CodePacketSchemaInvalid DenialCode = "PACKET_SCHEMA_INVALID"
	CodeArtifactIDMissing  DenialCode = "ARTIFACT_ID_MISSING"
	CodeTenantIDMissing    DenialCode = "TENANT_ID_MISSING"
	CodeCorrelationMissing DenialCode = "CORRELATION_ID_MISSING"
	CodeDestinationsEmpty  DenialCode = "DESTINATIONS_EMPTY"
	CodeDestinationInvalid DenialCode = "DESTINATION_INVALID"
	CodePayloadRefMissing  DenialCode = "PAYLOAD_REF_MISSING"
	CodePayloadRefInvalid  DenialCode = "PAYLOAD_REF_INVALID"
	CodeTenantMismatch     DenialCode = "TENANT_MISMATCH"
	CodeActorMismatch      DenialCode = "ACTOR_MISMATCH"
	CodeDestinationDenied  DenialCode = "DESTINATION_NOT_ALLOWED"

	CodeDecisionFailed     DenialCode = "DECISION_FAILED"
	CodeDecisionNotApprove DenialCode = "DECISION_NOT_APPROVED"

	CodeExecutionParamsInvalid DenialCode = "EXECUTION_PARAMS_INVALID"
	CodeExecutionFailed        DenialCode = "EXECUTION_FAILED"

	CodeEvidencePackFailed DenialCode = "EVIDENCE_PACK_FAILED"
	CodeSDKGapAuditWrite   DenialCode = "SDK_GAP_AUDIT_WRITE"

	CodeVerifyFailed    DenialCode = "VERIFY_FAILED"
	CodeVerifyException DenialCode = "VERIFY_EXCEPTION"

	CodeGateException DenialCode = "GATE_EXCEPTION"
)

// PolicyDenialReasonID names a stable, machine-readable policy denial code.
type PolicyDenialReasonID string

const (
	ReasonDirectPushMain PolicyDenialReasonID = "policy.direct_push_main.denied.v1"
	ReasonCIWeaken       PolicyDenialReasonID = "policy.ci_weaken.denied.v1"
)
