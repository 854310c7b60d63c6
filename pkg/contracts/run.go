package contracts

import "time"

// Mode selects dry-run vs live execution for a Run. Mode must always be
// present — a zero value is not DryRun, it is invalid, and every consumer
// must fail closed on it.
type Mode string

const (
	ModeDryRun Mode = "DryRun"
	ModeProd   Mode = "Prod"
)

// Valid reports whether m is a recognized mode.
func (m Mode) Valid() bool {
	return m == ModeDryRun || m == ModeProd
}

// MarketOpsRun is one pipeline execution.
type MarketOpsRun struct {
	RunID         string                 `json:"runId"`
	TenantID      string                 `json:"tenantId"`
	Mode          Mode                   `json:"mode"`
	StartedAt     time.Time              `json:"startedAt"`
	Input         map[string]interface{} `json:"input"`
	CorrelationID string                 `json:"correlationId,omitempty"`
}
