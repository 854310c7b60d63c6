// Package gate implements the gate state machine (C9) and audit writer
// (C10): the central fail-closed authority check for a single
// PublishPacket.
package gate

import "context"

// Config is the gate's fixed configuration: the tenant and actor a
// packet must match, the destination allowlist, the capability name sent
// to the Governance SDK, and the audit root directory.
type Config struct {
	TenantID           string
	ActorID            string
	AllowedDestinations map[string]struct{}
	Capability         string
	AuditRoot          string
}

// NewConfig builds a Config from an allowlist slice.
func NewConfig(tenantID, actorID, capability, auditRoot string, allowedDestinations []string) Config {
	allowed := make(map[string]struct{}, len(allowedDestinations))
	for _, d := range allowedDestinations {
		allowed[d] = struct{}{}
	}
	return Config{
		TenantID:            tenantID,
		ActorID:             actorID,
		AllowedDestinations: allowed,
		Capability:          capability,
		AuditRoot:           auditRoot,
	}
}

func (c Config) destinationAllowed(dest string) bool {
	_, ok := c.AllowedDestinations[dest]
	return ok
}

// ExecutionClient is the optional bound-execution collaborator invoked at
// the Execution stage. It is a thin wrapper over the Governance SDK's
// "keon.execute" tool.
type ExecutionClient interface {
	Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

// ExecutionRequest binds a decision receipt id to an execution call.
type ExecutionRequest struct {
	DecisionReceiptID string
	Params            map[string]interface{}
}

// ExecutionResult is the outcome of a bound execution call.
type ExecutionResult struct {
	Success    bool
	FailureMsg string
}
