package httpapi

import (
	"fmt"
	"sync"

	"github.com/keon-labs/marketops/pkg/artifacts"
	"github.com/keon-labs/marketops/pkg/contracts"
)

// RunStatus is the lifecycle status of a registered run.
type RunStatus string

const (
	StatusStarted   RunStatus = "started"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// RunRecord is the registry's view of one run: its identity, current
// status, and — once the pipeline completes — its sealed artifact set.
type RunRecord struct {
	RunID         string               `json:"runId"`
	TenantID      string               `json:"tenantId"`
	Mode          contracts.Mode       `json:"mode"`
	Status        RunStatus            `json:"status"`
	ErrorMessage  string               `json:"errorMessage,omitempty"`
	CorrelationID string               `json:"correlationId,omitempty"`
	Artifacts     *artifacts.Set       `json:"-"`
}

// Registry is an in-memory, mutex-guarded store of run records, keyed by
// runId. It backs the read endpoints; it is not durable and does not
// survive a process restart — the Proof Pack on disk is the durable
// record.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*RunRecord
}

// NewRegistry builds an empty run registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*RunRecord)}
}

// Start registers a new run in the started state.
func (r *Registry) Start(runID, tenantID string, mode contracts.Mode, correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[runID] = &RunRecord{
		RunID:         runID,
		TenantID:      tenantID,
		Mode:          mode,
		Status:        StatusStarted,
		CorrelationID: correlationID,
	}
}

// Complete marks a run completed and attaches its sealed artifact set.
func (r *Registry) Complete(runID string, set artifacts.Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[runID]
	if !ok {
		return
	}
	rec.Status = StatusCompleted
	rec.Artifacts = &set
}

// Fail marks a run failed with the given error message.
func (r *Registry) Fail(runID string, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[runID]
	if !ok {
		return
	}
	rec.Status = StatusFailed
	rec.ErrorMessage = errMsg
}

// ErrRunNotFound is returned by Get when no run is registered under the
// given id.
var ErrRunNotFound = fmt.Errorf("httpapi: run not found")

// Get returns a copy of the run record for runID.
func (r *Registry) Get(runID string) (RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[runID]
	if !ok {
		return RunRecord{}, ErrRunNotFound
	}
	return *rec, nil
}
