package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keon-labs/marketops/pkg/api"
	"github.com/keon-labs/marketops/pkg/canonicalize"
	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/pipeline"
	"github.com/keon-labs/marketops/pkg/proofpack"
)

type createRunRequest struct {
	Mode          string                 `json:"mode"`
	TenantID      string                 `json:"tenantId"`
	Input         map[string]interface{} `json:"input"`
	CorrelationID string                 `json:"correlationId"`
}

func (req createRunRequest) mode() contracts.Mode {
	switch req.Mode {
	case "prod":
		return contracts.ModeProd
	default:
		return contracts.ModeDryRun
	}
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, fmt.Sprintf("decoding request body: %v", err))
		return
	}

	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = "default"
	}

	run := contracts.MarketOpsRun{
		RunID:         uuid.NewString(),
		TenantID:      tenantID,
		Mode:          req.mode(),
		StartedAt:     time.Now().UTC(),
		Input:         req.Input,
		CorrelationID: req.CorrelationID,
	}

	orchestrator := s.orchestratorFor(run.Mode)
	if orchestrator == nil {
		api.WriteBadRequest(w, fmt.Sprintf("this deployment does not serve mode %q", run.Mode))
		return
	}

	s.registry.Start(run.RunID, run.TenantID, run.Mode, run.CorrelationID)
	go s.runPipeline(orchestrator, run)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"runId":  run.RunID,
		"mode":   string(run.Mode),
		"status": string(StatusStarted),
	})
}

// runPipeline executes the orchestrator for one run, recording its
// outcome in the registry. It runs on its own goroutine; handleCreateRun
// returns as soon as the run is accepted. The orchestrator mints the
// run's artifact set itself, emitting the judge events in their canonical
// position before reporting the run complete.
func (s *Server) runPipeline(orchestrator *pipeline.Orchestrator, run contracts.MarketOpsRun) {
	ctx := context.Background()
	result := orchestrator.Execute(ctx, run)
	if !result.Success {
		s.logger.Error("marketops: run failed", "runId", run.RunID, "error", result.ErrorMessage)
		s.registry.Fail(run.RunID, result.ErrorMessage)
		return
	}

	s.registry.Complete(run.RunID, result.Artifacts)
}

func (s *Server) handleRunsItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/marketops/runs/")
	runID, sub, hasSub := strings.Cut(rest, "/")
	if runID == "" {
		api.WriteNotFound(w, "run id is required")
		return
	}

	rec, err := s.registry.Get(runID)
	if err != nil {
		api.WriteNotFound(w, fmt.Sprintf("no run registered for id %q", runID))
		return
	}

	if !hasSub || sub == "" {
		writeJSON(w, http.StatusOK, rec)
		return
	}

	if rec.Status != StatusCompleted || rec.Artifacts == nil {
		api.WriteConflict(w, fmt.Sprintf("run %q has status %q; artifacts are only available once completed", runID, rec.Status))
		return
	}

	switch sub {
	case "plan":
		writeCanonicalJSON(w, rec.Artifacts.Plan)
	case "ledger":
		writeCanonicalJSON(w, rec.Artifacts.Ledger)
	case "advisory":
		if rec.Artifacts.Advisory == nil {
			api.WriteNotFound(w, fmt.Sprintf("run %q has no advisory receipt (not a dry run)", runID))
			return
		}
		writeCanonicalJSON(w, *rec.Artifacts.Advisory)
	case "summary":
		writeCanonicalJSON(w, rec.Artifacts.Summary)
	case "summary.md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(rec.Artifacts.SummaryMarkdown))
	default:
		api.WriteNotFound(w, fmt.Sprintf("unknown run sub-resource %q", sub))
	}
}

type proofPackRequest struct {
	RunIDs    []string          `json:"runIds"`
	Scenarios map[string]string `json:"scenarios"`
}

func (s *Server) handleProofPack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}

	var req proofPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, fmt.Sprintf("decoding request body: %v", err))
		return
	}
	if len(req.RunIDs) == 0 {
		api.WriteBadRequest(w, "runIds must not be empty")
		return
	}

	runs := make([]proofpack.RunInput, 0, len(req.RunIDs))
	for _, runID := range req.RunIDs {
		rec, err := s.registry.Get(runID)
		if err != nil {
			api.WriteNotFound(w, fmt.Sprintf("no run registered for id %q", runID))
			return
		}
		if rec.Status != StatusCompleted || rec.Artifacts == nil {
			api.WriteConflict(w, fmt.Sprintf("run %q has status %q; it must be completed before sealing", runID, rec.Status))
			return
		}

		scenario := req.Scenarios[runID]
		if scenario == "" {
			scenario = "unspecified"
		}
		runs = append(runs, proofpack.RunInput{
			RunID:    runID,
			Scenario: scenario,
			TenantID: rec.TenantID,
			Set:      *rec.Artifacts,
		})
	}

	index, err := s.packBuilder.Build(s.evidenceRoot, runs)
	if err != nil {
		api.WriteInternal(w, fmt.Errorf("sealing proof pack: %w", err))
		return
	}

	writeJSON(w, http.StatusCreated, index)
}

type proofPackVerifyRequest struct {
	PackDir string `json:"packDir"`
}

// handleProofPackVerify re-derives every assertion the pack at req.PackDir
// makes about itself — artifact hashes, manifest signature, fc-binding
// cross-checks — and reports the full check list, not just a pass/fail
// bit, so a tamper can be pinpointed to the failing assertion.
func (s *Server) handleProofPackVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}
	if s.packVerifier == nil {
		api.WriteInternal(w, fmt.Errorf("this deployment does not serve proof pack verification"))
		return
	}

	var req proofPackVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, fmt.Sprintf("decoding request body: %v", err))
		return
	}
	if req.PackDir == "" {
		api.WriteBadRequest(w, "packDir must not be empty")
		return
	}

	report, err := s.packVerifier.Verify(req.PackDir)
	if err != nil {
		api.WriteBadRequest(w, fmt.Sprintf("verifying proof pack at %q: %v", req.PackDir, err))
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCanonicalJSON(w http.ResponseWriter, v interface{}) {
	body, err := canonicalize.Canonicalize(v)
	if err != nil {
		api.WriteInternal(w, fmt.Errorf("canonicalizing response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
