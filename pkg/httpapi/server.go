// Package httpapi implements the marketops HTTP surface: run submission,
// per-run artifact retrieval, and Proof Pack sealing, grounded on the
// teacher's hand-rolled net/http + http.ServeMux style (no web framework
// anywhere in the corpus) and its apierror.go Problem Detail convention.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/keon-labs/marketops/pkg/api"
	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/pipeline"
	"github.com/keon-labs/marketops/pkg/proofpack"
)

// Server bundles the collaborators the HTTP handlers need: one pipeline
// orchestrator per mode (each built over the sideeffect.Port variant that
// matches its mode and already wired to the artifact generator that seals
// a run's output), the Proof Pack builder the sealing endpoint delegates
// to, the Verifier the pack-verification endpoint delegates to, and the
// in-memory run registry the read endpoints serve from.
type Server struct {
	dryRunOrchestrator *pipeline.Orchestrator
	prodOrchestrator   *pipeline.Orchestrator
	packBuilder        *proofpack.Builder
	packVerifier       *proofpack.Verifier
	registry           *Registry
	evidenceRoot       string
	port               string
	logger             *slog.Logger
}

// Config carries the wiring NewServer needs beyond its collaborators.
type Config struct {
	EvidenceRoot string
	Port         string
}

// NewServer builds a Server. logger defaults to slog.Default() when nil.
// prodOrchestrator may be nil if the deployment serves dry runs only; a
// request for mode "prod" is then rejected rather than silently routed
// through the dry-run (null-sink) port.
func NewServer(dryRunOrchestrator, prodOrchestrator *pipeline.Orchestrator, packBuilder *proofpack.Builder, packVerifier *proofpack.Verifier, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dryRunOrchestrator: dryRunOrchestrator,
		prodOrchestrator:   prodOrchestrator,
		packBuilder:        packBuilder,
		packVerifier:       packVerifier,
		registry:           NewRegistry(),
		evidenceRoot:       cfg.EvidenceRoot,
		port:               cfg.Port,
		logger:             logger,
	}
}

// orchestratorFor returns the orchestrator bound to mode, or nil if the
// deployment does not serve that mode.
func (s *Server) orchestratorFor(mode contracts.Mode) *pipeline.Orchestrator {
	if mode == contracts.ModeProd {
		return s.prodOrchestrator
	}
	return s.dryRunOrchestrator
}

// Routes builds the mux every route is registered on.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/marketops/runs", s.handleRunsCollection)
	mux.HandleFunc("/marketops/runs/", s.handleRunsItem)
	mux.HandleFunc("/marketops/proofpack", s.handleProofPack)
	mux.HandleFunc("/marketops/proofpack/verify", s.handleProofPackVerify)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"port":   s.port,
	})
}

func (s *Server) handleRunsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	default:
		api.WriteMethodNotAllowed(w)
	}
}
