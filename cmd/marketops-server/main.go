// Command marketops-server runs the governance gate's HTTP surface: run
// submission, per-run artifact retrieval, and Proof Pack sealing.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/keon-labs/marketops/pkg/api"
	"github.com/keon-labs/marketops/pkg/artifacts"
	"github.com/keon-labs/marketops/pkg/config"
	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/crypto"
	"github.com/keon-labs/marketops/pkg/governance"
	"github.com/keon-labs/marketops/pkg/httpapi"
	"github.com/keon-labs/marketops/pkg/pipeline"
	"github.com/keon-labs/marketops/pkg/policy"
	"github.com/keon-labs/marketops/pkg/proofpack"
	"github.com/keon-labs/marketops/pkg/sideeffect"
	"github.com/keon-labs/marketops/pkg/wsevents"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	evaluator, err := policy.NewEvaluator()
	if err != nil {
		logger.Error("marketops-server: building policy evaluator", "error", err)
		os.Exit(1)
	}

	fcKey := cfg.FCHMACKey
	if fcKey == "" {
		fcKey = "marketops-dev-fc-key"
	}
	fcSigner, err := crypto.NewHMACSigner([]byte(fcKey), "marketops-fc-v1")
	if err != nil {
		logger.Error("marketops-server: building fast-confirmation signer", "error", err)
		os.Exit(1)
	}

	keyPath := cfg.Ed25519KeyPath
	if keyPath == "" {
		keyPath = "./marketops-keys/proofpack_signing.ed25519"
	}
	ed25519Signer, err := crypto.NewEd25519Signer(keyPath, true)
	if err != nil {
		logger.Error("marketops-server: building Proof Pack signer", "error", err)
		os.Exit(1)
	}

	sdk := buildGovernanceSDK(cfg)

	emitter := wsevents.NewChannelEmitter(256, logger)

	generator := artifacts.NewGenerator(fcSigner, contracts.ReceiptIssuer{
		ID:       "marketops-judge",
		Endpoint: cfg.GovernanceSDKURL,
	})

	dryRunPort := sideeffect.NewNullSinkPort(sideeffect.NewMemoryIntentStore())
	dryRunOrchestrator := pipeline.New(evaluator, dryRunPort, generator, emitter, logger)

	prodPort := sideeffect.NewLivePort(&governanceBackend{sdk: sdk}, &governanceValidator{sdk: sdk})
	prodOrchestrator := pipeline.New(evaluator, prodPort, generator, emitter, logger)

	packBuilder := proofpack.NewBuilder(ed25519Signer, fcSigner)
	packVerifier := proofpack.NewVerifier(fcSigner, packBuilder.TrustedKeys())

	server := httpapi.NewServer(dryRunOrchestrator, prodOrchestrator, packBuilder, packVerifier, httpapi.Config{
		EvidenceRoot: "./evidence/proofpack-v1",
		Port:         cfg.Port,
	}, logger)

	rateLimiter := api.NewGlobalRateLimiter(20, 40)
	handler := rateLimiter.Middleware(server.Routes())

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("marketops-server: listening", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("marketops-server: server exited", "error", err)
		os.Exit(1)
	}
}

func buildGovernanceSDK(cfg *config.Config) governance.SDK {
	if cfg.GovernanceSDKURL == "" {
		return governance.NewMemorySDK()
	}
	fcKey := cfg.FCHMACKey
	if fcKey == "" {
		fcKey = "marketops-dev-fc-key"
	}
	signer := governance.NewBearerSigner([]byte(fcKey), "marketops-server", 5*time.Minute)
	return governance.NewHTTPClient(cfg.GovernanceSDKURL, signer, nil)
}
