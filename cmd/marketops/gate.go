package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/gate"
)

func gateCommand() *cli.Command {
	flags := append(sharedFlags(), &cli.BoolFlag{Name: "execute", Usage: "run the Execution stage against a bound execution client"})
	return &cli.Command{
		Name:   "gate",
		Usage:  "run the full six-stage gate: Precheck, Hash, Decision, Execution, EvidencePack, Verify",
		Flags:  flags,
		Action: runGate,
	}
}

func runGate(c *cli.Context) error {
	packet, err := loadPacket(c.String("packet"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("marketops: %v", err), exitSystemError)
	}

	cfg := configFromFlags(c)
	sdk := buildSDK(c)
	auditLog, err := buildAuditLog(cfg.AuditRoot)
	if err != nil {
		return cli.Exit(fmt.Sprintf("marketops: %v", err), exitSystemError)
	}

	// --execute is accepted for reference-CLI parity; this build ships no
	// bound execution client, so the Execution stage is a no-op when
	// requested (m.execution == nil inside the state machine).
	sm := gate.New(cfg, sdk, auditLog, nil)
	result := sm.Run(c.Context, packet)

	if err := writeResult(c, result); err != nil {
		return cli.Exit(fmt.Sprintf("marketops: %v", err), exitSystemError)
	}

	if result.Allowed {
		return nil
	}

	switch result.FailureStage {
	case contracts.StagePrecheck, contracts.StageDecision:
		return cli.Exit(fmt.Sprintf("marketops: denied at %s: %s", result.FailureStage, result.DenialMessage), exitDenied)
	default:
		return cli.Exit(fmt.Sprintf("marketops: denied fail-closed at %s: %s", result.FailureStage, result.DenialMessage), exitDeniedFailClosed)
	}
}
