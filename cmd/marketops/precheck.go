package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/keon-labs/marketops/pkg/gate"
)

func precheckCommand() *cli.Command {
	return &cli.Command{
		Name:   "precheck",
		Usage:  "run only the Precheck stage; never contacts the Governance SDK and never verifies evidence",
		Flags:  sharedFlags(),
		Action: runPrecheck,
	}
}

func runPrecheck(c *cli.Context) error {
	packet, err := loadPacket(c.String("packet"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("marketops: %v", err), exitSystemError)
	}

	cfg := configFromFlags(c)
	sm := gate.New(cfg, nil, nil, nil)
	result := sm.Precheck(packet)

	if err := writeResult(c, result); err != nil {
		return cli.Exit(fmt.Sprintf("marketops: %v", err), exitSystemError)
	}

	if !result.Passed {
		return cli.Exit(fmt.Sprintf("marketops: precheck denied (%s): %s", result.DenialCode, result.DenialMessage), exitDenied)
	}
	return nil
}
