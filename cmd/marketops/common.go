package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/crypto"
	"github.com/keon-labs/marketops/pkg/gate"
	"github.com/keon-labs/marketops/pkg/governance"
)

func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "packet", Required: true, Usage: "path to the PublishPacket JSON to evaluate"},
		&cli.StringFlag{Name: "out", Usage: "path to write the result JSON (default: stdout)"},
		&cli.BoolFlag{Name: "pretty", Usage: "indent the result JSON"},
		&cli.StringFlag{Name: "control-url", Usage: "Governance SDK base URL (overrides OMEGA_SDK_URL)"},
		&cli.StringFlag{Name: "audit-root", Usage: "directory the audit trail and evidence artifacts are written under"},
		&cli.StringFlag{Name: "public-key", Usage: "Ed25519 public key path; accepted for reference-CLI parity, unused since verification is delegated to the Governance SDK"},
		&cli.StringFlag{Name: "trust-bundle", Usage: "trust anchor bundle path; accepted for reference-CLI parity, unused since verification is delegated to the Governance SDK"},
		&cli.StringFlag{Name: "tenant-id", Value: "default", Usage: "tenant id the gate enforces against the packet"},
		&cli.StringFlag{Name: "actor-id", Value: "cli", Usage: "actor id the gate enforces against the packet"},
		&cli.StringFlag{Name: "capability", Value: "marketops.publish", Usage: "capability name sent to the Governance SDK"},
		&cli.StringSliceFlag{Name: "allowed-destination", Usage: "destination allowed to receive a publish; may be repeated"},
	}
}

func loadPacket(path string) (contracts.PublishPacket, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return contracts.PublishPacket{}, fmt.Errorf("reading packet file: %w", err)
	}
	var packet contracts.PublishPacket
	if err := json.Unmarshal(raw, &packet); err != nil {
		return contracts.PublishPacket{}, fmt.Errorf("parsing packet JSON: %w", err)
	}
	return packet, nil
}

func configFromFlags(c *cli.Context) gate.Config {
	auditRoot := c.String("audit-root")
	if auditRoot == "" {
		auditRoot = "./marketops-audit"
	}
	return gate.NewConfig(
		c.String("tenant-id"),
		c.String("actor-id"),
		c.String("capability"),
		auditRoot,
		c.StringSlice("allowed-destination"),
	)
}

// buildSDK builds the Governance SDK client for a gate run. A
// control-url (or OMEGA_SDK_URL) selects the HTTP client; otherwise an
// in-process memory SDK is used, suitable for local dry runs only.
func buildSDK(c *cli.Context) governance.SDK {
	baseURL := c.String("control-url")
	if baseURL == "" {
		baseURL = os.Getenv("OMEGA_SDK_URL")
	}
	if baseURL == "" {
		return governance.NewMemorySDK()
	}

	fcKey := os.Getenv("MARKETOPS_FC_HMAC_KEY")
	if fcKey == "" {
		fcKey = "marketops-cli-dev-key"
	}
	signer := governance.NewBearerSigner([]byte(fcKey), "marketops-cli", 5*time.Minute)
	return governance.NewHTTPClient(baseURL, signer, nil)
}

func buildAuditLog(auditRoot string) (crypto.AuditLog, error) {
	if auditRoot == "" {
		return crypto.NewMemoryAuditLog(), nil
	}
	if err := os.MkdirAll(auditRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit root: %w", err)
	}
	return crypto.NewFileAuditLog(auditRoot + "/audit.log")
}

func writeResult(c *cli.Context, v interface{}) error {
	var data []byte
	var err error
	if c.Bool("pretty") {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	data = append(bytes.TrimSpace(data), '\n')

	if out := c.String("out"); out != "" {
		return os.WriteFile(out, data, 0o644)
	}
	_, err = os.Stdout.Write(data)
	return err
}
