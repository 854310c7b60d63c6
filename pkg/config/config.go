// Package config loads marketops' process configuration from the
// environment, plus per-tenant gate profiles from YAML.
package config

import "os"

// Config holds server/CLI configuration, read once at startup.
type Config struct {
	Port             string
	GovernanceSDKURL string
	FCHMACKey        string
	Ed25519KeyPath   string
}

// Load reads configuration from environment variables, applying the
// defaults named in SPEC_FULL.md §6.
func Load() *Config {
	port := os.Getenv("MARKETOPS_PORT")
	if port == "" {
		port = "8080"
	}

	sdkURL := os.Getenv("OMEGA_SDK_URL")
	if sdkURL == "" {
		sdkURL = "http://localhost:9090"
	}

	return &Config{
		Port:             port,
		GovernanceSDKURL: sdkURL,
		FCHMACKey:        os.Getenv("MARKETOPS_FC_HMAC_KEY"),
		Ed25519KeyPath:   os.Getenv("MARKETOPS_ED25519_PRIVATE_KEY_PATH"),
	}
}
