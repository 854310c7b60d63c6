package config

import (
	"os"
	"testing"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	os.Unsetenv("MARKETOPS_PORT")
	os.Unsetenv("OMEGA_SDK_URL")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.GovernanceSDKURL == "" {
		t.Error("expected a default governance SDK URL")
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("MARKETOPS_PORT", "9999")
	t.Setenv("OMEGA_SDK_URL", "https://sdk.example.com")
	t.Setenv("MARKETOPS_FC_HMAC_KEY", "shared-secret")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Errorf("expected port from env, got %s", cfg.Port)
	}
	if cfg.GovernanceSDKURL != "https://sdk.example.com" {
		t.Errorf("expected SDK URL from env, got %s", cfg.GovernanceSDKURL)
	}
	if cfg.FCHMACKey != "shared-secret" {
		t.Errorf("expected FC HMAC key from env, got %s", cfg.FCHMACKey)
	}
}
