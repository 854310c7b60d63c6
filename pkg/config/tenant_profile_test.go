package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, dir, tenantID, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "profile_"+tenantID+".yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("writing profile fixture: %v", err)
	}
}

func TestLoadTenantProfile_BuildsGateConfig(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "keon-public", `
tenant_id: keon-public
actor_id: ci-bot
capability: marketops.publish
audit_root: /var/lib/marketops/audit
allowed_destinations:
  - github
  - npm
`)

	profile, err := LoadTenantProfile(dir, "keon-public")
	if err != nil {
		t.Fatalf("LoadTenantProfile: %v", err)
	}
	if profile.ActorID != "ci-bot" {
		t.Errorf("expected actor id ci-bot, got %s", profile.ActorID)
	}

	cfg := profile.GateConfig()
	if cfg.TenantID != "keon-public" {
		t.Errorf("expected tenant id carried into gate.Config, got %s", cfg.TenantID)
	}
}

func TestLoadTenantProfile_MissingFileErrors(t *testing.T) {
	if _, err := LoadTenantProfile(t.TempDir(), "nonexistent"); err == nil {
		t.Error("expected an error for a missing profile")
	}
}

func TestLoadAllTenantProfiles_DerivesIDFromFilename(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "acme", "actor_id: bot\n")

	profiles, err := LoadAllTenantProfiles(dir)
	if err != nil {
		t.Fatalf("LoadAllTenantProfiles: %v", err)
	}
	if _, ok := profiles["acme"]; !ok {
		t.Error("expected tenant id derived from filename when not set in the YAML body")
	}
}
