package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/keon-labs/marketops/pkg/gate"
)

// TenantProfile is a tenant-specific gate configuration: the destination
// allowlist, Governance SDK capability name, and audit root a gate run
// must use for that tenant. One profile_<tenantId>.yaml lives per tenant
// under the profiles directory.
type TenantProfile struct {
	TenantID            string   `yaml:"tenant_id" json:"tenant_id"`
	ActorID             string   `yaml:"actor_id" json:"actor_id"`
	Capability          string   `yaml:"capability" json:"capability"`
	AuditRoot           string   `yaml:"audit_root" json:"audit_root"`
	AllowedDestinations []string `yaml:"allowed_destinations" json:"allowed_destinations"`
}

// GateConfig builds the gate.Config this profile describes.
func (p *TenantProfile) GateConfig() gate.Config {
	return gate.NewConfig(p.TenantID, p.ActorID, p.Capability, p.AuditRoot, p.AllowedDestinations)
}

// LoadTenantProfile loads a tenant's profile YAML by tenant id, searching
// profilesDir for profile_<tenantId>.yaml.
func LoadTenantProfile(profilesDir, tenantID string) (*TenantProfile, error) {
	id := strings.ToLower(tenantID)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", id))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load tenant profile %q: %w", tenantID, err)
	}

	var profile TenantProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("config: parse tenant profile %q: %w", tenantID, err)
	}
	if profile.TenantID == "" {
		profile.TenantID = tenantID
	}
	return &profile, nil
}

// LoadAllTenantProfiles loads every profile_*.yaml file from profilesDir,
// keyed by tenant id.
func LoadAllTenantProfiles(profilesDir string) (map[string]*TenantProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("config: globbing profiles dir: %w", err)
	}

	profiles := make(map[string]*TenantProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}

		var profile TenantProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		if profile.TenantID == "" {
			base := filepath.Base(path)
			profile.TenantID = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profiles[profile.TenantID] = &profile
	}

	return profiles, nil
}
