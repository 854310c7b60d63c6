// Package pipeline implements the dual-mode pipeline (C6/C7): a fixed
// stage sequence — discover, select, verify, evaluate, plan, execute,
// seal — that behaves identically in DryRun and Prod except at the
// single side-effect boundary.
package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/keon-labs/marketops/pkg/contracts"
	"github.com/keon-labs/marketops/pkg/policy"
)

// StageState threads discovered artifacts and proposed intents between
// stages. It is not the run's final ledger — the side-effect port remains
// the single recording boundary; Evaluate only proposes.
type StageState struct {
	Artifacts       []contracts.DiscoveredArtifact
	ProposedIntents []contracts.SideEffectIntent
	PolicyApproved  bool
	PolicyReasons   map[string][]contracts.PolicyDenialReasonID
	Plan            contracts.PublicationPlan
}

// ParseRepos normalizes run.Input["repos"] into a string slice: it may
// arrive as a single string, a []string, or a JSON-decoded []interface{}.
func ParseRepos(input map[string]interface{}) []string {
	raw, ok := input["repos"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Discover scans each repo path: missing directories are skipped silently
// (audit log only); existing directories are checked for README
// completeness, CODEOWNERS, and .editorconfig.
func Discover(logger *slog.Logger, run contracts.MarketOpsRun) []contracts.DiscoveredArtifact {
	logger.Info("STAGE_DISCOVER_START", "mode", run.Mode, "runId", run.RunID)
	repos := ParseRepos(run.Input)

	var artifacts []contracts.DiscoveredArtifact
	for _, repo := range repos {
		info, err := os.Stat(repo)
		if err != nil || !info.IsDir() {
			logger.Info("STAGE_DISCOVER_SKIP", "path", repo, "reason", "missing_directory")
			continue
		}
		artifacts = append(artifacts, contracts.DiscoveredArtifact{
			Path:   repo,
			Issues: hygieneIssues(repo),
		})
	}

	logger.Info("STAGE_DISCOVER_END", "mode", run.Mode, "count", len(artifacts))
	return artifacts
}

var requiredReadmeSections = []string{"## Installation", "## Usage", "## License"}

func hygieneIssues(repoPath string) []contracts.HygieneIssue {
	var issues []contracts.HygieneIssue

	if !readmeComplete(repoPath) {
		issues = append(issues, contracts.HygieneIssue{Kind: contracts.IssueIncompleteReadme, Severity: contracts.SeverityMedium})
	}
	if !exists(filepath.Join(repoPath, "CODEOWNERS")) && !exists(filepath.Join(repoPath, ".github", "CODEOWNERS")) {
		issues = append(issues, contracts.HygieneIssue{Kind: contracts.IssueMissingCodeowners, Severity: contracts.SeverityHigh})
	}
	if !exists(filepath.Join(repoPath, ".editorconfig")) {
		issues = append(issues, contracts.HygieneIssue{Kind: contracts.IssueMissingEditorconfig, Severity: contracts.SeverityLow})
	}
	return issues
}

func readmeComplete(repoPath string) bool {
	for _, name := range []string{"README.md", "Readme.md", "readme.md"} {
		data, err := os.ReadFile(filepath.Join(repoPath, name))
		if err != nil {
			continue
		}
		content := string(data)
		for _, section := range requiredReadmeSections {
			if !strings.Contains(content, section) {
				return false
			}
		}
		return true
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Select is the identity filtering hook; it preserves input order. A
// future policy on which discovered artifacts proceed attaches here
// without disturbing the stages around it.
func Select(artifacts []contracts.DiscoveredArtifact) []contracts.DiscoveredArtifact {
	return artifacts
}

// Verify is currently always-valid; it is the hook for hash/provenance
// checks on discovered artifacts.
func Verify(artifacts []contracts.DiscoveredArtifact) []contracts.DiscoveredArtifact {
	return artifacts
}

// Evaluate proposes one OpenPr intent per candidate artifact, optionally
// injects a direct-push-to-main TagRepo intent when the run requests a
// simulated violation, and runs the policy evaluator over the proposed
// set. Evaluate only proposes intents; the side-effect port remains the
// single recording boundary.
func Evaluate(evaluator *policy.Evaluator, run contracts.MarketOpsRun, artifacts []contracts.DiscoveredArtifact) ([]contracts.SideEffectIntent, policy.Result, error) {
	intents := make([]contracts.SideEffectIntent, 0, len(artifacts)+1)
	for _, a := range artifacts {
		intents = append(intents, contracts.SideEffectIntent{
			IntentID: uuid.NewString(),
			RunID:    run.RunID,
			Mode:     run.Mode,
			Kind:     contracts.KindOpenPr,
			Target:   contracts.SideEffectTarget{System: "github", Ref: a.Path},
			Params:   map[string]interface{}{},
		})
	}

	if sim, _ := run.Input["simulateViolation"].(string); sim == "direct_push_main" {
		intents = append(intents, contracts.SideEffectIntent{
			IntentID: uuid.NewString(),
			RunID:    run.RunID,
			Mode:     run.Mode,
			Kind:     contracts.KindTagRepo,
			Target:   contracts.SideEffectTarget{System: "github", Ref: "refs/heads/main"},
			Params:   map[string]interface{}{},
		})
	}

	result, err := evaluator.Evaluate(intents)
	if err != nil {
		return nil, policy.Result{}, fmt.Errorf("pipeline: policy evaluation: %w", err)
	}

	for i := range intents {
		if reasons, denied := result.PerIntent[intents[i].IntentID]; denied {
			intents[i].BlockedByPolicy = true
			intents[i].PolicyDenialReasons = reasons
		}
	}

	return intents, result, nil
}

// Plan builds the PublicationPlan: every candidate ships when the batch
// is approved, otherwise every candidate is held back with its denial
// reason recorded under a fresh opaque key.
func Plan(run contracts.MarketOpsRun, intents []contracts.SideEffectIntent, result policy.Result) contracts.PublicationPlan {
	plan := contracts.PublicationPlan{
		RunID:    run.RunID,
		TenantID: run.TenantID,
		Mode:     run.Mode,
		Reasons:  make(map[string]string),
	}

	if result.IsApproved {
		for _, intent := range intents {
			plan.WouldShip = append(plan.WouldShip, intent.Target.Ref)
		}
		return plan
	}

	for i, intent := range intents {
		plan.WouldNotShip = append(plan.WouldNotShip, intent.Target.Ref)
		for j, reason := range intent.PolicyDenialReasons {
			key := fmt.Sprintf("denial-%d-%d", i, j)
			plan.Reasons[key] = policy.DenialMessage(reason, intent.IntentID)
		}
	}
	return plan
}
