// Package policy implements the pure side-effect intent evaluator (C5):
// two fail-closed CEL rules checked against every proposed intent, direct
// push to main and CI workflow weakening.
package policy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/keon-labs/marketops/pkg/contracts"
)

// Result is the pure output of evaluating a set of intents.
type Result struct {
	IsApproved     bool
	DenialReasons  []contracts.PolicyDenialReasonID
	PerIntent      map[string][]contracts.PolicyDenialReasonID // intentId -> reasons
}

// Evaluator is a pure function of an intent list: evaluate(intents) →
// {isApproved, denialReasons[]}. It holds no mutable state beyond a
// compiled-program cache, so repeated calls with the same input always
// produce the same output.
type Evaluator struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewEvaluator builds an Evaluator with a CEL environment exposing the
// fields a rule needs: target system/ref and the intent's params map.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("targetRef", cel.StringType),
		cel.Variable("targetSystem", cel.StringType),
		cel.Variable("params", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: cel environment: %w", err)
	}
	return &Evaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

const (
	ruleDirectPushMain = `kind != "OpenPr" && (targetRef.matches("(?i)main") || (has(params.branch) && string(params.branch) == "main"))`
	ruleCIWeaken       = `targetRef.contains(".github/workflows") && has(params.action) && ["remove","weaken","disable"].exists(a, string(params.action).lower() == a)`
)

// Evaluate applies both rules to each intent, in input order, and returns
// a deterministic verdict: same input always yields the same output and
// reason ordering.
func (e *Evaluator) Evaluate(intents []contracts.SideEffectIntent) (Result, error) {
	res := Result{IsApproved: true, PerIntent: make(map[string][]contracts.PolicyDenialReasonID, len(intents))}

	for _, intent := range intents {
		var reasons []contracts.PolicyDenialReasonID

		denied, err := e.evalRule(ruleDirectPushMain, intent)
		if err != nil {
			return Result{}, fmt.Errorf("policy: direct-push rule on %s: %w", intent.IntentID, err)
		}
		if denied {
			reasons = append(reasons, contracts.ReasonDirectPushMain)
		}

		denied, err = e.evalRule(ruleCIWeaken, intent)
		if err != nil {
			return Result{}, fmt.Errorf("policy: ci-weaken rule on %s: %w", intent.IntentID, err)
		}
		if denied {
			reasons = append(reasons, contracts.ReasonCIWeaken)
		}

		if len(reasons) > 0 {
			res.IsApproved = false
			res.DenialReasons = append(res.DenialReasons, reasons...)
			res.PerIntent[intent.IntentID] = reasons
		}
	}

	return res, nil
}

// DenialMessage renders the human-readable text for a denial reason bound
// to a specific intent, per §4.5's "human message referencing intent.id".
func DenialMessage(reason contracts.PolicyDenialReasonID, intentID string) string {
	switch reason {
	case contracts.ReasonDirectPushMain:
		return fmt.Sprintf("intent %s denied: direct push to main is not permitted", intentID)
	case contracts.ReasonCIWeaken:
		return fmt.Sprintf("intent %s denied: CI workflow weakening is not permitted", intentID)
	default:
		return fmt.Sprintf("intent %s denied: %s", intentID, reason)
	}
}

func (e *Evaluator) evalRule(expr string, intent contracts.SideEffectIntent) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	params := intent.Params
	if params == nil {
		params = map[string]interface{}{}
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"kind":         string(intent.Kind),
		"targetRef":    strings.ToLower(intent.Target.Ref),
		"targetSystem": intent.Target.System,
		"params":       params,
	})
	if err != nil {
		// CEL returns an eval error for has()-guarded field access only when
		// the guard itself mistypes; a missing optional field evaluates to
		// false via the rule's own has() checks, so a genuine eval error
		// here means malformed intent data — fail closed by denying.
		return true, nil //nolint:nilerr // fail-closed: treat eval error as an implicit deny, not a crash
	}

	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy: rule result not bool")
	}
	return val, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.cache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit := e.cache[expr]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("policy: compile %q: %w", expr, issues.Err())
	}
	program, err := e.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("policy: program %q: %w", expr, err)
	}
	e.cache[expr] = program
	return program, nil
}
