package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"connections-portal/backend/internal/application/domain"
)

const policyQuery = "data.connections.assessment"

// Rego policy for the connection rules. The Go fallback in defaultResult must agree with it.
const defaultRegoPolicy = `package connections.assessment

default total_kva := 0

total_kva := sum([l | some item in input.items; l := item.summed_load])

three_phase(item) if lower(item.phases) in {"three", "3"}

default recommended_phases := "single"

recommended_phases := "three" if total_kva > input.limits.single_phase_kva

recommended_phases := "three" if {
	some item in input.items
	three_phase(item)
}

warnings contains msg if {
	some item in input.items
	not three_phase(item)
	item.summed_load > input.limits.single_phase_kva
	msg := sprintf("load item %v: single-phase load of %v kVA exceeds the %v kVA single-phase limit", [item.id, item.summed_load, input.limits.single_phase_kva])
}

default auto_quote_eligible := false

auto_quote_eligible if {
	total_kva > 0
	total_kva <= input.limits.auto_quote_max_kva
}
`

// OPAEvaluator evaluates the connection rules using OPA Rego.
type OPAEvaluator struct {
	limits Limits
	query  rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the connection policy with the given limits.
// Non-positive limits fall back to the defaults.
func NewOPAEvaluator(ctx context.Context, limits Limits) (*OPAEvaluator, error) {
	compiler, err := compile()
	if err != nil {
		return nil, err
	}
	q, err := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare assessment policy: %w", err)
	}
	return &OPAEvaluator{limits: limits.withDefaults(), query: q}, nil
}

func compile() (*ast.Compiler, error) {
	compiler, err := ast.CompileModules(map[string]string{"assessment.rego": defaultRegoPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile assessment policy: %w", err)
	}
	return compiler, nil
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the policy.
// Does not touch the database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := compile()
	if err != nil {
		return err
	}
	rs, err := rego.New(
		rego.Query(policyQuery+".recommended_phases"),
		rego.Compiler(compiler),
		rego.Input(buildInput(nil, Limits{}.withDefaults())),
	).Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval assessment policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return errors.New("policy query returned no result")
	}
	return nil
}

// Assess evaluates the policy over items. An evaluation failure is logged and the Go-computed result returned.
func (e *OPAEvaluator) Assess(ctx context.Context, items []*domain.LoadItem) (Result, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(items, e.limits)))
	if err != nil {
		log.Printf("assessment: evaluation failed: %v, using defaults", err)
		return defaultResult(items, e.limits), nil
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		log.Printf("assessment: policy returned no result, using defaults")
		return defaultResult(items, e.limits), nil
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		log.Printf("assessment: unexpected policy result %T, using defaults", rs[0].Expressions[0].Value)
		return defaultResult(items, e.limits), nil
	}
	return resultFromDocument(doc), nil
}

func buildInput(items []*domain.LoadItem, limits Limits) map[string]interface{} {
	list := make([]interface{}, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		list = append(list, map[string]interface{}{
			"id":          it.ID,
			"phases":      it.Phases,
			"summed_load": it.SummedLoad,
		})
	}
	return map[string]interface{}{
		"items": list,
		"limits": map[string]interface{}{
			"single_phase_kva":   limits.SinglePhaseKVA,
			"auto_quote_max_kva": limits.AutoQuoteMaxKVA,
		},
	}
}

func resultFromDocument(doc map[string]interface{}) Result {
	out := Result{RecommendedPhases: PhasesSingle, Warnings: []string{}}
	if v, ok := toFloat(doc["total_kva"]); ok {
		out.TotalKVA = v
	}
	if v, ok := doc["recommended_phases"].(string); ok {
		out.RecommendedPhases = v
	}
	if v, ok := doc["auto_quote_eligible"].(bool); ok {
		out.AutoQuoteEligible = v
	}
	if ws, ok := doc["warnings"].([]interface{}); ok {
		for _, w := range ws {
			if s, ok := w.(string); ok {
				out.Warnings = append(out.Warnings, s)
			}
		}
	}
	sort.Strings(out.Warnings)
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// defaultResult computes the connection rules without OPA.
func defaultResult(items []*domain.LoadItem, limits Limits) Result {
	out := Result{RecommendedPhases: PhasesSingle, Warnings: []string{}}
	threePhase := false
	for _, it := range items {
		if it == nil {
			continue
		}
		out.TotalKVA += it.SummedLoad
		if it.ThreePhase() {
			threePhase = true
			continue
		}
		if it.SummedLoad > limits.SinglePhaseKVA {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"load item %d: single-phase load of %v kVA exceeds the %v kVA single-phase limit",
				it.ID, it.SummedLoad, limits.SinglePhaseKVA))
		}
	}
	if threePhase || out.TotalKVA > limits.SinglePhaseKVA {
		out.RecommendedPhases = PhasesThree
	}
	out.AutoQuoteEligible = out.TotalKVA > 0 && out.TotalKVA <= limits.AutoQuoteMaxKVA
	sort.Strings(out.Warnings)
	return out
}
