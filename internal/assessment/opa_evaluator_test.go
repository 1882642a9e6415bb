package assessment

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"connections-portal/backend/internal/application/domain"
)

func newTestEvaluator(t *testing.T) *OPAEvaluator {
	t.Helper()
	e, err := NewOPAEvaluator(context.Background(), Limits{SinglePhaseKVA: 23, AutoQuoteMaxKVA: 100})
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return e
}

func item(id int64, phases string, summed float64) *domain.LoadItem {
	return &domain.LoadItem{ID: id, Phases: phases, SummedLoad: summed}
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	if err := newTestEvaluator(t).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_Assess(t *testing.T) {
	testCases := []struct {
		name         string
		items        []*domain.LoadItem
		wantTotal    float64
		wantPhases   string
		wantWarnings int
		wantQuote    bool
	}{
		{"no items", nil, 0, PhasesSingle, 0, false},
		{"small single phase", []*domain.LoadItem{item(1, "Single", 8), item(2, "Single", 4.5)}, 12.5, PhasesSingle, 0, true},
		{"total over single-phase limit", []*domain.LoadItem{item(1, "Single", 15), item(2, "Single", 10)}, 25, PhasesThree, 0, true},
		{"three-phase item forces three", []*domain.LoadItem{item(1, "Three", 2)}, 2, PhasesThree, 0, true},
		{"single item over limit warns", []*domain.LoadItem{item(1, "Single", 30), item(2, "Three", 40)}, 70, PhasesThree, 1, true},
		{"over auto quote max", []*domain.LoadItem{item(1, "Three", 60), item(2, "Three", 41)}, 101, PhasesThree, 0, false},
		{"exactly auto quote max", []*domain.LoadItem{item(1, "Three", 100)}, 100, PhasesThree, 0, true},
	}
	e := newTestEvaluator(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Assess(context.Background(), tc.items)
			if err != nil {
				t.Fatalf("Assess: %v", err)
			}
			if math.Abs(got.TotalKVA-tc.wantTotal) > 1e-9 {
				t.Errorf("TotalKVA = %v, want %v", got.TotalKVA, tc.wantTotal)
			}
			if got.RecommendedPhases != tc.wantPhases {
				t.Errorf("RecommendedPhases = %q, want %q", got.RecommendedPhases, tc.wantPhases)
			}
			if len(got.Warnings) != tc.wantWarnings {
				t.Errorf("Warnings = %v, want %d", got.Warnings, tc.wantWarnings)
			}
			if got.AutoQuoteEligible != tc.wantQuote {
				t.Errorf("AutoQuoteEligible = %v, want %v", got.AutoQuoteEligible, tc.wantQuote)
			}

			fallback := defaultResult(tc.items, e.limits)
			if fallback.RecommendedPhases != got.RecommendedPhases ||
				fallback.AutoQuoteEligible != got.AutoQuoteEligible ||
				len(fallback.Warnings) != len(got.Warnings) ||
				math.Abs(fallback.TotalKVA-got.TotalKVA) > 1e-9 {
				t.Errorf("Go fallback %+v disagrees with policy %+v", fallback, got)
			}
		})
	}
}

func TestOPAEvaluator_CustomLimits(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), Limits{SinglePhaseKVA: 10, AutoQuoteMaxKVA: 20})
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	got, err := e.Assess(context.Background(), []*domain.LoadItem{item(1, "Single", 12), item(2, "Single", 9)})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if got.RecommendedPhases != PhasesThree || len(got.Warnings) != 1 || got.AutoQuoteEligible {
		t.Errorf("result = %+v, want three phases, one warning, not eligible", got)
	}
}

func TestLimits_WithDefaults(t *testing.T) {
	l := Limits{}.withDefaults()
	if l.SinglePhaseKVA != DefaultSinglePhaseLimitKVA || l.AutoQuoteMaxKVA != DefaultAutoQuoteMaxKVA {
		t.Errorf("withDefaults = %+v", l)
	}
}

func TestResultFromDocument_NumberTypes(t *testing.T) {
	for _, total := range []interface{}{json.Number("12.5"), 12.5, int64(12), 12} {
		got := resultFromDocument(map[string]interface{}{"total_kva": total})
		if got.TotalKVA < 12 || got.TotalKVA > 12.5 {
			t.Errorf("total %T = %v", total, got.TotalKVA)
		}
		if got.RecommendedPhases != PhasesSingle || got.Warnings == nil {
			t.Errorf("defaults not applied: %+v", got)
		}
	}
}

func TestAssess_CancelledContextFallsBack(t *testing.T) {
	e := newTestEvaluator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := e.Assess(ctx, []*domain.LoadItem{item(1, "Three", 5)})
	if err != nil {
		t.Fatalf("Assess should not fail: %v", err)
	}
	if got.TotalKVA != 5 || got.RecommendedPhases != PhasesThree {
		t.Errorf("result = %+v", got)
	}
}
