// Package assessment evaluates an application's load table against the connection rules.
package assessment

import (
	"context"

	"connections-portal/backend/internal/application/domain"
)

const (
	PhasesSingle = "single"
	PhasesThree  = "three"
)

// Default limits in kVA, used when a configured limit is not positive.
const (
	DefaultSinglePhaseLimitKVA = 23.0
	DefaultAutoQuoteMaxKVA     = 100.0
)

// Limits are the kVA thresholds the rules are evaluated against.
type Limits struct {
	SinglePhaseKVA  float64
	AutoQuoteMaxKVA float64
}

func (l Limits) withDefaults() Limits {
	if l.SinglePhaseKVA <= 0 {
		l.SinglePhaseKVA = DefaultSinglePhaseLimitKVA
	}
	if l.AutoQuoteMaxKVA <= 0 {
		l.AutoQuoteMaxKVA = DefaultAutoQuoteMaxKVA
	}
	return l
}

// Result is the outcome of assessing one application.
type Result struct {
	TotalKVA          float64  `json:"total_kva"`
	RecommendedPhases string   `json:"recommended_phases"`
	Warnings          []string `json:"warnings"`
	AutoQuoteEligible bool     `json:"auto_quote_eligible"`
}

// Evaluator assesses load items.
type Evaluator interface {
	// Assess returns the connection assessment for items. Items belong to a single application.
	Assess(ctx context.Context, items []*domain.LoadItem) (Result, error)
}
