// Package routing classifies clinical questions into retrieval strategies.
// The routing decision drives which retrieval paths run and how the
// structural path is parameterized.
package routing

import (
	"context"
)

// Strategy selects which retrieval paths run for a question.
type Strategy string

const (
	// StrategyVector routes conceptual questions to semantic similarity search.
	StrategyVector Strategy = "VECTOR"

	// StrategyGraph routes specific single-entity lookups to templated
	// graph traversal.
	StrategyGraph Strategy = "GRAPH"

	// StrategyHybrid routes multi-factor patient scenarios to both paths,
	// fused with RRF.
	StrategyHybrid Strategy = "HYBRID"
)

// ParseStrategy validates a strategy string.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case StrategyVector, StrategyGraph, StrategyHybrid:
		return Strategy(s), true
	}
	return "", false
}

// Intent is the classified purpose of a question.
type Intent string

const (
	IntentTreatmentRecommendation Intent = "treatment_recommendation"
	IntentEvidenceLookup          Intent = "evidence_lookup"
	IntentDrugInfo                Intent = "drug_info"
	IntentSafetyCheck             Intent = "safety_check"
	IntentGeneralQuestion         Intent = "general_question"
)

// ParseIntent maps a string to a known intent.
// Unknown values degrade to general_question without failing the decision.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentTreatmentRecommendation, IntentEvidenceLookup, IntentDrugInfo,
		IntentSafetyCheck, IntentGeneralQuestion:
		return Intent(s)
	}
	return IntentGeneralQuestion
}

// Entities holds the typed entity lists extracted from a question.
type Entities struct {
	// Conditions are medical conditions mentioned (CKD, heart failure, ...).
	Conditions []string `json:"conditions"`

	// Medications are medications or interventions mentioned.
	Medications []string `json:"medications"`

	// PatientCharacteristics are patient attributes (age, pregnancy, ...).
	PatientCharacteristics []string `json:"patient_characteristics"`

	// RecIDs are explicit recommendation identifiers (REC_001, ...).
	RecIDs []string `json:"rec_ids"`

	// Topics are clinical topics mentioned (Pharmacotherapy, ...).
	Topics []string `json:"topics"`
}

// Empty reports whether no entities of any type were extracted.
func (e Entities) Empty() bool {
	return len(e.Conditions) == 0 &&
		len(e.Medications) == 0 &&
		len(e.PatientCharacteristics) == 0 &&
		len(e.RecIDs) == 0 &&
		len(e.Topics) == 0
}

// Decision is the immutable result of routing classification.
// It is created once per request and consumed by the template resolver and
// the retrieval engine.
type Decision struct {
	Strategy     Strategy `json:"query_type"`
	Intent       Intent   `json:"intent"`
	Confidence   float64  `json:"confidence"`
	Entities     Entities `json:"entities"`
	TemplateHint string   `json:"template_hint,omitempty"`

	// Reasoning is diagnostic only; it never affects control flow.
	Reasoning string `json:"reasoning"`
}

// FallbackDecision is the fixed decision substituted when classification
// fails. The pipeline must always receive a valid decision, so routing
// failures degrade here instead of propagating.
func FallbackDecision(reason string) *Decision {
	return &Decision{
		Strategy:   StrategyVector,
		Intent:     IntentGeneralQuestion,
		Confidence: 0.5,
		Entities:   Entities{},
		Reasoning:  reason,
	}
}

// Router turns a free-text question into a routing decision.
// Implementations should absorb their own failures and return the fallback
// decision rather than an error; the error return exists for test doubles
// and future implementations.
type Router interface {
	Route(ctx context.Context, question string) (*Decision, error)

	// Close releases resources held by the router.
	Close() error
}
