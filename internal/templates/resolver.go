package templates

import (
	"strings"

	"github.com/clinrag/clinrag/internal/routing"
)

// Default parameter values substituted when a chosen template requires an
// entity the routing decision did not extract. These keep templates from
// ever running with missing required parameters; extraction gaps degrade to
// a broad but valid query instead of an error.
const (
	defaultRecID        = "REC_001"
	defaultTopic        = "Pharmacotherapy"
	defaultCondition    = "Diabetic Kidney Disease"
	defaultIntervention = "SGLT2 Inhibitors"
	defaultCarePhase    = "Treatment"
)

// conditionTopicMap maps condition keywords to registry topics when a
// topic-filtered template is chosen but only conditions were extracted.
var conditionTopicMap = []struct {
	keyword string
	topic   string
}{
	{"kidney", "Pharmacotherapy"},
	{"ckd", "Pharmacotherapy"},
	{"renal", "Pharmacotherapy"},
	{"heart", "Pharmacotherapy"},
	{"cardiovascular", "Pharmacotherapy"},
	{"ascvd", "Pharmacotherapy"},
	{"blood sugar", "Glycemic Control"},
	{"glucose", "Glycemic Control"},
	{"hba1c", "Glycemic Control"},
	{"a1c", "Glycemic Control"},
	{"prediabetes", "Prediabetes"},
	{"prevention", "Prediabetes"},
}

// carePhaseKeywords maps entity keywords to care phase names for the
// care-phase template.
var carePhaseKeywords = []struct {
	keyword string
	phase   string
}{
	{"screen", "Screening & Prevention"},
	{"prevent", "Screening & Prevention"},
	{"diagnos", "Diagnosis"},
	{"treat", "Treatment"},
	{"complicat", "Complication Management"},
	{"comorbid", "Comorbidity Management"},
	{"follow", "Follow-up"},
	{"monitor", "Follow-up"},
}

// Resolver selects a structural template for a routing decision and builds
// its parameters.
type Resolver struct {
	registry *Registry
}

// NewResolver builds a resolver over a registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve picks the template for a decision, first match wins:
// an in-registry hint, then explicit recommendation IDs, then conditions,
// medications, topics, then the full evidence chain for evidence lookups,
// then an overview when the strategy is GRAPH with nothing extracted.
// An empty name means no structural path runs.
func (r *Resolver) Resolve(decision *routing.Decision) (string, map[string]any) {
	name := r.selectTemplate(decision)
	if name == "" {
		return "", nil
	}
	return name, r.BuildParams(decision, name)
}

func (r *Resolver) selectTemplate(decision *routing.Decision) string {
	if decision.TemplateHint != "" && r.registry.Has(decision.TemplateHint) {
		return decision.TemplateHint
	}

	entities := decision.Entities
	switch {
	case len(entities.RecIDs) > 0:
		return "recommendation_with_evidence"
	case len(entities.Conditions) > 0:
		return "recommendations_by_condition"
	case len(entities.Medications) > 0:
		return "recommendations_by_intervention"
	case len(entities.Topics) > 0:
		return "recommendations_by_topic"
	case decision.Intent == routing.IntentEvidenceLookup:
		return "evidence_chain_full"
	case decision.Strategy == routing.StrategyGraph && entities.Empty():
		return "care_phases_overview"
	}
	return ""
}

// BuildParams maps decision entities onto the named template's parameters,
// substituting documented defaults where extraction left gaps. The result
// always passes the template's Validate.
func (r *Resolver) BuildParams(decision *routing.Decision, templateName string) map[string]any {
	if !r.registry.Has(templateName) {
		return map[string]any{}
	}

	entities := decision.Entities
	params := map[string]any{}

	switch templateName {
	case "recommendation_only", "recommendation_with_evidence", "evidence_chain_full":
		params["rec_ids"] = orList(entities.RecIDs, []string{defaultRecID})

	case "studies_for_recommendation", "interventions_for_recommendation", "conditions_for_recommendation":
		params["rec_id"] = first(entities.RecIDs, defaultRecID)

	case "recommendations_by_topic":
		params["topic"] = resolveTopic(entities)

	case "recommendations_by_condition", "disease_progression":
		params["condition_name"] = first(entities.Conditions, defaultCondition)

	case "recommendations_by_intervention":
		params["intervention_name"] = first(entities.Medications, defaultIntervention)

	case "recommendations_by_care_phase":
		params["phase_name"] = resolveCarePhase(entities)
	}

	return params
}

func resolveTopic(entities routing.Entities) string {
	if len(entities.Topics) > 0 {
		return entities.Topics[0]
	}
	for _, condition := range entities.Conditions {
		lower := strings.ToLower(condition)
		for _, m := range conditionTopicMap {
			if strings.Contains(lower, m.keyword) {
				return m.topic
			}
		}
	}
	return defaultTopic
}

func resolveCarePhase(entities routing.Entities) string {
	scan := make([]string, 0, len(entities.Topics)+len(entities.Conditions))
	scan = append(scan, entities.Topics...)
	scan = append(scan, entities.Conditions...)
	for _, value := range scan {
		lower := strings.ToLower(value)
		for _, m := range carePhaseKeywords {
			if strings.Contains(lower, m.keyword) {
				return m.phase
			}
		}
	}
	return defaultCarePhase
}

func first(list []string, fallback string) string {
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}

func orList(list []string, fallback []string) []string {
	if len(list) > 0 {
		return list
	}
	return fallback
}
