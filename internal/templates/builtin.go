package templates

// builtinTemplates is the shipped registry. Each query is parameterized SQL
// over the guideline graph schema; positional arguments follow the declared
// parameter order. A template file loaded at startup may override entries by
// name, but execution always goes through the registry allowlist.
var builtinTemplates = []*Template{
	{
		Name:        "recommendation_only",
		Description: "Fetch recommendations by ID list",
		UseCase:     "Retrieve specific recommendations by ID",
		Params: []Param{
			{Name: "rec_ids", Type: ParamStringList, Required: true, Description: "List of recommendation IDs to fetch"},
		},
		Query: `
			SELECT r.rec_id, r.rec_text, r.strength, r.direction,
			       r.topic, r.subtopic, r.rec_number
			FROM recommendations r
			WHERE r.rec_id = ANY($1)
			ORDER BY r.rec_number`,
	},
	{
		Name:        "recommendation_with_evidence",
		Description: "Recommendations with evidence quality context",
		UseCase:     "Show recommendations with quality ratings and study counts",
		Params: []Param{
			{Name: "rec_ids", Type: ParamStringList, Required: true, Description: "List of recommendation IDs to fetch"},
		},
		Query: `
			SELECT r.rec_id, r.rec_text, r.strength, r.direction, r.topic,
			       eb.evidence_id, eb.quality_rating, eb.num_studies, eb.key_findings
			FROM recommendations r
			JOIN evidence_bodies eb ON eb.rec_id = r.rec_id
			WHERE r.rec_id = ANY($1)
			ORDER BY r.rec_number`,
	},
	{
		Name:        "evidence_chain_full",
		Description: "Full citation chain from recommendation to studies",
		UseCase:     "Physician wants to see complete supporting evidence trail",
		Params: []Param{
			{Name: "rec_ids", Type: ParamStringList, Required: true, Description: "List of recommendation IDs to trace"},
		},
		Query: `
			SELECT r.rec_id, r.rec_text, r.strength, r.direction, r.topic,
			       jsonb_build_object(
			           'evidence_id', eb.evidence_id,
			           'quality_rating', eb.quality_rating,
			           'num_studies', eb.num_studies,
			           'key_findings', eb.key_findings
			       ) AS evidence,
			       jsonb_build_object(
			           'kq_id', kq.kq_id,
			           'question_text', kq.question_text,
			           'kq_number', kq.kq_number
			       ) AS key_question,
			       COALESCE(
			           jsonb_agg(
			               jsonb_build_object(
			                   'study_id', s.study_id,
			                   'title', s.title,
			                   'pmid', s.pmid,
			                   'journal', s.journal,
			                   'year', s.year,
			                   'study_type', s.study_type
			               ) ORDER BY s.year DESC
			           ) FILTER (WHERE s.study_id IS NOT NULL),
			           '[]'::jsonb
			       ) AS studies
			FROM recommendations r
			JOIN evidence_bodies eb ON eb.rec_id = r.rec_id
			JOIN key_questions kq ON kq.kq_id = eb.kq_id
			LEFT JOIN studies s ON s.evidence_id = eb.evidence_id
			WHERE r.rec_id = ANY($1)
			GROUP BY r.rec_id, r.rec_text, r.strength, r.direction, r.topic,
			         r.rec_number, eb.evidence_id, eb.quality_rating,
			         eb.num_studies, eb.key_findings,
			         kq.kq_id, kq.question_text, kq.kq_number
			ORDER BY r.rec_number`,
	},
	{
		Name:        "studies_for_recommendation",
		Description: "All studies supporting a specific recommendation",
		UseCase:     "Deep dive into evidence base for a single recommendation",
		Params: []Param{
			{Name: "rec_id", Type: ParamString, Required: true, Description: "Single recommendation ID"},
		},
		Query: `
			SELECT s.study_id, s.title, s.pmid, s.journal, s.year,
			       s.study_type, s.authors, s.abstract
			FROM recommendations r
			JOIN evidence_bodies eb ON eb.rec_id = r.rec_id
			JOIN studies s ON s.evidence_id = eb.evidence_id
			WHERE r.rec_id = $1
			ORDER BY s.year DESC`,
	},
	{
		Name:        "recommendations_by_topic",
		Description: "Filter recommendations by topic",
		UseCase:     "Browse recommendations by clinical category",
		Params: []Param{
			{Name: "topic", Type: ParamString, Required: true, Description: "Topic to search for (case-insensitive partial match)"},
		},
		Query: `
			SELECT r.rec_id, r.rec_text, r.strength, r.direction,
			       r.topic, r.subtopic, r.rec_number
			FROM recommendations r
			WHERE r.topic ILIKE '%' || $1 || '%'
			   OR (r.subtopic IS NOT NULL AND r.subtopic ILIKE '%' || $1 || '%')
			ORDER BY r.rec_number`,
	},
	{
		Name:        "recommendations_by_care_phase",
		Description: "Filter recommendations by care phase",
		UseCase:     "Browse recommendations by phase of care (screening, diagnosis, treatment, etc.)",
		Params: []Param{
			{Name: "phase_name", Type: ParamString, Required: true, Description: "Care phase name (case-insensitive partial match)"},
		},
		Query: `
			SELECT r.rec_id, r.rec_text, r.strength, r.direction, r.topic,
			       cp.phase_id, cp.name AS phase_name, cp.description AS phase_description
			FROM recommendations r
			JOIN rec_care_phases rcp ON rcp.rec_id = r.rec_id
			JOIN care_phases cp ON cp.phase_id = rcp.phase_id
			WHERE cp.name ILIKE '%' || $1 || '%'
			ORDER BY r.rec_number`,
	},
	{
		Name:        "recommendations_by_condition",
		Description: "Filter recommendations by condition/comorbidity",
		UseCase:     "Find recommendations for patients with specific conditions (CKD, CVD, etc.)",
		Params: []Param{
			{Name: "condition_name", Type: ParamString, Required: true, Description: "Condition name (case-insensitive partial match)"},
		},
		Query: `
			SELECT r.rec_id, r.rec_text, r.strength, r.direction, r.topic,
			       c.condition_id, c.name AS condition_name, rc.relationship_type
			FROM recommendations r
			JOIN rec_conditions rc ON rc.rec_id = r.rec_id
			JOIN conditions c ON c.condition_id = rc.condition_id
			WHERE c.name ILIKE '%' || $1 || '%'
			   OR c.condition_id ILIKE '%' || $1 || '%'
			ORDER BY r.rec_number`,
	},
	{
		Name:        "recommendations_by_intervention",
		Description: "Filter recommendations by intervention/medication",
		UseCase:     "Find recommendations about specific interventions (SGLT2i, GLP-1 RA, metformin, etc.)",
		Params: []Param{
			{Name: "intervention_name", Type: ParamString, Required: true, Description: "Intervention name (case-insensitive partial match)"},
		},
		Query: `
			SELECT r.rec_id, r.rec_text, r.strength, r.direction, r.topic,
			       i.intervention_id, i.name AS intervention_name,
			       i.category AS intervention_category
			FROM recommendations r
			JOIN rec_interventions ri ON ri.rec_id = r.rec_id
			JOIN interventions i ON i.intervention_id = ri.intervention_id
			WHERE i.name ILIKE '%' || $1 || '%'
			   OR i.intervention_id ILIKE '%' || $1 || '%'
			   OR (i.category IS NOT NULL AND i.category ILIKE '%' || $1 || '%')
			ORDER BY r.rec_number`,
	},
	{
		Name:        "disease_progression",
		Description: "Show disease progression paths from a condition",
		UseCase:     "Understand what conditions can develop from a given condition",
		Params: []Param{
			{Name: "condition_name", Type: ParamString, Required: true, Description: "Starting condition name (case-insensitive partial match)"},
		},
		Query: `
			SELECT c1.condition_id AS source_id, c1.name AS source_name,
			       c1.icd10_codes AS source_icd10,
			       cl.relationship,
			       c2.condition_id AS target_id, c2.name AS target_name,
			       c2.icd10_codes AS target_icd10
			FROM conditions c1
			LEFT JOIN condition_links cl ON cl.source_id = c1.condition_id
			LEFT JOIN conditions c2 ON c2.condition_id = cl.target_id
			WHERE c1.name ILIKE '%' || $1 || '%'
			ORDER BY c1.name, cl.relationship, c2.name`,
	},
	{
		Name:        "care_phases_overview",
		Description: "List all care phases with recommendation counts",
		UseCase:     "UI navigation - show available care phases for browsing",
		Params:      []Param{},
		Query: `
			SELECT cp.phase_id, cp.name, cp.description, cp.order_index,
			       count(rcp.rec_id) AS rec_count
			FROM care_phases cp
			LEFT JOIN rec_care_phases rcp ON rcp.phase_id = cp.phase_id
			GROUP BY cp.phase_id, cp.name, cp.description, cp.order_index
			ORDER BY cp.order_index`,
	},
	{
		Name:        "conditions_overview",
		Description: "List all conditions with recommendation counts",
		UseCase:     "UI navigation - show available conditions for filtering",
		Params:      []Param{},
		Query: `
			SELECT c.condition_id, c.name, c.category, c.icd10_codes,
			       count(DISTINCT rc.rec_id) AS rec_count
			FROM conditions c
			LEFT JOIN rec_conditions rc ON rc.condition_id = c.condition_id
			GROUP BY c.condition_id, c.name, c.category, c.icd10_codes
			ORDER BY rec_count DESC, c.name`,
	},
	{
		Name:        "interventions_overview",
		Description: "List all interventions with recommendation counts",
		UseCase:     "UI navigation - show available interventions for filtering",
		Params:      []Param{},
		Query: `
			SELECT i.intervention_id, i.name, i.category, i.mechanism,
			       count(DISTINCT ri.rec_id) AS rec_count
			FROM interventions i
			LEFT JOIN rec_interventions ri ON ri.intervention_id = i.intervention_id
			GROUP BY i.intervention_id, i.name, i.category, i.mechanism
			ORDER BY rec_count DESC, i.name`,
	},
	{
		Name:        "interventions_for_recommendation",
		Description: "Get interventions recommended by a specific recommendation",
		UseCase:     "Evidence chain enrichment - see what interventions a recommendation covers",
		Params: []Param{
			{Name: "rec_id", Type: ParamString, Required: true, Description: "Single recommendation ID"},
		},
		Query: `
			SELECT i.intervention_id, i.name, i.category, i.mechanism,
			       r.rec_id, r.strength, r.direction
			FROM recommendations r
			JOIN rec_interventions ri ON ri.rec_id = r.rec_id
			JOIN interventions i ON i.intervention_id = ri.intervention_id
			WHERE r.rec_id = $1
			ORDER BY i.name`,
	},
	{
		Name:        "conditions_for_recommendation",
		Description: "Get conditions that a recommendation applies to",
		UseCase:     "Evidence chain enrichment - see what conditions a recommendation addresses",
		Params: []Param{
			{Name: "rec_id", Type: ParamString, Required: true, Description: "Single recommendation ID"},
		},
		Query: `
			SELECT c.condition_id, c.name, c.category, c.icd10_codes,
			       rc.relationship_type, r.rec_id
			FROM recommendations r
			JOIN rec_conditions rc ON rc.rec_id = r.rec_id
			JOIN conditions c ON c.condition_id = rc.condition_id
			WHERE r.rec_id = $1
			ORDER BY rc.relationship_type, c.name`,
	},
}
