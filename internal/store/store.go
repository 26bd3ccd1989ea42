// Package store provides access to the guideline knowledge base: semantic
// similarity search over embedded entities and allow-listed structural
// queries over the relational graph schema.
package store

import (
	"context"
	"sort"

	"github.com/clinrag/clinrag/internal/templates"
)

// SemanticResult holds one semantic search call's rows and timings.
type SemanticResult struct {
	// Rows carry a similarity_score column in [0,1] plus the entity
	// type's metadata columns.
	Rows []map[string]any

	EmbedMS  int64
	SearchMS int64
}

// Store is the knowledge base surface the retrieval pipeline depends on.
type Store interface {
	// SemanticSearch embeds text and returns the topK nearest entities of
	// the given type, most similar first.
	SemanticSearch(ctx context.Context, text, entityType string, topK int) (*SemanticResult, error)

	// GraphQuery executes an allow-listed template with validated params.
	GraphQuery(ctx context.Context, tmpl *templates.Template, params map[string]any) ([]map[string]any, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close()
}

// entityTypeConfig maps a searchable entity type to its table and the
// columns returned alongside the similarity score.
var entityTypeConfig = map[string]struct {
	table   string
	columns []string
}{
	"recommendation": {
		table:   "recommendations",
		columns: []string{"rec_id", "rec_text", "strength", "direction", "topic"},
	},
	"study": {
		table:   "studies",
		columns: []string{"study_id", "title", "abstract", "authors", "journal", "year", "pmid", "study_type"},
	},
	"key_question": {
		table:   "key_questions",
		columns: []string{"kq_id", "question_text", "kq_number", "population", "intervention"},
	},
	"evidence_body": {
		table:   "evidence_bodies",
		columns: []string{"evidence_id", "key_findings", "quality_rating", "num_studies"},
	},
	"clinical_module": {
		table:   "clinical_modules",
		columns: []string{"module_id", "module_name", "description", "topics"},
	},
}

// EntityTypes returns the searchable entity types, sorted.
func EntityTypes() []string {
	types := make([]string, 0, len(entityTypeConfig))
	for name := range entityTypeConfig {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// ValidEntityType reports whether t is a searchable entity type.
func ValidEntityType(t string) bool {
	_, ok := entityTypeConfig[t]
	return ok
}
