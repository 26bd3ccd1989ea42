// Package search implements the retrieval pipeline: normalization of raw
// store rows, reciprocal rank fusion of the semantic and structural paths,
// and rule-based clinical reranking.
package search

import (
	"encoding/json"
)

// Source labels which retrieval path produced a record.
const (
	SourceVector = "vector"
	SourceGraph  = "graph"
	SourceBoth   = "both"
)

// Record is the normalized retrieval unit flowing through fusion and
// reranking. Optional fields use the zero value for absent: an empty string
// or 0 means the source row did not carry that field.
type Record struct {
	ID        string `json:"rec_id"`
	Text      string `json:"rec_text,omitempty"`
	Strength  string `json:"strength,omitempty"`
	Direction string `json:"direction,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Subtopic  string `json:"subtopic,omitempty"`

	// SimilarityScore is the semantic path's cosine similarity in [0,1].
	SimilarityScore float64 `json:"similarity_score,omitempty"`

	// EvidenceQuality and StudyCount come from evidence-bearing templates.
	EvidenceQuality string `json:"evidence_quality,omitempty"`
	StudyCount      int    `json:"study_count,omitempty"`

	// Source is vector, graph, or both; set by fusion or single-path tagging.
	Source string `json:"source,omitempty"`

	// FusedScore is the RRF sum when two paths ran.
	FusedScore float64 `json:"fused_score,omitempty"`

	// Score is the final reranked score in [0,1].
	Score float64 `json:"score"`
}

// NormalizeVector converts semantic search rows into records.
// Rows without an identifier are dropped.
func NormalizeVector(rows []map[string]any) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		id := stringField(row, "rec_id")
		if id == "" {
			continue
		}
		records = append(records, Record{
			ID:              id,
			Text:            stringField(row, "rec_text"),
			Strength:        stringField(row, "strength"),
			Direction:       stringField(row, "direction"),
			Topic:           stringField(row, "topic"),
			Subtopic:        stringField(row, "subtopic"),
			SimilarityScore: floatField(row, "similarity_score"),
		})
	}
	return records
}

// NormalizeGraph converts structural query rows into records, flattening the
// nested evidence object produced by evidence-chain templates. Rows without
// a recommendation identifier (overview and study rows) are dropped; those
// templates are consumed whole via the raw row API, not the fusion pipeline.
func NormalizeGraph(rows []map[string]any) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		id := stringField(row, "rec_id")
		if id == "" {
			continue
		}
		rec := Record{
			ID:        id,
			Text:      stringField(row, "rec_text"),
			Strength:  stringField(row, "strength"),
			Direction: stringField(row, "direction"),
			Topic:     stringField(row, "topic"),
			Subtopic:  stringField(row, "subtopic"),
		}

		if evidence, ok := mapField(row, "evidence"); ok {
			rec.EvidenceQuality = stringField(evidence, "quality_rating")
			rec.StudyCount = intField(evidence, "num_studies")
		} else if _, ok := row["quality_rating"]; ok {
			rec.EvidenceQuality = stringField(row, "quality_rating")
			rec.StudyCount = intField(row, "num_studies")
		}

		records = append(records, rec)
	}
	return records
}

func stringField(row map[string]any, key string) string {
	if s, ok := row[key].(string); ok {
		return s
	}
	return ""
}

func floatField(row map[string]any, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// intField tolerates the numeric types the driver and jsonb decoding
// produce for integer columns.
func intField(row map[string]any, key string) int {
	switch v := row[key].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

func mapField(row map[string]any, key string) (map[string]any, bool) {
	m, ok := row[key].(map[string]any)
	return m, ok
}
