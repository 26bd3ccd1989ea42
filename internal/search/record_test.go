package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	rows := []map[string]any{
		{
			"rec_id":           "REC_001",
			"rec_text":         "Treat with SGLT2 inhibitors",
			"strength":         "Strong",
			"direction":        "For",
			"topic":            "Pharmacotherapy",
			"similarity_score": 0.87,
		},
		{"rec_id": nil, "rec_text": "orphan row"},
		{"rec_text": "no id at all"},
	}

	records := NormalizeVector(rows)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "REC_001", rec.ID)
	assert.Equal(t, "Treat with SGLT2 inhibitors", rec.Text)
	assert.Equal(t, "Strong", rec.Strength)
	assert.Equal(t, "For", rec.Direction)
	assert.InDelta(t, 0.87, rec.SimilarityScore, 1e-12)
	assert.Empty(t, rec.EvidenceQuality)
}

func TestNormalizeGraph_FlatEvidenceColumns(t *testing.T) {
	rows := []map[string]any{
		{
			"rec_id":         "REC_002",
			"rec_text":       "Use ACE inhibitors",
			"strength":       "Strong",
			"quality_rating": "Moderate",
			"num_studies":    int64(7),
		},
	}

	records := NormalizeGraph(rows)
	require.Len(t, records, 1)
	assert.Equal(t, "Moderate", records[0].EvidenceQuality)
	assert.Equal(t, 7, records[0].StudyCount)
}

func TestNormalizeGraph_NestedEvidenceObject(t *testing.T) {
	// jsonb columns decode to map[string]any with float64 numbers.
	rows := []map[string]any{
		{
			"rec_id":   "REC_003",
			"rec_text": "Statin therapy",
			"evidence": map[string]any{
				"quality_rating": "High",
				"num_studies":    float64(15),
			},
		},
	}

	records := NormalizeGraph(rows)
	require.Len(t, records, 1)
	assert.Equal(t, "High", records[0].EvidenceQuality)
	assert.Equal(t, 15, records[0].StudyCount)
}

func TestNormalizeGraph_DropsRowsWithoutRecID(t *testing.T) {
	rows := []map[string]any{
		{"phase_id": "CP_01", "name": "Treatment", "rec_count": int64(12)},
		{"rec_id": "REC_004", "rec_text": "kept"},
	}
	records := NormalizeGraph(rows)
	require.Len(t, records, 1)
	assert.Equal(t, "REC_004", records[0].ID)
}

func TestNumericFieldCoercion(t *testing.T) {
	row := map[string]any{
		"a": int64(3), "b": int32(4), "c": float64(5), "d": 6, "e": "seven",
	}
	assert.Equal(t, 3, intField(row, "a"))
	assert.Equal(t, 4, intField(row, "b"))
	assert.Equal(t, 5, intField(row, "c"))
	assert.Equal(t, 6, intField(row, "d"))
	assert.Equal(t, 0, intField(row, "e"))
	assert.Equal(t, 0, intField(row, "missing"))

	assert.InDelta(t, 0.5, floatField(map[string]any{"x": 0.5}, "x"), 1e-12)
	assert.InDelta(t, 0.25, floatField(map[string]any{"x": float32(0.25)}, "x"), 1e-6)
	assert.Zero(t, floatField(map[string]any{"x": "0.5"}, "x"))
}
