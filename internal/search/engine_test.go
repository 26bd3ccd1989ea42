package search

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/clinrag/clinrag/internal/errors"
	"github.com/clinrag/clinrag/internal/routing"
	"github.com/clinrag/clinrag/internal/store"
	"github.com/clinrag/clinrag/internal/templates"
)

type stubRouter struct {
	decision *routing.Decision
}

func (s *stubRouter) Route(_ context.Context, _ string) (*routing.Decision, error) {
	return s.decision, nil
}

func (s *stubRouter) Close() error { return nil }

type fakeStore struct {
	vectorRows []map[string]any
	graphRows  []map[string]any
	vectorErr  error
	graphErr   error

	vectorCalls atomic.Int32
	graphCalls  atomic.Int32
	lastTmpl    string
}

func (f *fakeStore) SemanticSearch(_ context.Context, _, _ string, _ int) (*store.SemanticResult, error) {
	f.vectorCalls.Add(1)
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return &store.SemanticResult{Rows: f.vectorRows}, nil
}

func (f *fakeStore) GraphQuery(_ context.Context, tmpl *templates.Template, _ map[string]any) ([]map[string]any, error) {
	f.graphCalls.Add(1)
	f.lastTmpl = tmpl.Name
	if f.graphErr != nil {
		return nil, f.graphErr
	}
	return f.graphRows, nil
}

func (f *fakeStore) Ping(_ context.Context) error { return nil }
func (f *fakeStore) Close()                       {}

func newTestEngine(decision *routing.Decision, st store.Store) *Engine {
	return NewEngine(&stubRouter{decision: decision}, templates.NewRegistry(), st, EngineOptions{
		TopK:    10,
		MaxTopK: 50,
	})
}

func hybridDecision(entities routing.Entities) *routing.Decision {
	return &routing.Decision{
		Strategy:   routing.StrategyHybrid,
		Intent:     routing.IntentTreatmentRecommendation,
		Confidence: 0.9,
		Entities:   entities,
	}
}

func TestQuery_HybridScenario(t *testing.T) {
	// "Patient with CKD and heart failure, what's recommended?" must run
	// both paths, pick the condition template, fuse, and skip the topic
	// boost because no topics were extracted.
	st := &fakeStore{
		vectorRows: []map[string]any{
			{"rec_id": "REC_001", "rec_text": "SGLT2i in CKD", "strength": "Strong", "direction": "For", "similarity_score": 0.91},
			{"rec_id": "REC_002", "rec_text": "ACEi for proteinuria", "strength": "Strong", "direction": "For", "similarity_score": 0.84},
		},
		graphRows: []map[string]any{
			{"rec_id": "REC_002", "rec_text": "ACEi for proteinuria", "strength": "Strong", "direction": "For", "topic": "Pharmacotherapy"},
			{"rec_id": "REC_007", "rec_text": "Loop diuretics in HF", "strength": "Weak", "direction": "For", "topic": "Pharmacotherapy"},
		},
	}
	decision := hybridDecision(routing.Entities{Conditions: []string{"CKD", "heart failure"}})

	e := newTestEngine(decision, st)
	result, err := e.Query(context.Background(), "Patient with CKD and heart failure, what's recommended?", 0)
	require.NoError(t, err)

	assert.Equal(t, int32(1), st.vectorCalls.Load())
	assert.Equal(t, int32(1), st.graphCalls.Load())
	assert.Equal(t, "recommendations_by_condition", result.TemplateUsed)
	assert.Equal(t, map[string]any{"condition_name": "CKD"}, result.TemplateParams)

	assert.Equal(t, 2, result.VectorCount)
	assert.Equal(t, 2, result.GraphCount)
	assert.Equal(t, "rrf", result.FusionMethod)
	assert.False(t, result.TopicBoosted)
	require.Len(t, result.Records, 3)
	assert.Empty(t, result.PathErrors)

	byID := map[string]Record{}
	for _, rec := range result.Records {
		byID[rec.ID] = rec
	}
	assert.Equal(t, SourceBoth, byID["REC_002"].Source)
	assert.Equal(t, SourceVector, byID["REC_001"].Source)
	assert.Equal(t, SourceGraph, byID["REC_007"].Source)

	for _, rec := range result.Records {
		assert.LessOrEqual(t, rec.Score, 1.0)
		assert.Greater(t, rec.Score, 0.0)
	}
}

func TestQuery_VectorStrategySkipsGraph(t *testing.T) {
	st := &fakeStore{
		vectorRows: []map[string]any{
			{"rec_id": "REC_001", "similarity_score": 0.8},
		},
	}
	decision := &routing.Decision{
		Strategy: routing.StrategyVector,
		Intent:   routing.IntentGeneralQuestion,
	}

	e := newTestEngine(decision, st)
	result, err := e.Query(context.Background(), "why do sglt2 inhibitors help?", 0)
	require.NoError(t, err)

	assert.Equal(t, int32(1), st.vectorCalls.Load())
	assert.Equal(t, int32(0), st.graphCalls.Load())
	assert.Empty(t, result.TemplateUsed)
	assert.Equal(t, "none", result.FusionMethod)
	require.Len(t, result.Records, 1)
	assert.Equal(t, SourceVector, result.Records[0].Source)
}

func TestQuery_GraphStrategySkipsVector(t *testing.T) {
	st := &fakeStore{
		graphRows: []map[string]any{
			{"rec_id": "REC_003", "strength": "Strong", "quality_rating": "High"},
		},
	}
	decision := &routing.Decision{
		Strategy: routing.StrategyGraph,
		Intent:   routing.IntentEvidenceLookup,
		Entities: routing.Entities{RecIDs: []string{"REC_003"}},
	}

	e := newTestEngine(decision, st)
	result, err := e.Query(context.Background(), "what does REC_003 say?", 0)
	require.NoError(t, err)

	assert.Equal(t, int32(0), st.vectorCalls.Load())
	assert.Equal(t, "recommendation_with_evidence", result.TemplateUsed)
	require.Len(t, result.Records, 1)
	assert.Equal(t, SourceGraph, result.Records[0].Source)
	// No similarity and no fused score: the neutral 0.5 base applies,
	// boosted by Strong and High.
	assert.InDelta(t, 0.69, result.Records[0].Score, 1e-9)
}

func TestQuery_GraphStrategyWithoutTemplateReturnsEmpty(t *testing.T) {
	st := &fakeStore{}
	decision := &routing.Decision{
		Strategy: routing.StrategyVector, // no graph path
		Intent:   routing.IntentGeneralQuestion,
	}
	st.vectorRows = nil

	e := newTestEngine(decision, st)
	result, err := e.Query(context.Background(), "anything at all", 0)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.NotNil(t, result.Decision, "reasoning metadata is returned even with no results")
}

func TestQuery_PathFailureDegradesToEmpty(t *testing.T) {
	st := &fakeStore{
		vectorRows: []map[string]any{{"rec_id": "REC_001", "similarity_score": 0.8}},
		graphErr:   apperrors.New(apperrors.ErrCodeStoreQuery, "syntax error", nil),
	}
	decision := hybridDecision(routing.Entities{Conditions: []string{"CKD"}})

	e := newTestEngine(decision, st)
	result, err := e.Query(context.Background(), "ckd treatment options", 0)
	require.NoError(t, err)

	require.Len(t, result.PathErrors, 1)
	assert.Contains(t, result.PathErrors[0], "graph:")
	require.Len(t, result.Records, 1)
	assert.Equal(t, "REC_001", result.Records[0].ID)
	assert.Equal(t, SourceVector, result.Records[0].Source)
}

func TestQuery_StoreUnavailableAborts(t *testing.T) {
	st := &fakeStore{
		vectorErr: apperrors.StoreUnavailable(nil),
		graphRows: []map[string]any{{"rec_id": "REC_001"}},
	}
	decision := hybridDecision(routing.Entities{Conditions: []string{"CKD"}})

	e := newTestEngine(decision, st)
	_, err := e.Query(context.Background(), "ckd treatment options", 0)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStoreUnavailable, apperrors.GetCode(err))
}

func TestQuery_TopicBoostOnlyWhenTopicsExtracted(t *testing.T) {
	st := &fakeStore{
		vectorRows: []map[string]any{
			{"rec_id": "REC_001", "topic": "Monitoring", "similarity_score": 0.5},
		},
	}

	noTopics := hybridDecision(routing.Entities{Conditions: []string{"CKD"}})
	e := newTestEngine(noTopics, st)
	result, err := e.Query(context.Background(), "monitoring in ckd", 0)
	require.NoError(t, err)
	assert.False(t, result.TopicBoosted)
	assert.InDelta(t, 0.5, result.Records[0].Score, 1e-9)

	withTopics := hybridDecision(routing.Entities{Topics: []string{"Monitoring"}})
	e = newTestEngine(withTopics, st)
	result, err = e.Query(context.Background(), "monitoring in ckd", 0)
	require.NoError(t, err)
	assert.True(t, result.TopicBoosted)
	assert.InDelta(t, 0.55, result.Records[0].Score, 1e-9)
}

func TestQuery_TruncatesToTopK(t *testing.T) {
	rows := make([]map[string]any, 8)
	for i := range rows {
		rows[i] = map[string]any{
			"rec_id":           string(rune('A' + i)),
			"similarity_score": 0.9 - float64(i)*0.05,
		}
	}
	st := &fakeStore{vectorRows: rows}
	decision := &routing.Decision{Strategy: routing.StrategyVector, Intent: routing.IntentGeneralQuestion}

	e := newTestEngine(decision, st)
	result, err := e.Query(context.Background(), "a question", 3)
	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	assert.Equal(t, "A", result.Records[0].ID)
}

func TestQuery_ValidatesQuestion(t *testing.T) {
	e := newTestEngine(&routing.Decision{Strategy: routing.StrategyVector}, &fakeStore{})

	_, err := e.Query(context.Background(), "  ", 0)
	assert.Equal(t, apperrors.ErrCodeQueryEmpty, apperrors.GetCode(err))

	long := make([]byte, MaxQuestionLen+1)
	for i := range long {
		long[i] = 'q'
	}
	_, err = e.Query(context.Background(), string(long), 0)
	assert.Equal(t, apperrors.ErrCodeQueryTooLong, apperrors.GetCode(err))
}

func TestGraphSearch_UnknownTemplate(t *testing.T) {
	e := newTestEngine(&routing.Decision{}, &fakeStore{})

	_, err := e.GraphSearch(context.Background(), "no_such_template", nil)
	assert.Equal(t, apperrors.ErrCodeUnknownTemplate, apperrors.GetCode(err))
}

func TestGraphSearch_ReportsAllParamViolations(t *testing.T) {
	e := newTestEngine(&routing.Decision{}, &fakeStore{})

	_, err := e.GraphSearch(context.Background(), "recommendation_only", map[string]any{
		"rec_ids": []any{"REC_001", 42},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidParams, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "list of strings")
}

func TestGraphSearch_Valid(t *testing.T) {
	st := &fakeStore{graphRows: []map[string]any{{"rec_id": "REC_001"}}}
	e := newTestEngine(&routing.Decision{}, st)

	rows, err := e.GraphSearch(context.Background(), "recommendation_only", map[string]any{
		"rec_ids": []string{"REC_001"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "recommendation_only", st.lastTmpl)
}

func TestVectorSearch_ValidatesEntityType(t *testing.T) {
	e := newTestEngine(&routing.Decision{}, &fakeStore{})

	_, err := e.VectorSearch(context.Background(), "ckd staging", "Recommendation", 5)
	assert.Equal(t, apperrors.ErrCodeUnknownEntityType, apperrors.GetCode(err))

	_, err = e.VectorSearch(context.Background(), "ckd staging", "study", 5)
	assert.NoError(t, err)
}
