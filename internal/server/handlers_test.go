package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinrag/clinrag/internal/answer"
	apperrors "github.com/clinrag/clinrag/internal/errors"
	"github.com/clinrag/clinrag/internal/routing"
	"github.com/clinrag/clinrag/internal/search"
	"github.com/clinrag/clinrag/internal/store"
	"github.com/clinrag/clinrag/internal/templates"
)

type fakeSearcher struct {
	result    *search.Result
	queryErr  error
	vectorErr error
	graphErr  error
	graphRows []map[string]any
	registry  *templates.Registry
}

func (f *fakeSearcher) Query(_ context.Context, question string, topK int) (*search.Result, error) {
	if err := search.ValidateQuestion(question); err != nil {
		return nil, err
	}
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.result, nil
}

func (f *fakeSearcher) VectorSearch(_ context.Context, _, _ string, _ int) (*store.SemanticResult, error) {
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return &store.SemanticResult{Rows: []map[string]any{{"rec_id": "REC_001"}}}, nil
}

func (f *fakeSearcher) GraphSearch(_ context.Context, name string, params map[string]any) ([]map[string]any, error) {
	tmpl, ok := f.registry.Get(name)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeUnknownTemplate, "unknown template: "+name, nil)
	}
	if violations := tmpl.Validate(params); len(violations) > 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidParams, strings.Join(violations, "; "), nil).
			WithDetail("violations", strings.Join(violations, "\n"))
	}
	if f.graphErr != nil {
		return nil, f.graphErr
	}
	return f.graphRows, nil
}

func (f *fakeSearcher) Registry() *templates.Registry { return f.registry }

type fakeGenerator struct{}

func (f *fakeGenerator) Generate(_ context.Context, _ string, records []search.Record) *answer.Answer {
	if len(records) == 0 {
		return &answer.Answer{Text: answer.NoResultsResponse, Citations: []answer.Citation{}}
	}
	return &answer.Answer{
		Text:      "cited answer",
		Citations: []answer.Citation{{RecID: records[0].ID}},
		Model:     "test-model",
	}
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

func newTestServer(t *testing.T, searcher *fakeSearcher, pinger Pinger) *Server {
	t.Helper()
	if searcher.registry == nil {
		searcher.registry = templates.NewRegistry()
	}
	if searcher.result == nil {
		searcher.result = &search.Result{
			Records: []search.Record{{ID: "REC_001", Score: 0.9, Source: search.SourceVector}},
			Decision: &routing.Decision{
				Strategy:   routing.StrategyVector,
				Intent:     routing.IntentGeneralQuestion,
				Confidence: 0.8,
			},
			VectorCount: 1,
		}
	}
	return New(searcher, &fakeGenerator{}, pinger, nil)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echoContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func TestHandleQuery_OK(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/query",
		`{"question": "which drugs slow ckd progression?", "top_k": 5}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	results := body["results"].([]any)
	require.Len(t, results, 1)
	decision := body["routing"].(map[string]any)
	assert.Equal(t, "VECTOR", decision["query_type"])
}

func TestHandleQuery_ValidationStatus(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/query", `{"question": ""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperrors.ErrCodeQueryEmpty, body.Code)
	assert.NotEmpty(t, body.RequestID)
}

func TestHandleQuery_StoreUnavailable503(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{queryErr: apperrors.StoreUnavailable(nil)}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/query", `{"question": "valid question"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGraphSearch_UnknownTemplate400(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/search/graph",
		`{"template": "no_such", "params": {}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperrors.ErrCodeUnknownTemplate, body.Code)
}

func TestHandleGraphSearch_ParamViolations422(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/search/graph",
		`{"template": "recommendation_only", "params": {"rec_ids": []}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperrors.ErrCodeInvalidParams, body.Code)
	require.Len(t, body.Violations, 1)
	assert.Contains(t, body.Violations[0], "cannot be empty")
}

func TestHandleGraphSearch_OK(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{
		graphRows: []map[string]any{{"rec_id": "REC_001", "strength": "Strong"}},
	}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/search/graph",
		`{"template": "recommendation_only", "params": {"rec_ids": ["REC_001"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])
}

func TestHandleAnswer_OK(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/answer",
		`{"question": "which drugs slow ckd progression?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cited answer", body["answer"])
	citations := body["citations"].([]any)
	require.Len(t, citations, 1)
}

func TestHandleVectorSearch_DefaultsEntityType(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/search/vector",
		`{"query": "sglt2 in ckd"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "recommendation", body["entity_type"])
}

func TestHandleListTemplates(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/search/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Templates []templates.Template `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Templates, 14)
}

func TestHandleEntityTypes(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, &fakePinger{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/search/entity-types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clinical_module")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &fakeSearcher{}, &fakePinger{})
	rec := doJSON(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s = newTestServer(t, &fakeSearcher{}, &fakePinger{err: apperrors.StoreUnavailable(nil)})
	rec = doJSON(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
