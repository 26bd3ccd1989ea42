package server

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "github.com/clinrag/clinrag/internal/errors"
	"github.com/clinrag/clinrag/internal/store"
)

// QueryRequest is the body for the unified query and answer endpoints.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// VectorSearchRequest is the body for the raw semantic search endpoint.
type VectorSearchRequest struct {
	Query      string `json:"query"`
	EntityType string `json:"entity_type"`
	TopK       int    `json:"top_k"`
}

// GraphSearchRequest is the body for the raw structural search endpoint.
type GraphSearchRequest struct {
	Template string         `json:"template"`
	Params   map[string]any `json:"params"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Violations []string `json:"violations,omitempty"`
	RequestID  string   `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.pinger != nil {
		if err := s.pinger.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"store":  "unreachable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "malformed request body", err))
	}

	result, err := s.searcher.Query(c.Request().Context(), req.Question, req.TopK)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleAnswer(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "malformed request body", err))
	}
	if s.generator == nil {
		return s.writeError(c, apperrors.New(apperrors.ErrCodeLLMUnavailable, "answer generation is not configured", nil))
	}

	result, err := s.searcher.Query(c.Request().Context(), req.Question, req.TopK)
	if err != nil {
		return s.writeError(c, err)
	}

	generated := s.generator.Generate(c.Request().Context(), req.Question, result.Records)
	return c.JSON(http.StatusOK, map[string]any{
		"answer":        generated.Text,
		"citations":     generated.Citations,
		"tokens":        generated.Tokens,
		"model":         generated.Model,
		"generation_ms": generated.GenerationMS,
		"routing":       result.Decision,
		"template_used": result.TemplateUsed,
		"timings":       result.Timings,
	})
}

func (s *Server) handleVectorSearch(c echo.Context) error {
	var req VectorSearchRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "malformed request body", err))
	}
	if req.EntityType == "" {
		req.EntityType = "recommendation"
	}

	result, err := s.searcher.VectorSearch(c.Request().Context(), req.Query, req.EntityType, req.TopK)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"entity_type": req.EntityType,
		"results":     result.Rows,
		"count":       len(result.Rows),
		"embed_ms":    result.EmbedMS,
		"search_ms":   result.SearchMS,
	})
}

func (s *Server) handleGraphSearch(c echo.Context) error {
	var req GraphSearchRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, apperrors.New(apperrors.ErrCodeInvalidInput, "malformed request body", err))
	}

	rows, err := s.searcher.GraphSearch(c.Request().Context(), req.Template, req.Params)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"template": req.Template,
		"results":  rows,
		"count":    len(rows),
	})
}

func (s *Server) handleListTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"templates": s.searcher.Registry().List(),
	})
}

func (s *Server) handleEntityTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"entity_types": store.EntityTypes(),
	})
}

// writeError maps pipeline errors onto HTTP statuses with a uniform body.
func (s *Server) writeError(c echo.Context, err error) error {
	code := apperrors.ErrCodeInternal
	message := err.Error()
	var violations []string

	var appErr *apperrors.Error
	if stderrors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		if v, ok := appErr.Details["violations"]; ok {
			violations = strings.Split(v, "\n")
		}
	}

	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "error", err,
			"request_id", c.Get("request_id"))
	}

	requestID, _ := c.Get("request_id").(string)
	return c.JSON(status, errorResponse{
		Code:       code,
		Message:    message,
		Violations: violations,
		RequestID:  requestID,
	})
}

func statusForCode(code string) int {
	switch code {
	case apperrors.ErrCodeUnknownTemplate:
		return http.StatusBadRequest
	case apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeInvalidParams,
		apperrors.ErrCodeQueryEmpty,
		apperrors.ErrCodeQueryTooLong,
		apperrors.ErrCodeUnknownEntityType:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeStoreQuery,
		apperrors.ErrCodeEmbeddingFailed,
		apperrors.ErrCodeLLMTimeout,
		apperrors.ErrCodeLLMUnavailable,
		apperrors.ErrCodeLLMBadResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
