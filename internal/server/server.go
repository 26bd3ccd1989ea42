// Package server exposes the retrieval pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/clinrag/clinrag/internal/answer"
	"github.com/clinrag/clinrag/internal/search"
	"github.com/clinrag/clinrag/internal/store"
	"github.com/clinrag/clinrag/internal/templates"
)

// Searcher is the pipeline surface the handlers depend on.
// *search.Engine satisfies it.
type Searcher interface {
	Query(ctx context.Context, question string, topK int) (*search.Result, error)
	VectorSearch(ctx context.Context, text, entityType string, topK int) (*store.SemanticResult, error)
	GraphSearch(ctx context.Context, templateName string, params map[string]any) ([]map[string]any, error)
	Registry() *templates.Registry
}

// AnswerGenerator produces cited answers from ranked records.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, records []search.Record) *answer.Answer
}

// Pinger reports knowledge store reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the echo router around the pipeline.
type Server struct {
	echo      *echo.Echo
	searcher  Searcher
	generator AnswerGenerator
	pinger    Pinger
	logger    *slog.Logger
}

// New builds a server. generator may be nil, in which case the answer
// endpoint reports that generation is not configured.
func New(searcher Searcher, generator AnswerGenerator, pinger Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		searcher:  searcher,
		generator: generator,
		pinger:    pinger,
		logger:    logger.With("component", "server"),
	}

	e.Use(middleware.Recover())
	e.Use(s.requestID())
	e.Use(s.requestLog())

	e.GET("/healthz", s.handleHealth)

	api := e.Group("/api/v1")
	api.POST("/query", s.handleQuery)
	api.POST("/answer", s.handleAnswer)
	api.POST("/search/vector", s.handleVectorSearch)
	api.POST("/search/graph", s.handleGraphSearch)
	api.GET("/search/templates", s.handleListTemplates)
	api.GET("/search/entity-types", s.handleEntityTypes)

	return s
}

// Start blocks serving on addr until Shutdown or failure.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// requestID assigns every request a UUID surfaced in the X-Request-ID
// header and the request context logger.
func (s *Server) requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.Set("request_id", id)
			return next(c)
		}
	}
}

func (s *Server) requestLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			s.logger.Info("request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"request_id", c.Get("request_id"),
				"duration_ms", time.Since(start).Milliseconds())
			return err
		}
	}
}
