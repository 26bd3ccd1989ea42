package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/clinrag/clinrag/internal/errors"
	"github.com/clinrag/clinrag/internal/routing"
	"github.com/clinrag/clinrag/internal/store"
	"github.com/clinrag/clinrag/internal/templates"
)

// Question length bounds accepted by the engine.
const (
	MinQuestionLen = 3
	MaxQuestionLen = 2000
)

// semanticEntityType is the entity type the unified pipeline searches; the
// raw search API exposes the remaining types directly.
const semanticEntityType = "recommendation"

// Timings breaks down where a request spent its time.
type Timings struct {
	RoutingMS int64 `json:"routing_ms"`
	VectorMS  int64 `json:"vector_ms"`
	GraphMS   int64 `json:"graph_ms"`
	TotalMS   int64 `json:"total_ms"`
}

// Result is the ranked output of one pipeline run plus the reasoning
// metadata explaining how it was produced. Metadata is populated even when
// no records were found.
type Result struct {
	Records []Record `json:"results"`

	Decision       *routing.Decision `json:"routing"`
	TemplateUsed   string            `json:"template_used,omitempty"`
	TemplateParams map[string]any    `json:"template_params,omitempty"`

	VectorCount int `json:"vector_count"`
	GraphCount  int `json:"graph_count"`

	// FusionMethod is "rrf" when both paths contributed candidates,
	// otherwise "none" (single-path pass-through or no results).
	FusionMethod string `json:"fusion_method"`

	// TopicBoosted reports whether the topic boost pass ran.
	TopicBoosted bool `json:"topic_boosted"`

	// PathErrors records retrieval paths that failed and were degraded to
	// an empty list.
	PathErrors []string `json:"path_errors,omitempty"`

	Timings Timings `json:"timings"`
}

// Engine runs the full pipeline: route, resolve, retrieve, fuse, rerank.
type Engine struct {
	router   routing.Router
	registry *templates.Registry
	resolver *templates.Resolver
	store    store.Store

	topK        int
	maxTopK     int
	rrfConstant int
	logger      *slog.Logger
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	// TopK is the default result count when the caller passes 0.
	TopK int

	// MaxTopK caps the caller-supplied result count.
	MaxTopK int

	// RRFConstant is the fusion smoothing constant.
	RRFConstant int

	Logger *slog.Logger
}

// NewEngine wires the pipeline components together.
func NewEngine(router routing.Router, registry *templates.Registry, st store.Store, opts EngineOptions) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = 50
	}
	if opts.RRFConstant <= 0 {
		opts.RRFConstant = DefaultRRFConstant
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		router:      router,
		registry:    registry,
		resolver:    templates.NewResolver(registry),
		store:       st,
		topK:        opts.TopK,
		maxTopK:     opts.MaxTopK,
		rrfConstant: opts.RRFConstant,
		logger:      opts.Logger.With("component", "search"),
	}
}

// Query answers a clinical question. The routing decision resolves first;
// the retrieval paths it selects then run concurrently. A failed path
// degrades to an empty list, recorded in PathErrors. Only an unreachable
// store aborts the request.
func (e *Engine) Query(ctx context.Context, question string, topK int) (*Result, error) {
	if err := ValidateQuestion(question); err != nil {
		return nil, err
	}
	topK = e.clampTopK(topK)

	total := time.Now()

	routingStart := time.Now()
	decision, err := e.router.Route(ctx, question)
	if err != nil {
		// Router implementations absorb their own failures; a hard error
		// from a misbehaving one still degrades to the fallback.
		decision = routing.FallbackDecision("classification failed: " + err.Error())
	}
	routingMS := time.Since(routingStart).Milliseconds()

	result := &Result{
		Decision: decision,
		Timings:  Timings{RoutingMS: routingMS},
	}

	runVector := decision.Strategy == routing.StrategyVector || decision.Strategy == routing.StrategyHybrid
	runGraph := decision.Strategy == routing.StrategyGraph || decision.Strategy == routing.StrategyHybrid

	var tmpl *templates.Template
	if runGraph {
		name, params := e.resolver.Resolve(decision)
		if name == "" {
			runGraph = false
		} else {
			tmpl, _ = e.registry.Get(name)
			result.TemplateUsed = name
			result.TemplateParams = params
		}
	}

	var (
		mu         sync.Mutex
		vectorRecs []Record
		graphRecs  []Record
	)

	g, gctx := errgroup.WithContext(ctx)

	if runVector {
		g.Go(func() error {
			start := time.Now()
			res, err := e.store.SemanticSearch(gctx, question, semanticEntityType, topK)
			elapsed := time.Since(start).Milliseconds()

			mu.Lock()
			defer mu.Unlock()
			result.Timings.VectorMS = elapsed
			if err != nil {
				if isStoreUnavailable(err) {
					return err
				}
				result.PathErrors = append(result.PathErrors, "vector: "+err.Error())
				e.logger.Warn("vector path failed, degrading to empty", "error", err)
				return nil
			}
			vectorRecs = NormalizeVector(res.Rows)
			return nil
		})
	}

	if runGraph {
		graphTmpl := tmpl
		params := result.TemplateParams
		g.Go(func() error {
			start := time.Now()
			rows, err := e.store.GraphQuery(gctx, graphTmpl, params)
			elapsed := time.Since(start).Milliseconds()

			mu.Lock()
			defer mu.Unlock()
			result.Timings.GraphMS = elapsed
			if err != nil {
				if isStoreUnavailable(err) {
					return err
				}
				result.PathErrors = append(result.PathErrors, "graph: "+err.Error())
				e.logger.Warn("graph path failed, degrading to empty", "error", err)
				return nil
			}
			graphRecs = NormalizeGraph(rows)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.VectorCount = len(vectorRecs)
	result.GraphCount = len(graphRecs)

	result.FusionMethod = "none"
	if len(vectorRecs) > 0 && len(graphRecs) > 0 {
		result.FusionMethod = "rrf"
	}

	records := Fuse([][]Record{vectorRecs, graphRecs}, e.rrfConstant)
	records = Rerank(records)
	if len(decision.Entities.Topics) > 0 {
		records = TopicBoost(records, decision.Entities.Topics)
		result.TopicBoosted = true
	}
	if len(records) > topK {
		records = records[:topK]
	}
	result.Records = records
	result.Timings.TotalMS = time.Since(total).Milliseconds()

	e.logger.Info("query complete",
		"strategy", decision.Strategy,
		"intent", decision.Intent,
		"template", result.TemplateUsed,
		"vector_count", result.VectorCount,
		"graph_count", result.GraphCount,
		"returned", len(result.Records),
		"total_ms", result.Timings.TotalMS)

	return result, nil
}

// VectorSearch exposes the raw semantic path for any entity type.
func (e *Engine) VectorSearch(ctx context.Context, text, entityType string, topK int) (*store.SemanticResult, error) {
	if err := ValidateQuestion(text); err != nil {
		return nil, err
	}
	if !store.ValidEntityType(entityType) {
		return nil, apperrors.New(apperrors.ErrCodeUnknownEntityType,
			fmt.Sprintf("unknown entity type: %s", entityType), nil)
	}
	return e.store.SemanticSearch(ctx, text, entityType, e.clampTopK(topK))
}

// GraphSearch exposes the raw structural path for a named template.
// Parameters are validated against the template schema; every violation is
// reported.
func (e *Engine) GraphSearch(ctx context.Context, templateName string, params map[string]any) ([]map[string]any, error) {
	tmpl, ok := e.registry.Get(templateName)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeUnknownTemplate,
			fmt.Sprintf("unknown template: %s", templateName), nil).
			WithDetail("available", strings.Join(e.registry.Names(), ", "))
	}
	if violations := tmpl.Validate(params); len(violations) > 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidParams,
			strings.Join(violations, "; "), nil).
			WithDetail("violations", strings.Join(violations, "\n"))
	}
	return e.store.GraphQuery(ctx, tmpl, params)
}

// Registry exposes the template registry for listing surfaces.
func (e *Engine) Registry() *templates.Registry {
	return e.registry
}

// ValidateQuestion enforces the engine's question length bounds.
func ValidateQuestion(question string) error {
	trimmed := strings.TrimSpace(question)
	if len(trimmed) < MinQuestionLen {
		return apperrors.New(apperrors.ErrCodeQueryEmpty,
			fmt.Sprintf("question must be at least %d characters", MinQuestionLen), nil)
	}
	if len(trimmed) > MaxQuestionLen {
		return apperrors.New(apperrors.ErrCodeQueryTooLong,
			fmt.Sprintf("question must be at most %d characters", MaxQuestionLen), nil)
	}
	return nil
}

func (e *Engine) clampTopK(topK int) int {
	if topK <= 0 {
		return e.topK
	}
	if topK > e.maxTopK {
		return e.maxTopK
	}
	return topK
}

func isStoreUnavailable(err error) bool {
	var appErr *apperrors.Error
	return stderrors.As(err, &appErr) && appErr.Code == apperrors.ErrCodeStoreUnavailable
}
