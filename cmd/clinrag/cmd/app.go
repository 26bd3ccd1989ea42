package cmd

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clinrag/clinrag/internal/answer"
	"github.com/clinrag/clinrag/internal/config"
	"github.com/clinrag/clinrag/internal/routing"
	"github.com/clinrag/clinrag/internal/search"
	"github.com/clinrag/clinrag/internal/store"
	"github.com/clinrag/clinrag/internal/templates"
)

// app holds the wired pipeline and its shutdown hooks.
type app struct {
	engine    *search.Engine
	generator *answer.Generator
	store     store.Store
	registry  *templates.Registry
	watcher   *templates.Watcher
	router    routing.Router
}

// newApp wires the full pipeline from config. watch enables template file
// hot reload and is only useful for long-running serve processes.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, watch bool) (*app, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, fmt.Errorf("store.database_url is required (set CLINRAG_DATABASE_URL)")
	}
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is required (set CLINRAG_API_KEY)")
	}

	client := newLLMClient(cfg)

	registry := templates.NewRegistry()
	if cfg.Templates.File != "" {
		if err := templates.LoadFile(registry, cfg.Templates.File); err != nil {
			return nil, err
		}
	}

	a := &app{registry: registry}

	if watch && cfg.Templates.File != "" {
		watcher, err := templates.NewWatcher(registry, cfg.Templates.File, logger)
		if err != nil {
			return nil, err
		}
		a.watcher = watcher
	}

	embedder := store.NewOpenAIEmbedder(client, cfg.LLM.EmbeddingModel)
	st, err := store.NewPostgresStore(ctx, cfg.Store.DatabaseURL, embedder, store.PoolConfig{
		MaxConns:       int32(cfg.Store.MaxConns),
		ConnectTimeout: cfg.Store.ConnectTimeout,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st

	router, err := routing.NewLLMRouter(client, routing.Options{
		Model:         cfg.LLM.RouterModel,
		Timeout:       cfg.LLM.RouterTimeout,
		CacheSize:     cfg.Retrieval.CacheSize,
		TemplateNames: registry.Names(),
		Logger:        logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.router = router

	a.engine = search.NewEngine(router, registry, st, search.EngineOptions{
		TopK:        cfg.Retrieval.TopK,
		MaxTopK:     cfg.Retrieval.MaxTopK,
		RRFConstant: cfg.Retrieval.RRFConstant,
		Logger:      logger,
	})

	a.generator = answer.NewGenerator(client, answer.Options{
		Model:   cfg.LLM.AnswerModel,
		Timeout: cfg.LLM.AnswerTimeout,
		Logger:  logger,
	})

	return a, nil
}

// Close tears the pipeline down in reverse wiring order.
func (a *app) Close() {
	if a.router != nil {
		_ = a.router.Close()
	}
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func newLLMClient(cfg *config.Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.LLM.APIKey)
	if cfg.LLM.BaseURL != "" {
		clientCfg.BaseURL = cfg.LLM.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
