package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	apperrors "github.com/clinrag/clinrag/internal/errors"
	"github.com/clinrag/clinrag/internal/templates"
)

// PostgresStore backs the knowledge base with PostgreSQL and pgvector.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder Embedder
	logger   *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxConns       int32
	ConnectTimeout time.Duration
}

// NewPostgresStore connects a pool to databaseURL and verifies reachability.
func NewPostgresStore(ctx context.Context, databaseURL string, embedder Embedder, cfg PoolConfig, logger *slog.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "invalid database URL", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.StoreUnavailable(err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		pool:     pool,
		embedder: embedder,
		logger:   logger.With("component", "store"),
	}, nil
}

// SemanticSearch embeds text and runs a cosine-similarity lookup against the
// entity type's table. Rows come back most similar first with a
// similarity_score column in [0,1].
func (s *PostgresStore) SemanticSearch(ctx context.Context, text, entityType string, topK int) (*SemanticResult, error) {
	cfg, ok := entityTypeConfig[entityType]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeUnknownEntityType,
			fmt.Sprintf("unknown entity type: %s", entityType), nil).
			WithDetail("valid_types", strings.Join(EntityTypes(), ", "))
	}

	embedStart := time.Now()
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	embedMS := time.Since(embedStart).Milliseconds()

	query := semanticQuery(cfg.table, cfg.columns)
	searchStart := time.Now()
	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, s.wrapQueryErr(err, "semantic search failed")
	}
	defer rows.Close()

	result, err := rowsToMaps(rows)
	if err != nil {
		return nil, s.wrapQueryErr(err, "semantic search scan failed")
	}

	searchMS := time.Since(searchStart).Milliseconds()
	s.logger.Debug("semantic search",
		"entity_type", entityType,
		"top_k", topK,
		"rows", len(result),
		"embed_ms", embedMS,
		"search_ms", searchMS)

	return &SemanticResult{Rows: result, EmbedMS: embedMS, SearchMS: searchMS}, nil
}

// GraphQuery executes an allow-listed template. Arguments are bound in the
// template's declared parameter order; params must already be validated.
func (s *PostgresStore) GraphQuery(ctx context.Context, tmpl *templates.Template, params map[string]any) ([]map[string]any, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, tmpl.Query, tmpl.Args(params)...)
	if err != nil {
		return nil, s.wrapQueryErr(err, fmt.Sprintf("graph query %q failed", tmpl.Name))
	}
	defer rows.Close()

	result, err := rowsToMaps(rows)
	if err != nil {
		return nil, s.wrapQueryErr(err, fmt.Sprintf("graph query %q scan failed", tmpl.Name))
	}

	s.logger.Debug("graph query",
		"template", tmpl.Name,
		"rows", len(result),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// Ping reports store reachability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return nil
}

// Close drains the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) wrapQueryErr(err error, message string) error {
	if isConnectivityErr(err) {
		return apperrors.StoreUnavailable(err)
	}
	return apperrors.New(apperrors.ErrCodeStoreQuery, message, err)
}

// isConnectivityErr distinguishes an unreachable store, which aborts the
// whole request, from an ordinary query failure, which degrades one path.
func isConnectivityErr(err error) bool {
	var connErr *pgconn.ConnectError
	if stderrors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

// semanticQuery builds the similarity lookup for one entity table.
// <=> is pgvector cosine distance; 1 - distance is cosine similarity,
// which can dip below zero for near-opposite vectors, so GREATEST floors
// it to keep similarity_score in [0,1].
func semanticQuery(table string, columns []string) string {
	return fmt.Sprintf(
		"SELECT %s, GREATEST(1 - (embedding <=> $1), 0) AS similarity_score FROM %s ORDER BY embedding <=> $1 LIMIT $2",
		strings.Join(columns, ", "), table)
}

// rowsToMaps materializes pgx rows as column-keyed maps, mirroring the
// per-template row shapes the normalizer consumes.
func rowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	out := make([]map[string]any, 0, 16)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, field := range fields {
			row[field.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
