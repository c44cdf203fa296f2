package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delvn/threatbrief/internal/config"
	"github.com/delvn/threatbrief/internal/embeddings"
	"github.com/delvn/threatbrief/internal/feeds"
	"github.com/delvn/threatbrief/internal/observability"
	"github.com/delvn/threatbrief/internal/pipeline"
	"github.com/delvn/threatbrief/internal/store"
	"github.com/delvn/threatbrief/internal/vecindex"
)

// pipelineProvider creates a fully wired pipeline. The abstraction exists so
// tests can inject a pipeline backed by mocks instead of a live database.
type pipelineProvider interface {
	// Create returns the pipeline, a cleanup function to release resources,
	// and an error if construction fails.
	Create(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error)
}

// defaultPipelineProvider is the production implementation backed by
// PostgreSQL and the configured feed and embedding clients.
type defaultPipelineProvider struct{}

// NewPipelineProvider creates the production pipeline provider.
func NewPipelineProvider() pipelineProvider {
	return &defaultPipelineProvider{}
}

func (p *defaultPipelineProvider) Create(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	logger := observability.GetLogger()

	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (THREATBRIEF_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	docStore, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := docStore.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	embedder, err := embeddings.New(ctx, cfg.Embedding, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	index, err := vecindex.New(ctx, pool, embedder, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if err := index.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	nvdClient, err := feeds.NewNVDClient(cfg.Feeds.NVD, cfg.Pipeline.HTTPTimeout, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize NVD client: %w", err)
	}

	pipe := pipeline.New(cfg, pipeline.Options{
		Store:      docStore,
		Index:      index,
		Embedder:   embedder,
		Advisories: nvdClient,
		Indicators: feeds.NewOTXClient(cfg.Feeds.OTX, cfg.Pipeline.HTTPTimeout, logger),
		News:       feeds.NewRSSClient(cfg.Pipeline.HTTPTimeout, logger),
	}, logger)

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return pipe, cleanup, nil
}
