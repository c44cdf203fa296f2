// Package pipeline orchestrates the collect, correlate, prioritize, and
// report stages over the shared collaborator contracts. Stage entry points
// follow one failure contract throughout: an unavailable collaborator aborts
// the stage, while a single bad item is counted in the stage stats and
// skipped.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/config"
	"github.com/delvn/threatbrief/internal/normalize"
)

// AdvisoryFeed supplies recent vulnerability advisories, usually NVD.
type AdvisoryFeed interface {
	FetchRecent(ctx context.Context, pubStart time.Time) ([]normalize.Payload, error)
}

// IndicatorFeed supplies recent threat indicators, usually OTX pulses.
type IndicatorFeed interface {
	FetchRecent(ctx context.Context) ([]normalize.Payload, error)
}

// NewsFeed fetches one RSS/Atom feed by URL.
type NewsFeed interface {
	FetchFeed(ctx context.Context, url string) ([]normalize.Payload, error)
}

// Pipeline binds the feed clients and collaborators a run needs.
type Pipeline struct {
	cfg        *config.Config
	store      schemas.DocumentStore
	index      schemas.VectorIndex
	embedder   schemas.EmbeddingProvider
	advisories AdvisoryFeed
	indicators IndicatorFeed
	news       NewsFeed
	log        *zap.Logger
}

// Options carries the collaborators for New. Feed clients may be nil, in
// which case the corresponding collection family is skipped.
type Options struct {
	Store      schemas.DocumentStore
	Index      schemas.VectorIndex
	Embedder   schemas.EmbeddingProvider
	Advisories AdvisoryFeed
	Indicators IndicatorFeed
	News       NewsFeed
}

// New assembles a pipeline.
func New(cfg *config.Config, opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      opts.Store,
		index:      opts.Index,
		embedder:   opts.Embedder,
		advisories: opts.Advisories,
		indicators: opts.Indicators,
		news:       opts.News,
		log:        logger.Named("pipeline"),
	}
}

// RunStats aggregates the per-stage accounting of a full run.
type RunStats struct {
	RunID      string          `json:"run_id"`
	Collect    CollectStats    `json:"collect"`
	Correlate  CorrelateStats  `json:"correlate"`
	Prioritize PrioritizeStats `json:"prioritize"`
}

// Run executes every stage in order and returns the final brief next to the
// aggregated stats. Collection and correlation never abort the run; only a
// failure to assemble the brief itself does.
func (p *Pipeline) Run(ctx context.Context) (*schemas.ExecutiveBrief, *RunStats, error) {
	stats := &RunStats{RunID: newRunID()}
	log := p.log.With(zap.String("run_id", stats.RunID))

	stats.Collect = p.Collect(ctx)
	log.Info("Collection stage complete",
		zap.Int("fetched", stats.Collect.Fetched),
		zap.Int("stored", stats.Collect.Stored),
		zap.Int("errors", stats.Collect.Errors),
	)

	stats.Correlate = p.Correlate(ctx)
	log.Info("Correlation stage complete",
		zap.Int("threats_indexed", stats.Correlate.ThreatsIndexed),
		zap.Int("links_created", stats.Correlate.LinksCreated),
		zap.Int("errors", stats.Correlate.Errors),
	)

	brief, prioritizeStats, err := p.Report(ctx)
	stats.Prioritize = prioritizeStats
	if err != nil {
		return nil, stats, err
	}
	log.Info("Report stage complete",
		zap.Int("top_risks", len(brief.TopRisks)),
		zap.Int("notable_mentions", len(brief.NotableMentions)),
	)
	return brief, stats, nil
}
