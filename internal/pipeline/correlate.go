package pipeline

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/correlation"
)

// correlateCounters is the concurrency-safe accumulator behind CorrelateStats.
type correlateCounters struct {
	queries      atomic.Int64
	linksCreated atomic.Int64
	stored       atomic.Int64
	errors       atomic.Int64
}

// Correlate indexes the recent corpus, then queries neighbors for every
// threat and persists the scored links. Collaborator construction and corpus
// loading failures end the stage early; a single threat failing to embed or
// query is counted and skipped.
func (p *Pipeline) Correlate(ctx context.Context) CorrelateStats {
	var stats CorrelateStats

	limit := p.cfg.Pipeline.RecentLimit
	if limit <= 0 {
		p.log.Error("Correlation aborted: recent_limit must be greater than zero")
		stats.Errors++
		return stats
	}
	topK := p.cfg.Pipeline.TopK
	if topK <= 0 {
		p.log.Error("Correlation aborted: top_k must be greater than zero")
		stats.Errors++
		return stats
	}

	threats, err := p.store.ListRecentThreats(ctx, limit)
	if err != nil {
		p.log.Error("Correlation aborted: failed to load recent threats", zap.Error(err))
		stats.Errors++
		return stats
	}
	if len(threats) == 0 {
		return stats
	}

	results, err := p.index.IndexThreats(ctx, threats)
	if err != nil {
		p.log.Error("Correlation aborted: indexing failed", zap.Error(err))
		stats.Errors += len(threats)
		return stats
	}
	for _, result := range results {
		if result.Succeeded {
			stats.ThreatsIndexed++
		}
	}

	workers := int64(p.cfg.Pipeline.WorkerConcurrency)
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(workers)
	counters := &correlateCounters{}

	g, gctx := errgroup.WithContext(ctx)
	for i := range threats {
		threat := &threats[i]
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				counters.errors.Add(1)
				return nil
			}
			defer sem.Release(1)

			p.correlateOne(gctx, threat, topK, counters)
			return nil
		})
	}
	_ = g.Wait()

	stats.Queries = int(counters.queries.Load())
	stats.LinksCreated = int(counters.linksCreated.Load())
	stats.Stored = int(counters.stored.Load())
	stats.Errors += int(counters.errors.Load())
	return stats
}

func (p *Pipeline) correlateOne(ctx context.Context, threat *schemas.UnifiedThreat, topK int, counters *correlateCounters) {
	vectors, err := p.embedder.Embed(ctx, []string{threat.ContentText()})
	if err != nil || len(vectors) == 0 {
		p.log.Warn("Failed to embed threat for correlation", zap.String("id", threat.ID), zap.Error(err))
		counters.errors.Add(1)
		return
	}

	hits, err := p.index.Query(ctx, vectors[0], topK, threat.ID)
	if err != nil {
		p.log.Warn("Neighbor query failed", zap.String("id", threat.ID), zap.Error(err))
		counters.errors.Add(1)
		return
	}
	counters.queries.Add(1)

	links := correlation.Match(threat, hits, p.cfg.Pipeline.MinConfidence)
	counters.linksCreated.Add(int64(len(links)))

	for _, link := range links {
		if err := p.store.UpsertLink(ctx, link); err != nil {
			p.log.Warn("Failed to store correlation link", zap.String("id", link.ID), zap.Error(err))
			counters.errors.Add(1)
			continue
		}
		counters.stored.Add(1)
	}
}
