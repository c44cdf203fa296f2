package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/feeds"
	"github.com/delvn/threatbrief/internal/normalize"
)

func newRunID() string {
	return uuid.NewString()
}

// collectCounters is the concurrency-safe accumulator behind CollectStats.
type collectCounters struct {
	fetched    atomic.Int64
	normalized atomic.Int64
	stored     atomic.Int64
	errors     atomic.Int64
}

func (c *collectCounters) snapshot(feedCount int) CollectStats {
	return CollectStats{
		Feeds:      feedCount,
		Fetched:    int(c.fetched.Load()),
		Normalized: int(c.normalized.Load()),
		Stored:     int(c.stored.Load()),
		Errors:     int(c.errors.Load()),
	}
}

// normalizer converts one raw payload into a unified threat.
type normalizer func(normalize.Payload) (*schemas.UnifiedThreat, error)

// Collect fetches from every configured feed, normalizes each payload, and
// stores the results. The feed families run concurrently; a fetch failure
// costs one error for that family and the rest of the run continues.
func (p *Pipeline) Collect(ctx context.Context) CollectStats {
	counters := &collectCounters{}
	feedCount := len(p.cfg.Feeds.RSS.URLs)
	if p.advisories != nil {
		feedCount++
	}
	if p.indicators != nil {
		feedCount++
	}

	g, gctx := errgroup.WithContext(ctx)

	if p.advisories != nil {
		g.Go(func() error {
			p.collectAdvisories(gctx, counters)
			return nil
		})
	}
	if p.indicators != nil {
		g.Go(func() error {
			p.collectIndicators(gctx, counters)
			return nil
		})
	}
	if p.news != nil {
		g.Go(func() error {
			p.collectNews(gctx, counters)
			return nil
		})
	}

	// Workers swallow their own failures into the counters.
	_ = g.Wait()
	return counters.snapshot(feedCount)
}

func (p *Pipeline) collectAdvisories(ctx context.Context, counters *collectCounters) {
	window := p.cfg.Feeds.NVD.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	pubStart := time.Now().UTC().Add(-window)

	payloads, err := p.advisories.FetchRecent(ctx, pubStart)
	if err != nil {
		p.log.Warn("Advisory fetch failed", zap.Error(err))
		counters.errors.Add(1)
		return
	}
	counters.fetched.Add(int64(len(payloads)))
	p.ingest(ctx, payloads, normalize.Advisory, counters)
}

func (p *Pipeline) collectIndicators(ctx context.Context, counters *collectCounters) {
	payloads, err := p.indicators.FetchRecent(ctx)
	if err != nil {
		p.log.Warn("Indicator fetch failed", zap.Error(err))
		counters.errors.Add(1)
		return
	}
	counters.fetched.Add(int64(len(payloads)))
	p.ingest(ctx, payloads, normalize.Indicator, counters)
}

// collectNews walks the configured feed URLs under a bounded number of
// in-flight fetches.
func (p *Pipeline) collectNews(ctx context.Context, counters *collectCounters) {
	workers := int64(p.cfg.Pipeline.WorkerConcurrency)
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(workers)

	g, gctx := errgroup.WithContext(ctx)
	for _, feedURL := range p.cfg.Feeds.RSS.URLs {
		feedURL := feedURL
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				counters.errors.Add(1)
				return nil
			}
			defer sem.Release(1)

			items, err := p.news.FetchFeed(gctx, feedURL)
			if err != nil {
				p.log.Warn("News fetch failed", zap.String("feed", feedURL), zap.Error(err))
				counters.errors.Add(1)
				return nil
			}
			counters.fetched.Add(int64(len(items)))

			source := feeds.FeedSource(feedURL)
			for _, item := range items {
				if _, ok := item["source"]; !ok {
					item["source"] = source
				}
			}
			p.ingest(gctx, items, normalize.FeedItem, counters)
			return nil
		})
	}
	_ = g.Wait()
}

// ingest normalizes and stores payloads one at a time, counting failures.
func (p *Pipeline) ingest(ctx context.Context, payloads []normalize.Payload, fn normalizer, counters *collectCounters) {
	for _, payload := range payloads {
		threat, err := fn(payload)
		if err != nil {
			p.log.Debug("Payload failed normalization", zap.Error(err))
			counters.errors.Add(1)
			continue
		}
		counters.normalized.Add(1)

		if err := p.store.UpsertThreat(ctx, threat); err != nil {
			p.log.Warn("Failed to store threat", zap.String("id", threat.ID), zap.Error(err))
			counters.errors.Add(1)
			continue
		}
		counters.stored.Add(1)
	}
}
