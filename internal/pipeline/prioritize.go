package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/relevance"
	"github.com/delvn/threatbrief/internal/stack"
)

// RankedThreat is one scored threat in a prioritization result.
type RankedThreat struct {
	Threat           schemas.UnifiedThreat     `json:"threat"`
	Relevance        relevance.Tier            `json:"relevance"`
	Reasons          []string                  `json:"reasons"`
	Severity         float64                   `json:"severity"`
	CorrelationCount int                       `json:"correlation_count"`
	Correlations     []schemas.CorrelationLink `json:"correlations,omitempty"`
}

// PrioritizeResult is the ordered output of a prioritization run.
type PrioritizeResult struct {
	Stack       *stack.Profile  `json:"stack"`
	Ranked      []RankedThreat  `json:"ranked_threats"`
	Stats       PrioritizeStats `json:"stats"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Prioritize scores the recent corpus against the configured stack profile
// and returns it ordered best-first: tier, then severity descending, then id.
// A missing or invalid profile is a stage failure.
func (p *Pipeline) Prioritize(ctx context.Context) (*PrioritizeResult, error) {
	profile, err := stack.Load(p.cfg.Stack.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load stack profile: %w", err)
	}
	return p.prioritizeWith(ctx, profile), nil
}

func (p *Pipeline) prioritizeWith(ctx context.Context, profile *stack.Profile) *PrioritizeResult {
	result := &PrioritizeResult{
		Stack:       profile,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}

	limit := p.cfg.Pipeline.RecentLimit
	if limit <= 0 {
		p.log.Error("Prioritization aborted: recent_limit must be greater than zero")
		result.Stats.Errors++
		return result
	}

	threats, err := p.store.ListRecentThreats(ctx, limit)
	if err != nil {
		p.log.Error("Prioritization aborted: failed to load recent threats", zap.Error(err))
		result.Stats.Errors++
		return result
	}

	for i := range threats {
		threat := &threats[i]
		tier, reasons := relevance.Score(threat, profile)

		links, err := p.store.ListLinksForID(ctx, threat.ID)
		if err != nil {
			p.log.Warn("Failed to load correlations", zap.String("id", threat.ID), zap.Error(err))
			result.Stats.Errors++
		}

		severity := 0.0
		if threat.Severity != nil {
			severity = *threat.Severity
		}

		result.Ranked = append(result.Ranked, RankedThreat{
			Threat:           *threat,
			Relevance:        tier,
			Reasons:          reasons,
			Severity:         severity,
			CorrelationCount: len(links),
			Correlations:     links,
		})
		result.Stats.Total++
		switch tier {
		case relevance.TierHigh:
			result.Stats.High++
		case relevance.TierMedium:
			result.Stats.Medium++
		case relevance.TierLow:
			result.Stats.Low++
		default:
			result.Stats.None++
		}
	}

	sort.SliceStable(result.Ranked, func(i, j int) bool {
		a, b := &result.Ranked[i], &result.Ranked[j]
		if ra, rb := relevance.Rank(a.Relevance), relevance.Rank(b.Relevance); ra != rb {
			return ra < rb
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		return a.Threat.ID < b.Threat.ID
	})
	return result
}
