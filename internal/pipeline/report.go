package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/relevance"
)

// Report runs prioritization and assembles the executive brief from its
// output.
func (p *Pipeline) Report(ctx context.Context) (*schemas.ExecutiveBrief, PrioritizeStats, error) {
	result, err := p.Prioritize(ctx)
	if err != nil {
		return nil, PrioritizeStats{}, err
	}
	return BuildBrief(result, p.cfg.Report.TopRiskCount, p.cfg.Report.NotableCount), result.Stats, nil
}

// BuildBrief selects top risks and notable mentions from a prioritization
// result. Top risks are HIGH or MEDIUM entries, capped between 3 and 5
// regardless of the configured count; notable mentions fill from the
// remaining entries in rank order.
func BuildBrief(result *PrioritizeResult, topRiskCount, notableCount int) *schemas.ExecutiveBrief {
	maxTop := topRiskCount
	if maxTop > 5 {
		maxTop = 5
	}
	if maxTop < 3 {
		maxTop = 3
	}

	var topRisks []RankedThreat
	for _, entry := range result.Ranked {
		if entry.Relevance != relevance.TierHigh && entry.Relevance != relevance.TierMedium {
			continue
		}
		topRisks = append(topRisks, entry)
		if len(topRisks) == maxTop {
			break
		}
	}

	usedIDs := make(map[string]struct{}, len(topRisks))
	for _, entry := range topRisks {
		if id := strings.TrimSpace(entry.Threat.ID); id != "" {
			usedIDs[id] = struct{}{}
		}
	}

	mentionCap := notableCount
	if mentionCap < 0 {
		mentionCap = 0
	}
	var notable []RankedThreat
	for _, entry := range result.Ranked {
		if len(notable) == mentionCap {
			break
		}
		if _, used := usedIDs[strings.TrimSpace(entry.Threat.ID)]; used {
			continue
		}
		notable = append(notable, entry)
	}

	brief := &schemas.ExecutiveBrief{
		GeneratedAt:     result.GeneratedAt,
		StackSummary:    result.Stack.Summary(),
		TopRisks:        make([]schemas.BriefEntry, 0, len(topRisks)),
		NotableMentions: make([]schemas.BriefEntry, 0, len(notable)),
	}
	for _, entry := range topRisks {
		brief.TopRisks = append(brief.TopRisks, toBriefEntry(entry))
	}
	for _, entry := range notable {
		brief.NotableMentions = append(brief.NotableMentions, toBriefEntry(entry))
	}
	return brief
}

func toBriefEntry(entry RankedThreat) schemas.BriefEntry {
	evidence := make([]string, 0, 4)
	for i, reason := range entry.Reasons {
		if i == 3 {
			break
		}
		evidence = append(evidence, reason)
	}
	if entry.Severity > 0 {
		evidence = append(evidence, fmt.Sprintf("Reported severity: %.1f/10", entry.Severity))
	}
	if entry.CorrelationCount > 0 {
		evidence = append(evidence, fmt.Sprintf("Related correlations found: %d", entry.CorrelationCount))
	}
	for i, reference := range entry.Threat.References {
		if i == 2 {
			break
		}
		evidence = append(evidence, "Reference: "+reference)
	}

	return schemas.BriefEntry{
		Headline:           headline(&entry.Threat),
		Relevance:          string(entry.Relevance),
		WhyItMatters:       whyItMatters(entry),
		Evidence:           evidence,
		RecommendedActions: recommendedActions(entry.Relevance),
	}
}

func headline(threat *schemas.UnifiedThreat) string {
	if title := strings.TrimSpace(threat.Title); title != "" {
		return title
	}
	if id := strings.TrimSpace(threat.ID); id != "" {
		return id
	}
	return "Untitled threat"
}

func whyItMatters(entry RankedThreat) string {
	var parts []string
	if len(entry.Reasons) > 0 {
		parts = append(parts, strings.TrimRight(entry.Reasons[0], "."))
	} else {
		parts = append(parts, fmt.Sprintf("Ranked %s for the configured stack", entry.Relevance))
	}
	if entry.Severity > 0 {
		parts = append(parts, fmt.Sprintf("severity is %.1f/10", entry.Severity))
	}
	if entry.CorrelationCount > 0 {
		parts = append(parts, fmt.Sprintf("linked to %d related threats", entry.CorrelationCount))
	}
	return strings.Join(parts, ". ") + "."
}

// recommendedActions returns the fixed playbook for a tier. HIGH and MEDIUM
// each carry their own list; LOW and NONE share a watch-and-wait pair.
func recommendedActions(tier relevance.Tier) []string {
	switch tier {
	case relevance.TierHigh:
		return []string{
			"Confirm exposure on affected production systems within 24 hours.",
			"Apply available patches or temporary mitigations.",
			"Increase monitoring and incident response readiness for this threat path.",
		}
	case relevance.TierMedium:
		return []string{
			"Schedule remediation in the next maintenance window.",
			"Review detection coverage for related indicators and CVEs.",
			"Track remediation status in the security backlog.",
		}
	default:
		return []string{
			"Monitor for relevance changes as new stack context or exploit data appears.",
			"Keep this item available as supporting intelligence.",
		}
	}
}
