package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/delvn/threatbrief/api/schemas"
)

// RenderMarkdown formats an executive brief as a Markdown document. Sections
// are always present; empty ones carry a placeholder line so the document
// reads the same whether or not anything was found.
func RenderMarkdown(brief *schemas.ExecutiveBrief) string {
	lines := []string{
		"# Executive Threat Brief",
		"",
		fmt.Sprintf("_Generated: %s_", formatTimestamp(brief.GeneratedAt)),
		"",
		"## Stack Summary",
		"",
		brief.StackSummary,
		"",
		"## Top Risks",
		"",
	}

	if len(brief.TopRisks) > 0 {
		for i, entry := range brief.TopRisks {
			lines = append(lines, renderEntry(i+1, entry)...)
		}
	} else {
		lines = append(lines, "- No HIGH or MEDIUM risks were identified.", "")
	}

	lines = append(lines, "## Notable Mentions", "")
	if len(brief.NotableMentions) > 0 {
		for i, entry := range brief.NotableMentions {
			lines = append(lines, renderEntry(i+1, entry)...)
		}
	} else {
		lines = append(lines, "- No additional notable threats.", "")
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}

func renderEntry(index int, entry schemas.BriefEntry) []string {
	lines := []string{
		fmt.Sprintf("### %d. %s", index, entry.Headline),
		"",
		fmt.Sprintf("- **Relevance:** %s", entry.Relevance),
		fmt.Sprintf("- **Why it matters:** %s", entry.WhyItMatters),
	}

	if len(entry.Evidence) > 0 {
		lines = append(lines, "- **Evidence:**")
		for _, item := range entry.Evidence {
			lines = append(lines, "  - "+item)
		}
	} else {
		lines = append(lines, "- **Evidence:** None provided")
	}

	if len(entry.RecommendedActions) > 0 {
		lines = append(lines, "- **Recommended actions:**")
		for _, item := range entry.RecommendedActions {
			lines = append(lines, "  - "+item)
		}
	} else {
		lines = append(lines, "- **Recommended actions:** None provided")
	}

	lines = append(lines, "")
	return lines
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}
