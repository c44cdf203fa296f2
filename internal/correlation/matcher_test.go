package correlation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delvn/threatbrief/api/schemas"
)

func cveThreat(id, cveID string) *schemas.UnifiedThreat {
	return &schemas.UnifiedThreat{
		ID:         id,
		Source:     "nvd",
		Type:       schemas.ThreatTypeCVE,
		Title:      cveID,
		Summary:    "Remote code execution via crafted payload.",
		Indicators: []schemas.Indicator{{Type: "cve", Value: cveID}},
		Raw:        map[string]any{},
	}
}

func TestMatchSharedCVERaisesConfidence(t *testing.T) {
	t.Parallel()

	source := cveThreat("nvd:CVE-2026-1111", "CVE-2026-1111")

	withCVE := schemas.CandidateHit{
		ID:      "bleepingcomputer:article-1",
		Source:  "bleepingcomputer",
		Type:    "news",
		Score:   0.6,
		Title:   "Exploitation of CVE-2026-1111 observed",
		Summary: "Attackers target CVE-2026-1111 in the wild.",
	}
	withoutCVE := schemas.CandidateHit{
		ID:     "bleepingcomputer:article-2",
		Source: "bleepingcomputer",
		Type:   "news",
		Score:  0.6,
		Title:  "Unrelated ransomware roundup",
	}

	links := Match(source, []schemas.CandidateHit{withCVE, withoutCVE}, 0)
	require.Len(t, links, 2)

	var cveLink, plainLink *schemas.CorrelationLink
	for _, l := range links {
		switch l.TargetID {
		case "bleepingcomputer:article-1":
			cveLink = l
		case "bleepingcomputer:article-2":
			plainLink = l
		}
	}
	require.NotNil(t, cveLink)
	require.NotNil(t, plainLink)

	assert.GreaterOrEqual(t, cveLink.Confidence, plainLink.Confidence)
	joined := strings.Join(cveLink.Reasons, "\n")
	assert.Contains(t, joined, "Shared CVE identifiers")
	assert.Contains(t, joined, "CVE-2026-1111")
}

func TestMatchSkipsSelfAndEmptyIDs(t *testing.T) {
	t.Parallel()

	source := cveThreat("nvd:CVE-2026-1111", "CVE-2026-1111")
	hits := []schemas.CandidateHit{
		{ID: "nvd:CVE-2026-1111", Source: "nvd", Score: 0.99},
		{ID: "", Source: "otx", Score: 0.95},
		{ID: "   ", Source: "otx", Score: 0.95},
	}

	assert.Empty(t, Match(source, hits, 0))
}

func TestMatchDeduplicatesByTargetKeepingHighestConfidence(t *testing.T) {
	t.Parallel()

	source := cveThreat("nvd:CVE-2026-1111", "CVE-2026-1111")
	hits := []schemas.CandidateHit{
		{ID: "otx:ip:1.2.3.4", Source: "otx", Score: 0.2},
		{ID: "otx:ip:1.2.3.4", Source: "otx", Score: 0.9, Title: "CVE-2026-1111 scanning host"},
	}

	links := Match(source, hits, 0)
	require.Len(t, links, 1)

	loser, _ := Score(0.2, 0, false)
	assert.Equal(t, "otx:ip:1.2.3.4", links[0].TargetID)
	assert.Greater(t, links[0].Confidence, loser)
}

func TestMatchAppliesThreshold(t *testing.T) {
	t.Parallel()

	source := cveThreat("nvd:CVE-2026-1111", "CVE-2026-1111")
	hits := []schemas.CandidateHit{
		{ID: "weak", Source: "otx", Score: 0.1},
		{ID: "strong", Source: "otx", Score: 0.95, Title: "CVE-2026-1111"},
	}

	links := Match(source, hits, 0.5)
	require.Len(t, links, 1)
	assert.Equal(t, "strong", links[0].TargetID)
}

func TestMatchSortsByDescendingConfidence(t *testing.T) {
	t.Parallel()

	source := cveThreat("nvd:CVE-2026-1111", "CVE-2026-1111")
	hits := []schemas.CandidateHit{
		{ID: "low", Source: "otx", Score: 0.3},
		{ID: "high", Source: "otx", Score: 0.9},
		{ID: "mid", Source: "otx", Score: 0.6},
	}

	links := Match(source, hits, 0)
	require.Len(t, links, 3)
	assert.Equal(t, "high", links[0].TargetID)
	assert.Equal(t, "mid", links[1].TargetID)
	assert.Equal(t, "low", links[2].TargetID)
}

func TestMatchLinkIDsAreDirectional(t *testing.T) {
	t.Parallel()

	source := cveThreat("nvd:CVE-2026-1111", "CVE-2026-1111")
	links := Match(source, []schemas.CandidateHit{{ID: "otx:ip:1.2.3.4", Source: "otx", Score: 0.8}}, 0)

	require.Len(t, links, 1)
	assert.Equal(t, "corr:nvd:CVE-2026-1111->otx:ip:1.2.3.4", links[0].ID)
	require.NotNil(t, links[0].Similarity)
	assert.InDelta(t, 0.8, *links[0].Similarity, 1e-9)
}

func TestMatchTokenOverlapOnlyReportedWithoutStrongerSignals(t *testing.T) {
	t.Parallel()

	source := &schemas.UnifiedThreat{
		ID:      "news:abc",
		Source:  "news",
		Type:    schemas.ThreatTypeNews,
		Title:   "Ransomware campaign hits healthcare",
		Summary: "Ransomware operators expand targeting.",
		Raw:     map[string]any{},
	}
	hit := schemas.CandidateHit{
		ID:     "news:def",
		Source: "other",
		Score:  0.5,
		Title:  "Healthcare ransomware wave continues",
	}

	links := Match(source, []schemas.CandidateHit{hit}, 0)
	require.Len(t, links, 1)

	joined := strings.Join(links[0].Reasons, "\n")
	assert.Contains(t, joined, "Token overlap")
	assert.NotContains(t, joined, "Shared CVE identifiers")
	assert.NotContains(t, joined, "Shared IOCs")
}
