package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delvn/threatbrief/api/schemas"
)

func briefFixture() *schemas.ExecutiveBrief {
	return &schemas.ExecutiveBrief{
		GeneratedAt:  time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
		StackSummary: "Products: nginx, openssl; Platforms: ubuntu",
		TopRisks: []schemas.BriefEntry{
			{
				Headline:     "Critical nginx flaw exploited",
				Relevance:    "HIGH",
				WhyItMatters: "Product keyword match: nginx. severity is 9.8/10.",
				Evidence:     []string{"Product keyword match: nginx", "Reported severity: 9.8/10"},
				RecommendedActions: []string{
					"Confirm exposure on affected production systems within 24 hours.",
					"Apply available patches or temporary mitigations.",
				},
			},
		},
		NotableMentions: []schemas.BriefEntry{
			{
				Headline:     "Phishing wave",
				Relevance:    "NONE",
				WhyItMatters: "Ranked NONE for the configured stack.",
			},
		},
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	t.Run("renders all sections for a populated brief", func(t *testing.T) {
		t.Parallel()
		md := RenderMarkdown(briefFixture())

		assert.True(t, strings.HasPrefix(md, "# Executive Threat Brief\n"))
		assert.Contains(t, md, "_Generated: 2026-02-10T09:30:00Z_")
		assert.Contains(t, md, "## Stack Summary\n\nProducts: nginx, openssl; Platforms: ubuntu")
		assert.Contains(t, md, "### 1. Critical nginx flaw exploited")
		assert.Contains(t, md, "- **Relevance:** HIGH")
		assert.Contains(t, md, "- **Evidence:**\n  - Product keyword match: nginx")
		assert.Contains(t, md, "- **Recommended actions:**\n  - Confirm exposure on affected production systems within 24 hours.")
		assert.Contains(t, md, "### 1. Phishing wave")
		assert.Contains(t, md, "- **Evidence:** None provided")
		assert.Contains(t, md, "- **Recommended actions:** None provided")
		assert.True(t, strings.HasSuffix(md, "\n"))
		assert.False(t, strings.HasSuffix(md, "\n\n"))
	})

	t.Run("renders placeholders when nothing was found", func(t *testing.T) {
		t.Parallel()
		md := RenderMarkdown(&schemas.ExecutiveBrief{
			GeneratedAt:  time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
			StackSummary: "No stack profile configured.",
		})
		assert.Contains(t, md, "- No HIGH or MEDIUM risks were identified.")
		assert.Contains(t, md, "- No additional notable threats.")
	})
}

func TestReporter(t *testing.T) {
	t.Run("markdown reporter writes to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "brief.md")
		r, err := New("markdown", path)
		require.NoError(t, err)

		require.NoError(t, r.Write(briefFixture()))
		require.NoError(t, r.Close())

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "# Executive Threat Brief")
	})

	t.Run("json reporter writes a decodable document", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "brief.json")
		r, err := New("json", path)
		require.NoError(t, err)

		require.NoError(t, r.Write(briefFixture()))
		require.NoError(t, r.Close())

		content, err := os.ReadFile(path)
		require.NoError(t, err)

		var decoded schemas.ExecutiveBrief
		require.NoError(t, json.Unmarshal(content, &decoded))
		if diff := cmp.Diff(briefFixture(), &decoded); diff != "" {
			t.Errorf("brief did not round-trip (-want +got):\n%s", diff)
		}
	})

	t.Run("empty format defaults to markdown", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "brief.out")
		r, err := New("", path)
		require.NoError(t, err)
		require.NoError(t, r.Write(briefFixture()))
		require.NoError(t, r.Close())
	})

	t.Run("unknown format is rejected", func(t *testing.T) {
		_, err := New("sarif", "")
		assert.Error(t, err)
	})

	t.Run("nil brief is rejected", func(t *testing.T) {
		r, err := New("markdown", "")
		require.NoError(t, err)
		assert.Error(t, r.Write(nil))
	})
}
