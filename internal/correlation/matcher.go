package correlation

import (
	"sort"
	"strings"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/extract"
)

const maxOverlapExamples = 3

// Match scores one source threat against nearest-neighbor candidate hits and
// returns threshold-filtered links, deduplicated by target id (highest
// confidence wins), sorted by descending confidence.
//
// Malformed candidates (empty id, self-reference) are skipped silently:
// correlation is best-effort enrichment, never a required step.
func Match(source *schemas.UnifiedThreat, hits []schemas.CandidateHit, minConfidence float64) []*schemas.CorrelationLink {
	sourceText := source.ContentText()
	sourceTokens := extract.Tokens(sourceText)
	sourceCVEs := extract.CVEs(sourceText)
	sourceIOCs := extract.IOCs(sourceText)

	threshold := clamp01(minConfidence)
	byTarget := make(map[string]*schemas.CorrelationLink)

	for _, hit := range hits {
		targetID := strings.TrimSpace(hit.ID)
		if targetID == "" || targetID == source.ID {
			continue
		}

		hitText := candidateText(&hit)
		shared, overlapReasons := sharedTermDetails(
			sourceTokens, extract.Tokens(hitText),
			sourceCVEs, extract.CVEs(hitText),
			sourceIOCs, extract.IOCs(hitText),
		)

		sameSource := strings.EqualFold(hit.Source, source.Source)
		confidence, reasons := Score(hit.Score, shared, sameSource)
		reasons = append(reasons, overlapReasons...)

		if confidence < threshold {
			continue
		}

		similarity := hit.Score
		link := schemas.NewCorrelationLink(source.ID, targetID, confidence, &similarity, reasons)
		if existing, ok := byTarget[targetID]; !ok || link.Confidence > existing.Confidence {
			byTarget[targetID] = link
		}
	}

	links := make([]*schemas.CorrelationLink, 0, len(byTarget))
	for _, link := range byTarget {
		links = append(links, link)
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Confidence > links[j].Confidence
	})
	return links
}

// candidateText builds the candidate's text surface from its available
// text-bearing fields, flattening indicator sub-objects.
func candidateText(hit *schemas.CandidateHit) string {
	parts := make([]string, 0, 8+len(hit.Tags)+len(hit.References)+2*len(hit.Indicators))
	parts = append(parts, hit.ID, hit.Source, hit.Type, hit.Title, hit.Summary, hit.Content)
	parts = append(parts, hit.Tags...)
	parts = append(parts, hit.References...)
	for _, ind := range hit.Indicators {
		parts = append(parts, ind.Type, ind.Value)
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

// sharedTermDetails computes the case-normalized union size of overlapping
// CVEs, IOCs, and tokens, plus overlap reasons. CVE overlap is reported
// first, then IOCs; plain token overlap is only mentioned when neither of
// the stronger signals occurred.
func sharedTermDetails(
	sourceTokens, targetTokens map[string]struct{},
	sourceCVEs, targetCVEs map[string]struct{},
	sourceIOCs, targetIOCs map[string]struct{},
) (int, []string) {
	tokenOverlap := intersect(sourceTokens, targetTokens)
	cveOverlap := intersect(sourceCVEs, targetCVEs)
	iocOverlap := intersect(sourceIOCs, targetIOCs)

	union := make(map[string]struct{}, len(tokenOverlap)+len(cveOverlap)+len(iocOverlap))
	for term := range tokenOverlap {
		union[term] = struct{}{}
	}
	for term := range cveOverlap {
		union[strings.ToLower(term)] = struct{}{}
	}
	for term := range iocOverlap {
		union[strings.ToLower(term)] = struct{}{}
	}

	var reasons []string
	if len(cveOverlap) > 0 {
		reasons = append(reasons, "Shared CVE identifiers: "+joinExamples(cveOverlap))
	}
	if len(iocOverlap) > 0 {
		reasons = append(reasons, "Shared IOCs: "+joinExamples(iocOverlap))
	}
	if len(tokenOverlap) > 0 && len(cveOverlap) == 0 && len(iocOverlap) == 0 {
		reasons = append(reasons, "Token overlap: "+joinExamples(tokenOverlap))
	}

	return len(union), reasons
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[string]struct{})
	for term := range a {
		if _, ok := b[term]; ok {
			out[term] = struct{}{}
		}
	}
	return out
}

// joinExamples lists up to three lexicographically sorted example values.
func joinExamples(terms map[string]struct{}) string {
	sorted := make([]string, 0, len(terms))
	for term := range terms {
		sorted = append(sorted, term)
	}
	sort.Strings(sorted)
	if len(sorted) > maxOverlapExamples {
		sorted = sorted[:maxOverlapExamples]
	}
	return strings.Join(sorted, ", ")
}
