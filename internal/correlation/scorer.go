// Package correlation fuses a vector-similarity signal with lexical overlap
// into a bounded confidence, and matches one threat against nearest-neighbor
// candidates to produce deduplicated correlation links.
package correlation

import "fmt"

const (
	similarityWeight = 0.85
	sharedTermBoost  = 0.05
	sharedTermCap    = 0.20
	// Cross-source corroboration is weighted above single-source
	// self-similarity.
	sameSourcePenalty = 0.08
)

// Score combines a raw similarity value, a shared-term count, and a
// same-source flag into a confidence in [0,1] plus human-readable reasons.
// Similarity outside [0,1] is clamped and noted. Pure; safe for concurrent
// use.
func Score(similarity float64, sharedTerms int, sameSource bool) (float64, []string) {
	normalized := clamp01(similarity)
	if sharedTerms < 0 {
		sharedTerms = 0
	}

	confidence := normalized * similarityWeight
	boost := float64(sharedTerms) * sharedTermBoost
	if boost > sharedTermCap {
		boost = sharedTermCap
	}
	confidence += boost

	reasons := []string{fmt.Sprintf("Vector similarity contribution: %.3f", normalized)}
	if similarity != normalized {
		reasons = append(reasons, "Similarity was clamped to the 0..1 range")
	}
	if sharedTerms > 0 {
		reasons = append(reasons, fmt.Sprintf("Shared term boost: +%.2f from %d overlapping terms", boost, sharedTerms))
	}

	if sameSource {
		confidence -= sameSourcePenalty
		reasons = append(reasons, fmt.Sprintf("Same-source penalty applied (-%.2f)", sameSourcePenalty))
	} else {
		reasons = append(reasons, "Cross-source match boosts confidence diversity")
	}

	return clamp01(confidence), reasons
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
