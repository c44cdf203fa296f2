// Package relevance ranks a unified threat against a consumer's technology
// stack profile into an ordinal tier.
package relevance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/delvn/threatbrief/api/schemas"
	"github.com/delvn/threatbrief/internal/stack"
)

// Tier is the ordinal relevance classification, HIGH > MEDIUM > LOW > NONE.
type Tier string

const (
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierLow    Tier = "LOW"
	TierNone   Tier = "NONE"
)

// tierOrder maps tiers to their sort rank, best first. Unknown tiers rank
// last.
var tierOrder = map[Tier]int{
	TierHigh:   0,
	TierMedium: 1,
	TierLow:    2,
	TierNone:   3,
}

// Rank returns the sort rank of a tier, HIGH first.
func Rank(t Tier) int {
	if order, ok := tierOrder[t]; ok {
		return order
	}
	return 99
}

const highSeverityFloor = 7.0

// Score classifies a threat's relevance to the stack profile.
//
// Matching is plain case-insensitive substring search over the threat's
// content text: no stemming, no fuzzy matching. Product terms take priority
// over platform/keyword terms; a term present in both lists is only ever
// reported as a product match. Pure; safe for concurrent use.
func Score(threat *schemas.UnifiedThreat, profile *stack.Profile) (Tier, []string) {
	contentText := strings.ToLower(threat.ContentText())

	productTerms := lowerSet(profile.Products)
	weakTerms := lowerSet(append(append([]string{}, profile.Platforms...), profile.Keywords...))
	for term := range productTerms {
		delete(weakTerms, term)
	}

	productMatches := findMatches(contentText, productTerms)
	weakMatches := findMatches(contentText, weakTerms)

	var reasons []string
	if len(productMatches) > 0 {
		reasons = append(reasons, "Product keyword match: "+strings.Join(productMatches, ", "))
	}

	severity := 0.0
	if threat.Severity != nil {
		severity = *threat.Severity
	}
	exploited := false
	for _, tag := range threat.Tags {
		if strings.Contains(strings.ToLower(tag), "exploited") {
			exploited = true
			break
		}
	}

	switch {
	case len(productMatches) > 0 && (severity >= highSeverityFloor || exploited):
		if severity >= highSeverityFloor {
			reasons = append(reasons, fmt.Sprintf("Severity %.1f is high (>= %.1f)", severity, highSeverityFloor))
		}
		if exploited {
			reasons = append(reasons, "Threat is tagged as exploited")
		}
		return TierHigh, reasons
	case len(productMatches) > 0:
		reasons = append(reasons, "Product matched without high severity or exploited signal")
		return TierMedium, reasons
	case len(weakMatches) > 0:
		reasons = append(reasons, "Weak keyword match: "+strings.Join(weakMatches, ", "))
		return TierLow, reasons
	default:
		return TierNone, []string{"No stack keyword matched threat content"}
	}
}

func lowerSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		out[strings.ToLower(v)] = struct{}{}
	}
	return out
}

// findMatches returns the sorted terms appearing verbatim as substrings.
func findMatches(contentText string, terms map[string]struct{}) []string {
	var matches []string
	for term := range terms {
		if strings.Contains(contentText, term) {
			matches = append(matches, term)
		}
	}
	sort.Strings(matches)
	return matches
}
