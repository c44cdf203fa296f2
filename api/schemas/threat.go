package schemas

import (
	"encoding/json"
	"strings"
	"time"
)

// -- Unified Threat Schemas --

// ThreatType classifies the shape of the source record a threat was
// normalized from. The values are lowercase to align with database ENUMs.
type ThreatType string

// Constants defining the supported canonical threat types.
const (
	ThreatTypeCVE       ThreatType = "cve"       // Vulnerability advisory (e.g. an NVD record).
	ThreatTypeIndicator ThreatType = "indicator" // Threat-intelligence indicator of compromise.
	ThreatTypeNews      ThreatType = "news"      // Security news or advisory feed item.
)

// Indicator is a single typed observable attached to a threat, such as
// ("cve", "CVE-2026-1111") or ("ip", "1.2.3.4").
type Indicator struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// UnifiedThreat is the canonical cross-source threat record. Every source
// payload (advisory, indicator, feed item) is reduced to this shape before
// storage, correlation, and relevance scoring.
//
// The ID is deterministic: source plus natural key (e.g. "nvd:CVE-2026-1111",
// "otx:ip:1.2.3.4"). Re-normalizing the same payload yields the same ID, so
// store writes are idempotent upserts. Threats are never mutated in place.
type UnifiedThreat struct {
	ID      string     `json:"id"`
	Source  string     `json:"source"` // Lowercase origin tag: "nvd", "otx", feed hostname.
	Type    ThreatType `json:"type"`
	Title   string     `json:"title"`
	Summary string     `json:"summary,omitempty"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
	ObservedAt  *time.Time `json:"observed_at,omitempty"`

	// Severity is in [0,10] when present. Out-of-range source values are
	// discarded during normalization, not clamped.
	Severity *float64 `json:"severity,omitempty"`

	Indicators []Indicator `json:"indicators,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
	References []string    `json:"references,omitempty"`

	// Raw retains the original source payload for audit and debugging.
	// It is required and survives storage round-trips as JSONB.
	Raw map[string]any `json:"raw"`
}

// ContentText returns the single text surface used for extraction, relevance
// matching, and embedding. Any text-bearing field not concatenated here is
// invisible to scoring.
func (t *UnifiedThreat) ContentText() string {
	parts := make([]string, 0, 4+2*len(t.Indicators)+len(t.Tags)+len(t.References))
	parts = append(parts, t.ID, t.Title)
	if t.Summary != "" {
		parts = append(parts, t.Summary)
	}
	for _, ind := range t.Indicators {
		parts = append(parts, ind.Type, ind.Value)
	}
	parts = append(parts, t.Tags...)
	parts = append(parts, t.References...)

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

// Validate checks the canonical invariants: ID, Source, Type, and Title must
// be non-empty, Raw must be present, and Severity (when set) must be in
// [0,10]. All violations are reported as ErrValidation.
func (t *UnifiedThreat) Validate() error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	case strings.TrimSpace(t.Source) == "":
		return &ValidationError{Field: "source", Reason: "must not be empty"}
	case strings.TrimSpace(string(t.Type)) == "":
		return &ValidationError{Field: "type", Reason: "must not be empty"}
	case strings.TrimSpace(t.Title) == "":
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	case t.Raw == nil:
		return &ValidationError{Field: "raw", Reason: "original payload is required"}
	}
	if t.Severity != nil && (*t.Severity < 0 || *t.Severity > 10) {
		return &ValidationError{Field: "severity", Reason: "must be within [0,10]"}
	}
	return nil
}

// RawJSON renders the retained payload for storage. A nil map marshals to
// "{}" rather than "null" so JSONB columns stay queryable.
func (t *UnifiedThreat) RawJSON() (json.RawMessage, error) {
	if t.Raw == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(t.Raw)
	if err != nil {
		return nil, err
	}
	return b, nil
}
