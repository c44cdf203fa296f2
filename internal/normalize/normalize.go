// Package normalize reduces source-specific payload shapes (NVD advisories,
// OTX indicators, RSS feed items) to the canonical UnifiedThreat entity.
//
// All three conversions are total over well-formed input: missing optional
// fields never fail, only a genuinely absent natural key does, reported as a
// MissingKeyError. Identifiers are deterministic so that re-normalizing the
// same payload produces the same entity.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/delvn/threatbrief/api/schemas"
)

// json sorts map keys so feed-item content fingerprints stay stable across
// runs regardless of payload field order.
var json = jsoniter.Config{SortMapKeys: true, EscapeHTML: false}.Froze()

// Advisory converts an NVD-shaped vulnerability advisory. The natural key is
// the CVE id, found either on the nested cve block or at the top level.
func Advisory(payload Payload) (*schemas.UnifiedThreat, error) {
	cve := cveBlock(payload)
	cveID := stringField(cve, "id")
	if cveID == "" {
		cveID = stringField(payload, "id", "cve_id")
	}
	if cveID == "" {
		return nil, &schemas.MissingKeyError{Source: "nvd", Key: "cve id"}
	}

	summary := advisorySummary(cve)
	if summary == "" {
		summary = fmt.Sprintf("NVD record for %s", cveID)
	}

	published := timeField(payload, "published")
	if published == nil {
		published = timeField(cve, "published")
	}
	if published == nil {
		published = timeField(payload, "published_at")
	}
	observed := timeField(payload, "lastModified")
	if observed == nil {
		observed = timeField(cve, "lastModified")
	}
	if observed == nil {
		observed = timeField(payload, "updated", "observed_at")
	}

	return &schemas.UnifiedThreat{
		ID:          "nvd:" + cveID,
		Source:      "nvd",
		Type:        schemas.ThreatTypeCVE,
		Title:       cveID,
		Summary:     summary,
		PublishedAt: published,
		ObservedAt:  observed,
		Severity:    advisorySeverity(payload, cve),
		Indicators:  []schemas.Indicator{{Type: "cve", Value: cveID}},
		Tags:        []string{"cve"},
		References:  advisoryReferences(cve),
		Raw:         payload,
	}, nil
}

// cveBlock returns the nested cve object when present, otherwise the payload
// itself (some mirrors flatten the advisory).
func cveBlock(payload Payload) Payload {
	if nested, ok := payload["cve"].(map[string]any); ok {
		return nested
	}
	return payload
}

// advisorySummary prefers the English description entry and falls back to
// the first non-empty one.
func advisorySummary(cve Payload) string {
	descriptions, ok := cve["descriptions"].([]any)
	if !ok {
		return ""
	}
	var fallback string
	for _, entry := range descriptions {
		desc, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		value := toString(desc["value"])
		if value == "" {
			continue
		}
		if toString(desc["lang"]) == "en" {
			return value
		}
		if fallback == "" {
			fallback = value
		}
	}
	return fallback
}

// advisorySeverity walks the CVSS metric versions newest-first and takes the
// first present numeric base score; a plain severity field is the last resort.
func advisorySeverity(payload, cve Payload) *float64 {
	metrics, ok := cve["metrics"].(map[string]any)
	if !ok {
		return severityField(payload, "severity")
	}
	for _, key := range []string{"cvssMetricV31", "cvssMetricV30", "cvssMetricV2"} {
		entries, ok := metrics[key].([]any)
		if !ok {
			continue
		}
		for _, entry := range entries {
			metric, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if data, ok := metric["cvssData"].(map[string]any); ok {
				if score := parseSeverity(data["baseScore"]); score != nil {
					return score
				}
			}
			if score := parseSeverity(metric["baseScore"]); score != nil {
				return score
			}
		}
	}
	return severityField(payload, "severity")
}

func advisoryReferences(cve Payload) []string {
	entries, ok := cve["references"].([]any)
	if !ok {
		return nil
	}
	urls := make([]string, 0, len(entries))
	for _, entry := range entries {
		if ref, ok := entry.(map[string]any); ok {
			urls = append(urls, toString(ref["url"]))
		}
	}
	return unique(urls)
}

// Indicator converts an OTX-shaped threat-intelligence indicator. The
// natural key is the indicator value.
func Indicator(payload Payload) (*schemas.UnifiedThreat, error) {
	value := stringField(payload, "indicator", "value", "ioc")
	if value == "" {
		return nil, &schemas.MissingKeyError{Source: "otx", Key: "indicator value"}
	}

	indicatorType := strings.ToLower(stringField(payload, "type", "indicator_type"))
	if indicatorType == "" {
		indicatorType = "indicator"
	}

	title := stringField(payload, "title")
	if title == "" {
		title = fmt.Sprintf("%s: %s", indicatorType, value)
	}

	references := make([]string, 0, 4)
	for _, key := range []string{"url", "reference"} {
		if ref := stringField(payload, key); ref != "" {
			references = append(references, ref)
		}
	}
	references = append(references, stringList(payload["references"])...)

	tags := append([]string{indicatorType}, stringList(payload["tags"])...)

	return &schemas.UnifiedThreat{
		ID:          fmt.Sprintf("otx:%s:%s", indicatorType, value),
		Source:      "otx",
		Type:        schemas.ThreatTypeIndicator,
		Title:       title,
		Summary:     stringField(payload, "description"),
		PublishedAt: timeField(payload, "created", "published_at"),
		ObservedAt:  timeField(payload, "modified", "observed_at"),
		Severity:    severityField(payload, "severity", "priority"),
		Indicators:  []schemas.Indicator{{Type: indicatorType, Value: value}},
		Tags:        unique(tags),
		References:  unique(references),
		Raw:         payload,
	}, nil
}

// FeedItem converts an RSS/Atom-shaped news item. When no guid or link is
// present, the id falls back to a content hash over title/summary/payload so
// re-ingesting the same article stays idempotent without a network-assigned
// identifier.
func FeedItem(payload Payload) (*schemas.UnifiedThreat, error) {
	source := stringField(payload, "source", "feed")
	if source == "" {
		source = "rss"
	}

	title := stringField(payload, "title")
	baseID := stringField(payload, "id", "guid", "link")
	if baseID == "" {
		if title == "" {
			return nil, &schemas.MissingKeyError{Source: "rss", Key: "guid, link, or title"}
		}
		fingerprint := title
		if summary := stringField(payload, "summary", "description"); summary != "" {
			fingerprint += "\n" + summary
		} else if encoded, err := json.Marshal(payload); err == nil {
			fingerprint += "\n" + string(encoded)
		}
		digest := sha256.Sum256([]byte(fingerprint))
		baseID = hex.EncodeToString(digest[:])[:16]
	}

	if title == "" {
		title = "Untitled security item"
	}

	return &schemas.UnifiedThreat{
		ID:          source + ":" + baseID,
		Source:      source,
		Type:        schemas.ThreatTypeNews,
		Title:       title,
		Summary:     stringField(payload, "summary", "description"),
		PublishedAt: timeField(payload, "published", "published_at"),
		ObservedAt:  timeField(payload, "updated", "observed_at"),
		Severity:    severityField(payload, "severity"),
		Tags:        feedTags(payload),
		References:  feedReferences(payload),
		Raw:         payload,
	}, nil
}

// feedTags flattens plain-string, []string, and {"term": ...} tag shapes.
func feedTags(payload Payload) []string {
	items, ok := payload["tags"].([]any)
	if !ok {
		return unique(stringList(payload["tags"]))
	}
	tags := make([]string, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			tags = append(tags, toString(obj["term"]))
			continue
		}
		tags = append(tags, toString(item))
	}
	return unique(tags)
}

func feedReferences(payload Payload) []string {
	references := make([]string, 0, 4)
	if link := stringField(payload, "link"); link != "" {
		references = append(references, link)
	}
	if links, ok := payload["links"].([]any); ok {
		for _, entry := range links {
			if obj, ok := entry.(map[string]any); ok {
				if href := toString(obj["href"]); href != "" {
					references = append(references, href)
				}
			}
		}
	}
	return unique(references)
}
