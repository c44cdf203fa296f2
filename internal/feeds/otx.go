package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/delvn/threatbrief/internal/config"
	"github.com/delvn/threatbrief/internal/normalize"
)

const (
	otxSubscribedURL = "https://otx.alienvault.com/api/v1/pulses/subscribed"
	otxPublicURL     = "https://otx.alienvault.com/api/v1/pulses"
)

// OTXClient pulls recent indicators from AlienVault OTX pulses. Without an
// API key the subscribed endpoint rejects the call, in which case the client
// falls back to the public pulse listing.
type OTXClient struct {
	apiKey  string
	limit   int
	fetcher *httpFetcher
	logger  *zap.Logger
}

// NewOTXClient builds a client from the feed configuration.
func NewOTXClient(cfg config.OTXConfig, timeout time.Duration, logger *zap.Logger) *OTXClient {
	limit := cfg.Limit
	if limit < 1 {
		limit = 1
	}
	log := logger.Named("feeds.otx")
	return &OTXClient{
		apiKey:  cfg.APIKey,
		limit:   limit,
		fetcher: newHTTPFetcher(timeout, log),
		logger:  log,
	}
}

// FetchRecent returns up to the configured limit of indicator payloads.
func (c *OTXClient) FetchRecent(ctx context.Context) ([]normalize.Payload, error) {
	return c.fetchRecentFrom(ctx, otxSubscribedURL, otxPublicURL)
}

func (c *OTXClient) fetchRecentFrom(ctx context.Context, subscribedURL, publicURL string) ([]normalize.Payload, error) {
	params := url.Values{"limit": {strconv.Itoa(c.limit)}}

	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"X-OTX-API-KEY": c.apiKey}
	}

	var payload any
	err := c.fetcher.getJSON(ctx, subscribedURL, params, headers, &payload)
	if err != nil {
		var statusErr *StatusError
		if headers == nil && errors.As(err, &statusErr) &&
			(statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
			c.logger.Debug("Subscribed pulses rejected without a key, falling back to public pulses")
			if err := c.fetcher.getJSON(ctx, publicURL, params, nil, &payload); err != nil {
				return nil, fmt.Errorf("OTX public fetch failed: %w", err)
			}
		} else {
			return nil, fmt.Errorf("OTX fetch failed: %w", err)
		}
	}

	return extractIndicators(payload, c.limit), nil
}

func extractIndicators(payload any, limit int) []normalize.Payload {
	var indicators []normalize.Payload

	for _, item := range extractFeedItems(payload) {
		if nested, ok := item["indicators"].([]any); ok {
			for _, entry := range nested {
				indicator, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				normalized := buildIndicatorPayload(indicator, item)
				if normalized == nil {
					continue
				}
				indicators = append(indicators, normalized)
				if len(indicators) >= limit {
					return indicators
				}
			}
			continue
		}

		normalized := buildIndicatorPayload(item, nil)
		if normalized == nil {
			continue
		}
		indicators = append(indicators, normalized)
		if len(indicators) >= limit {
			return indicators
		}
	}
	return indicators
}

func extractFeedItems(payload any) []map[string]any {
	switch typed := payload.(type) {
	case []any:
		var items []map[string]any
		for _, entry := range typed {
			if item, ok := entry.(map[string]any); ok {
				items = append(items, item)
			}
		}
		return items
	case map[string]any:
		if results, ok := typed["results"].([]any); ok {
			var items []map[string]any
			for _, entry := range results {
				if item, ok := entry.(map[string]any); ok {
					items = append(items, item)
				}
			}
			return items
		}
		if looksLikeIndicator(typed) {
			return []map[string]any{typed}
		}
	}
	return nil
}

func looksLikeIndicator(payload map[string]any) bool {
	for _, key := range []string{"indicator", "value", "ioc"} {
		if asText(payload[key]) != "" {
			return true
		}
	}
	return false
}

// buildIndicatorPayload normalizes the indicator value key and backfills
// missing context fields from the enclosing pulse.
func buildIndicatorPayload(indicator, pulse map[string]any) normalize.Payload {
	value := asText(indicator["indicator"])
	if value == "" {
		value = asText(indicator["value"])
	}
	if value == "" {
		value = asText(indicator["ioc"])
	}
	if value == "" {
		return nil
	}

	payload := make(normalize.Payload, len(indicator)+4)
	for k, v := range indicator {
		payload[k] = v
	}
	if asText(payload["indicator"]) == "" {
		payload["indicator"] = value
	}

	if pulse == nil {
		return payload
	}

	backfill := func(key string, pulseValue string) {
		if pulseValue != "" && asText(payload[key]) == "" {
			payload[key] = pulseValue
		}
	}
	backfill("title", asText(pulse["name"]))
	backfill("description", asText(pulse["description"]))
	backfill("created", asText(pulse["created"]))
	backfill("modified", asText(pulse["modified"]))
	backfill("url", asText(pulse["permalink"]))

	if refs := toStringList(pulse["references"]); len(refs) > 0 {
		if _, ok := payload["references"].([]any); !ok {
			if _, ok := payload["references"].([]string); !ok {
				payload["references"] = refs
			}
		}
	}
	if tags := toStringList(pulse["tags"]); len(tags) > 0 {
		if _, ok := payload["tags"].([]any); !ok {
			if _, ok := payload["tags"].([]string); !ok {
				payload["tags"] = tags
			}
		}
	}
	return payload
}

func asText(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", typed))
	}
}

func toStringList(value any) []string {
	entries, ok := value.([]any)
	if !ok {
		return nil
	}
	var items []string
	for _, entry := range entries {
		var text string
		if m, ok := entry.(map[string]any); ok {
			for _, key := range []string{"name", "tag", "term", "value"} {
				if text = asText(m[key]); text != "" {
					break
				}
			}
		} else {
			text = asText(entry)
		}
		if text != "" {
			items = append(items, text)
		}
	}
	return items
}
