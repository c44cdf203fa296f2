package feeds

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/delvn/threatbrief/internal/config"
	"github.com/delvn/threatbrief/internal/normalize"
)

const (
	nvdEndpoint          = "https://services.nvd.nist.gov/rest/json/cves/2.0"
	nvdMaxResultsPerPage = 2000
	nvdTimeLayout        = "2006-01-02T15:04:05.000"
)

// NVDClient pages through the NVD CVE API. Requests are rate limited because
// NVD throttles aggressively for keyless callers.
type NVDClient struct {
	endpoint       string
	apiKey         string
	resultsPerPage int
	fetcher        *httpFetcher
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// NewNVDClient builds a client from the feed configuration.
func NewNVDClient(cfg config.NVDConfig, timeout time.Duration, logger *zap.Logger) (*NVDClient, error) {
	if cfg.ResultsPerPage < 1 {
		return nil, fmt.Errorf("results_per_page must be >= 1, got %d", cfg.ResultsPerPage)
	}
	if cfg.ResultsPerPage > nvdMaxResultsPerPage {
		return nil, fmt.Errorf("results_per_page must be <= %d for the NVD API, got %d", nvdMaxResultsPerPage, cfg.ResultsPerPage)
	}

	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 0.5
	}

	log := logger.Named("feeds.nvd")
	return &NVDClient{
		endpoint:       nvdEndpoint,
		apiKey:         cfg.APIKey,
		resultsPerPage: cfg.ResultsPerPage,
		fetcher:        newHTTPFetcher(timeout, log),
		limiter:        rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:         log,
	}, nil
}

type nvdResponse struct {
	TotalResults    *int             `json:"totalResults"`
	Vulnerabilities []map[string]any `json:"vulnerabilities"`
}

// FetchRecent returns minimal CVE payloads published at or after pubStart,
// paging until the API reports exhaustion.
func (c *NVDClient) FetchRecent(ctx context.Context, pubStart time.Time) ([]normalize.Payload, error) {
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"apiKey": c.apiKey}
	}

	var payloads []normalize.Payload
	startIndex := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		params := url.Values{
			"startIndex":     {strconv.Itoa(startIndex)},
			"resultsPerPage": {strconv.Itoa(c.resultsPerPage)},
			"pubStartDate":   {pubStart.UTC().Format(nvdTimeLayout)},
		}

		var resp nvdResponse
		if err := c.fetcher.getJSON(ctx, c.endpoint, params, headers, &resp); err != nil {
			return nil, fmt.Errorf("NVD fetch failed at index %d: %w", startIndex, err)
		}

		if len(resp.Vulnerabilities) == 0 {
			break
		}

		for _, vulnerability := range resp.Vulnerabilities {
			payload := minimalCVEPayload(vulnerability)
			if payload != nil {
				payloads = append(payloads, payload)
			}
		}

		startIndex += len(resp.Vulnerabilities)
		if resp.TotalResults != nil && startIndex >= *resp.TotalResults {
			break
		}
		if resp.TotalResults == nil && len(resp.Vulnerabilities) < c.resultsPerPage {
			break
		}
	}

	c.logger.Debug("NVD fetch complete", zap.Int("payloads", len(payloads)))
	return payloads, nil
}

// minimalCVEPayload keeps only the cve block and its publication timestamps.
func minimalCVEPayload(vulnerability map[string]any) normalize.Payload {
	cve, ok := vulnerability["cve"].(map[string]any)
	if !ok {
		return nil
	}

	payload := normalize.Payload{"cve": cve}
	for _, field := range []string{"published", "lastModified"} {
		if value, ok := vulnerability[field]; ok && value != nil {
			payload[field] = value
		}
	}
	return payload
}
