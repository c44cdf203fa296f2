package feeds

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/delvn/threatbrief/internal/normalize"
)

// RSSClient fetches and parses RSS 2.0 and Atom feeds into flat item payloads.
type RSSClient struct {
	fetcher *httpFetcher
	logger  *zap.Logger
}

// NewRSSClient builds a feed client with the given request timeout.
func NewRSSClient(timeout time.Duration, logger *zap.Logger) *RSSClient {
	log := logger.Named("feeds.rss")
	return &RSSClient{
		fetcher: newHTTPFetcher(timeout, log),
		logger:  log,
	}
}

// FetchFeed downloads one feed and returns its entries as payloads ready for
// normalization.
func (c *RSSClient) FetchFeed(ctx context.Context, feedURL string) ([]normalize.Payload, error) {
	body, err := c.fetcher.get(ctx, feedURL, nil, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml, text/xml",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}
	return ParseFeed(body)
}

// ParseFeed decodes an RSS or Atom document into item payloads.
func ParseFeed(data []byte) ([]normalize.Payload, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse feed XML: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("feed document has no root element")
	}

	switch root.Tag {
	case "rss":
		var items []normalize.Payload
		for _, item := range root.FindElements("./channel/item") {
			items = append(items, rssItem(item))
		}
		return items, nil
	case "feed":
		var items []normalize.Payload
		for _, entry := range root.FindElements("./entry") {
			items = append(items, atomEntry(entry))
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported feed root element %q", root.Tag)
	}
}

func rssItem(item *etree.Element) normalize.Payload {
	payload := normalize.Payload{
		"title":   childText(item, "title"),
		"link":    childText(item, "link"),
		"summary": firstNonEmpty(childText(item, "description"), childText(item, "summary")),
		"published": firstNonEmpty(
			childText(item, "pubDate"),
			childText(item, "published"),
			childText(item, "updated"),
		),
	}

	if guid := childText(item, "guid"); guid != "" {
		payload["guid"] = guid
	}
	if updated := childText(item, "updated"); updated != "" {
		payload["updated"] = updated
	}
	if tags := childTexts(item, "category"); len(tags) > 0 {
		payload["tags"] = tags
	}
	return payload
}

func atomEntry(entry *etree.Element) normalize.Payload {
	payload := normalize.Payload{
		"title":   childText(entry, "title"),
		"summary": firstNonEmpty(childText(entry, "summary"), childText(entry, "content")),
		"published": firstNonEmpty(
			childText(entry, "published"),
			childText(entry, "updated"),
		),
	}

	if id := childText(entry, "id"); id != "" {
		payload["guid"] = id
	}
	if updated := childText(entry, "updated"); updated != "" {
		payload["updated"] = updated
	}

	var links []any
	for _, link := range entry.FindElements("./link") {
		href := strings.TrimSpace(link.SelectAttrValue("href", ""))
		if href == "" {
			continue
		}
		links = append(links, map[string]any{
			"href": href,
			"rel":  link.SelectAttrValue("rel", ""),
		})
		if payload["link"] == nil || payload["link"] == "" {
			rel := link.SelectAttrValue("rel", "")
			if rel == "" || rel == "alternate" {
				payload["link"] = href
			}
		}
	}
	if len(links) > 0 {
		payload["links"] = links
	}
	if payload["link"] == nil {
		payload["link"] = ""
	}

	var tags []string
	for _, category := range entry.FindElements("./category") {
		if term := strings.TrimSpace(category.SelectAttrValue("term", "")); term != "" {
			tags = append(tags, term)
		}
	}
	if len(tags) > 0 {
		payload["tags"] = tags
	}
	return payload
}

func childText(parent *etree.Element, tag string) string {
	if el := parent.FindElement("./" + tag); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

func childTexts(parent *etree.Element, tag string) []string {
	var texts []string
	for _, el := range parent.FindElements("./" + tag) {
		if text := strings.TrimSpace(el.Text()); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// FeedSource derives a stable source tag from a feed URL host. An unparseable
// URL falls back to the generic "rss" tag.
func FeedSource(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return "rss"
	}
	source := strings.ToLower(strings.TrimSpace(u.Host))
	source = strings.TrimPrefix(source, "www.")
	if source == "" {
		return "rss"
	}
	return strings.ReplaceAll(source, ":", "-")
}
