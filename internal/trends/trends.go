// Package trends aggregates technology news feeds into the plain-text trend
// context handed to the topic selector.
package trends

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/patrickmn/go-cache"

	"aiblog/internal/config"
	"aiblog/internal/logger"
	"aiblog/internal/textutil"
)

const (
	contextCacheKey      = "trend-context"
	maxDescriptionLength = 200
)

// Aggregator fetches the configured feeds and renders them as one text blob.
type Aggregator struct {
	feeds     []string
	maxItems  int
	userAgent string
	client    *http.Client
	cache     *cache.Cache
	log       *slog.Logger
}

// NewAggregator creates an aggregator from trend configuration.
func NewAggregator(cfg config.Trends) *Aggregator {
	ttl := config.Duration(cfg.CacheTTL, 30*time.Minute)
	maxItems := cfg.MaxItemsPerFeed
	if maxItems <= 0 {
		maxItems = 10
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "aiblog/1.0"
	}
	return &Aggregator{
		feeds:     cfg.Feeds,
		maxItems:  maxItems,
		userAgent: userAgent,
		client:    &http.Client{Timeout: config.Duration(cfg.Timeout, 15*time.Second)},
		cache:     cache.New(ttl, 2*ttl),
		log:       logger.Get().With("component", "trends"),
	}
}

// Context returns the aggregated trend text, served from cache when fresh.
// Failing feeds are skipped; an error is returned only when none succeed.
func (a *Aggregator) Context(ctx context.Context) (string, error) {
	if cached, ok := a.cache.Get(contextCacheKey); ok {
		return cached.(string), nil
	}
	if len(a.feeds) == 0 {
		return "", fmt.Errorf("no trend feeds configured")
	}

	var fetched []*Feed
	for _, url := range a.feeds {
		feed, err := a.fetchFeed(ctx, url)
		if err != nil {
			a.log.Warn("Skipping trend feed", "url", url, "error", err.Error())
			continue
		}
		fetched = append(fetched, feed)
	}
	if len(fetched) == 0 {
		return "", fmt.Errorf("all %d trend feeds failed", len(a.feeds))
	}

	text := Render(fetched, a.maxItems)
	a.cache.Set(contextCacheKey, text, cache.DefaultExpiration)
	a.log.Info("Trend context aggregated", "feeds", len(fetched), "chars", len(text))
	return text, nil
}

// Invalidate drops the cached context.
func (a *Aggregator) Invalidate() {
	a.cache.Delete(contextCacheKey)
}

// Render formats feeds as markdown-ish sections:
//
//	## Feed title
//	- Item title: short description
func Render(feeds []*Feed, maxItems int) string {
	var sb strings.Builder
	for _, feed := range feeds {
		if len(feed.Items) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		title := feed.Title
		if title == "" {
			title = feed.URL
		}
		fmt.Fprintf(&sb, "## %s\n", title)

		for i, item := range feed.Items {
			if maxItems > 0 && i >= maxItems {
				break
			}
			desc := textutil.Truncate(CleanHTML(item.Description), maxDescriptionLength)
			if desc == "" {
				fmt.Fprintf(&sb, "- %s\n", item.Title)
				continue
			}
			fmt.Fprintf(&sb, "- %s: %s\n", item.Title, desc)
		}
	}
	return strings.TrimSpace(sb.String())
}

// CleanHTML strips markup from a feed description and collapses whitespace.
func CleanHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
