package trends

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"aiblog/internal/config"
)

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Tech Daily</title>
<description>News</description>
<item><title>Chips get smaller</title><link>https://x/1</link><description>&lt;p&gt;A &lt;b&gt;3nm&lt;/b&gt; story&lt;/p&gt;</description><pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate></item>
<item><title>Robots deliver food</title><link>https://x/2</link><description>Plain text</description></item>
<item><title>Third story</title><link>https://x/3</link></item>
</channel></rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Dev Community</title>
<entry><title>Rust in the kernel</title><link rel="alternate" href="https://y/1"/><summary>Discussion heats up</summary><updated>2024-05-01T10:00:00Z</updated></entry>
</feed>`

func newServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/rss":
			_, _ = w.Write([]byte(rssFixture))
		case "/atom":
			_, _ = w.Write([]byte(atomFixture))
		case "/garbage":
			_, _ = w.Write([]byte("<html>not a feed</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseFeed(t *testing.T) {
	feed, err := parseFeed([]byte(rssFixture), "u")
	if err != nil {
		t.Fatalf("parseFeed(rss) error = %v", err)
	}
	if feed.Title != "Tech Daily" || len(feed.Items) != 3 {
		t.Errorf("Unexpected RSS feed: %+v", feed)
	}
	if feed.Items[0].Published.IsZero() {
		t.Error("Expected pubDate to parse")
	}

	feed, err = parseFeed([]byte(atomFixture), "u")
	if err != nil {
		t.Fatalf("parseFeed(atom) error = %v", err)
	}
	if feed.Title != "Dev Community" || feed.Items[0].Link != "https://y/1" {
		t.Errorf("Unexpected Atom feed: %+v", feed)
	}
	if feed.Items[0].Published.IsZero() {
		t.Error("Expected updated date to be used when published is missing")
	}

	if _, err := parseFeed([]byte("<html/>"), "u"); err == nil {
		t.Error("Expected error for non-feed document")
	}
}

func TestCleanHTML(t *testing.T) {
	tests := map[string]string{
		"<p>A <b>3nm</b> story</p>":           "A 3nm story",
		"plain   text\n here":                 "plain text here",
		"":                                    "",
		"<script>alert(1)</script><i>hi</i>": "hi",
	}
	for in, want := range tests {
		if got := CleanHTML(in); got != want {
			t.Errorf("CleanHTML(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAggregatorContext(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)

	agg := NewAggregator(config.Trends{
		Feeds:           []string{srv.URL + "/rss", srv.URL + "/missing", srv.URL + "/garbage", srv.URL + "/atom"},
		MaxItemsPerFeed: 2,
		Timeout:         "5s",
		CacheTTL:        "1m",
	})

	text, err := agg.Context(context.Background())
	if err != nil {
		t.Fatalf("Context() error = %v", err)
	}

	for _, want := range []string{"## Tech Daily", "- Chips get smaller: A 3nm story", "- Robots deliver food: Plain text", "## Dev Community", "- Rust in the kernel: Discussion heats up"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected context to contain %q, got:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Third story") {
		t.Error("Expected max_items_per_feed to cap items")
	}

	before := atomic.LoadInt32(&hits)
	again, err := agg.Context(context.Background())
	if err != nil || again != text {
		t.Fatalf("Expected cached context, got err=%v", err)
	}
	if atomic.LoadInt32(&hits) != before {
		t.Error("Expected cached call to skip fetching")
	}

	agg.Invalidate()
	if _, err := agg.Context(context.Background()); err != nil {
		t.Fatalf("Context() after invalidate error = %v", err)
	}
	if atomic.LoadInt32(&hits) == before {
		t.Error("Expected refetch after invalidate")
	}
}

func TestAggregatorAllFeedsFail(t *testing.T) {
	var hits int32
	srv := newServer(t, &hits)

	agg := NewAggregator(config.Trends{Feeds: []string{srv.URL + "/missing", srv.URL + "/garbage"}})
	if _, err := agg.Context(context.Background()); err == nil {
		t.Fatal("Expected error when every feed fails")
	}

	empty := NewAggregator(config.Trends{})
	if _, err := empty.Context(context.Background()); err == nil {
		t.Fatal("Expected error with no feeds configured")
	}
}
