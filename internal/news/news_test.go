package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/equity-cli/internal/fetcher"
	"github.com/sells-group/equity-cli/internal/model"
)

func testFetcher() *fetcher.Client {
	return fetcher.New(fetcher.Options{
		RateLimiters: map[string]*rate.Limiter{},
		Sleep:        func(_ context.Context, _ time.Duration) {},
	})
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"two positive no negative", "strong growth in cloud revenue", 1.0},
		{"one each", "strong quarter despite margin risk", 0.0},
		{"no keywords", "the company reported results", 0.0},
		{"mostly negative", "loss deepens on weak demand and supply risk", -1.0},
		{"case insensitive", "Strong GROWTH ahead", 1.0},
		{"two to one", "growth and a beat, but some risk", 0.33},
		// Counting is by substring, so "slowing" matches both "slow"
		// and "win": 1 positive, 3 negative.
		{"substring matches inside words", "loss widens on slowing demand and supply risk", -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.text))
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]model.Article{{Sentiment: 1.0}, {Sentiment: 0.0}, {Sentiment: -0.5}})
	assert.Equal(t, 0.17, s.Average)
	assert.Equal(t, 3, s.ArticleCount)

	assert.Equal(t, model.SentimentSummary{}, Summarize(nil))
}

func TestNewsAPIHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "AMZN", q.Get("q"))
		assert.Equal(t, "en", q.Get("language"))
		assert.Equal(t, "publishedAt", q.Get("sortBy"))
		assert.Equal(t, "10", q.Get("pageSize"))
		assert.Equal(t, "test-key", q.Get("apiKey"))
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"articles": [
				{
					"title": "AMZN posts strong growth",
					"description": "Revenue growth beat expectations",
					"url": "https://example.com/a",
					"publishedAt": "2025-08-28T12:00:00Z",
					"source": {"name": "Example Wire"}
				},
				{
					"title": "Margin concern",
					"description": "Analysts flag margin risk and slowing demand",
					"url": "https://example.com/b",
					"publishedAt": "2025-08-27T09:00:00Z",
					"source": {"name": "Example Wire"}
				}
			]
		}`))
	}))
	defer srv.Close()

	p := NewNewsAPI(testFetcher(), "test-key", WithNewsAPIBaseURL(srv.URL))
	articles, err := p.Headlines(context.Background(), "amzn")
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "AMZN posts strong growth", articles[0].Title)
	assert.Equal(t, "2025-08-28", articles[0].PublishedAt)
	assert.Equal(t, "Example Wire", articles[0].Source)
	assert.Equal(t, 1.0, articles[0].Sentiment)
	// "slowing" in the description counts as both "slow" and "win".
	assert.Equal(t, -0.33, articles[1].Sentiment)
}

func TestYahooHeadlines(t *testing.T) {
	now := time.Date(2025, 8, 31, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AMZN", r.URL.Query().Get("s"))
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel>
  <item>
    <title>Cloud unit shows strong growth</title>
    <description>growth beat</description>
    <link>https://example.com/1</link>
    <pubDate>Fri, 29 Aug 2025 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Old story</title>
    <description>stale</description>
    <link>https://example.com/2</link>
    <pubDate>Fri, 01 Aug 2025 10:00:00 +0000</pubDate>
  </item>
</channel></rss>`))
	}))
	defer srv.Close()

	p := NewYahoo(testFetcher(), WithYahooBaseURL(srv.URL), WithYahooNow(func() time.Time { return now }))
	articles, err := p.Headlines(context.Background(), "AMZN")
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Cloud unit shows strong growth", articles[0].Title)
	assert.Equal(t, "2025-08-29", articles[0].PublishedAt)
	assert.Equal(t, "Yahoo Finance", articles[0].Source)
	assert.Equal(t, 1.0, articles[0].Sentiment)
}

func TestChainFallsBack(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer failing.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel>
  <item><title>headline</title><description>strong growth</description>
  <link>https://example.com/x</link><pubDate>Sat, 30 Aug 2025 10:00:00 +0000</pubDate></item>
</channel></rss>`))
	}))
	defer working.Close()

	now := time.Date(2025, 8, 31, 12, 0, 0, 0, time.UTC)
	chain := NewChain(
		NewNewsAPI(testFetcher(), "bad-key", WithNewsAPIBaseURL(failing.URL)),
		NewYahoo(testFetcher(), WithYahooBaseURL(working.URL), WithYahooNow(func() time.Time { return now })),
	)

	articles, err := chain.Headlines(context.Background(), "AMZN")
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "headline", articles[0].Title)
}

func TestChainAllFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer failing.Close()

	chain := NewChain(NewNewsAPI(testFetcher(), "k", WithNewsAPIBaseURL(failing.URL)))
	_, err := chain.Headlines(context.Background(), "AMZN")
	require.Error(t, err)
}
