package news

import (
	"context"
	"encoding/xml"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/fetcher"
	"github.com/sells-group/equity-cli/internal/model"
)

const defaultYahooBaseURL = "https://feeds.finance.yahoo.com/rss/2.0/headline"

// YahooProvider is the keyless public fallback: the Yahoo Finance
// per-symbol headline RSS feed.
type YahooProvider struct {
	fetch   *fetcher.Client
	baseURL string
	now     func() time.Time
}

// YahooOption configures the provider.
type YahooOption func(*YahooProvider)

// WithYahooBaseURL overrides the feed base URL.
func WithYahooBaseURL(u string) YahooOption {
	return func(p *YahooProvider) { p.baseURL = u }
}

// WithYahooNow fixes the clock for testing.
func WithYahooNow(now func() time.Time) YahooOption {
	return func(p *YahooProvider) { p.now = now }
}

// NewYahoo creates the fallback provider.
func NewYahoo(fetch *fetcher.Client, opts ...YahooOption) *YahooProvider {
	p := &YahooProvider{
		fetch:   fetch,
		baseURL: defaultYahooBaseURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *YahooProvider) Name() string { return "yahoo-rss" }

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
}

// pubDate layouts seen in the wild for RSS feeds.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

// Headlines implements Provider. Items older than the lookback window are
// dropped; items with unparseable dates are kept with an empty date.
func (p *YahooProvider) Headlines(ctx context.Context, symbol string) ([]model.Article, error) {
	symbol = model.CanonicalSymbol(symbol)
	params := url.Values{
		"s":      {symbol},
		"region": {"US"},
		"lang":   {"en-US"},
	}
	body, err := p.fetch.Get(ctx, p.baseURL, nil, params)
	if err != nil {
		return nil, eris.Wrapf(err, "yahoo: fetch feed for %s", symbol)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, eris.Wrapf(err, "yahoo: parse feed for %s", symbol)
	}

	cutoff := p.now().UTC().AddDate(0, 0, -lookbackDays)
	articles := make([]model.Article, 0, maxArticles)
	for _, item := range feed.Channel.Items {
		if len(articles) >= maxArticles {
			break
		}
		published := ""
		if t, ok := parsePubDate(item.PubDate); ok {
			if t.Before(cutoff) {
				continue
			}
			published = t.UTC().Format("2006-01-02")
		}
		articles = append(articles, model.Article{
			Title:       item.Title,
			Summary:     item.Description,
			URL:         item.Link,
			PublishedAt: published,
			Source:      "Yahoo Finance",
			Sentiment:   Score(item.Description),
		})
	}
	return articles, nil
}

func parsePubDate(raw string) (time.Time, bool) {
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
