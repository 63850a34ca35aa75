package news

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/fetcher"
	"github.com/sells-group/equity-cli/internal/model"
)

const defaultNewsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPIProvider is the credentialed primary headline provider.
type NewsAPIProvider struct {
	fetch   *fetcher.Client
	apiKey  string
	baseURL string
	now     func() time.Time
}

// NewsAPIOption configures the provider.
type NewsAPIOption func(*NewsAPIProvider)

// WithNewsAPIBaseURL overrides the API base URL.
func WithNewsAPIBaseURL(u string) NewsAPIOption {
	return func(p *NewsAPIProvider) { p.baseURL = u }
}

// WithNewsAPINow fixes the clock for testing.
func WithNewsAPINow(now func() time.Time) NewsAPIOption {
	return func(p *NewsAPIProvider) { p.now = now }
}

// NewNewsAPI creates the primary provider. The API key is required.
func NewNewsAPI(fetch *fetcher.Client, apiKey string, opts ...NewsAPIOption) *NewsAPIProvider {
	p := &NewsAPIProvider{
		fetch:   fetch,
		apiKey:  apiKey,
		baseURL: defaultNewsAPIBaseURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NewsAPIProvider) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Headlines implements Provider.
func (p *NewsAPIProvider) Headlines(ctx context.Context, symbol string) ([]model.Article, error) {
	symbol = model.CanonicalSymbol(symbol)
	end := p.now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	params := url.Values{
		"q":        {symbol},
		"language": {"en"},
		"sortBy":   {"publishedAt"},
		"pageSize": {strconv.Itoa(maxArticles)},
		"from":     {start.Format("2006-01-02")},
		"to":       {end.Format("2006-01-02")},
		"apiKey":   {p.apiKey},
	}
	body, err := p.fetch.Get(ctx, p.baseURL, nil, params)
	if err != nil {
		return nil, eris.Wrapf(err, "newsapi: fetch headlines for %s", symbol)
	}

	var resp newsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(err, "newsapi: parse response for %s", symbol)
	}

	articles := make([]model.Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if len(articles) >= maxArticles {
			break
		}
		published := a.PublishedAt
		if len(published) > 10 {
			published = published[:10]
		}
		articles = append(articles, model.Article{
			Title:       a.Title,
			Summary:     a.Description,
			URL:         a.URL,
			PublishedAt: published,
			Source:      a.Source.Name,
			Sentiment:   Score(a.Description),
		})
	}
	return articles, nil
}
