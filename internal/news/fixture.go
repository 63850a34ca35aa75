package news

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/model"
)

// FixtureProvider serves canned articles from news_<SYMBOL>.json files.
type FixtureProvider struct {
	dir string
}

// NewFixtureProvider creates a fixture-backed headline provider.
func NewFixtureProvider(dir string) *FixtureProvider {
	return &FixtureProvider{dir: dir}
}

// Name implements Provider.
func (f *FixtureProvider) Name() string { return "fixture" }

type fixtureArticles struct {
	Articles []struct {
		Title       string  `json:"title"`
		Summary     string  `json:"summary"`
		URL         string  `json:"url"`
		PublishedAt string  `json:"published_at"`
		Source      string  `json:"source"`
		Sentiment   float64 `json:"sentiment"`
	} `json:"articles"`
}

// Headlines implements Provider.
func (f *FixtureProvider) Headlines(_ context.Context, symbol string) ([]model.Article, error) {
	symbol = model.CanonicalSymbol(symbol)
	path := filepath.Join(f.dir, fmt.Sprintf("news_%s.json", symbol))

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "news: read fixture for %s", symbol)
	}

	var payload fixtureArticles
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, eris.Wrapf(err, "news: parse fixture %s", path)
	}

	articles := make([]model.Article, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		if len(articles) >= maxArticles {
			break
		}
		articles = append(articles, model.Article{
			Title:       a.Title,
			Summary:     a.Summary,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			Source:      a.Source,
			Sentiment:   a.Sentiment,
		})
	}
	return articles, nil
}
