// Package news aggregates recent headlines for a symbol from a chain of
// providers and scores naive sentiment locally.
package news

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/equity-cli/internal/model"
)

// SourceName identifies this feed in failure logs.
const SourceName = "news"

const (
	// maxArticles bounds the recent window returned per symbol.
	maxArticles = 10
	// lookbackDays is the recency window for headlines.
	lookbackDays = 7
)

// Provider fetches recent headlines for a symbol.
type Provider interface {
	Headlines(ctx context.Context, symbol string) ([]model.Article, error)
	Name() string
}

// Chain tries providers in priority order, returning the first success.
// A credentialed primary goes first; a public fallback keeps the feed
// usable without configuration.
type Chain struct {
	providers []Provider
}

// NewChain creates a Chain over the given providers.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Name implements Provider.
func (c *Chain) Name() string { return SourceName }

// Headlines implements Provider by cascading through the chain.
func (c *Chain) Headlines(ctx context.Context, symbol string) ([]model.Article, error) {
	var lastErr error
	for _, p := range c.providers {
		articles, err := p.Headlines(ctx, symbol)
		if err == nil {
			return articles, nil
		}
		zap.L().Debug("news provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		lastErr = err
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "news: all providers failed")
	}
	return nil, eris.New("news: no providers configured")
}

// Summarize computes the average sentiment across articles. An empty slice
// yields a zero average with a zero count.
func Summarize(articles []model.Article) model.SentimentSummary {
	if len(articles) == 0 {
		return model.SentimentSummary{}
	}
	var sum float64
	for _, a := range articles {
		sum += a.Sentiment
	}
	return model.SentimentSummary{
		Average:      round2(sum / float64(len(articles))),
		ArticleCount: len(articles),
	}
}
