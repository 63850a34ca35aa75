package main

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/brief"
	"github.com/sells-group/equity-cli/internal/edgar"
	"github.com/sells-group/equity-cli/internal/fetcher"
	"github.com/sells-group/equity-cli/internal/news"
	"github.com/sells-group/equity-cli/internal/peers"
	"github.com/sells-group/equity-cli/internal/prices"
	"github.com/sells-group/equity-cli/internal/report"
	"github.com/sells-group/equity-cli/internal/store"
)

// buildPipeline assembles the gather pipeline from config. With offline
// set, every source reads local fixture files instead of the network.
func buildPipeline(st store.Store, offline bool) (*brief.Pipeline, error) {
	peerLookup, err := initPeers()
	if err != nil {
		return nil, err
	}

	opts := []brief.Option{
		brief.WithConcurrency(cfg.Batch.MaxConcurrentSymbols),
	}
	if st != nil {
		opts = append(opts, brief.WithStore(st))
	}

	if offline {
		dir := cfg.Fixtures.Path
		return brief.New(
			prices.NewFixtureSource(dir),
			news.NewFixtureProvider(dir),
			edgar.NewFixtureSource(dir),
			peerLookup,
			opts...,
		), nil
	}

	fetch := fetcher.New(fetcher.Options{
		UserAgent:  cfg.Edgar.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		BaseDelay:  time.Duration(cfg.Fetch.BaseDelayMS) * time.Millisecond,
	})

	resolver := edgar.NewResolver(fetch, st)
	index := edgar.NewIndex(fetch)
	excerpts := edgar.NewService(resolver, index,
		edgar.WithFormTypes(cfg.Edgar.FormTypes),
		edgar.WithFilingLimit(cfg.Edgar.FilingLimit),
	)

	priceSource := prices.NewClient(fetch, prices.WithLookback(cfg.Prices.LookbackDays))

	var providers []news.Provider
	if cfg.News.APIKey != "" {
		providers = append(providers, news.NewNewsAPI(fetch, cfg.News.APIKey))
	}
	providers = append(providers, news.NewYahoo(fetch))

	return brief.New(priceSource, news.NewChain(providers...), excerpts, peerLookup, opts...), nil
}

func initPeers() (*peers.Lookup, error) {
	if cfg.Peers.File == "" {
		return peers.New(), nil
	}
	lookup, err := peers.NewFromFile(cfg.Peers.File)
	if err != nil {
		return nil, eris.Wrapf(err, "load peer table %s", cfg.Peers.File)
	}
	return lookup, nil
}

func initNarrator() report.Narrator {
	if cfg.Anthropic.Key == "" {
		return nil
	}
	return report.NewAnthropicNarrator(cfg.Anthropic.Key, cfg.Anthropic.Model)
}
