package brief

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/equity-cli/internal/edgar"
	"github.com/sells-group/equity-cli/internal/model"
	"github.com/sells-group/equity-cli/internal/news"
	"github.com/sells-group/equity-cli/internal/peers"
	"github.com/sells-group/equity-cli/internal/prices"
	"github.com/sells-group/equity-cli/internal/ratios"
	"github.com/sells-group/equity-cli/internal/store"
)

const defaultConcurrency = 3

// Pipeline gathers market, filing, news, and peer data for each symbol
// and assembles the per-entity records for a run.
type Pipeline struct {
	prices      prices.Source
	news        news.Provider
	excerpts    edgar.ExcerptSource
	peers       *peers.Lookup
	store       store.Store
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore enables run persistence. Without a store, runs are not recorded.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.store = st }
}

// WithConcurrency bounds how many symbols are processed at once in a batch.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New creates a Pipeline with all source dependencies.
func New(priceSource prices.Source, newsProvider news.Provider, excerptSource edgar.ExcerptSource, peerLookup *peers.Lookup, opts ...Option) *Pipeline {
	p := &Pipeline{
		prices:      priceSource,
		news:        newsProvider,
		excerpts:    excerptSource,
		peers:       peerLookup,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// entityOutcome is the per-symbol result inside a batch. A nil record with
// failures means the entity was dropped because a required input was missing.
type entityOutcome struct {
	record   *model.EntityRecord
	failures []model.Failure
}

// Run processes a batch of symbols. In strict mode the first fetcher error
// aborts the batch and no result is produced. In isolation mode every
// symbol is processed and failures are collected into the result's log.
func (p *Pipeline) Run(ctx context.Context, symbols []string, mode model.RunMode, focus string) (*model.BatchResult, error) {
	canonical := make([]string, len(symbols))
	for i, s := range symbols {
		canonical[i] = model.CanonicalSymbol(s)
	}

	log := zap.L().With(zap.Strings("symbols", canonical), zap.String("mode", string(mode)))
	log.Info("brief: starting run")

	var runID string
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, canonical, mode)
		if err != nil {
			return nil, eris.Wrap(err, "brief: create run")
		}
		runID = run.ID
		p.setStatus(ctx, runID, model.RunStatusFetching)
	}

	outcomes := make([]entityOutcome, len(canonical))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, symbol := range canonical {
		g.Go(func() error {
			outcome, err := p.researchEntity(gCtx, symbol, mode, focus)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if p.store != nil && runID != "" {
			p.setStatus(ctx, runID, model.RunStatusFailed)
		}
		log.Error("brief: run aborted", zap.Error(err))
		return nil, err
	}

	result := &model.BatchResult{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
	}
	for _, outcome := range outcomes {
		if outcome.record != nil {
			result.Records = append(result.Records, *outcome.record)
		}
		result.Failures = append(result.Failures, outcome.failures...)
	}

	status := model.RunStatusComplete
	if len(result.Failures) > 0 {
		status = model.RunStatusPartial
	}
	if len(result.Records) == 0 && len(result.Failures) > 0 {
		status = model.RunStatusFailed
	}

	if p.store != nil && runID != "" {
		if err := p.store.SetRunResult(ctx, runID, status, result); err != nil {
			log.Warn("brief: failed to persist run result", zap.Error(err))
		}
	}

	log.Info("brief: run finished",
		zap.String("run_id", runID),
		zap.String("status", string(status)),
		zap.Int("records", len(result.Records)),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// researchEntity fans out to the four sources for a single symbol. Price
// history is a required input; the filing excerpt, news, and peers are
// optional and only degrade the record when unavailable.
func (p *Pipeline) researchEntity(ctx context.Context, symbol string, mode model.RunMode, focus string) (entityOutcome, error) {
	log := zap.L().With(zap.String("symbol", symbol))

	rec := &model.EntityRecord{
		Symbol: symbol,
		Status: model.EntityStatusPending,
		Focus:  focus,
	}

	var mu sync.Mutex
	var failures []model.Failure
	record := func(stage model.FailureStage, source string, err error) {
		mu.Lock()
		failures = append(failures, model.Failure{
			Symbol:  symbol,
			Stage:   stage,
			Source:  source,
			Message: err.Error(),
		})
		mu.Unlock()
	}

	var (
		history  *model.PriceHistory
		excerpt  *model.FilingExcerpt
		articles []model.Article
	)

	rec.Status = model.EntityStatusFetching
	log.Debug("brief: fetching entity", zap.String("status", string(rec.Status)))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h, err := p.prices.History(gCtx, symbol)
		if err != nil {
			if mode == model.RunModeStrict {
				return eris.Wrapf(err, "brief: %s: price history", symbol)
			}
			log.Warn("brief: price history unavailable", zap.Error(err))
			record(model.StageTool, p.prices.Name(), err)
			return nil
		}
		mu.Lock()
		history = h
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		ex, err := p.excerpts.Excerpt(gCtx, symbol)
		if err != nil {
			if mode == model.RunModeStrict {
				return eris.Wrapf(err, "brief: %s: filing excerpt", symbol)
			}
			log.Warn("brief: filing excerpt unavailable", zap.Error(err))
			record(model.StageTool, p.excerpts.Name(), err)
			return nil
		}
		mu.Lock()
		excerpt = ex
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		arts, err := p.news.Headlines(gCtx, symbol)
		if err != nil {
			if mode == model.RunModeStrict {
				return eris.Wrapf(err, "brief: %s: headlines", symbol)
			}
			log.Warn("brief: headlines unavailable", zap.Error(err))
			record(model.StageTool, p.news.Name(), err)
			return nil
		}
		mu.Lock()
		articles = arts
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return entityOutcome{}, err
	}

	// Price data is required. Without it the record is dropped rather than
	// emitted with empty indicators.
	if history == nil {
		return entityOutcome{failures: failures}, nil
	}

	rec.Prices = history
	rec.Excerpt = excerpt
	rec.Articles = articles
	rec.Sentiment = news.Summarize(articles)
	rec.Peers = p.peers.Peers(symbol)

	rs := ratios.Compute(history)
	rec.Ratios = &rs

	rec.Citations = buildCitations(symbol, excerpt, articles)

	rec.Status = model.EntityStatusComplete
	if len(failures) > 0 || (excerpt != nil && excerpt.Error != "") {
		rec.Status = model.EntityStatusDegraded
	}
	return entityOutcome{record: rec, failures: failures}, nil
}

// buildCitations lists the source documents behind a record so the brief
// can reference them.
func buildCitations(symbol string, excerpt *model.FilingExcerpt, articles []model.Article) []model.Citation {
	var citations []model.Citation
	if excerpt != nil && excerpt.Filing.DocumentURL != "" {
		citations = append(citations, model.Citation{
			Symbol:      symbol,
			Title:       excerpt.Filing.FormType + " " + excerpt.Filing.AccessionNumber,
			URL:         excerpt.Filing.DocumentURL,
			Source:      "SEC EDGAR",
			PublishedAt: excerpt.Filing.FilingDate,
		})
	}
	for _, a := range articles {
		citations = append(citations, model.Citation{
			Symbol:      symbol,
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source,
			PublishedAt: a.PublishedAt,
		})
	}
	return citations
}

func (p *Pipeline) setStatus(ctx context.Context, runID string, status model.RunStatus) {
	if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("brief: failed to update run status",
			zap.String("run_id", runID), zap.Error(err))
	}
}
