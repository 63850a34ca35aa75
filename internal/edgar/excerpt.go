package edgar

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/equity-cli/internal/model"
)

// ErrNoFilings signals that the index was reachable but no filing matched
// the form-type and document filters.
var ErrNoFilings = eris.New("edgar: no matching filings")

// ExcerptSource produces a filing excerpt for a symbol.
type ExcerptSource interface {
	Excerpt(ctx context.Context, symbol string) (*model.FilingExcerpt, error)
	Name() string
}

// Service runs the full filing pipeline: resolve the symbol, discover
// recent filing candidates, and extract a narrative section from the first
// candidate that yields one.
type Service struct {
	resolver  *Resolver
	index     *Index
	formTypes []string
	limit     int
	patterns  []Pattern
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithFormTypes overrides the filing types considered.
func WithFormTypes(formTypes []string) ServiceOption {
	return func(s *Service) { s.formTypes = formTypes }
}

// WithFilingLimit overrides the candidate list bound.
func WithFilingLimit(limit int) ServiceOption {
	return func(s *Service) { s.limit = limit }
}

// WithPatterns overrides the extraction heuristics.
func WithPatterns(patterns []Pattern) ServiceOption {
	return func(s *Service) { s.patterns = patterns }
}

// NewService creates the filing pipeline service.
func NewService(resolver *Resolver, index *Index, opts ...ServiceOption) *Service {
	s := &Service{
		resolver:  resolver,
		index:     index,
		formTypes: DefaultFormTypes,
		limit:     DefaultFilingLimit,
		patterns:  DefaultPatterns(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements ExcerptSource.
func (s *Service) Name() string { return SourceName }

// Excerpt implements ExcerptSource. Candidates are tried in recency order;
// a candidate whose document cannot be fetched or whose section cannot be
// located is skipped for the next one. When every candidate is exhausted,
// the first candidate's metadata is returned with an empty section and an
// explicit error string rather than an error return.
func (s *Service) Excerpt(ctx context.Context, symbol string) (*model.FilingExcerpt, error) {
	symbol = model.CanonicalSymbol(symbol)
	log := zap.L().With(zap.String("symbol", symbol), zap.String("source", SourceName))

	cik, err := s.resolver.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	filings, err := s.index.RecentFilings(ctx, cik, s.formTypes, s.limit)
	if err != nil {
		return nil, err
	}
	if len(filings) == 0 {
		return nil, eris.Wrapf(ErrNoFilings, "symbol %s (cik %s), forms %v", symbol, cik, s.formTypes)
	}

	var attempted int
	for _, filing := range filings {
		doc, err := s.index.FetchDocument(ctx, filing)
		if err != nil {
			log.Warn("filing document fetch failed, trying next candidate",
				zap.String("accession", filing.AccessionNumber),
				zap.Error(err),
			)
			attempted++
			continue
		}

		text, err := FlattenHTML(doc)
		if err != nil {
			log.Warn("filing document unparseable, trying next candidate",
				zap.String("accession", filing.AccessionNumber),
				zap.Error(err),
			)
			attempted++
			continue
		}

		section, err := ExtractSection(text, s.patterns)
		if err != nil {
			log.Debug("no section located, trying next candidate",
				zap.String("accession", filing.AccessionNumber),
			)
			attempted++
			continue
		}

		return &model.FilingExcerpt{Filing: filing, Section: section}, nil
	}

	// All candidates exhausted: degrade to the first candidate's metadata
	// so downstream can still cite the filing.
	return &model.FilingExcerpt{
		Filing: filings[0],
		Error:  fmt.Sprintf("no narrative section located in %d candidate filings", attempted),
	}, nil
}
