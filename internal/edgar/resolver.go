// Package edgar implements the filing pipeline: symbol resolution against
// the SEC ticker registry, filing discovery from the per-CIK submissions
// index, and heuristic section extraction from primary documents.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/equity-cli/internal/fetcher"
	"github.com/sells-group/equity-cli/internal/model"
)

// SourceName identifies this feed in failure logs.
const SourceName = "edgar"

// ErrSymbolNotFound signals that the registry has no CIK for the symbol.
// It is entity-fatal and not retryable.
var ErrSymbolNotFound = eris.New("edgar: symbol not found in registry")

const (
	defaultTickerMapURL = "https://www.sec.gov/files/company_tickers.json"

	// DefaultCacheTTL is how long a fetched ticker map stays fresh.
	DefaultCacheTTL = 7 * 24 * time.Hour
)

// MapCache persists the raw ticker-map payload between runs. Implemented
// by the store; a read error or corrupt payload must behave as a miss.
type MapCache interface {
	GetIdentifierMap(ctx context.Context) (payload []byte, fetchedAt time.Time, ok bool, err error)
	PutIdentifierMap(ctx context.Context, payload []byte, fetchedAt time.Time) error
}

// Resolver maps ticker symbols to zero-padded 10-digit CIK strings using
// the full registry map, cached durably with a freshness check.
type Resolver struct {
	fetch  *fetcher.Client
	cache  MapCache
	mapURL string
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	byTick map[string]string // symbol -> padded CIK, nil until loaded
}

// ResolverOption configures the resolver.
type ResolverOption func(*Resolver)

// WithMapURL overrides the registry map URL.
func WithMapURL(u string) ResolverOption {
	return func(r *Resolver) { r.mapURL = u }
}

// WithCacheTTL overrides the cache freshness window.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithResolverNow fixes the clock for testing.
func WithResolverNow(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver. cache may be nil, in which case every
// process fetches the map once and keeps it in memory only.
func NewResolver(fetch *fetcher.Client, cache MapCache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fetch:  fetch,
		cache:  cache,
		mapURL: defaultTickerMapURL,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the padded CIK for symbol, loading the registry map on
// first use. Returns ErrSymbolNotFound for symbols absent from the map.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (string, error) {
	symbol = model.CanonicalSymbol(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byTick == nil {
		m, err := r.loadMap(ctx)
		if err != nil {
			return "", err
		}
		r.byTick = m
	}

	cik, ok := r.byTick[symbol]
	if !ok {
		return "", eris.Wrapf(ErrSymbolNotFound, "symbol %s", symbol)
	}
	return cik, nil
}

// loadMap returns the parsed ticker map, preferring a fresh durable cache
// entry. Cache corruption or read failure silently falls back to a live
// refetch; a live fetch overwrites the cache (last writer wins).
func (r *Resolver) loadMap(ctx context.Context) (map[string]string, error) {
	if r.cache != nil {
		payload, fetchedAt, ok, err := r.cache.GetIdentifierMap(ctx)
		if err != nil {
			zap.L().Debug("ticker map cache read failed, refetching", zap.Error(err))
		} else if ok && r.now().Sub(fetchedAt) < r.ttl {
			m, perr := parseTickerMap(payload)
			if perr == nil {
				return m, nil
			}
			zap.L().Warn("ticker map cache corrupt, refetching", zap.Error(perr))
		}
	}

	payload, err := r.fetch.Get(ctx, r.mapURL, nil, nil)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: fetch ticker map")
	}
	m, err := parseTickerMap(payload)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: parse ticker map")
	}

	if r.cache != nil {
		if err := r.cache.PutIdentifierMap(ctx, payload, r.now()); err != nil {
			zap.L().Warn("ticker map cache write failed", zap.Error(err))
		}
	}
	return m, nil
}

// parseTickerMap reads the registry payload: a JSON object keyed by row
// index with {cik_str, ticker, title} values.
func parseTickerMap(payload []byte) (map[string]string, error) {
	var rows map[string]struct {
		CIK    int64  `json:"cik_str"`
		Ticker string `json:"ticker"`
	}
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, eris.Wrap(err, "unmarshal ticker map")
	}
	if len(rows) == 0 {
		return nil, eris.New("ticker map is empty")
	}

	m := make(map[string]string, len(rows))
	for _, row := range rows {
		m[model.CanonicalSymbol(row.Ticker)] = PadCIK(row.CIK)
	}
	return m, nil
}

// PadCIK formats a numeric CIK as the 10-digit zero-padded string used by
// the submissions feed.
func PadCIK(cik int64) string {
	return fmt.Sprintf("%010d", cik)
}
