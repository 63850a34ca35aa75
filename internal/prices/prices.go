// Package prices fetches daily closing-price history and derives the
// summary statistics carried on the entity record.
package prices

import (
	"context"
	"encoding/csv"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/fetcher"
	"github.com/sells-group/equity-cli/internal/model"
)

// ErrNoData signals that the upstream returned an empty series for the
// symbol. It is not retryable.
var ErrNoData = eris.New("prices: no data for symbol")

// SourceName identifies this feed in failure logs.
const SourceName = "prices"

const defaultBaseURL = "https://stooq.com/q/d/l/"

// Source fetches price history for a symbol.
type Source interface {
	History(ctx context.Context, symbol string) (*model.PriceHistory, error)
	Name() string
}

// Client fetches daily OHLC history from the Stooq CSV endpoint.
type Client struct {
	fetch        *fetcher.Client
	baseURL      string
	lookbackDays int
	maxPoints    int
	now          func() time.Time
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the feed base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithLookback sets the calendar-day window requested from the feed.
func WithLookback(days int) Option {
	return func(c *Client) { c.lookbackDays = days }
}

// WithNow fixes the clock for testing.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a price history client over the shared fetcher.
func NewClient(fetch *fetcher.Client, opts ...Option) *Client {
	c := &Client{
		fetch:        fetch,
		baseURL:      defaultBaseURL,
		lookbackDays: 120,
		maxPoints:    90,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Source.
func (c *Client) Name() string { return SourceName }

// History fetches the recent daily series for symbol and computes summary
// statistics. Returns ErrNoData when the feed has no rows for the window.
func (c *Client) History(ctx context.Context, symbol string) (*model.PriceHistory, error) {
	symbol = model.CanonicalSymbol(symbol)
	end := c.now().UTC()
	start := end.AddDate(0, 0, -c.lookbackDays)

	params := url.Values{
		"s":  {feedSymbol(symbol)},
		"i":  {"d"},
		"d1": {start.Format("20060102")},
		"d2": {end.Format("20060102")},
	}
	body, err := c.fetch.Get(ctx, c.baseURL, nil, params)
	if err != nil {
		return nil, eris.Wrapf(err, "prices: fetch history for %s", symbol)
	}

	points, err := parseDailyCSV(string(body))
	if err != nil {
		return nil, eris.Wrapf(err, "prices: parse history for %s", symbol)
	}
	if len(points) > c.maxPoints {
		points = points[len(points)-c.maxPoints:]
	}
	if len(points) == 0 {
		return nil, eris.Wrapf(ErrNoData, "symbol %s", symbol)
	}

	return Summarize(symbol, points), nil
}

// Summarize builds a PriceHistory with range statistics from an ascending
// series. Fewer than 30 points degrades the 30-day average to the latest
// close rather than failing.
func Summarize(symbol string, points []model.PricePoint) *model.PriceHistory {
	h := &model.PriceHistory{
		Symbol:   symbol,
		Currency: "USD",
		Points:   points,
	}
	closes := h.Closes()
	if len(closes) == 0 {
		return h
	}

	high, low := closes[0], closes[0]
	for _, c := range closes[1:] {
		if c > high {
			high = c
		}
		if c < low {
			low = c
		}
	}
	h.FiftyTwoWeekHigh = high
	h.FiftyTwoWeekLow = low
	h.LatestClose = closes[len(closes)-1]

	if len(closes) >= 30 {
		var sum float64
		for _, c := range closes[len(closes)-30:] {
			sum += c
		}
		h.AvgClose30D = math.Round(sum/30*100) / 100
	} else {
		h.AvgClose30D = h.LatestClose
	}
	return h
}

// feedSymbol maps a US ticker to the feed's symbol convention.
func feedSymbol(symbol string) string {
	s := strings.ToLower(symbol)
	s = strings.ReplaceAll(s, ".", "-")
	return s + ".us"
}

// parseDailyCSV reads the feed's Date,Open,High,Low,Close,Volume table.
// Rows arrive in ascending date order; malformed rows are rejected rather
// than skipped so a truncated response cannot pass as a short series.
func parseDailyCSV(raw string) ([]model.PricePoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "No data") {
		return nil, nil
	}

	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "read csv")
	}
	if len(records) < 2 {
		return nil, nil
	}

	points := make([]model.PricePoint, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 5 {
			return nil, eris.Errorf("csv row has %d fields, want at least 5", len(rec))
		}
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, eris.Wrapf(err, "parse date %q", rec[0])
		}
		closePrice, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "parse close %q", rec[4])
		}
		points = append(points, model.PricePoint{
			Date:  date,
			Close: math.Round(closePrice*100) / 100,
		})
	}
	return points, nil
}
