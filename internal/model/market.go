package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// PricePoint is one trading day's closing price.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceHistory is an ascending-date price series with summary statistics
// over the fetched window.
type PriceHistory struct {
	Symbol           string       `json:"symbol"`
	Currency         string       `json:"currency"`
	Points           []PricePoint `json:"history"`
	FiftyTwoWeekHigh float64      `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  float64      `json:"fifty_two_week_low"`
	LatestClose      float64      `json:"latest_close"`
	AvgClose30D      float64      `json:"avg_close_30d"`
}

// Closes returns the closing prices in date order.
func (p *PriceHistory) Closes() []float64 {
	closes := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		closes[i] = pt.Close
	}
	return closes
}

// Validate checks the series invariant: non-empty, dates strictly increasing.
func (p *PriceHistory) Validate() error {
	if len(p.Points) == 0 {
		return eris.Errorf("price history for %s is empty", p.Symbol)
	}
	for i := 1; i < len(p.Points); i++ {
		if !p.Points[i].Date.After(p.Points[i-1].Date) {
			return eris.Errorf("price history for %s has non-increasing date at index %d (%s)",
				p.Symbol, i, p.Points[i].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Filing is the metadata for one regulatory filing candidate.
type Filing struct {
	FormType        string `json:"form_type"`
	AccessionNumber string `json:"accession_number"`
	FilingDate      string `json:"filing_date"`
	PrimaryDocument string `json:"primary_document"`
	DocumentURL     string `json:"document_url"`
}

// FilingExcerpt is a located narrative section plus its source filing.
// When no section could be located, Section is empty and Error explains
// why; the metadata is still usable as a citation.
type FilingExcerpt struct {
	Filing  Filing `json:"filing"`
	Section string `json:"section"`
	Error   string `json:"error,omitempty"`
}

// Article is one news headline with locally computed sentiment in [-1, 1].
type Article struct {
	Title       string  `json:"title"`
	Summary     string  `json:"summary"`
	URL         string  `json:"url"`
	PublishedAt string  `json:"published_at"`
	Source      string  `json:"source"`
	Sentiment   float64 `json:"sentiment"`
}

// Ratios holds technical indicators derived from a price series. They are
// recomputed on every run, never persisted independently of the series.
type Ratios struct {
	SMA20       float64 `json:"sma20"`
	SMA50       float64 `json:"sma50"`
	RSI14       float64 `json:"rsi14"`
	LatestClose float64 `json:"latest_close"`
}
