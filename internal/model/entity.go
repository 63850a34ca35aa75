package model

import (
	"strings"
	"time"
)

// EntityStatus represents the state of a single symbol inside a run.
type EntityStatus string

const (
	EntityStatusPending  EntityStatus = "pending"
	EntityStatusFetching EntityStatus = "fetching"
	EntityStatusComplete EntityStatus = "complete"
	EntityStatusDegraded EntityStatus = "degraded"
	EntityStatusFailed   EntityStatus = "failed"
)

// RunMode controls how fetcher errors are handled across a batch.
type RunMode string

const (
	// RunModeStrict aborts the whole batch on the first fetcher error.
	RunModeStrict RunMode = "strict"
	// RunModeIsolate records failures and completes the batch.
	RunModeIsolate RunMode = "isolate"
)

// RunStatus represents the state of a persisted batch run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusFetching RunStatus = "fetching"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial"
	RunStatusFailed   RunStatus = "failed"
)

// FailureStage tags where in the pipeline a failure occurred.
type FailureStage string

const (
	StageTool     FailureStage = "tool"
	StageAnalysis FailureStage = "analysis"
)

// Failure is one entry in the run failure log.
type Failure struct {
	Symbol  string       `json:"symbol"`
	Stage   FailureStage `json:"stage"`
	Source  string       `json:"source,omitempty"`
	Message string       `json:"message"`
}

// Citation points a brief reader at a source document or article.
type Citation struct {
	Symbol      string `json:"symbol"`
	Title       string `json:"title"`
	URL         string `json:"url,omitempty"`
	Source      string `json:"source,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// SentimentSummary aggregates article-level sentiment for one symbol.
type SentimentSummary struct {
	Average      float64 `json:"average"`
	ArticleCount int     `json:"article_count"`
}

// EntityRecord is the merged per-symbol output of the gather pipeline.
// It is assembled once per run and not mutated after assembly.
type EntityRecord struct {
	Symbol    string           `json:"symbol"`
	Status    EntityStatus     `json:"status"`
	Prices    *PriceHistory    `json:"prices,omitempty"`
	Ratios    *Ratios          `json:"ratios,omitempty"`
	Excerpt   *FilingExcerpt   `json:"filing,omitempty"`
	Articles  []Article        `json:"articles"`
	Sentiment SentimentSummary `json:"sentiment"`
	Peers     []string         `json:"peers"`
	Citations []Citation       `json:"citations"`
	Narrative string           `json:"narrative,omitempty"`
	Focus     string           `json:"focus,omitempty"`
}

// BatchResult holds the outcome of one brief run across all requested symbols.
// Records preserve the order symbols were requested in.
type BatchResult struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Records     []EntityRecord `json:"records"`
	Failures    []Failure      `json:"failures,omitempty"`
}

// Run is a persisted batch run.
type Run struct {
	ID        string    `json:"id"`
	Symbols   []string  `json:"symbols"`
	Mode      RunMode   `json:"mode"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanonicalSymbol normalizes a caller-supplied ticker to its canonical form.
func CanonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
