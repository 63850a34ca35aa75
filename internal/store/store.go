// Package store persists brief runs, rendered briefs, and the identifier
// map cache. Two drivers are provided: sqlite for single-user CLI use and
// postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/sells-group/equity-cli/internal/model"
)

// identifierMapKey is the cache row key for the SEC ticker registry map.
const identifierMapKey = "sec_ticker_map"

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Brief is one persisted per-symbol brief inside a run.
type Brief struct {
	RunID     string    `json:"run_id"`
	Symbol    string    `json:"symbol"`
	Markdown  string    `json:"markdown"`
	Record    []byte    `json:"record"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence interface for the brief pipeline. The
// identifier-map methods satisfy edgar.MapCache.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, symbols []string, mode model.RunMode) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	SetRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.BatchResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	GetRunResult(ctx context.Context, runID string) (*model.BatchResult, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Briefs
	SaveBrief(ctx context.Context, brief Brief) error
	GetBrief(ctx context.Context, runID, symbol string) (*Brief, error)

	// Identifier map cache (last writer wins)
	GetIdentifierMap(ctx context.Context) (payload []byte, fetchedAt time.Time, ok bool, err error)
	PutIdentifierMap(ctx context.Context, payload []byte, fetchedAt time.Time) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
