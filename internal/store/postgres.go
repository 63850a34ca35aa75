package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/equity-cli/internal/model"
)

// Querier is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it for unit tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Querier
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	symbols    JSONB NOT NULL,
	mode       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS briefs (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	symbol     TEXT NOT NULL,
	markdown   TEXT NOT NULL,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, symbol)
);

CREATE TABLE IF NOT EXISTS id_map_cache (
	provider   TEXT PRIMARY KEY,
	payload    BYTEA NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, symbols []string, mode model.RunMode) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	symbolsJSON, err := json.Marshal(symbols)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal symbols")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, symbols, mode, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(symbolsJSON), string(mode), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Symbols:   symbols,
		Mode:      mode,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) SetRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.BatchResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, symbols, mode, status, created_at, updated_at FROM runs WHERE id = $1`, runID)

	var run model.Run
	var symbolsJSON, mode, status string
	err := row.Scan(&run.ID, &symbolsJSON, &mode, &status, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if err := json.Unmarshal([]byte(symbolsJSON), &run.Symbols); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal symbols")
	}
	run.Mode = model.RunMode(mode)
	run.Status = model.RunStatus(status)
	return &run, nil
}

func (s *PostgresStore) GetRunResult(ctx context.Context, runID string) (*model.BatchResult, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT result FROM runs WHERE id = $1`, runID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run result %s", runID)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var result model.BatchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal result %s", runID)
	}
	return &result, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, symbols, mode, status, created_at, updated_at FROM runs
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	args := []any{limit, filter.Offset}
	if filter.Status != "" {
		query = `SELECT id, symbols, mode, status, created_at, updated_at FROM runs
			WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = []any{string(filter.Status), limit, filter.Offset}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var run model.Run
		var symbolsJSON, mode, status string
		if err := rows.Scan(&run.ID, &symbolsJSON, &mode, &status, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal([]byte(symbolsJSON), &run.Symbols); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal symbols")
		}
		run.Mode = model.RunMode(mode)
		run.Status = model.RunStatus(status)
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) SaveBrief(ctx context.Context, brief Brief) error {
	if brief.CreatedAt.IsZero() {
		brief.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO briefs (run_id, symbol, markdown, record, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, symbol) DO UPDATE SET markdown = EXCLUDED.markdown, record = EXCLUDED.record`,
		brief.RunID, brief.Symbol, brief.Markdown, string(brief.Record), brief.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save brief %s/%s", brief.RunID, brief.Symbol)
}

func (s *PostgresStore) GetBrief(ctx context.Context, runID, symbol string) (*Brief, error) {
	var b Brief
	var record string
	err := s.pool.QueryRow(ctx,
		`SELECT run_id, symbol, markdown, record, created_at FROM briefs WHERE run_id = $1 AND symbol = $2`,
		runID, symbol,
	).Scan(&b.RunID, &b.Symbol, &b.Markdown, &record, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get brief %s/%s", runID, symbol)
	}
	b.Record = []byte(record)
	return &b, nil
}

func (s *PostgresStore) GetIdentifierMap(ctx context.Context) ([]byte, time.Time, bool, error) {
	var payload []byte
	var fetchedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT payload, fetched_at FROM id_map_cache WHERE provider = $1`, identifierMapKey,
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, eris.Wrap(err, "postgres: get identifier map")
	}
	return payload, fetchedAt, true, nil
}

func (s *PostgresStore) PutIdentifierMap(ctx context.Context, payload []byte, fetchedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO id_map_cache (provider, payload, fetched_at) VALUES ($1, $2, $3)
		 ON CONFLICT (provider) DO UPDATE SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at`,
		identifierMapKey, payload, fetchedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: put identifier map")
}
