package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/equity-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	symbols    TEXT NOT NULL,
	mode       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS briefs (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	symbol     TEXT NOT NULL,
	markdown   TEXT NOT NULL,
	record     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, symbol)
);

CREATE TABLE IF NOT EXISTS id_map_cache (
	provider   TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	fetched_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, symbols []string, mode model.RunMode) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	symbolsJSON, err := json.Marshal(symbols)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal symbols")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, symbols, mode, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(symbolsJSON), string(mode), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) SetRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.BatchResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set run result %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, symbols, mode, status, created_at, updated_at FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) GetRunResult(ctx context.Context, runID string) (*model.BatchResult, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE id = ?`, runID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run result %s", runID)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var result model.BatchResult
	if err := json.Unmarshal([]byte(raw.String), &result); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal result %s", runID)
	}
	return &result, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, symbols, mode, status, created_at, updated_at FROM runs`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) SaveBrief(ctx context.Context, brief Brief) error {
	if brief.CreatedAt.IsZero() {
		brief.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO briefs (run_id, symbol, markdown, record, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, symbol) DO UPDATE SET markdown = excluded.markdown, record = excluded.record`,
		brief.RunID, brief.Symbol, brief.Markdown, string(brief.Record), brief.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: save brief %s/%s", brief.RunID, brief.Symbol)
}

func (s *SQLiteStore) GetBrief(ctx context.Context, runID, symbol string) (*Brief, error) {
	var b Brief
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, symbol, markdown, record, created_at FROM briefs WHERE run_id = ? AND symbol = ?`,
		runID, symbol,
	).Scan(&b.RunID, &b.Symbol, &b.Markdown, &record, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get brief %s/%s", runID, symbol)
	}
	b.Record = []byte(record)
	return &b, nil
}

func (s *SQLiteStore) GetIdentifierMap(ctx context.Context) ([]byte, time.Time, bool, error) {
	var payload []byte
	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM id_map_cache WHERE provider = ?`, identifierMapKey,
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, eris.Wrap(err, "sqlite: get identifier map")
	}
	return payload, fetchedAt, true, nil
}

func (s *SQLiteStore) PutIdentifierMap(ctx context.Context, payload []byte, fetchedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO id_map_cache (provider, payload, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT (provider) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		identifierMapKey, payload, fetchedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: put identifier map")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var symbolsJSON, mode, status string
	err := row.Scan(&run.ID, &symbolsJSON, &mode, &status, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("sqlite: run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := json.Unmarshal([]byte(symbolsJSON), &run.Symbols); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal symbols")
	}
	run.Mode = model.RunMode(mode)
	run.Status = model.RunStatus(status)
	return &run, nil
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}
