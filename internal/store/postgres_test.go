package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/equity-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), `["AMZN","MSFT"]`, "isolate", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), []string{"AMZN", "MSFT"}, model.RunModeIsolate)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, []string{"AMZN", "MSFT"}, run.Symbols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, symbols, mode, status, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, symbols, mode, status, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "symbols", "mode", "status", "created_at", "updated_at"}).
			AddRow("run-1", `["SNOW"]`, "strict", "complete", now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"SNOW"}, run.Symbols)
	assert.Equal(t, model.RunModeStrict, run.Mode)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetRunResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), "partial", pgxmock.AnyArg(), "run-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	result := &model.BatchResult{
		RunID: "run-2",
		Failures: []model.Failure{
			{Symbol: "MSFT", Stage: model.StageTool, Source: "prices", Message: "no data"},
		},
	}
	err := s.SetRunResult(context.Background(), "run-2", model.RunStatusPartial, result)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRunResult_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT result FROM runs`).
		WithArgs("run-3").
		WillReturnRows(pgxmock.NewRows([]string{"result"}).AddRow([]byte(nil)))

	result, err := s.GetRunResult(context.Background(), "run-3")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`WHERE status = \$1 ORDER BY created_at DESC`).
		WithArgs("complete", 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "symbols", "mode", "status", "created_at", "updated_at"}).
			AddRow("run-a", `["AMZN"]`, "isolate", "complete", now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBrief_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("run-4", "AMZN", "# AMZN", `{"symbol":"AMZN"}`, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveBrief(context.Background(), Brief{
		RunID:    "run-4",
		Symbol:   "AMZN",
		Markdown: "# AMZN",
		Record:   []byte(`{"symbol":"AMZN"}`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBrief_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT run_id, symbol, markdown, record, created_at FROM briefs`).
		WithArgs("run-5", "SNOW").
		WillReturnError(pgx.ErrNoRows)

	b, err := s.GetBrief(context.Background(), "run-5", "SNOW")
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IdentifierMap_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload, fetched_at FROM id_map_cache`).
		WithArgs(identifierMapKey).
		WillReturnError(pgx.ErrNoRows)

	_, _, ok, err := s.GetIdentifierMap(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutIdentifierMap(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	fetched := time.Now().UTC()
	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(identifierMapKey, []byte(`{"0":{}}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutIdentifierMap(context.Background(), []byte(`{"0":{}}`), fetched)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
