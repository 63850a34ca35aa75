package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/equity-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Runs ---

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"AMZN", "MSFT"}, model.RunModeIsolate)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"AMZN", "MSFT"}, got.Symbols)
	assert.Equal(t, model.RunModeIsolate, got.Mode)
	assert.Equal(t, model.RunStatusQueued, got.Status)
}

func TestSQLite_GetRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"SNOW"}, model.RunModeStrict)
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusFetching))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFetching, got.Status)
}

func TestSQLite_UpdateRunStatus_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_SetAndGetRunResult(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"AMZN", "MSFT"}, model.RunModeIsolate)
	require.NoError(t, err)

	result := &model.BatchResult{
		RunID:       run.ID,
		GeneratedAt: time.Now().UTC(),
		Records: []model.EntityRecord{
			{Symbol: "AMZN", Status: model.EntityStatusComplete},
		},
		Failures: []model.Failure{
			{Symbol: "MSFT", Stage: model.StageTool, Source: "prices", Message: "no data"},
		},
	}
	require.NoError(t, st.SetRunResult(ctx, run.ID, model.RunStatusPartial, result))

	got, err := st.GetRunResult(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "AMZN", got.Records[0].Symbol)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "prices", got.Failures[0].Source)

	r, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPartial, r.Status)
}

func TestSQLite_GetRunResult_NoResultYet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"AMZN"}, model.RunModeIsolate)
	require.NoError(t, err)

	got, err := st.GetRunResult(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ListRuns_FilterAndOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, []string{"AMZN"}, model.RunModeIsolate)
	require.NoError(t, err)
	b, err := st.CreateRun(ctx, []string{"MSFT"}, model.RunModeIsolate)
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, b.ID, model.RunStatusComplete))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, b.ID, done[0].ID)
	_ = a
}

// --- Briefs ---

func TestSQLite_SaveAndGetBrief(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"AMZN"}, model.RunModeIsolate)
	require.NoError(t, err)

	brief := Brief{
		RunID:    run.ID,
		Symbol:   "AMZN",
		Markdown: "# AMZN Research Brief",
		Record:   []byte(`{"symbol":"AMZN"}`),
	}
	require.NoError(t, st.SaveBrief(ctx, brief))

	got, err := st.GetBrief(ctx, run.ID, "AMZN")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "# AMZN Research Brief", got.Markdown)
	assert.JSONEq(t, `{"symbol":"AMZN"}`, string(got.Record))
}

func TestSQLite_SaveBrief_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []string{"SNOW"}, model.RunModeIsolate)
	require.NoError(t, err)

	require.NoError(t, st.SaveBrief(ctx, Brief{RunID: run.ID, Symbol: "SNOW", Markdown: "v1", Record: []byte(`{}`)}))
	require.NoError(t, st.SaveBrief(ctx, Brief{RunID: run.ID, Symbol: "SNOW", Markdown: "v2", Record: []byte(`{}`)}))

	got, err := st.GetBrief(ctx, run.ID, "SNOW")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.Markdown)
}

func TestSQLite_GetBrief_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetBrief(context.Background(), "no-run", "AMZN")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// --- Identifier map cache ---

func TestSQLite_IdentifierMap_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, _, ok, err := st.GetIdentifierMap(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	payload := []byte(`{"0":{"cik_str":1018724,"ticker":"AMZN"}}`)
	fetched := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.PutIdentifierMap(ctx, payload, fetched))

	got, at, ok, err := st.GetIdentifierMap(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)
	assert.WithinDuration(t, fetched, at, time.Second)
}

func TestSQLite_IdentifierMap_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutIdentifierMap(ctx, []byte(`old`), time.Now().Add(-48*time.Hour)))
	require.NoError(t, st.PutIdentifierMap(ctx, []byte(`new`), time.Now()))

	got, _, ok, err := st.GetIdentifierMap(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`new`), got)
}
