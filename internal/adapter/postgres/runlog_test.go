package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/weather-s3-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []any
}

type mockExecer struct {
	err   error
	calls []execCall
}

func (m *mockExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	m.calls = append(m.calls, execCall{query: query, args: args})
	if m.err != nil {
		return nil, m.err
	}
	return driverResult{}, nil
}

type driverResult struct{}

func (driverResult) LastInsertId() (int64, error) { return 0, nil }
func (driverResult) RowsAffected() (int64, error) { return 1, nil }

func newTestRunLog(db execer) *RunLog {
	return &RunLog{db: db, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestRunLog_ObserveRun_Failure(t *testing.T) {
	db := &mockExecer{}
	rl := newTestRunLog(db)
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	err := rl.ObserveRun(context.Background(), domain.RunReport{
		RunID:      "0b8e4c1e-9a53-4c1e-8f43-1f6f0f1d1a11",
		City:       "Prague",
		State:      domain.StateFailed,
		FailedStep: "is_weather_api_ready",
		ErrorKind:  "availability_check_failed",
		Error:      "status 503",
		Bucket:     "weatherapiairflowprojectmz",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	})
	require.NoError(t, err)

	require.Len(t, db.calls, 1)
	args := db.calls[0].args
	require.Len(t, args, 10)
	assert.Equal(t, "failed", args[2])
	assert.Equal(t, sql.NullString{String: "is_weather_api_ready", Valid: true}, args[3])
	assert.Equal(t, sql.NullString{}, args[7], "no object key on failure")
	assert.Equal(t, start, args[8])
}

func TestRunLog_ObserveRun_Error(t *testing.T) {
	rl := newTestRunLog(&mockExecer{err: errors.New("connection refused")})

	err := rl.ObserveRun(context.Background(), domain.RunReport{RunID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run r1")
}

func TestRunLog_Migrate(t *testing.T) {
	db := &mockExecer{}
	rl := newTestRunLog(db)

	require.NoError(t, rl.migrate(context.Background()))
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].query, "CREATE TABLE IF NOT EXISTS weather_etl_runs")
	assert.Equal(t, "postgres", rl.Name())
	assert.NoError(t, rl.Close())
}
