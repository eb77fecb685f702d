package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-s3-etl/internal/domain"
	_ "github.com/lib/pq" // postgres driver
)

const createRunsTable = `
	CREATE TABLE IF NOT EXISTS weather_etl_runs (
		run_id      UUID PRIMARY KEY,
		city        VARCHAR(100) NOT NULL,
		state       VARCHAR(32) NOT NULL,
		failed_step VARCHAR(64),
		error_kind  VARCHAR(64),
		error       TEXT,
		bucket      VARCHAR(255),
		object_key  VARCHAR(1024),
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	);`

const insertRun = `
	INSERT INTO weather_etl_runs (
		run_id,
		city,
		state,
		failed_step,
		error_kind,
		error,
		bucket,
		object_key,
		started_at,
		finished_at
	)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (run_id) DO NOTHING;`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RunLog appends every run report to the weather_etl_runs table.
// It implements pipeline.RunObserver.
type RunLog struct {
	db     execer
	closer func() error
	logger *slog.Logger
}

// Open connects to dsn, verifies the connection and ensures the table exists.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*RunLog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping run log: %w", err)
	}

	rl := &RunLog{db: db, closer: db.Close, logger: logger}
	if err := rl.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return rl, nil
}

func (r *RunLog) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRunsTable); err != nil {
		return fmt.Errorf("create weather_etl_runs: %w", err)
	}
	return nil
}

func (r *RunLog) Name() string { return "postgres" }

// ObserveRun inserts the report. Re-delivering the same run is a no-op.
func (r *RunLog) ObserveRun(ctx context.Context, report domain.RunReport) error {
	_, err := r.db.ExecContext(ctx, insertRun,
		report.RunID,
		report.City,
		string(report.State),
		nullString(report.FailedStep),
		nullString(report.ErrorKind),
		nullString(report.Error),
		nullString(report.Bucket),
		nullString(report.ObjectKey),
		report.StartedAt,
		report.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}
	r.logger.Debug("run report stored", "run_id", report.RunID)
	return nil
}

func (r *RunLog) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
