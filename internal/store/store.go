// Package store persists scenario run reports to PostgreSQL so that
// verification history can be listed later.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL implementation of schemas.RunStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.RunStore = (*Store)(nil)

const (
	sqlCreateRuns = `
        CREATE TABLE IF NOT EXISTS scenario_runs (
            id          TEXT PRIMARY KEY,
            scenario    TEXT NOT NULL,
            driver      TEXT NOT NULL,
            state       TEXT NOT NULL,
            target_url  TEXT NOT NULL,
            revision    TEXT NOT NULL DEFAULT '',
            artifact    TEXT NOT NULL DEFAULT '',
            error       TEXT NOT NULL DEFAULT '',
            started_at  TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL,
            duration_ms BIGINT NOT NULL,
            report      JSONB NOT NULL
        );
    `
	sqlCreateSteps = `
        CREATE TABLE IF NOT EXISTS scenario_steps (
            run_id      TEXT NOT NULL REFERENCES scenario_runs (id) ON DELETE CASCADE,
            idx         INTEGER NOT NULL,
            name        TEXT NOT NULL,
            kind        TEXT NOT NULL,
            locator     TEXT NOT NULL DEFAULT '',
            status      TEXT NOT NULL,
            duration_ms BIGINT NOT NULL,
            error       TEXT NOT NULL DEFAULT '',
            PRIMARY KEY (run_id, idx)
        );
    `
	sqlInsertRun = `
        INSERT INTO scenario_runs (id, scenario, driver, state, target_url, revision, artifact, error, started_at, finished_at, duration_ms, report)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
    `
	sqlListRuns = `
        SELECT id, scenario, driver, state, target_url, artifact, error, started_at, duration_ms
        FROM scenario_runs
        WHERE ($1 = '' OR scenario = $1)
        ORDER BY started_at DESC
        LIMIT $2;
    `
)

var stepColumns = []string{"run_id", "idx", "name", "kind", "locator", "status", "duration_ms", "error"}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the history tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{sqlCreateRuns, sqlCreateSteps} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create history schema: %w", err)
		}
	}
	return nil
}

// SaveRun stores the run and its step results in one transaction.
func (s *Store) SaveRun(ctx context.Context, report *schemas.RunReport) error {
	if report == nil {
		return errors.New("cannot save a nil run report")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, sqlInsertRun,
		report.ID, report.Scenario, report.Driver, string(report.State), report.TargetURL,
		report.Revision, report.Artifact, report.Error,
		report.StartedAt.UTC(), report.FinishedAt.UTC(), report.DurationMs, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.ID, err)
	}

	if len(report.Steps) > 0 {
		rows := make([][]interface{}, len(report.Steps))
		for i, st := range report.Steps {
			rows[i] = []interface{}{
				report.ID, st.Index, st.Name, string(st.Kind), st.Locator,
				string(st.Status), st.DurationMs, st.Error,
			}
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"scenario_steps"}, stepColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy step results: %w", err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("mismatch in copied steps count: expected %d, got %d", len(rows), n)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run saved.", zap.String("run_id", report.ID), zap.Int("steps", len(report.Steps)))
	return nil
}

// ListRuns returns up to limit runs, newest first. An empty scenario lists all.
func (s *Store) ListRuns(ctx context.Context, scenario string, limit int) ([]schemas.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, sqlListRuns, scenario, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []schemas.RunSummary
	for rows.Next() {
		var r schemas.RunSummary
		var state string
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Driver, &state, &r.TargetURL, &r.Artifact, &r.Error, &r.StartedAt, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.State = schemas.RunState(state)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
