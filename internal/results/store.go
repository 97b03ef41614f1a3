// File: internal/results/store.go

// Package results persists finished runs to PostgreSQL and streams
// check events to the database while scenarios are still executing.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides the PostgreSQL persistence layer for run results.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

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

const sqlInsertRun = `
        INSERT INTO runs (run_id, tool, version, target, started_at, completed_at, passed, failed, errored)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `

const sqlInsertScenario = `
        INSERT INTO scenarios (scenario_id, run_id, keyword, status, failure_message, product, started_at, duration_ms)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `

// SaveEnvelope writes a finished run in a single transaction: the run
// row, one row per scenario, and every check via COPY.
func (s *Store) SaveEnvelope(ctx context.Context, envelope *schemas.RunEnvelope) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback on a committed transaction reports ErrTxClosed, possibly wrapped.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.insertRun(ctx, tx, envelope); err != nil {
		return err
	}

	if len(envelope.Scenarios) > 0 {
		if err := s.persistScenarios(ctx, tx, envelope); err != nil {
			return err
		}
		if err := s.persistChecks(ctx, tx, envelope); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) insertRun(ctx context.Context, tx pgx.Tx, envelope *schemas.RunEnvelope) error {
	passed, failed, errored := envelope.Tally()

	_, err := tx.Exec(ctx, sqlInsertRun,
		envelope.RunID, envelope.Tool, envelope.Version, envelope.Target,
		envelope.StartedAt.UTC(), envelope.CompletedAt.UTC(),
		passed, failed, errored,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", envelope.RunID, err)
	}
	return nil
}

// persistScenarios queues one insert per scenario in a single batch round trip.
func (s *Store) persistScenarios(ctx context.Context, tx pgx.Tx, envelope *schemas.RunEnvelope) error {
	batch := &pgx.Batch{}

	for _, sc := range envelope.Scenarios {
		product, err := marshalProduct(sc.Product)
		if err != nil {
			return fmt.Errorf("failed to encode product for scenario %s: %w", sc.ScenarioID, err)
		}
		batch.Queue(sqlInsertScenario,
			sc.ScenarioID, envelope.RunID, sc.Keyword, string(sc.Status),
			sc.FailureMessage, product,
			sc.StartedAt.UTC(), sc.Duration.Milliseconds(),
		)
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	defer func() {
		_ = br.Close()
	}()

	// Each queued command must be executed for its status to surface.
	for i := range envelope.Scenarios {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert scenario %s (index %d): %w", envelope.Scenarios[i].ScenarioID, i, err)
		}
	}
	return nil
}

func (s *Store) persistChecks(ctx context.Context, tx pgx.Tx, envelope *schemas.RunEnvelope) error {
	var rows [][]interface{}
	for _, sc := range envelope.Scenarios {
		for _, c := range sc.Checks {
			rows = append(rows, []interface{}{
				uuid.NewString(), envelope.RunID, c.ScenarioID,
				c.Name, string(c.Kind), string(c.Status),
				c.Expected, c.Actual, c.Detail,
				c.ObservedAt.UTC(),
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"scenario_checks"},
		[]string{"id", "run_id", "scenario_id", "name", "kind", "status", "expected", "actual", "detail", "observed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy checks: %w", err)
	}
	if int(copyCount) != len(rows) {
		return fmt.Errorf("mismatch in copied check count: expected %d, got %d", len(rows), copyCount)
	}
	return nil
}

// marshalProduct renders the observed product as a JSONB payload. Flows
// that never reached a product page store an empty object.
func marshalProduct(p *schemas.ProductSummary) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// RunRecord is a stored run summary row.
type RunRecord struct {
	RunID       string
	Target      string
	StartedAt   time.Time
	CompletedAt time.Time
	Passed      int
	Failed      int
	Errored     int
}

// RecentRuns returns the latest persisted runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
        SELECT run_id, target, started_at, completed_at, passed, failed, errored
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.RunID, &r.Target, &r.StartedAt, &r.CompletedAt,
			&r.Passed, &r.Failed, &r.Errored,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}
