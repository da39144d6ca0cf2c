package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, mode, params_json, started_at, finished_at,
	dates, jobs, failures, total_trades
`

// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.BacktestRun) (err error) {
	start := time.Now()
	defer func() { observe("run_insert", start, err) }()

	query := `INSERT INTO backtest_runs (` + runColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.pool.Exec(ctx, query,
		r.RunID, r.Mode, r.ParamsJSON, r.StartedAt, r.FinishedAt,
		r.Dates, r.Jobs, r.Failures, r.TotalTrades,
	)
	return translate("insert backtest run", err)
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		return nil, translate("get backtest run "+runID, err)
	}
	return r, nil
}

// List retrieves all runs, ordered by started_at ASC, run_id ASC.
func (s *RunStore) List(ctx context.Context) ([]*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs ORDER BY started_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row into a BacktestRun.
func scanRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	err := row.Scan(
		&r.RunID, &r.Mode, &r.ParamsJSON, &r.StartedAt, &r.FinishedAt,
		&r.Dates, &r.Jobs, &r.Failures, &r.TotalTrades,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
