package clickhouse

import (
	"context"
	"fmt"
	"time"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// DailyReturnStore implements storage.DailyReturnStore using ClickHouse.
type DailyReturnStore struct {
	conn *Conn
}

// NewDailyReturnStore creates a new DailyReturnStore.
func NewDailyReturnStore(conn *Conn) *DailyReturnStore {
	return &DailyReturnStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DailyReturnStore = (*DailyReturnStore)(nil)

type dailyReturnKey struct {
	runID      string
	date       string
	instrument string
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate
// (run_id, trading_date, instrument), within the batch or against stored rows.
func (s *DailyReturnStore) InsertBulk(ctx context.Context, returns []*domain.DailyReturn) (err error) {
	if len(returns) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { observe("daily_return_insert_bulk", start, err) }()

	// Check for intra-batch duplicates
	seen := make(map[dailyReturnKey]struct{}, len(returns))
	runs := make(map[string]struct{})
	for _, r := range returns {
		if r == nil || r.RunID == "" || r.TradingDate == "" || r.Instrument == "" {
			return storage.ErrInvalidInput
		}
		k := dailyReturnKey{r.RunID, r.TradingDate, r.Instrument}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[r.RunID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for runID := range runs {
		existing, err := s.keys(ctx, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for k := range existing {
			if _, clash := seen[k]; clash {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_returns (
			run_id, trading_date, instrument, daily_return, trades
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range returns {
		err = batch.Append(r.RunID, r.TradingDate, r.Instrument, r.Return, uint32(r.Trades))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRun retrieves all rows of a run, ordered by trading_date, instrument.
func (s *DailyReturnStore) GetByRun(ctx context.Context, runID string) ([]*domain.DailyReturn, error) {
	query := `
		SELECT run_id, trading_date, instrument, daily_return, trades
		FROM daily_returns FINAL
		WHERE run_id = ?
		ORDER BY trading_date ASC, instrument ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanDailyReturns(rows)
}

// keys returns the stored (date, instrument) keys of a run.
func (s *DailyReturnStore) keys(ctx context.Context, runID string) (map[dailyReturnKey]struct{}, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT trading_date, instrument FROM daily_returns
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[dailyReturnKey]struct{})
	for rows.Next() {
		k := dailyReturnKey{runID: runID}
		if err := rows.Scan(&k.date, &k.instrument); err != nil {
			return nil, err
		}
		out[k] = struct{}{}
	}
	return out, rows.Err()
}

// scanDailyReturns scans multiple rows.
func scanDailyReturns(rows chRows) ([]*domain.DailyReturn, error) {
	var returns []*domain.DailyReturn

	for rows.Next() {
		var r domain.DailyReturn
		var trades uint32

		if err := rows.Scan(&r.RunID, &r.TradingDate, &r.Instrument, &r.Return, &trades); err != nil {
			return nil, fmt.Errorf("scan daily return row: %w", err)
		}

		r.Trades = int(trades)
		returns = append(returns, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily return rows: %w", err)
	}

	return returns, nil
}
