package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, run_id, trading_date, instrument, seq,
	open_time, open_action, open_price,
	close_time, close_action, close_price,
	sign, pnl, fee, net_pnl, trade_return, cum_return
`

// tradeCopyColumns lists tradeColumns in CopyFrom row order.
var tradeCopyColumns = []string{
	"trade_id", "run_id", "trading_date", "instrument", "seq",
	"open_time", "open_action", "open_price",
	"close_time", "close_action", "close_price",
	"sign", "pnl", "fee", "net_pnl", "trade_return", "cum_return",
}

// InsertBulk copies the trades in one transaction. A trade_id that is already
// stored aborts the whole batch with ErrDuplicateKey.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) (err error) {
	if len(trades) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { observe("trade_insert_bulk", start, err) }()

	return s.pool.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"trades"}, tradeCopyColumns,
			pgx.CopyFromSlice(len(trades), func(i int) ([]any, error) {
				t := trades[i]
				return []any{
					t.TradeID, t.RunID, t.TradingDate, t.Instrument, t.Seq,
					t.OpenTime, t.OpenAction, t.OpenPrice,
					t.CloseTime, t.CloseAction, t.ClosePrice,
					t.Sign, t.PnL, t.Fee, t.NetPnL, t.Return, t.CumReturn,
				}, nil
			}))
		return translate("copy trades", err)
	})
}

// GetByRun retrieves all trades of a run, ordered by trading_date, instrument, seq.
func (s *TradeStore) GetByRun(ctx context.Context, runID string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE run_id = $1
		ORDER BY trading_date ASC, instrument ASC, seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, translate("get trades by run", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByInstrumentDay retrieves the blotter of one instrument-day, ordered by seq.
func (s *TradeStore) GetByInstrumentDay(ctx context.Context, runID, date, instrument string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE run_id = $1 AND trading_date = $2 AND instrument = $3
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, date, instrument)
	if err != nil {
		return nil, translate("get trades by instrument day", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrades scans multiple rows into a slice of TradeRecord.
func scanTrades(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		var t domain.TradeRecord
		err := rows.Scan(
			&t.TradeID, &t.RunID, &t.TradingDate, &t.Instrument, &t.Seq,
			&t.OpenTime, &t.OpenAction, &t.OpenPrice,
			&t.CloseTime, &t.CloseAction, &t.ClosePrice,
			&t.Sign, &t.PnL, &t.Fee, &t.NetPnL, &t.Return, &t.CumReturn,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
