package storage

import (
	"context"

	"hft-multifactor/internal/domain"
)

// RunStore provides access to backtest_runs storage.
type RunStore interface {
	// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// List retrieves all runs, ordered by started_at ASC, run_id ASC.
	List(ctx context.Context) ([]*domain.BacktestRun, error)
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate trade_id.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByRun retrieves all trades of a run, ordered by trading_date, instrument, seq.
	GetByRun(ctx context.Context, runID string) ([]*domain.TradeRecord, error)

	// GetByInstrumentDay retrieves the blotter of one instrument-day, ordered by seq.
	GetByInstrumentDay(ctx context.Context, runID, date, instrument string) ([]*domain.TradeRecord, error)
}

// DailyReturnStore provides access to daily_returns storage.
type DailyReturnStore interface {
	// InsertBulk adds multiple rows atomically.
	// Fails entire batch on duplicate (run_id, trading_date, instrument).
	InsertBulk(ctx context.Context, returns []*domain.DailyReturn) error

	// GetByRun retrieves all rows of a run, ordered by trading_date, instrument.
	GetByRun(ctx context.Context, runID string) ([]*domain.DailyReturn, error)
}

// MarketDataSource enumerates and loads instrument-day frames.
type MarketDataSource interface {
	// ListDates returns trading dates in ascending order.
	ListDates(ctx context.Context) ([]string, error)

	// ListInstruments returns the instruments available on date, sorted.
	ListInstruments(ctx context.Context, date string) ([]string, error)

	// LoadFrame loads one instrument-day. Returns ErrNotFound if absent.
	LoadFrame(ctx context.Context, date, instrument string) (*domain.Frame, error)
}

// MarketDataStore is a MarketDataSource that can also be written to.
type MarketDataStore interface {
	MarketDataSource

	// InsertFrame adds one instrument-day. Returns ErrDuplicateKey if it already exists.
	InsertFrame(ctx context.Context, date, instrument string, frame *domain.Frame) error
}
