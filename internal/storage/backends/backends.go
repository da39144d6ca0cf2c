// Package backends wires the configured storage implementations.
package backends

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hft-multifactor/internal/config"
	"hft-multifactor/internal/logging"
	"hft-multifactor/internal/storage"
	chstore "hft-multifactor/internal/storage/clickhouse"
	"hft-multifactor/internal/storage/memory"
	"hft-multifactor/internal/storage/migrations"
	pgstore "hft-multifactor/internal/storage/postgres"
)

// Stores holds the stores selected by configuration.
// Postgres backs runs and trades; ClickHouse backs daily returns and
// market data. Anything not configured falls back to memory.
type Stores struct {
	Runs    storage.RunStore
	Trades  storage.TradeStore
	Returns storage.DailyReturnStore
	Market  storage.MarketDataStore

	pool *pgstore.Pool
	conn *chstore.Conn
}

// Open connects to the configured databases and applies migrations.
func Open(ctx context.Context, cfg config.Storage, batch config.Batch, logger *zap.Logger) (*Stores, error) {
	logger = logging.OrNop(logger)
	s := Memory()
	if cfg.UseMemory {
		logger.Info("using in-memory storage")
		return s, nil
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		s.pool = pool
		s.Runs = pgstore.NewRunStore(pool)
		s.Trades = pgstore.NewTradeStore(pool)
		logger.Info("connected to postgres")
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		s.conn = conn
		s.Returns = chstore.NewDailyReturnStore(conn)
		s.Market = chstore.NewMarketDataStore(conn, chstore.MarketDataOptions{
			InstrumentFilter: batch.InstrumentFilter,
			SkipFirstDate:    batch.SkipFirstDate,
		})
		logger.Info("connected to clickhouse")
	}
	return s, nil
}

// Memory returns in-memory stores.
func Memory() *Stores {
	return &Stores{
		Runs:    memory.NewRunStore(),
		Trades:  memory.NewTradeStore(),
		Returns: memory.NewDailyReturnStore(),
		Market:  memory.NewMarketDataStore(),
	}
}

// Persistent reports whether any database backend is connected.
func (s *Stores) Persistent() bool {
	return s.pool != nil || s.conn != nil
}

// Close releases database connections.
func (s *Stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
