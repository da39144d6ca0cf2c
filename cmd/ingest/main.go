package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hft-multifactor/internal/config"
	"hft-multifactor/internal/logging"
	"hft-multifactor/internal/marketdata"
	"hft-multifactor/internal/observability"
	"hft-multifactor/internal/storage"
	chstore "hft-multifactor/internal/storage/clickhouse"
	"hft-multifactor/internal/storage/migrations"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	marketDir := flag.String("market-dir", "", "Parquet market data root, overrides config")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string, overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *marketDir != "" {
		cfg.Paths.MarketDir = *marketDir
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Storage.ClickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required")
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Info("starting metrics server", zap.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("ingest failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// run copies every parquet instrument-day into ClickHouse. Instrument-days
// already present are skipped, so reruns resume where they stopped.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	// The parquet side does the filtering; the store sees every instrument.
	dst := chstore.NewMarketDataStore(conn, chstore.MarketDataOptions{})
	src := marketdata.NewParquetDir(marketdata.ParquetDirOptions{
		Root:             cfg.Paths.MarketDir,
		TimeColumn:       cfg.Params.Columns.Time,
		TimeUnit:         cfg.Batch.TimeUnit,
		InstrumentFilter: cfg.Batch.InstrumentFilter,
		SkipFirstDate:    cfg.Batch.SkipFirstDate,
	})

	dates, err := src.ListDates(ctx)
	if err != nil {
		return err
	}

	type job struct{ date, instrument string }
	var jobs []job
	for _, date := range dates {
		instruments, err := src.ListInstruments(ctx, date)
		if err != nil {
			return err
		}
		for _, inst := range instruments {
			jobs = append(jobs, job{date, inst})
		}
	}
	logger.Info("ingest planned", zap.Int("dates", len(dates)), zap.Int("frames", len(jobs)))

	start := time.Now()
	var ingested, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Batch.Workers)
	for _, j := range jobs {
		g.Go(func() error {
			frame, err := src.LoadFrame(gctx, j.date, j.instrument)
			if err != nil {
				return fmt.Errorf("load %s/%s: %w", j.date, j.instrument, err)
			}
			err = dst.InsertFrame(gctx, j.date, j.instrument, frame)
			switch {
			case storage.IsConflict(err):
				skipped.Add(1)
				logger.Debug("instrument-day already ingested", zap.String("date", j.date), zap.String("instrument", j.instrument))
				return nil
			case err != nil:
				return fmt.Errorf("insert %s/%s: %w", j.date, j.instrument, err)
			}
			ingested.Add(1)
			observability.DefaultMetrics.RecordIngest(frame.Len())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("ingest completed",
		zap.Int("dates", len(dates)),
		zap.Int64("ingested", ingested.Load()),
		zap.Int64("skipped", skipped.Load()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
