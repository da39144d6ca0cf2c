// Package main generates position series from L2 market data.
// Executes: parquet frames → indicators → breakout state machine → position files
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/export"
	"hft-multifactor/internal/logging"
	"hft-multifactor/internal/marketdata"
	"hft-multifactor/internal/orchestrator"
	"hft-multifactor/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	marketDir := flag.String("market-dir", "", "Market data root, overrides config")
	positionDir := flag.String("position-dir", "", "Position output root, overrides config")
	arrowDir := flag.String("arrow-dir", "", "Export indicator tables as Arrow IPC files to this directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	override(&cfg.Paths.MarketDir, *marketDir)
	override(&cfg.Paths.PositionDir, *positionDir)
	override(&cfg.Paths.ArrowDir, *arrowDir)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("signals failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	strat, err := strategy.FromConfig(strategy.StrategyTypeBreakout, cfg.Params, logger)
	if err != nil {
		return err
	}

	provOpts := strategy.ProviderOptions{
		Strategy: strat,
		Writer:   marketdata.NewPositionDir(cfg.Paths.PositionDir, cfg.Params.Columns.Time),
		Logger:   logger,
	}
	if cfg.Paths.ArrowDir != "" {
		provOpts.Tables = export.NewArrowWriter(cfg.Paths.ArrowDir)
	}

	params, err := json.Marshal(cfg.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Mode: domain.RunModeSignals,
		Source: marketdata.NewParquetDir(marketdata.ParquetDirOptions{
			Root:             cfg.Paths.MarketDir,
			TimeColumn:       cfg.Params.Columns.Time,
			TimeUnit:         cfg.Batch.TimeUnit,
			InstrumentFilter: cfg.Batch.InstrumentFilter,
			SkipFirstDate:    cfg.Batch.SkipFirstDate,
		}),
		Positions:           strategy.NewProvider(provOpts),
		Columns:             cfg.Params.Columns,
		Workers:             cfg.Batch.Workers,
		ExpectedInstruments: cfg.Batch.ExpectedInstruments,
		StrategyID:          strat.ID(),
		ParamsJSON:          string(params),
		Logger:              logger,
	})
	if err != nil {
		return err
	}

	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Signals completed: %d jobs, %d failures\n", result.Run.Jobs, result.Run.Failures)
	fmt.Printf("  - %s/<date>/<instrument>.csv\n", cfg.Paths.PositionDir)
	if cfg.Paths.ArrowDir != "" {
		fmt.Printf("  - %s/<date>/<instrument>.arrow\n", cfg.Paths.ArrowDir)
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
