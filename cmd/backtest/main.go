// Package main reconstructs trades from stored position files.
// Executes: position files + quotes → blotters → daily returns → summary
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

	"hft-multifactor/internal/backtest"
	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/logging"
	"hft-multifactor/internal/marketdata"
	"hft-multifactor/internal/orchestrator"
	"hft-multifactor/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	marketDir := flag.String("market-dir", "", "Market data root, overrides config")
	positionDir := flag.String("position-dir", "", "Position input root, overrides config")
	outputDir := flag.String("output-dir", "", "Blotter and returns output root, overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *marketDir != "" {
		cfg.Paths.MarketDir = *marketDir
	}
	if *positionDir != "" {
		cfg.Paths.PositionDir = *positionDir
	}
	if *outputDir != "" {
		cfg.Paths.OutputDir = *outputDir
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params, err := json.Marshal(cfg.Params)
	if err != nil {
		logger.Fatal("marshal params", zap.Error(err))
	}

	output := reporting.NewOutputDir(cfg.Paths.OutputDir)
	orch, err := orchestrator.New(orchestrator.Options{
		Mode: domain.RunModeBacktest,
		Source: marketdata.NewParquetDir(marketdata.ParquetDirOptions{
			Root:             cfg.Paths.MarketDir,
			TimeColumn:       cfg.Params.Columns.Time,
			TimeUnit:         cfg.Batch.TimeUnit,
			InstrumentFilter: cfg.Batch.InstrumentFilter,
			SkipFirstDate:    cfg.Batch.SkipFirstDate,
		}),
		Positions:           marketdata.NewPositionDir(cfg.Paths.PositionDir, cfg.Params.Columns.Time),
		Reconstructor:       backtest.NewReconstructor(cfg.Params.FeeRate),
		Columns:             cfg.Params.Columns,
		Output:              output,
		Workers:             cfg.Batch.Workers,
		ExpectedInstruments: cfg.Batch.ExpectedInstruments,
		ParamsJSON:          string(params),
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("create orchestrator", zap.Error(err))
	}

	result, err := orch.Run(ctx)
	if err != nil {
		logger.Fatal("backtest failed", zap.Error(err))
	}

	fmt.Println("Backtest completed:")
	fmt.Printf("  Jobs: %d (%d failed)\n", result.Run.Jobs, result.Run.Failures)
	fmt.Printf("  Trades: %d\n", result.Run.TotalTrades)
	fmt.Printf("  Annual return: %.6f\n", result.Summary.AnnualReturn)
	fmt.Printf("  Sharpe: %.4f\n", result.Summary.Sharpe)
	fmt.Printf("  - %s/%s\n", output.Root(), reporting.ReturnsFile)
	fmt.Printf("  - %s/%s\n", output.Root(), reporting.SummaryFile)
}
