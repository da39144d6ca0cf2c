// Package main provides the end-to-end entry point.
// Executes: market frames → signals → reconstruction → daily returns → reporting
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"hft-multifactor/internal/backtest"
	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/export"
	"hft-multifactor/internal/logging"
	"hft-multifactor/internal/marketdata"
	"hft-multifactor/internal/observability"
	"hft-multifactor/internal/orchestrator"
	"hft-multifactor/internal/reporting"
	"hft-multifactor/internal/storage"
	"hft-multifactor/internal/storage/backends"
	"hft-multifactor/internal/strategy"
	"hft-multifactor/internal/verification"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain returns the process exit code so deferred cleanup runs first.
func realMain(args []string) int {
	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file (optional)")
	source := fs.String("source", "parquet", "Market data source: parquet or clickhouse")
	outputDir := fs.String("output-dir", "", "Blotter and returns output root, overrides config")
	writePositions := fs.Bool("write-positions", false, "Also write generated positions to the position dir")
	verify := fs.Bool("verify", false, "Replay stored instrument-days after the run and compare blotters")
	useMemory := fs.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	if *outputDir != "" {
		cfg.Paths.OutputDir = *outputDir
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := run(ctx, cfg, *source, *writePositions, *verify, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("pipeline cancelled")
			return 0
		}
		logger.Error("pipeline failed", zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, source string, writePositions, verify bool, logger *zap.Logger) error {
	stores, err := backends.Open(ctx, cfg.Storage, cfg.Batch, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	var market storage.MarketDataSource
	switch source {
	case "parquet":
		market = marketdata.NewParquetDir(marketdata.ParquetDirOptions{
			Root:             cfg.Paths.MarketDir,
			TimeColumn:       cfg.Params.Columns.Time,
			TimeUnit:         cfg.Batch.TimeUnit,
			InstrumentFilter: cfg.Batch.InstrumentFilter,
			SkipFirstDate:    cfg.Batch.SkipFirstDate,
		})
	case "clickhouse":
		if cfg.Storage.UseMemory || cfg.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("--source clickhouse requires clickhouse_dsn")
		}
		market = stores.Market
	default:
		return fmt.Errorf("unknown source %q", source)
	}

	strat, err := strategy.FromConfig(strategy.StrategyTypeBreakout, cfg.Params, logger)
	if err != nil {
		return err
	}
	provOpts := strategy.ProviderOptions{Strategy: strat, Logger: logger}
	if writePositions {
		provOpts.Writer = marketdata.NewPositionDir(cfg.Paths.PositionDir, cfg.Params.Columns.Time)
	}
	if cfg.Paths.ArrowDir != "" {
		provOpts.Tables = export.NewArrowWriter(cfg.Paths.ArrowDir)
	}

	params, err := json.Marshal(cfg.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	output := reporting.NewOutputDir(cfg.Paths.OutputDir)
	orch, err := orchestrator.New(orchestrator.Options{
		Mode:                domain.RunModePipeline,
		Source:              market,
		Positions:           strategy.NewProvider(provOpts),
		Reconstructor:       backtest.NewReconstructor(cfg.Params.FeeRate),
		Columns:             cfg.Params.Columns,
		Output:              output,
		RunStore:            stores.Runs,
		TradeStore:          stores.Trades,
		ReturnStore:         stores.Returns,
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

	fmt.Println("Pipeline completed successfully:")
	fmt.Printf("  Run: %s\n", result.Run.RunID)
	fmt.Printf("  Jobs: %d (%d failed)\n", result.Run.Jobs, result.Run.Failures)
	fmt.Printf("  Trades: %d\n", result.Run.TotalTrades)
	fmt.Printf("  Annual return: %.6f\n", result.Summary.AnnualReturn)
	fmt.Printf("  Sharpe: %.4f\n", result.Summary.Sharpe)
	fmt.Printf("  - %s/%s\n", output.Root(), reporting.ReturnsFile)
	fmt.Printf("  - %s/%s\n", output.Root(), reporting.SummaryFile)

	if !verify || result.Run.TotalTrades == 0 {
		return nil
	}
	// Replays stay off the exported counters.
	replay := strategy.NewProvider(strategy.ProviderOptions{
		Strategy: strat,
		Logger:   logger,
		Metrics:  observability.NewMetrics("", prometheus.NewRegistry()),
	})
	verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		TradeStore:    stores.Trades,
		Source:        market,
		Positions:     replay,
		Reconstructor: backtest.NewReconstructor(cfg.Params.FeeRate),
		Columns:       cfg.Params.Columns,
	})
	report, err := verifier.VerifyRun(ctx, result.Run.RunID)
	if err != nil {
		return fmt.Errorf("verify run: %w", err)
	}
	fmt.Printf("Verification: %d/%d instrument-days match\n", report.Matched, report.InstrumentDays)
	for _, r := range report.Results {
		for _, d := range r.Divergences {
			logger.Warn("blotter divergence",
				zap.String("date", r.TradingDate),
				zap.String("instrument", r.Instrument),
				zap.String("field", d.Field),
				zap.Any("stored", d.Expected),
				zap.Any("replayed", d.Actual))
		}
	}
	if report.Divergent > 0 {
		return fmt.Errorf("%d instrument-days diverged on replay", report.Divergent)
	}
	return nil
}

// serveMetrics starts the /metrics and /health endpoints.
func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return srv
}
