package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"hft-multifactor/internal/config"
	"hft-multifactor/internal/logging"
	"hft-multifactor/internal/reporting"
	"hft-multifactor/internal/storage"
	"hft-multifactor/internal/storage/backends"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain returns the process exit code so deferred cleanup runs first.
func realMain(args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file (optional)")
	runID := fs.String("run", "", "Run ID to report (default: latest run)")
	outputDir := fs.String("output-dir", "", "Directory for summary.md and all_rets.csv, overrides config")
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

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if cfg.Storage.UseMemory {
		fmt.Fprintln(os.Stderr, "Error: report reads stored runs; set postgres_dsn and clickhouse_dsn and use_memory=false")
		return 1
	}

	ctx := context.Background()
	stores, err := backends.Open(ctx, cfg.Storage, cfg.Batch, logger)
	if err != nil {
		logger.Error("open stores", zap.Error(err))
		return 1
	}
	defer stores.Close()

	gen := reporting.NewGenerator(stores.Runs, stores.Returns, stores.Trades)

	id := *runID
	if id == "" {
		id, err = gen.Latest(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "No runs stored")
			return 1
		}
		if err != nil {
			logger.Error("find latest run", zap.Error(err))
			return 1
		}
	}

	rep, err := gen.Generate(ctx, id)
	if err != nil {
		logger.Error("generate report", zap.String("run_id", id), zap.Error(err))
		return 1
	}

	out := reporting.NewOutputDir(cfg.Paths.OutputDir)
	if err := out.WriteReturns(rep.Table); err != nil {
		logger.Error("write returns", zap.Error(err))
		return 1
	}
	if err := out.WriteSummary(rep); err != nil {
		logger.Error("write summary", zap.Error(err))
		return 1
	}

	fmt.Print(reporting.RenderMarkdown(rep))
	fmt.Printf("\nReport for run %s written to:\n", id)
	fmt.Printf("  - %s/%s\n", out.Root(), reporting.ReturnsFile)
	fmt.Printf("  - %s/%s\n", out.Root(), reporting.SummaryFile)
	return 0
}
