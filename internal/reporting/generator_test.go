package reporting

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/metrics"
	"hft-multifactor/internal/storage"
	"hft-multifactor/internal/storage/memory"
)

func setupTestData(t *testing.T) (*memory.RunStore, *memory.DailyReturnStore, *memory.TradeStore) {
	ctx := context.Background()

	runStore := memory.NewRunStore()
	returnStore := memory.NewDailyReturnStore()
	tradeStore := memory.NewTradeStore()

	runs := []*domain.BacktestRun{
		{RunID: "run-1", Mode: domain.RunModeBacktest, StartedAt: 1000, FinishedAt: 61000, Dates: 2, Jobs: 4, Failures: 1},
		{RunID: "run-2", Mode: domain.RunModePipeline, StartedAt: 2000, FinishedAt: 3000},
	}
	for _, r := range runs {
		if err := runStore.Insert(ctx, r); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}

	returns := []*domain.DailyReturn{
		{RunID: "run-1", TradingDate: "20240102", Instrument: "IF", Return: 0.01, Trades: 1},
		{RunID: "run-1", TradingDate: "20240102", Instrument: "IC", Return: 0.03, Trades: 1},
		{RunID: "run-1", TradingDate: "20240103", Instrument: "IF", Return: -0.02, Trades: 1},
		{RunID: "run-1", TradingDate: "20240103", Instrument: "IC", Return: 0, Trades: 0},
	}
	if err := returnStore.InsertBulk(ctx, returns); err != nil {
		t.Fatalf("Insert returns failed: %v", err)
	}

	trades := []*domain.TradeRecord{
		{TradeID: "t1", RunID: "run-1", TradingDate: "20240102", Instrument: "IF2401_M", Seq: 0, Trade: domain.Trade{Return: 0.01}},
		{TradeID: "t2", RunID: "run-1", TradingDate: "20240102", Instrument: "IC2401_M", Seq: 0, Trade: domain.Trade{Return: 0.03}},
		{TradeID: "t3", RunID: "run-1", TradingDate: "20240103", Instrument: "IF2401_M", Seq: 0, Trade: domain.Trade{Return: -0.02}},
	}
	if err := tradeStore.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("Insert trades failed: %v", err)
	}

	return runStore, returnStore, tradeStore
}

func TestGenerate_WithClock(t *testing.T) {
	ctx := context.Background()
	runStore, returnStore, tradeStore := setupTestData(t)

	fixedTime := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	generator := NewGenerator(runStore, returnStore, tradeStore).WithClock(func() time.Time {
		return fixedTime
	})

	report, err := generator.Generate(ctx, "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(fixedTime) {
		t.Errorf("Expected GeneratedAt %v, got %v", fixedTime, report.GeneratedAt)
	}
	if report.Mode != domain.RunModeBacktest {
		t.Errorf("Expected mode %s, got %s", domain.RunModeBacktest, report.Mode)
	}
	if report.Batch.Jobs != 4 || report.Batch.Failures != 1 {
		t.Errorf("Unexpected batch summary: %+v", report.Batch)
	}
	if report.Portfolio.Days != 2 {
		t.Errorf("Expected 2 trading days, got %d", report.Portfolio.Days)
	}
	// Daily means: (0.01+0.03)/2 and (-0.02+0)/2
	if math.Abs(report.Portfolio.MeanDaily-0.005) > 1e-12 {
		t.Errorf("Expected mean daily 0.005, got %v", report.Portfolio.MeanDaily)
	}
	if report.Trades.TotalTrades != 3 || report.Trades.Wins != 2 {
		t.Errorf("Unexpected trade stats: %+v", report.Trades)
	}
	if report.Exits != nil {
		t.Error("Stored runs carry no exit reasons")
	}
}

func TestGenerate_Errors(t *testing.T) {
	ctx := context.Background()
	runStore, returnStore, tradeStore := setupTestData(t)
	generator := NewGenerator(runStore, returnStore, tradeStore)

	if _, err := generator.Generate(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := generator.Generate(ctx, "run-2"); !errors.Is(err, metrics.ErrNoReturns) {
		t.Errorf("Expected ErrNoReturns, got %v", err)
	}
}

func TestGenerator_Latest(t *testing.T) {
	ctx := context.Background()
	runStore, returnStore, tradeStore := setupTestData(t)

	id, err := NewGenerator(runStore, returnStore, tradeStore).Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if id != "run-2" {
		t.Errorf("Expected run-2, got %s", id)
	}

	empty := NewGenerator(memory.NewRunStore(), returnStore, tradeStore)
	if _, err := empty.Latest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRenderMarkdown_Format(t *testing.T) {
	ctx := context.Background()
	runStore, returnStore, tradeStore := setupTestData(t)

	report, err := NewGenerator(runStore, returnStore, tradeStore).Generate(ctx, "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	report.Exits = map[string]int{domain.ExitReasonTimeStop: 2, domain.ExitReasonStopLoss: 1}
	report.Batch.FailureKinds = map[string]int{"alignment": 1}

	md := RenderMarkdown(report)

	requiredSections := []string{
		"# Backtest Report",
		"## Batch",
		"### Failures by Kind",
		"## Portfolio",
		"## Trades",
		"## Exit Reasons",
		"| STOP_LOSS | 1 |",
		"| Duration | 1m0s |",
	}
	for _, section := range requiredSections {
		if !strings.Contains(md, section) {
			t.Errorf("Markdown missing section: %s", section)
		}
	}

	// Exit reasons are listed in sorted order
	if strings.Index(md, "STOP_LOSS") > strings.Index(md, "TIME_STOP") {
		t.Error("Exit reasons should be sorted")
	}
}

func TestRenderMarkdown_UndefinedSharpe(t *testing.T) {
	report := &Report{
		RunID:     "r",
		Portfolio: metrics.Summarize(metrics.BuildDailyTable([]string{"20240102"}, nil)),
	}

	md := RenderMarkdown(report)

	if !strings.Contains(md, "| Sharpe | NaN |") {
		t.Errorf("Expected NaN Sharpe, got:\n%s", md)
	}
	if !strings.Contains(md, "No trades.") {
		t.Error("Expected empty trades notice")
	}
}

func TestRenderBlotterCSV(t *testing.T) {
	trades := []domain.Trade{{
		OpenTime: 2000, OpenAction: domain.ActionBTO, OpenPrice: 100,
		CloseTime: 4000, CloseAction: domain.ActionBTC, ClosePrice: 105,
		Sign: 1, PnL: 5, Fee: 0.004715, NetPnL: 4.995285, Return: 0.04995285, CumReturn: 0.04995285,
	}}

	lines := strings.Split(strings.TrimSuffix(RenderBlotterCSV(trades), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0] != BlotterHeader {
		t.Errorf("Unexpected header: %s", lines[0])
	}

	want := "1970-01-01 00:00:02.000,BTO,100,1970-01-01 00:00:04.000,BTC,105,1," +
		"5.0000000000,0.0047150000,4.9952850000,0.0499528500,0.0499528500"
	if lines[1] != want {
		t.Errorf("Unexpected row:\n got %s\nwant %s", lines[1], want)
	}
}

func TestRenderBlotterCSV_EmptyKeepsHeader(t *testing.T) {
	if got := RenderBlotterCSV(nil); got != BlotterHeader+"\n" {
		t.Errorf("Expected header only, got %q", got)
	}
}

func TestRenderReturnsCSV(t *testing.T) {
	returns := []*domain.DailyReturn{
		{TradingDate: "20240102", Instrument: "IF", Return: 0.01},
		{TradingDate: "20240102", Instrument: "IC", Return: 0.03},
		{TradingDate: "20240103", Instrument: "IF", Return: -0.02},
	}
	table := metrics.BuildDailyTable([]string{"20240102", "20240103", "20240104"}, returns)

	want := strings.Join([]string{
		"date,IC,IF,mean",
		"20240102,0.0300000000,0.0100000000,0.0200000000",
		"20240103,,-0.0200000000,-0.0200000000",
		"20240104,,,",
	}, "\n") + "\n"

	if got := RenderReturnsCSV(table); got != want {
		t.Errorf("Unexpected CSV:\n got %s\nwant %s", got, want)
	}
}

func TestOutputDir_Write(t *testing.T) {
	root := t.TempDir()
	out := NewOutputDir(root)

	if err := out.WriteBlotter("20240102", "IF2401_M", nil); err != nil {
		t.Fatalf("WriteBlotter failed: %v", err)
	}
	if err := out.WriteReturns(metrics.BuildDailyTable(nil, nil)); err != nil {
		t.Fatalf("WriteReturns failed: %v", err)
	}
	if err := out.WriteSummary(&Report{RunID: "r"}); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	for _, p := range []string{
		filepath.Join(root, "20240102", "IF2401_M.csv"),
		filepath.Join(root, ReturnsFile),
		filepath.Join(root, SummaryFile),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Expected %s: %v", p, err)
		}
	}
}
