package reporting

import (
	"time"

	"hft-multifactor/internal/metrics"
)

// Report is the summary of one batch run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Mode        string
	StrategyID  string
	ParamsJSON  string

	// Batch
	Batch BatchSummary

	// Portfolio (from the daily table)
	Portfolio metrics.Summary

	// Per-trade statistics
	Trades metrics.TradeStats

	// Exit reason counts; nil when the run did not generate signals
	Exits map[string]int

	// Daily table backing the portfolio summary
	Table *metrics.DailyTable
}

// BatchSummary describes the jobs a run executed.
type BatchSummary struct {
	Dates        int
	Jobs         int
	Failures     int
	FailureKinds map[string]int
	StartedAt    int64 // Unix ms
	FinishedAt   int64 // Unix ms
}
