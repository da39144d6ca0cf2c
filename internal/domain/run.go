package domain

// BacktestRun describes one batch execution.
type BacktestRun struct {
	RunID       string
	Mode        string // signals | backtest | pipeline
	ParamsJSON  string // serialized strategy parameters
	StartedAt   int64  // ms
	FinishedAt  int64  // ms
	Dates       int
	Jobs        int
	Failures    int
	TotalTrades int
}

// Run modes
const (
	RunModeSignals  = "signals"
	RunModeBacktest = "backtest"
	RunModePipeline = "pipeline"
)

// DailyReturn is the sum of per-trade returns for one instrument on one date.
type DailyReturn struct {
	RunID       string
	TradingDate string
	Instrument  string // instrument prefix, e.g. RB
	Return      float64
	Trades      int
}
