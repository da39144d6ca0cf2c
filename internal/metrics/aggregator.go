package metrics

import (
	"context"
	"errors"
	"math"
	"sort"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// TradingDaysPerYear annualises daily statistics.
const TradingDaysPerYear = 252

// ErrNoReturns is returned when a run has no daily returns to aggregate.
var ErrNoReturns = errors.New("no daily returns available for aggregation")

// DailyTable is the date by instrument matrix of summed trade returns.
// A missing cell means the instrument did not trade that date.
type DailyTable struct {
	Dates       []string
	Instruments []string
	Cells       map[string]map[string]float64 // date -> instrument -> return
	Means       []float64                     // per date, over instruments present
}

// Value returns the cell for (date, instrument).
func (t *DailyTable) Value(date, instrument string) (float64, bool) {
	v, ok := t.Cells[date][instrument]
	return v, ok
}

// BuildDailyTable pivots daily returns. Rows sharing (date, instrument) are
// summed. dates fixes the row set and order; dates with no rows keep an
// undefined mean. When dates is nil the dates present in returns are used.
func BuildDailyTable(dates []string, returns []*domain.DailyReturn) *DailyTable {
	cells := make(map[string]map[string]float64)
	instSet := make(map[string]struct{})
	dateSet := make(map[string]struct{})

	for _, r := range returns {
		row, ok := cells[r.TradingDate]
		if !ok {
			row = make(map[string]float64)
			cells[r.TradingDate] = row
		}
		row[r.Instrument] += r.Return
		instSet[r.Instrument] = struct{}{}
		dateSet[r.TradingDate] = struct{}{}
	}

	if dates == nil {
		for d := range dateSet {
			dates = append(dates, d)
		}
		sort.Strings(dates)
	}

	instruments := make([]string, 0, len(instSet))
	for inst := range instSet {
		instruments = append(instruments, inst)
	}
	sort.Strings(instruments)

	means := make([]float64, len(dates))
	for i, d := range dates {
		row := cells[d]
		if len(row) == 0 {
			means[i] = math.NaN()
			continue
		}
		sum := 0.0
		for _, inst := range instruments {
			if v, ok := row[inst]; ok {
				sum += v
			}
		}
		means[i] = sum / float64(len(row))
	}

	return &DailyTable{
		Dates:       dates,
		Instruments: instruments,
		Cells:       cells,
		Means:       means,
	}
}

// Summary is the portfolio-level result of a run.
type Summary struct {
	Days         int     // dates with a defined mean
	MeanDaily    float64 // mean of daily means
	StdDaily     float64 // sample stddev of daily means
	AnnualReturn float64
	Sharpe       float64
}

// Summarize annualises the daily mean series. Undefined daily means are
// skipped. Fewer than two days yield an undefined stddev and Sharpe; a zero
// stddev yields an infinite or undefined Sharpe.
func Summarize(table *DailyTable) Summary {
	var means []float64
	for _, m := range table.Means {
		if !math.IsNaN(m) {
			means = append(means, m)
		}
	}

	s := Summary{Days: len(means)}
	if len(means) == 0 {
		s.MeanDaily = math.NaN()
		s.StdDaily = math.NaN()
		s.AnnualReturn = math.NaN()
		s.Sharpe = math.NaN()
		return s
	}

	s.MeanDaily = computeMean(means)
	s.StdDaily = math.NaN()
	if len(means) >= 2 {
		s.StdDaily = computeStddev(means, s.MeanDaily)
	}
	s.AnnualReturn = s.MeanDaily * TradingDaysPerYear
	s.Sharpe = s.MeanDaily / s.StdDaily * math.Sqrt(TradingDaysPerYear)
	return s
}

// Aggregator rebuilds run summaries from stored results.
type Aggregator struct {
	returnStore storage.DailyReturnStore
	tradeStore  storage.TradeStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(returnStore storage.DailyReturnStore, tradeStore storage.TradeStore) *Aggregator {
	return &Aggregator{
		returnStore: returnStore,
		tradeStore:  tradeStore,
	}
}

// RunReport is everything needed to render a run summary.
type RunReport struct {
	Table   *DailyTable
	Summary Summary
	Trades  TradeStats
}

// ComputeRun loads a run's daily returns and trades and aggregates them.
// Returns ErrNoReturns if the run has no daily returns.
func (a *Aggregator) ComputeRun(ctx context.Context, runID string) (*RunReport, error) {
	returns, err := a.returnStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(returns) == 0 {
		return nil, ErrNoReturns
	}

	var stats TradeStats
	if a.tradeStore != nil {
		trades, err := a.tradeStore.GetByRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		stats = ComputeTradeStats(trades)
	}

	table := BuildDailyTable(nil, returns)
	return &RunReport{
		Table:   table,
		Summary: Summarize(table),
		Trades:  stats,
	}, nil
}
