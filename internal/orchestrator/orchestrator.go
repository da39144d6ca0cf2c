// Package orchestrator runs the batch harness: every instrument-day of the
// market source is processed on a bounded worker pool, and the results are
// aggregated into daily returns, persisted and reported.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hft-multifactor/internal/backtest"
	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/idhash"
	"hft-multifactor/internal/logging"
	"hft-multifactor/internal/metrics"
	"hft-multifactor/internal/observability"
	"hft-multifactor/internal/reporting"
	"hft-multifactor/internal/storage"
)

// DefaultWorkers is the pool size used when Options.Workers is not positive.
const DefaultWorkers = 20

// ErrNoPositions is returned by New when no position source is configured.
var ErrNoPositions = errors.New("orchestrator requires a position source")

// PositionSource yields the position series of one instrument-day, together
// with any entry and exit events that produced it.
type PositionSource interface {
	Positions(ctx context.Context, date, instrument string, frame *domain.Frame) ([]domain.PositionPoint, []domain.PositionEvent, error)
}

// ArtifactWriter persists per-job blotters and run-level tables.
type ArtifactWriter interface {
	WriteBlotter(date, instrument string, trades []domain.Trade) error
	WriteReturns(table *metrics.DailyTable) error
	WriteSummary(r *reporting.Report) error
}

// Options for creating Orchestrator.
type Options struct {
	Mode      string // domain.RunMode*
	Source    storage.MarketDataSource
	Positions PositionSource

	// Reconstructor turns positions into blotters. Nil runs the signals
	// stage only.
	Reconstructor *backtest.Reconstructor
	Columns       config.Columns // quote columns for reconstruction

	// Optional sinks
	Output      ArtifactWriter
	RunStore    storage.RunStore
	TradeStore  storage.TradeStore
	ReturnStore storage.DailyReturnStore

	Workers             int
	ExpectedInstruments int // 0 disables the batch-shape check
	StrategyID          string
	ParamsJSON          string

	Logger  *zap.Logger
	Metrics *observability.Metrics
	Now     func() time.Time // Injectable clock for deterministic output
}

// Orchestrator coordinates one batch run.
type Orchestrator struct {
	opts    Options
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("orchestrator requires a market data source")
	}
	if opts.Positions == nil {
		return nil, ErrNoPositions
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Mode == "" {
		opts.Mode = domain.RunModePipeline
		if opts.Reconstructor == nil {
			opts.Mode = domain.RunModeSignals
		}
	}
	if opts.Columns == (config.Columns{}) {
		opts.Columns = config.DefaultColumns()
	}

	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Orchestrator{
		opts:    opts,
		logger:  logging.OrNop(opts.Logger).With(zap.String("mode", opts.Mode)),
		metrics: observability.OrDefault(opts.Metrics),
		now:     now,
	}, nil
}

// Job identifies one instrument-day.
type Job struct {
	Date       string
	Instrument string
}

// JobResult is the outcome of one instrument-day. A failed job carries an
// empty blotter.
type JobResult struct {
	Job
	Trades  []domain.Trade
	Events  []domain.PositionEvent
	Failure *backtest.Failure
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	Run          *domain.BacktestRun
	Dates        []string
	Jobs         []JobResult
	Records      []*domain.TradeRecord
	Returns      []*domain.DailyReturn
	Table        *metrics.DailyTable
	Summary      metrics.Summary
	Trades       metrics.TradeStats
	Exits        map[string]int
	FailureKinds map[string]int
}

// Run executes every instrument-day and aggregates the results.
// Job failures are recorded, never returned; an error means enumeration,
// persistence or cancellation failed.
func (o *Orchestrator) Run(ctx context.Context) (result *RunResult, err error) {
	started := o.now()
	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", runID))

	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		finished := o.now()
		o.metrics.RecordRun(o.opts.Mode, status, finished.Sub(started).Seconds(), finished.Unix())
	}()

	dates, jobs, err := o.plan(ctx, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("batch planned", zap.Int("dates", len(dates)), zap.Int("jobs", len(jobs)))

	results := make([]JobResult, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(o.opts.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = o.runJob(ctx, logger, job)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch cancelled: %w", err)
	}

	result = o.aggregate(runID, dates, results)
	result.Run.StartedAt = started.UnixMilli()
	result.Run.FinishedAt = o.now().UnixMilli()

	if err := o.persist(ctx, result); err != nil {
		return nil, err
	}
	if err := o.writeArtifacts(result); err != nil {
		return nil, err
	}

	logger.Info("batch completed",
		zap.Int("jobs", result.Run.Jobs),
		zap.Int("failures", result.Run.Failures),
		zap.Int("trades", result.Run.TotalTrades),
		zap.Float64("annual_return", result.Summary.AnnualReturn),
		zap.Float64("sharpe", result.Summary.Sharpe),
		zap.Duration("elapsed", o.now().Sub(started)))

	return result, nil
}

// plan enumerates dates and their instruments. A date whose instrument count
// differs from ExpectedInstruments is logged and counted, then processed.
func (o *Orchestrator) plan(ctx context.Context, logger *zap.Logger) ([]string, []Job, error) {
	dates, err := o.opts.Source.ListDates(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list dates: %w", err)
	}

	var jobs []Job
	for _, date := range dates {
		instruments, err := o.opts.Source.ListInstruments(ctx, date)
		if err != nil {
			return nil, nil, fmt.Errorf("list instruments for %s: %w", date, err)
		}

		if n := o.opts.ExpectedInstruments; n > 0 && len(instruments) != n {
			logger.Warn("unexpected instrument count",
				zap.String("date", date),
				zap.Int("expected", n),
				zap.Int("actual", len(instruments)))
			o.metrics.RecordBatchShapeMismatch()
		}

		for _, inst := range instruments {
			jobs = append(jobs, Job{Date: date, Instrument: inst})
		}
	}
	return dates, jobs, nil
}

// runJob processes one instrument-day. It never returns an error; failures
// are classified into the result.
func (o *Orchestrator) runJob(ctx context.Context, logger *zap.Logger, job Job) JobResult {
	start := time.Now()
	res := o.execute(ctx, job)

	status := "ok"
	if res.Failure != nil {
		status = "failed"
		o.metrics.RecordFailure(string(res.Failure.Kind))
		logger.Error("job failed",
			zap.String("date", job.Date),
			zap.String("instrument", job.Instrument),
			zap.String("kind", string(res.Failure.Kind)),
			zap.Error(res.Failure.Err))
	}

	if o.opts.Reconstructor != nil && o.opts.Output != nil {
		if err := o.opts.Output.WriteBlotter(job.Date, job.Instrument, res.Trades); err != nil {
			logger.Error("write blotter",
				zap.String("date", job.Date),
				zap.String("instrument", job.Instrument),
				zap.Error(err))
		}
	}

	o.metrics.RecordJob(o.opts.Mode, status, time.Since(start).Seconds())
	return res
}

func (o *Orchestrator) execute(ctx context.Context, job Job) JobResult {
	res := JobResult{Job: job, Trades: []domain.Trade{}}
	fail := func(kind backtest.FailureKind, err error) JobResult {
		res.Trades = []domain.Trade{}
		res.Failure = &backtest.Failure{Kind: kind, Err: err}
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(backtest.FailureInput, err)
	}

	frame, err := o.opts.Source.LoadFrame(ctx, job.Date, job.Instrument)
	if err != nil {
		return fail(backtest.FailureInput, fmt.Errorf("load frame: %w", err))
	}

	points, events, err := o.opts.Positions.Positions(ctx, job.Date, job.Instrument, frame)
	if err != nil {
		return fail(backtest.FailureInput, fmt.Errorf("positions: %w", err))
	}
	res.Events = events

	if o.opts.Reconstructor == nil {
		return res
	}

	quotes, err := backtest.Quotes(frame, o.opts.Columns.BidPrice, o.opts.Columns.AskPrice)
	if err != nil {
		return fail(backtest.FailureInput, err)
	}

	rr := o.opts.Reconstructor.Reconstruct(points, quotes)
	if !rr.OK() {
		return fail(rr.Failure.Kind, rr.Failure.Err)
	}
	res.Trades = rr.Trades
	o.metrics.RecordTrades(len(rr.Trades))
	return res
}

// aggregate folds job results into daily returns, statistics and the run row.
func (o *Orchestrator) aggregate(runID string, dates []string, results []JobResult) *RunResult {
	run := &domain.BacktestRun{
		RunID:      runID,
		Mode:       o.opts.Mode,
		ParamsJSON: o.opts.ParamsJSON,
		Dates:      len(dates),
		Jobs:       len(results),
	}

	exits := make(map[string]int)
	kinds := make(map[string]int)
	var records []*domain.TradeRecord

	type dayKey struct{ date, instrument string }
	daily := make(map[dayKey]*domain.DailyReturn)
	var order []dayKey

	for _, r := range results {
		for _, ev := range r.Events {
			if !ev.Entry {
				exits[ev.Reason]++
			}
		}
		if r.Failure != nil {
			run.Failures++
			kinds[string(r.Failure.Kind)]++
		}

		for seq, t := range r.Trades {
			records = append(records, &domain.TradeRecord{
				TradeID:     idhash.ComputeTradeID(runID, r.Date, r.Instrument, seq, t.OpenTime),
				RunID:       runID,
				TradingDate: r.Date,
				Instrument:  r.Instrument,
				Seq:         seq,
				Trade:       t,
			})
		}
		run.TotalTrades += len(r.Trades)

		if o.opts.Reconstructor == nil {
			continue
		}
		k := dayKey{r.Date, InstrumentPrefix(r.Instrument)}
		d, ok := daily[k]
		if !ok {
			d = &domain.DailyReturn{RunID: runID, TradingDate: k.date, Instrument: k.instrument}
			daily[k] = d
			order = append(order, k)
		}
		for _, t := range r.Trades {
			d.Return += t.Return
		}
		d.Trades += len(r.Trades)
	}

	returns := make([]*domain.DailyReturn, 0, len(order))
	for _, k := range order {
		returns = append(returns, daily[k])
	}

	result := &RunResult{
		Run:          run,
		Dates:        dates,
		Jobs:         results,
		Records:      records,
		FailureKinds: kinds,
		Exits:        exits,
	}
	if o.opts.Reconstructor != nil {
		result.Returns = returns
		result.Table = metrics.BuildDailyTable(dates, returns)
		result.Summary = metrics.Summarize(result.Table)
		result.Trades = metrics.ComputeTradeStats(records)
	}
	return result
}

// persist writes the run row, trades and daily returns to the configured stores.
func (o *Orchestrator) persist(ctx context.Context, r *RunResult) error {
	if s := o.opts.RunStore; s != nil {
		if err := s.Insert(ctx, r.Run); err != nil {
			return fmt.Errorf("store run: %w", err)
		}
	}
	if s := o.opts.TradeStore; s != nil && len(r.Records) > 0 {
		if err := s.InsertBulk(ctx, r.Records); err != nil {
			return fmt.Errorf("store trades: %w", err)
		}
	}
	if s := o.opts.ReturnStore; s != nil && len(r.Returns) > 0 {
		if err := s.InsertBulk(ctx, r.Returns); err != nil {
			return fmt.Errorf("store daily returns: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) writeArtifacts(r *RunResult) error {
	if o.opts.Output == nil || o.opts.Reconstructor == nil {
		return nil
	}
	if err := o.opts.Output.WriteReturns(r.Table); err != nil {
		return fmt.Errorf("write returns: %w", err)
	}
	if err := o.opts.Output.WriteSummary(r.Report(o.now(), o.opts.StrategyID)); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Report builds the markdown report model for the run.
func (r *RunResult) Report(generatedAt time.Time, strategyID string) *reporting.Report {
	rep := &reporting.Report{
		GeneratedAt: generatedAt,
		RunID:       r.Run.RunID,
		Mode:        r.Run.Mode,
		StrategyID:  strategyID,
		ParamsJSON:  r.Run.ParamsJSON,
		Batch: reporting.BatchSummary{
			Dates:        r.Run.Dates,
			Jobs:         r.Run.Jobs,
			Failures:     r.Run.Failures,
			FailureKinds: r.FailureKinds,
			StartedAt:    r.Run.StartedAt,
			FinishedAt:   r.Run.FinishedAt,
		},
		Portfolio: r.Summary,
		Trades:    r.Trades,
		Table:     r.Table,
	}
	if r.Run.Mode != domain.RunModeBacktest {
		rep.Exits = r.Exits
	}
	return rep
}

// InstrumentPrefix returns the instrument name up to its first underscore,
// e.g. IF2401_M -> IF2401.
func InstrumentPrefix(instrument string) string {
	if i := strings.IndexByte(instrument, '_'); i >= 0 {
		return instrument[:i]
	}
	return instrument
}
