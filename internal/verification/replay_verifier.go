package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"hft-multifactor/internal/backtest"
	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// ErrNoTrades is returned when a run has no stored trades to verify.
var ErrNoTrades = errors.New("no stored trades for run")

// PositionSource supplies the position series for an instrument-day.
type PositionSource interface {
	Positions(ctx context.Context, date, instrument string, frame *domain.Frame) ([]domain.PositionPoint, []domain.PositionEvent, error)
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	TradeStore    storage.TradeStore
	Source        storage.MarketDataSource
	Positions     PositionSource
	Reconstructor *backtest.Reconstructor
	Columns       config.Columns
}

// ReplayVerifier re-runs reconstruction for stored instrument-days.
type ReplayVerifier struct {
	trades        storage.TradeStore
	source        storage.MarketDataSource
	positions     PositionSource
	reconstructor *backtest.Reconstructor
	columns       config.Columns
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	if opts.Columns == (config.Columns{}) {
		opts.Columns = config.DefaultColumns()
	}
	if opts.Reconstructor == nil {
		opts.Reconstructor = backtest.NewReconstructor(config.DefaultFeeRate)
	}
	return &ReplayVerifier{
		trades:        opts.TradeStore,
		source:        opts.Source,
		positions:     opts.Positions,
		reconstructor: opts.Reconstructor,
		columns:       opts.Columns,
	}
}

// VerifyInstrumentDay compares the stored blotter of one instrument-day with
// a fresh reconstruction.
func (v *ReplayVerifier) VerifyInstrumentDay(ctx context.Context, runID, date, instrument string) (*VerificationResult, error) {
	stored, err := v.trades.GetByInstrumentDay(ctx, runID, date, instrument)
	if err != nil {
		return nil, err
	}

	replayed, err := v.replay(ctx, date, instrument)
	if err != nil {
		return nil, err
	}

	divergences := CompareBlotters(stored, replayed)
	return &VerificationResult{
		TradingDate:    date,
		Instrument:     instrument,
		Match:          len(divergences) == 0,
		Divergences:    divergences,
		StoredTrades:   len(stored),
		ReplayedTrades: len(replayed),
	}, nil
}

// VerifyRun verifies every instrument-day that has stored trades.
// Instrument-days that produced no trades leave nothing to compare and are
// not visited.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationReport, error) {
	trades, err := v.trades.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTrades, runID)
	}

	type dayKey struct{ date, instrument string }
	seen := make(map[dayKey]struct{})
	var days []dayKey
	for _, t := range trades {
		k := dayKey{t.TradingDate, t.Instrument}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			days = append(days, k)
		}
	}
	sort.Slice(days, func(i, j int) bool {
		if days[i].date != days[j].date {
			return days[i].date < days[j].date
		}
		return days[i].instrument < days[j].instrument
	})

	report := &VerificationReport{
		RunID:          runID,
		InstrumentDays: len(days),
		Results:        make([]VerificationResult, 0, len(days)),
	}
	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := v.VerifyInstrumentDay(ctx, runID, d.date, d.instrument)
		if err != nil {
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				TradingDate: d.date,
				Instrument:  d.instrument,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.Divergent++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.Matched++
		} else {
			report.Divergent++
		}
	}
	return report, nil
}

func (v *ReplayVerifier) replay(ctx context.Context, date, instrument string) ([]domain.Trade, error) {
	frame, err := v.source.LoadFrame(ctx, date, instrument)
	if err != nil {
		return nil, fmt.Errorf("load frame: %w", err)
	}
	points, _, err := v.positions.Positions(ctx, date, instrument, frame)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	quotes, err := backtest.Quotes(frame, v.columns.BidPrice, v.columns.AskPrice)
	if err != nil {
		return nil, err
	}

	res := v.reconstructor.Reconstruct(points, quotes)
	if !res.OK() {
		return nil, res.Failure
	}
	return res.Trades, nil
}
