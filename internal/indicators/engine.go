// Package indicators computes the per-bar statistics the breakout rule reads.
package indicators

import (
	"math"

	"go.uber.org/zap"

	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/logging"
)

// epsilon guards the VWAP and OBI denominators.
const epsilon = 1e-12

// Engine computes an IndicatorSet from a bar frame.
// It holds no per-run state and is safe for concurrent use.
type Engine struct {
	params config.StrategyParams
	logger *zap.Logger
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(params config.StrategyParams, logger *zap.Logger) *Engine {
	return &Engine{
		params: params,
		logger: logging.OrNop(logger),
	}
}

// Compute returns the indicator set for frame.
// A bound input column that is absent is replaced by an all-NaN column and
// reported in MissingColumns; computation continues in degraded mode.
// All trailing statistics at bar i use only bars at or before i, and
// rolling_high, rolling_low and vol_ma only bars strictly before i.
func (e *Engine) Compute(frame *domain.Frame) *domain.IndicatorSet {
	p := e.params
	cols := p.Columns
	set := &domain.IndicatorSet{}

	resolve := func(name string) []float64 {
		values, ok := frame.ColumnOrNaN(name)
		if !ok {
			e.logger.Warn("missing required column, filling with NaN",
				zap.String("column", name))
			set.MissingColumns = append(set.MissingColumns, name)
		}
		return values
	}

	set.High = resolve(cols.High)
	set.Low = resolve(cols.Low)
	set.Close = resolve(cols.Close)
	set.Volume = resolve(cols.Volume)

	var bid, ask []float64
	if p.UseOBI {
		bid = resolve(cols.Bid)
		ask = resolve(cols.Ask)
	}

	set.VWAP = vwap(set.Close, set.Volume)
	set.RollingHigh = rollingMax(set.High, p.Window, 1)
	set.RollingLow = rollingMin(set.Low, p.Window, 1)
	set.VolMA = rollingMean(set.Volume, p.Window, 1)
	set.EMA = ewmMean(set.Close, p.EMAPeriod)
	set.EMASlope = diff(set.EMA)

	set.ATR = rollingMean(trueRange(set.High, set.Low, set.Close), p.ATRPeriod, 0)
	bfillLeading(set.ATR)

	for _, s := range [][]float64{set.VWAP, set.RollingHigh, set.RollingLow, set.VolMA, set.EMA, set.ATR} {
		ffill(s)
	}
	fillNaN(set.ATR, 0)

	if p.UseOBI {
		set.OBI = obi(bid, ask)
	} else {
		set.OBI = make([]float64, frame.Len())
	}

	return set
}

// vwap is the cumulative volume-weighted close. The denominator is undefined
// while cumulative volume is exactly zero.
func vwap(close, vol []float64) []float64 {
	n := len(close)
	out := make([]float64, n)
	cumPV, cumV := 0.0, 0.0

	for i := 0; i < n; i++ {
		pv := close[i] * vol[i]
		num := math.NaN()
		if !math.IsNaN(pv) {
			cumPV += pv
			num = cumPV
		}

		den := math.NaN()
		if !math.IsNaN(vol[i]) {
			cumV += vol[i]
			if cumV != 0 {
				den = cumV
			}
		}

		out[i] = num / (den + epsilon)
	}
	return out
}

// trueRange is max(high-low, |high-prev_close|, |low-prev_close|), ignoring
// undefined components.
func trueRange(high, low, close []float64) []float64 {
	n := len(close)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		prevClose := math.NaN()
		if i > 0 {
			prevClose = close[i-1]
		}
		out[i] = nanMax(
			high[i]-low[i],
			math.Abs(high[i]-prevClose),
			math.Abs(low[i]-prevClose),
		)
	}
	return out
}

// obi is the normalized resting-volume imbalance, 0 where undefined.
func obi(bid, ask []float64) []float64 {
	out := make([]float64, len(bid))
	for i := range bid {
		v := (bid[i] - ask[i]) / (bid[i] + ask[i] + epsilon)
		if !math.IsNaN(v) {
			out[i] = v
		}
	}
	return out
}
