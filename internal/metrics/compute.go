package metrics

import (
	"math"
	"sort"

	"hft-multifactor/internal/domain"
)

// TradeStats summarises per-trade returns across a run.
type TradeStats struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64

	ReturnMean   float64
	ReturnMedian float64
	ReturnP10    float64
	ReturnP90    float64
	ReturnMin    float64
	ReturnMax    float64
	ReturnStddev float64

	MaxDrawdown          float64
	MaxConsecutiveLosses int
}

// ComputeTradeStats calculates statistics over trade returns.
// Trades are sorted by trading_date, open_time, instrument, seq before
// computing order-dependent metrics (MaxDrawdown, MaxConsecutiveLosses).
func ComputeTradeStats(trades []*domain.TradeRecord) TradeStats {
	n := len(trades)
	if n == 0 {
		return TradeStats{}
	}

	sorted := make([]*domain.TradeRecord, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TradingDate != b.TradingDate {
			return a.TradingDate < b.TradingDate
		}
		if a.OpenTime != b.OpenTime {
			return a.OpenTime < b.OpenTime
		}
		if a.Instrument != b.Instrument {
			return a.Instrument < b.Instrument
		}
		return a.Seq < b.Seq
	})

	// Returns in chronological order for order-dependent calculations
	returns := make([]float64, n)
	wins := 0
	for i, t := range sorted {
		returns[i] = t.Return
		if t.Return > 0 {
			wins++
		}
	}

	ordered := make([]float64, n)
	copy(ordered, returns)
	sort.Float64s(ordered)

	mean := computeMean(returns)

	return TradeStats{
		TotalTrades: n,
		Wins:        wins,
		Losses:      n - wins,
		WinRate:     computeWinRate(wins, n),

		ReturnMean:   mean,
		ReturnMedian: computePercentile(ordered, 0.50),
		ReturnP10:    computePercentile(ordered, 0.10),
		ReturnP90:    computePercentile(ordered, 0.90),
		ReturnMin:    ordered[0],
		ReturnMax:    ordered[n-1],
		ReturnStddev: computeStddev(returns, mean),

		MaxDrawdown:          computeMaxDrawdown(returns),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(returns),
	}
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative returns.
// Returns must be in chronological order.
func computeMaxDrawdown(returns []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, r := range returns {
		cumulative += r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds longest streak of return <= 0.
func computeMaxConsecutiveLosses(returns []float64) int {
	maxStreak := 0
	current := 0

	for _, r := range returns {
		if r <= 0 {
			current++
			if current > maxStreak {
				maxStreak = current
			}
		} else {
			current = 0
		}
	}
	return maxStreak
}
