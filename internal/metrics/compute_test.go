package metrics

import (
	"math"
	"testing"

	"hft-multifactor/internal/domain"
)

func makeTrade(date, instrument string, openTime int64, seq int, ret float64) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradingDate: date,
		Instrument:  instrument,
		Seq:         seq,
		Trade:       domain.Trade{OpenTime: openTime, Return: ret},
	}
}

func TestComputeTradeStats_Empty(t *testing.T) {
	s := ComputeTradeStats(nil)
	if s.TotalTrades != 0 || s.WinRate != 0 || s.MaxDrawdown != 0 {
		t.Errorf("expected zero stats, got %+v", s)
	}
}

func TestComputeTradeStats_Counts(t *testing.T) {
	trades := []*domain.TradeRecord{
		makeTrade("20240102", "IF", 1000, 0, 0.02),
		makeTrade("20240102", "IF", 2000, 1, -0.01),
		makeTrade("20240102", "IF", 3000, 2, 0),
		makeTrade("20240103", "IF", 1000, 0, 0.04),
	}
	s := ComputeTradeStats(trades)

	if s.TotalTrades != 4 || s.Wins != 2 || s.Losses != 2 {
		t.Errorf("counts = %d/%d/%d, want 4/2/2", s.TotalTrades, s.Wins, s.Losses)
	}
	if s.WinRate != 0.5 {
		t.Errorf("WinRate = %v, want 0.5", s.WinRate)
	}
	if math.Abs(s.ReturnMean-0.0125) > 1e-12 {
		t.Errorf("ReturnMean = %v, want 0.0125", s.ReturnMean)
	}
	if s.ReturnMin != -0.01 || s.ReturnMax != 0.04 {
		t.Errorf("min/max = %v/%v", s.ReturnMin, s.ReturnMax)
	}
	if s.MaxConsecutiveLosses != 2 {
		t.Errorf("MaxConsecutiveLosses = %d, want 2", s.MaxConsecutiveLosses)
	}
}

func TestComputeTradeStats_OrderIndependentOfInput(t *testing.T) {
	a := []*domain.TradeRecord{
		makeTrade("20240102", "IF", 1000, 0, 0.05),
		makeTrade("20240102", "IF", 2000, 1, -0.03),
		makeTrade("20240102", "IF", 3000, 2, -0.04),
		makeTrade("20240103", "RB", 500, 0, 0.01),
	}
	b := []*domain.TradeRecord{a[3], a[1], a[0], a[2]}

	sa, sb := ComputeTradeStats(a), ComputeTradeStats(b)
	if sa != sb {
		t.Errorf("stats depend on input order:\n%+v\n%+v", sa, sb)
	}
	// Peak 0.05, trough -0.02.
	if math.Abs(sa.MaxDrawdown-0.07) > 1e-12 {
		t.Errorf("MaxDrawdown = %v, want 0.07", sa.MaxDrawdown)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{0.0, 1},
		{0.10, 1.4},
		{0.50, 3},
		{0.90, 4.6},
		{1.0, 5},
	}
	for _, tt := range tests {
		if got := computePercentile(sorted, tt.p); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("computePercentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := computePercentile([]float64{7}, 0.9); got != 7 {
		t.Errorf("single value percentile = %v, want 7", got)
	}
}

func TestComputeStddev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := computeMean(values)
	// Sample variance 32/7.
	want := math.Sqrt(32.0 / 7.0)
	if got := computeStddev(values, mean); math.Abs(got-want) > 1e-12 {
		t.Errorf("computeStddev = %v, want %v", got, want)
	}
	if got := computeStddev([]float64{1}, 1); got != 0 {
		t.Errorf("single sample stddev = %v, want 0", got)
	}
}
