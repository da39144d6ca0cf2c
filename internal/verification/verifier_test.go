package verification

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"hft-multifactor/internal/backtest"
	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/idhash"
	"hft-multifactor/internal/storage/memory"
)

const runID = "run-1"

type fixedPositions struct {
	values []float64
}

func (f fixedPositions) Positions(_ context.Context, _, _ string, frame *domain.Frame) ([]domain.PositionPoint, []domain.PositionEvent, error) {
	out := make([]domain.PositionPoint, len(f.values))
	for i, v := range f.values {
		out[i] = domain.PositionPoint{TimestampMs: frame.Timestamps[i], Value: v}
	}
	return out, nil, nil
}

var testPositions = fixedPositions{values: []float64{0, 1, 1, -1, -1, 0, 0, 0}}

func quoteFrame(t *testing.T, n int) *domain.Frame {
	t.Helper()
	cols := config.DefaultColumns()
	ts := make([]int64, n)
	bids := make([]float64, n)
	asks := make([]float64, n)
	for i := range ts {
		ts[i] = int64(i) * 1000
		bids[i] = 100 + float64(i)
		asks[i] = 100.5 + float64(i)
	}
	f := domain.NewFrame(ts)
	if err := f.Set(cols.BidPrice, bids); err != nil {
		t.Fatal(err)
	}
	if err := f.Set(cols.AskPrice, asks); err != nil {
		t.Fatal(err)
	}
	return f
}

// setup stores one instrument-day and its reconstructed blotter.
func setup(t *testing.T) (*memory.MarketDataStore, *memory.TradeStore, []*domain.TradeRecord) {
	t.Helper()
	ctx := context.Background()

	market := memory.NewMarketDataStore()
	frame := quoteFrame(t, 8)
	if err := market.InsertFrame(ctx, "20240102", "IF2401_M", frame); err != nil {
		t.Fatal(err)
	}

	cols := config.DefaultColumns()
	quotes, err := backtest.Quotes(frame, cols.BidPrice, cols.AskPrice)
	if err != nil {
		t.Fatal(err)
	}
	points, _, _ := testPositions.Positions(ctx, "", "", frame)
	res := backtest.NewReconstructor(config.DefaultFeeRate).Reconstruct(points, quotes)
	if !res.OK() || len(res.Trades) != 2 {
		t.Fatalf("setup reconstruction: trades=%d failure=%v", len(res.Trades), res.Failure)
	}

	records := make([]*domain.TradeRecord, len(res.Trades))
	for i, tr := range res.Trades {
		records[i] = &domain.TradeRecord{
			TradeID:     idhash.ComputeTradeID(runID, "20240102", "IF2401_M", i, tr.OpenTime),
			RunID:       runID,
			TradingDate: "20240102",
			Instrument:  "IF2401_M",
			Seq:         i,
			Trade:       tr,
		}
	}
	return market, memory.NewTradeStore(), records
}

func newVerifier(market *memory.MarketDataStore, trades *memory.TradeStore) *ReplayVerifier {
	return NewReplayVerifier(ReplayVerifierOptions{
		TradeStore: trades,
		Source:     market,
		Positions:  testPositions,
	})
}

func TestVerifyRun_Match(t *testing.T) {
	ctx := context.Background()
	market, trades, records := setup(t)
	if err := trades.InsertBulk(ctx, records); err != nil {
		t.Fatal(err)
	}

	report, err := newVerifier(market, trades).VerifyRun(ctx, runID)
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	if report.InstrumentDays != 1 || report.Matched != 1 || report.Divergent != 0 {
		t.Errorf("report = %+v, want one matching instrument-day", report)
	}
	if got := report.Results[0].StoredTrades; got != 2 {
		t.Errorf("StoredTrades = %d, want 2", got)
	}
}

func TestVerifyRun_DetectsTamperedPrice(t *testing.T) {
	ctx := context.Background()
	market, trades, records := setup(t)
	records[1].ClosePrice += 0.5
	if err := trades.InsertBulk(ctx, records); err != nil {
		t.Fatal(err)
	}

	report, err := newVerifier(market, trades).VerifyRun(ctx, runID)
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	if report.Divergent != 1 {
		t.Fatalf("Divergent = %d, want 1", report.Divergent)
	}

	divs := report.Results[0].Divergences
	if len(divs) != 1 || divs[0].Field != "trade[1].ClosePrice" {
		t.Errorf("divergences = %+v, want only trade[1].ClosePrice", divs)
	}
}

func TestVerifyRun_MissingFrameIsDivergence(t *testing.T) {
	ctx := context.Background()
	_, trades, records := setup(t)
	if err := trades.InsertBulk(ctx, records); err != nil {
		t.Fatal(err)
	}

	report, err := newVerifier(memory.NewMarketDataStore(), trades).VerifyRun(ctx, runID)
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	if report.Divergent != 1 {
		t.Fatalf("Divergent = %d, want 1", report.Divergent)
	}
	if f := report.Results[0].Divergences[0].Field; f != "Error" {
		t.Errorf("Field = %q, want Error", f)
	}
}

func TestVerifyRun_NoTrades(t *testing.T) {
	market, trades, _ := setup(t)
	_, err := newVerifier(market, trades).VerifyRun(context.Background(), runID)
	if !errors.Is(err, ErrNoTrades) {
		t.Errorf("err = %v, want ErrNoTrades", err)
	}
}

func TestCompareBlotters_CountMismatch(t *testing.T) {
	_, _, records := setup(t)
	replayed := []domain.Trade{records[0].Trade}

	divs := CompareBlotters(records, replayed)
	if len(divs) != 1 || divs[0].Field != "Count" {
		t.Fatalf("divergences = %+v, want Count only", divs)
	}
	if divs[0].Expected != 2 || divs[0].Actual != 1 {
		t.Errorf("Count divergence = %+v", divs[0])
	}
}

func TestCompareBlotters_TradeID(t *testing.T) {
	_, _, records := setup(t)
	replayed := []domain.Trade{records[0].Trade, records[1].Trade}
	records[0].TradeID = "bogus"

	divs := CompareBlotters(records, replayed)
	if len(divs) != 1 || !strings.HasSuffix(divs[0].Field, "TradeID") {
		t.Errorf("divergences = %+v, want TradeID only", divs)
	}
}

func TestFloatEquals(t *testing.T) {
	tests := []struct {
		a, b float64
		want bool
	}{
		{1.0, 1.0, true},
		{1.0, 1.0 + FloatTolerance/2, true},
		{1.0, 1.0 + FloatTolerance*2, false},
		{math.NaN(), math.NaN(), true},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		if got := floatEquals(tt.a, tt.b); got != tt.want {
			t.Errorf("floatEquals(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
