// Package verification replays stored runs and checks that reconstruction
// reproduces the persisted blotters.
package verification

import (
	"fmt"
	"math"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/idhash"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // e.g. trade[2].ClosePrice
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying one instrument-day.
type VerificationResult struct {
	TradingDate    string
	Instrument     string
	Match          bool
	Divergences    []FieldDivergence
	StoredTrades   int
	ReplayedTrades int
}

// VerificationReport contains results for a whole run.
type VerificationReport struct {
	RunID          string
	InstrumentDays int
	Matched        int
	Divergent      int
	Results        []VerificationResult
}

// CompareBlotters compares a stored instrument-day blotter with a replayed
// one. Stored records must be ordered by Seq.
func CompareBlotters(stored []*domain.TradeRecord, replayed []domain.Trade) []FieldDivergence {
	var divergences []FieldDivergence

	if len(stored) != len(replayed) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Count",
			Expected: len(stored),
			Actual:   len(replayed),
		})
	}

	n := min(len(stored), len(replayed))
	for i := 0; i < n; i++ {
		s := stored[i]
		wantID := idhash.ComputeTradeID(s.RunID, s.TradingDate, s.Instrument, i, replayed[i].OpenTime)
		if s.TradeID != wantID {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("trade[%d].TradeID", i),
				Expected: s.TradeID,
				Actual:   wantID,
			})
		}
		divergences = append(divergences, compareTrade(i, s.Trade, replayed[i])...)
	}
	return divergences
}

func compareTrade(i int, stored, replayed domain.Trade) []FieldDivergence {
	var out []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		out = append(out, FieldDivergence{
			Field:    fmt.Sprintf("trade[%d].%s", i, field),
			Expected: expected,
			Actual:   actual,
		})
	}

	if stored.OpenTime != replayed.OpenTime {
		add("OpenTime", stored.OpenTime, replayed.OpenTime)
	}
	if stored.OpenAction != replayed.OpenAction {
		add("OpenAction", stored.OpenAction, replayed.OpenAction)
	}
	if !floatEquals(stored.OpenPrice, replayed.OpenPrice) {
		add("OpenPrice", stored.OpenPrice, replayed.OpenPrice)
	}
	if stored.CloseTime != replayed.CloseTime {
		add("CloseTime", stored.CloseTime, replayed.CloseTime)
	}
	if stored.CloseAction != replayed.CloseAction {
		add("CloseAction", stored.CloseAction, replayed.CloseAction)
	}
	if !floatEquals(stored.ClosePrice, replayed.ClosePrice) {
		add("ClosePrice", stored.ClosePrice, replayed.ClosePrice)
	}
	if stored.Sign != replayed.Sign {
		add("Sign", stored.Sign, replayed.Sign)
	}

	// Outcome values
	if !floatEquals(stored.PnL, replayed.PnL) {
		add("PnL", stored.PnL, replayed.PnL)
	}
	if !floatEquals(stored.Fee, replayed.Fee) {
		add("Fee", stored.Fee, replayed.Fee)
	}
	if !floatEquals(stored.NetPnL, replayed.NetPnL) {
		add("NetPnL", stored.NetPnL, replayed.NetPnL)
	}
	if !floatEquals(stored.Return, replayed.Return) {
		add("Return", stored.Return, replayed.Return)
	}
	if !floatEquals(stored.CumReturn, replayed.CumReturn) {
		add("CumReturn", stored.CumReturn, replayed.CumReturn)
	}
	return out
}

// floatEquals compares two float64 values within FloatTolerance.
// Two NaNs are equal.
func floatEquals(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= FloatTolerance
}
