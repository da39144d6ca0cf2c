// Package backtest reconstructs trade blotters from position series.
package backtest

import (
	"fmt"
	"math"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/lookup"
)

// Reconstructor turns a position series into trades filled against the
// next bar's top of book.
// Stateless and safe for concurrent use.
type Reconstructor struct {
	feeRate float64
}

// NewReconstructor creates a Reconstructor with a per-leg taker fee rate.
func NewReconstructor(feeRate float64) *Reconstructor {
	return &Reconstructor{feeRate: feeRate}
}

// Quotes extracts the top of book from frame.
// Returns ErrQuoteMissing if either column is absent.
func Quotes(frame *domain.Frame, bidCol, askCol string) ([]domain.Quote, error) {
	bid, ok := frame.Column(bidCol)
	if !ok {
		return nil, fmt.Errorf("%w: column %s", ErrQuoteMissing, bidCol)
	}
	ask, ok := frame.Column(askCol)
	if !ok {
		return nil, fmt.Errorf("%w: column %s", ErrQuoteMissing, askCol)
	}

	quotes := make([]domain.Quote, frame.Len())
	for i, ts := range frame.Timestamps {
		quotes[i] = domain.Quote{TimestampMs: ts, Bid: bid[i], Ask: ask[i]}
	}
	return quotes, nil
}

// Reconstruct builds the blotter.
//
// Steps:
//  1. Validate every position is -1, 0 or 1.
//  2. Force the first bar and the last two bars flat.
//  3. Return an empty blotter if no exposure remains.
//  4. Align positions onto quote timestamps, forward-filling both.
//  5. Emit legs at each transition, filled at the next bar's quote.
//  6. Pair legs in emission order into trades.
func (r *Reconstructor) Reconstruct(positions []domain.PositionPoint, quotes []domain.Quote) Result {
	pos, err := validate(positions)
	if err != nil {
		return Failed(FailureValidation, err)
	}

	flatten(pos)
	if !hasExposure(pos) {
		return Empty()
	}

	if len(quotes) == 0 {
		return Failed(FailureInput, ErrQuoteMissing)
	}

	quoteIdx, err := lookup.NewIndex(timestampsOf(quotes))
	if err != nil {
		return Failed(FailureAlignment, fmt.Errorf("quotes: %w", err))
	}

	aligned, filled, err := align(positions, pos, quotes)
	if err != nil {
		return Failed(FailureAlignment, err)
	}

	legs, err := emitLegs(aligned, filled, quoteIdx)
	if err != nil {
		return Failed(FailureAlignment, err)
	}
	if len(legs)%2 != 0 {
		return Failed(FailureAlignment, fmt.Errorf("%w: %d legs", ErrUnpairedLeg, len(legs)))
	}

	return Result{
		Trades: r.pair(legs),
		Legs:   len(legs),
	}
}

// validate converts raw values to positions, rejecting anything outside the
// domain. Nothing is clipped or rounded.
func validate(points []domain.PositionPoint) ([]domain.Position, error) {
	out := make([]domain.Position, len(points))
	for i, p := range points {
		switch p.Value {
		case -1:
			out[i] = domain.Short
		case 0:
			out[i] = domain.Flat
		case 1:
			out[i] = domain.Long
		default:
			return nil, fmt.Errorf("%w: value %v at index %d (ts %d)", ErrInvalidPosition, p.Value, i, p.TimestampMs)
		}
	}
	return out, nil
}

// flatten forces the first bar and the final two bars to flat.
func flatten(pos []domain.Position) {
	if len(pos) == 0 {
		return
	}
	pos[0] = domain.Flat
	for i := max(0, len(pos)-2); i < len(pos); i++ {
		pos[i] = domain.Flat
	}
}

func hasExposure(pos []domain.Position) bool {
	for _, p := range pos {
		if p != domain.Flat {
			return true
		}
	}
	return false
}

func timestampsOf(quotes []domain.Quote) []int64 {
	ts := make([]int64, len(quotes))
	for i, q := range quotes {
		ts[i] = q.TimestampMs
	}
	return ts
}

// align right-joins positions onto the quote timestamps. A quote bar takes
// the position of the latest quote bar at or before it whose timestamp
// appears in the position series; bars before the first match are flat.
// Undefined bid/ask values carry the last defined quote.
func align(points []domain.PositionPoint, pos []domain.Position, quotes []domain.Quote) ([]domain.Position, []domain.Quote, error) {
	ts := make([]int64, len(points))
	for i, p := range points {
		ts[i] = p.TimestampMs
	}
	posIdx, err := lookup.NewIndex(ts)
	if err != nil {
		return nil, nil, fmt.Errorf("positions: %w", err)
	}

	aligned := make([]domain.Position, len(quotes))
	filled := make([]domain.Quote, len(quotes))
	cur := domain.Flat
	lastBid, lastAsk := math.NaN(), math.NaN()

	for i, q := range quotes {
		if j, ok := posIdx.IndexOf(q.TimestampMs); ok {
			cur = pos[j]
		}
		aligned[i] = cur

		if !math.IsNaN(q.Bid) {
			lastBid = q.Bid
		}
		if !math.IsNaN(q.Ask) {
			lastAsk = q.Ask
		}
		filled[i] = domain.Quote{TimestampMs: q.TimestampMs, Bid: lastBid, Ask: lastAsk}
	}
	return aligned, filled, nil
}

// emitLegs walks transitions in order. Each fills at the next bar's quote:
// buys lift the ask, sells hit the bid. Reversals emit a close and an open
// at the same price.
func emitLegs(aligned []domain.Position, quotes []domain.Quote, idx *lookup.Index) ([]domain.Leg, error) {
	var legs []domain.Leg

	for i := 1; i < len(aligned); i++ {
		prev, curr := aligned[i-1], aligned[i]
		if prev == curr {
			continue
		}

		ts := quotes[i].TimestampMs
		next, ok := idx.Next(ts)
		if !ok {
			return nil, fmt.Errorf("%w: ts %d", ErrNoNextBar, ts)
		}
		bid, ask := quotes[next].Bid, quotes[next].Ask
		if math.IsNaN(bid) || math.IsNaN(ask) {
			return nil, fmt.Errorf("%w: no quote at ts %d", ErrQuoteMissing, quotes[next].TimestampMs)
		}

		leg := func(action string, price float64) domain.Leg {
			return domain.Leg{TimestampMs: ts, Action: action, Price: price}
		}

		switch {
		case prev == domain.Flat && curr == domain.Long:
			legs = append(legs, leg(domain.ActionBTO, ask))
		case prev == domain.Long && curr == domain.Flat:
			legs = append(legs, leg(domain.ActionBTC, bid))
		case prev == domain.Flat && curr == domain.Short:
			legs = append(legs, leg(domain.ActionSTO, bid))
		case prev == domain.Short && curr == domain.Flat:
			legs = append(legs, leg(domain.ActionSTC, ask))
		case prev == domain.Long && curr == domain.Short:
			legs = append(legs, leg(domain.ActionBTC, bid), leg(domain.ActionSTO, bid))
		case prev == domain.Short && curr == domain.Long:
			legs = append(legs, leg(domain.ActionSTC, ask), leg(domain.ActionBTO, ask))
		}
	}
	return legs, nil
}

// pair alternates legs into open/close trades and computes PnL.
func (r *Reconstructor) pair(legs []domain.Leg) []domain.Trade {
	trades := make([]domain.Trade, 0, len(legs)/2)
	cum := 0.0

	for k := 0; k+1 < len(legs); k += 2 {
		entry, exit := legs[k], legs[k+1]

		sign := -1
		if entry.Action == domain.ActionBTO {
			sign = 1
		}

		pnl := (exit.Price - entry.Price) * float64(sign)
		fee := entry.Price*r.feeRate + exit.Price*r.feeRate
		net := pnl - fee
		ret := net / entry.Price
		cum += ret

		trades = append(trades, domain.Trade{
			OpenTime:    entry.TimestampMs,
			OpenAction:  entry.Action,
			OpenPrice:   entry.Price,
			CloseTime:   exit.TimestampMs,
			CloseAction: exit.Action,
			ClosePrice:  exit.Price,
			Sign:        sign,
			PnL:         pnl,
			Fee:         fee,
			NetPnL:      net,
			Return:      ret,
			CumReturn:   cum,
		})
	}
	return trades
}
