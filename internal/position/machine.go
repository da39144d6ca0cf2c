// Package position runs the sequential position state machine.
package position

import (
	"math"

	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
)

// Bar carries the decision inputs for one step.
type Bar struct {
	Close       float64
	ATR         float64
	RollingHigh float64
	RollingLow  float64
	VolMA       float64
	EMA         float64
	EMASlope    float64
	VWAP        float64
	OBI         float64
	LongEntry   bool
	ShortEntry  bool
}

// finite reports whether every decision input is defined.
func (b Bar) finite() bool {
	for _, v := range [...]float64{b.Close, b.ATR, b.RollingHigh, b.RollingLow, b.VolMA, b.EMA, b.EMASlope, b.VWAP, b.OBI} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// tradeContext is the ephemeral state of an open position.
type tradeContext struct {
	entryPrice float64
	entryIdx   int
	peak       float64 // highest close since a long entry
	trough     float64 // lowest close since a short entry
}

// Machine is a Flat/Long/Short state machine advanced one bar at a time.
// A Machine is not safe for concurrent use; create one per instrument-day.
type Machine struct {
	stopLossMult   float64
	takeProfitMult float64
	timeStop       int

	state  domain.Position
	ctx    tradeContext
	events []domain.PositionEvent
}

// NewMachine creates a Machine in the Flat state.
func NewMachine(params config.StrategyParams) *Machine {
	return &Machine{
		stopLossMult:   params.StopLossMult,
		takeProfitMult: params.TakeProfitMult,
		timeStop:       params.TimeStop,
		state:          domain.Flat,
	}
}

// State returns the current position.
func (m *Machine) State() domain.Position {
	return m.state
}

// Events returns entries and exits recorded so far.
func (m *Machine) Events() []domain.PositionEvent {
	return m.events
}

// StopLevel returns the current stop for an open position, or NaN when flat.
func (m *Machine) StopLevel(atr float64) float64 {
	switch m.state {
	case domain.Long:
		return math.Max(m.ctx.entryPrice-m.stopLossMult*atr, m.ctx.peak-m.stopLossMult*atr)
	case domain.Short:
		return math.Min(m.ctx.entryPrice+m.stopLossMult*atr, m.ctx.trough+m.stopLossMult*atr)
	default:
		return math.NaN()
	}
}

// Step advances the machine by bar i and returns the position held after it.
// Bars with undefined inputs hold the previous state. An exit on bar i never
// re-enters on the same bar. Long entry wins when both flags are set.
func (m *Machine) Step(i int, b Bar) domain.Position {
	if !b.finite() {
		return m.state
	}

	price := b.Close
	switch m.state {
	case domain.Flat:
		switch {
		case b.LongEntry:
			m.enter(i, domain.Long, price)
		case b.ShortEntry:
			m.enter(i, domain.Short, price)
		}

	case domain.Long:
		m.ctx.peak = math.Max(m.ctx.peak, price)
		stop := m.StopLevel(b.ATR)
		target := m.ctx.entryPrice + m.takeProfitMult*b.ATR
		switch {
		case price <= stop:
			m.exit(i, price, domain.ExitReasonStopLoss)
		case price >= target:
			m.exit(i, price, domain.ExitReasonTakeProfit)
		case i-m.ctx.entryIdx >= m.timeStop:
			m.exit(i, price, domain.ExitReasonTimeStop)
		}

	case domain.Short:
		m.ctx.trough = math.Min(m.ctx.trough, price)
		stop := m.StopLevel(b.ATR)
		target := m.ctx.entryPrice - m.takeProfitMult*b.ATR
		switch {
		case price >= stop:
			m.exit(i, price, domain.ExitReasonStopLoss)
		case price <= target:
			m.exit(i, price, domain.ExitReasonTakeProfit)
		case i-m.ctx.entryIdx >= m.timeStop:
			m.exit(i, price, domain.ExitReasonTimeStop)
		}
	}

	return m.state
}

func (m *Machine) enter(i int, side domain.Position, price float64) {
	m.state = side
	m.ctx = tradeContext{entryPrice: price, entryIdx: i, peak: price, trough: price}
	m.events = append(m.events, domain.PositionEvent{Index: i, Side: side, Entry: true, Price: price})
}

func (m *Machine) exit(i int, price float64, reason string) {
	m.events = append(m.events, domain.PositionEvent{Index: i, Side: m.state, Price: price, Reason: reason})
	m.state = domain.Flat
	m.ctx = tradeContext{}
}

// Run scans set and sig in order from the Flat state and returns one
// position per bar.
func Run(params config.StrategyParams, set *domain.IndicatorSet, sig *domain.Signals) ([]domain.Position, []domain.PositionEvent) {
	m := NewMachine(params)
	n := set.Len()
	out := make([]domain.Position, n)

	for i := 0; i < n; i++ {
		out[i] = m.Step(i, Bar{
			Close:       set.Close[i],
			ATR:         set.ATR[i],
			RollingHigh: set.RollingHigh[i],
			RollingLow:  set.RollingLow[i],
			VolMA:       set.VolMA[i],
			EMA:         set.EMA[i],
			EMASlope:    set.EMASlope[i],
			VWAP:        set.VWAP[i],
			OBI:         set.OBI[i],
			LongEntry:   sig.Long[i],
			ShortEntry:  sig.Short[i],
		})
	}

	return out, m.Events()
}
