package domain

import "fmt"

// Position is the per-bar exposure: flat, long or short one unit.
type Position int8

// Position values.
const (
	Short Position = -1
	Flat  Position = 0
	Long  Position = 1
)

// String returns a readable name.
func (p Position) String() string {
	switch p {
	case Short:
		return "SHORT"
	case Flat:
		return "FLAT"
	case Long:
		return "LONG"
	default:
		return fmt.Sprintf("Position(%d)", int8(p))
	}
}

// PositionPoint is one raw position observation keyed by timestamp.
// Value is a float so that unvalidated input (e.g. from CSV) can be carried
// to the reconstructor, which rejects anything outside {-1,0,1}.
type PositionPoint struct {
	TimestampMs int64
	Value       float64
}

// Quote is the top of book at one timestamp.
type Quote struct {
	TimestampMs int64
	Bid         float64 // best bid price
	Ask         float64 // best ask price
}

// Exit reason codes
const (
	ExitReasonStopLoss   = "STOP_LOSS" // fixed or trailing ATR stop
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonTimeStop   = "TIME_STOP"
)

// PositionEvent records an entry or exit made by the position state machine.
type PositionEvent struct {
	Index  int      // bar index
	Side   Position // side entered or exited
	Entry  bool     // true for entries, false for exits
	Price  float64  // close at the bar
	Reason string   // exit reason, empty for entries
}
