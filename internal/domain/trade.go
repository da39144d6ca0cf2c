package domain

// Action codes for trade legs.
const (
	ActionBTO = "BTO" // buy to open
	ActionBTC = "BTC" // close long (sell)
	ActionSTO = "STO" // sell to open
	ActionSTC = "STC" // close short (buy)
)

// Leg is one fill emitted at a position transition.
type Leg struct {
	TimestampMs int64
	Action      string
	Price       float64
}

// Trade is one blotter row: an open leg paired with a close leg.
type Trade struct {
	OpenTime    int64 // ms
	OpenAction  string
	OpenPrice   float64
	CloseTime   int64 // ms
	CloseAction string
	ClosePrice  float64

	Sign      int     // +1 long, -1 short
	PnL       float64 // (close - open) * sign
	Fee       float64 // (open + close) * fee_rate
	NetPnL    float64 // pnl - fee
	Return    float64 // net_pnl / open
	CumReturn float64 // running sum of Return
}

// TradeRecord is a persisted blotter row.
type TradeRecord struct {
	TradeID     string // deterministic hash
	RunID       string
	TradingDate string // e.g. 20250102
	Instrument  string // file stem, e.g. RB2405_M
	Seq         int    // position within the instrument-day blotter
	Trade
}
