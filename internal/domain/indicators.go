package domain

// IndicatorSet holds per-bar inputs and derived statistics for one frame.
// All slices have the frame's length. Undefined values are NaN.
type IndicatorSet struct {
	// Resolved inputs
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64

	// Derived
	VWAP        []float64
	RollingHigh []float64 // max(high[i-window .. i-1])
	RollingLow  []float64 // min(low[i-window .. i-1])
	VolMA       []float64 // mean(vol[i-window .. i-1])
	EMA         []float64
	EMASlope    []float64
	ATR         []float64
	OBI         []float64

	// MissingColumns lists bound input columns that were absent and NaN-filled.
	MissingColumns []string
}

// Len returns the number of bars.
func (s *IndicatorSet) Len() int {
	return len(s.Close)
}

// Signals holds per-bar entry flags.
type Signals struct {
	Long  []bool
	Short []bool
}
