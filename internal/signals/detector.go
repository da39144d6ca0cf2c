// Package signals evaluates the breakout entry conditions per bar.
package signals

import (
	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
)

// Detector evaluates long and short breakout conditions.
// It is stateless: each bar is a pure function of that bar's indicators.
type Detector struct {
	volMultiplier float64
	obiThreshold  float64
	useOBI        bool
}

// NewDetector creates a Detector from params.
func NewDetector(params config.StrategyParams) *Detector {
	return &Detector{
		volMultiplier: params.VolMultiplier,
		obiThreshold:  params.OBIThreshold,
		useOBI:        params.UseOBI,
	}
}

// Evaluate returns the entry flags for bar i.
// Every sub-condition is a strict comparison, so any NaN operand yields false.
func (d *Detector) Evaluate(set *domain.IndicatorSet, i int) (long, short bool) {
	c := set.Close[i]
	volOK := set.Volume[i] > d.volMultiplier*set.VolMA[i]

	long = c > set.RollingHigh[i] &&
		volOK &&
		c > set.EMA[i] &&
		set.EMASlope[i] > 0 &&
		c > set.VWAP[i] &&
		(!d.useOBI || set.OBI[i] > d.obiThreshold)

	short = c < set.RollingLow[i] &&
		volOK &&
		c < set.EMA[i] &&
		set.EMASlope[i] < 0 &&
		c < set.VWAP[i] &&
		(!d.useOBI || set.OBI[i] < -d.obiThreshold)

	return long, short
}

// Detect evaluates every bar.
func (d *Detector) Detect(set *domain.IndicatorSet) *domain.Signals {
	n := set.Len()
	out := &domain.Signals{
		Long:  make([]bool, n),
		Short: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		out.Long[i], out.Short[i] = d.Evaluate(set, i)
	}
	return out
}
