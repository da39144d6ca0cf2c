// Package config holds strategy parameters and application settings.
package config

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is returned when a parameter set fails validation.
var ErrInvalidParams = errors.New("invalid strategy params")

// DefaultFeeRate is the symmetric taker fee applied to each leg's notional.
const DefaultFeeRate = 0.000023

// Columns binds logical inputs to source column names.
type Columns struct {
	Bid      string `yaml:"bid_col" json:"bid_col" envconfig:"BID_COL"`                   // bid resting volume
	Ask      string `yaml:"ask_col" json:"ask_col" envconfig:"ASK_COL"`                   // ask resting volume
	High     string `yaml:"high_col" json:"high_col" envconfig:"HIGH_COL"`                // bar high
	Low      string `yaml:"low_col" json:"low_col" envconfig:"LOW_COL"`                   // bar low
	Close    string `yaml:"close_col" json:"close_col" envconfig:"CLOSE_COL"`             // last price
	Volume   string `yaml:"vol_col" json:"vol_col" envconfig:"VOL_COL"`                   // traded volume
	BidPrice string `yaml:"bid_price_col" json:"bid_price_col" envconfig:"BID_PRICE_COL"` // best bid
	AskPrice string `yaml:"ask_price_col" json:"ask_price_col" envconfig:"ASK_PRICE_COL"` // best ask
	Time     string `yaml:"time_col" json:"time_col" envconfig:"TIME_COL"`                // timestamp
}

// StrategyParams is the immutable parameter set passed to every component.
type StrategyParams struct {
	Window         int     `yaml:"window" json:"window" envconfig:"WINDOW"`
	EMAPeriod      int     `yaml:"ema_period" json:"ema_period" envconfig:"EMA_PERIOD"`
	ATRPeriod      int     `yaml:"atr_period" json:"atr_period" envconfig:"ATR_PERIOD"`
	VolMultiplier  float64 `yaml:"vol_multiplier" json:"vol_multiplier" envconfig:"VOL_MULTIPLIER"`
	OBIThreshold   float64 `yaml:"obi_threshold" json:"obi_threshold" envconfig:"OBI_THRESHOLD"`
	UseOBI         bool    `yaml:"use_obi" json:"use_obi" envconfig:"USE_OBI"`
	StopLossMult   float64 `yaml:"stop_loss_mult" json:"stop_loss_mult" envconfig:"STOP_LOSS_MULT"`
	TakeProfitMult float64 `yaml:"take_profit_mult" json:"take_profit_mult" envconfig:"TAKE_PROFIT_MULT"`
	TimeStop       int     `yaml:"time_stop" json:"time_stop" envconfig:"TIME_STOP"` // bars
	FeeRate        float64 `yaml:"fee_rate" json:"fee_rate" envconfig:"FEE_RATE"`

	Columns Columns `yaml:"columns" json:"columns" envconfig:"COLS"`
}

// DefaultColumns returns the column names of the L2 futures dataset.
func DefaultColumns() Columns {
	return Columns{
		Bid:      "BUYVOLUME01",
		Ask:      "SELLVOLUME01",
		High:     "HIGHPRICE",
		Low:      "LOWPRICE",
		Close:    "LASTPRICE",
		Volume:   "TRADEVOLUME",
		BidPrice: "BUYPRICE01",
		AskPrice: "SELLPRICE01",
		Time:     "TRADINGTIME",
	}
}

// DefaultParams returns the reference parameter set.
func DefaultParams() StrategyParams {
	return StrategyParams{
		Window:         7200,
		EMAPeriod:      1200,
		ATRPeriod:      240,
		VolMultiplier:  1.8,
		OBIThreshold:   0.15,
		UseOBI:         true,
		StopLossMult:   1.2,
		TakeProfitMult: 3.5,
		TimeStop:       21600,
		FeeRate:        DefaultFeeRate,
		Columns:        DefaultColumns(),
	}
}

// Validate checks parameter ranges and column bindings.
func (p StrategyParams) Validate() error {
	if p.Window < 1 {
		return fmt.Errorf("%w: window must be >= 1, got %d", ErrInvalidParams, p.Window)
	}
	if p.EMAPeriod < 1 {
		return fmt.Errorf("%w: ema_period must be >= 1, got %d", ErrInvalidParams, p.EMAPeriod)
	}
	if p.ATRPeriod < 1 {
		return fmt.Errorf("%w: atr_period must be >= 1, got %d", ErrInvalidParams, p.ATRPeriod)
	}
	if p.TimeStop < 1 {
		return fmt.Errorf("%w: time_stop must be >= 1, got %d", ErrInvalidParams, p.TimeStop)
	}

	for name, v := range map[string]float64{
		"vol_multiplier":   p.VolMultiplier,
		"obi_threshold":    p.OBIThreshold,
		"stop_loss_mult":   p.StopLossMult,
		"take_profit_mult": p.TakeProfitMult,
		"fee_rate":         p.FeeRate,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite and non-negative, got %v", ErrInvalidParams, name, v)
		}
	}

	return p.Columns.Validate()
}

// Validate checks that every binding is set.
func (c Columns) Validate() error {
	for name, v := range map[string]string{
		"bid_col":       c.Bid,
		"ask_col":       c.Ask,
		"high_col":      c.High,
		"low_col":       c.Low,
		"close_col":     c.Close,
		"vol_col":       c.Volume,
		"bid_price_col": c.BidPrice,
		"ask_price_col": c.AskPrice,
		"time_col":      c.Time,
	} {
		if v == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidParams, name)
		}
	}
	return nil
}
