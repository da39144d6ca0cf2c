package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/indicators"
	"hft-multifactor/internal/logging"
	"hft-multifactor/internal/position"
	"hft-multifactor/internal/signals"
)

// BreakoutStrategy trades volume-confirmed channel breakouts with ATR exits.
type BreakoutStrategy struct {
	Params config.StrategyParams

	engine   *indicators.Engine
	detector *signals.Detector
}

// NewBreakoutStrategy creates a new BreakoutStrategy.
func NewBreakoutStrategy(params config.StrategyParams, logger *zap.Logger) *BreakoutStrategy {
	return &BreakoutStrategy{
		Params:   params,
		engine:   indicators.NewEngine(params, logging.OrNop(logger)),
		detector: signals.NewDetector(params),
	}
}

// ID returns the strategy identifier including parameters.
func (s *BreakoutStrategy) ID() string {
	p := s.Params
	obi := "noobi"
	if p.UseOBI {
		obi = fmt.Sprintf("obi%g", p.OBIThreshold)
	}
	return fmt.Sprintf("BREAKOUT_w%d_ema%d_atr%d_vol%g_%s_sl%g_tp%g_ts%d",
		p.Window, p.EMAPeriod, p.ATRPeriod, p.VolMultiplier, obi,
		p.StopLossMult, p.TakeProfitMult, p.TimeStop)
}

// Execute computes indicators, detects entries and runs the state machine.
func (s *BreakoutStrategy) Execute(ctx context.Context, frame *domain.Frame) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}

	set := s.engine.Compute(frame)
	sig := s.detector.Detect(set)
	positions, events := position.Run(s.Params, set, sig)

	return &Output{
		Timestamps: frame.Timestamps,
		Indicators: set,
		Signals:    sig,
		Positions:  positions,
		Events:     events,
	}, nil
}

// Ensure BreakoutStrategy implements Strategy
var _ Strategy = (*BreakoutStrategy)(nil)
