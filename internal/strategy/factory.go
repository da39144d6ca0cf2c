package strategy

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"hft-multifactor/internal/config"
)

// Strategy type names.
const (
	StrategyTypeBreakout = "BREAKOUT"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
)

// FromConfig creates a Strategy by type name.
// Validates params before construction.
func FromConfig(strategyType string, params config.StrategyParams, logger *zap.Logger) (Strategy, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	switch strategyType {
	case StrategyTypeBreakout, "":
		return NewBreakoutStrategy(params, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategyType, strategyType)
	}
}
