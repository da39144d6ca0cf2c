// Package strategy turns market frames into position series.
package strategy

import (
	"context"

	"hft-multifactor/internal/domain"
)

// Strategy produces a position series from one instrument-day frame.
type Strategy interface {
	// Execute runs the strategy over frame.
	// Returns a deterministic output of the same length as frame.
	Execute(ctx context.Context, frame *domain.Frame) (*Output, error)

	// ID returns strategy identifier (includes parameters).
	ID() string
}

// Output holds everything a strategy computed for one frame.
type Output struct {
	Timestamps []int64
	Indicators *domain.IndicatorSet
	Signals    *domain.Signals
	Positions  []domain.Position
	Events     []domain.PositionEvent
}

// Points returns the position series keyed by bar timestamp.
func (o *Output) Points() []domain.PositionPoint {
	out := make([]domain.PositionPoint, len(o.Positions))
	for i, p := range o.Positions {
		out[i] = domain.PositionPoint{TimestampMs: o.Timestamps[i], Value: float64(p)}
	}
	return out
}

// ExitCounts tallies exit events by reason.
func (o *Output) ExitCounts() map[string]int {
	counts := make(map[string]int)
	for _, ev := range o.Events {
		if !ev.Entry {
			counts[ev.Reason]++
		}
	}
	return counts
}
