package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/logging"
	"hft-multifactor/internal/observability"
)

// PositionWriter persists a generated position series.
type PositionWriter interface {
	WritePositions(date, instrument string, points []domain.PositionPoint) error
}

// TableWriter persists the annotated indicator table.
type TableWriter interface {
	WriteTable(date, instrument string, out *Output) error
}

// ProviderOptions configures a Provider.
type ProviderOptions struct {
	Strategy Strategy
	Writer   PositionWriter // optional
	Tables   TableWriter    // optional
	Logger   *zap.Logger
	Metrics  *observability.Metrics // nil uses the default registry
}

// Provider serves generated positions to the batch harness.
// Safe for concurrent use when its writers are.
type Provider struct {
	strategy Strategy
	writer   PositionWriter
	tables   TableWriter
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewProvider creates a Provider.
func NewProvider(opts ProviderOptions) *Provider {
	return &Provider{
		strategy: opts.Strategy,
		writer:   opts.Writer,
		tables:   opts.Tables,
		logger:   logging.OrNop(opts.Logger),
		metrics:  observability.OrDefault(opts.Metrics),
	}
}

// Positions runs the strategy over frame and returns the positions with
// their entry and exit events. Writers, if configured, run before return.
func (p *Provider) Positions(ctx context.Context, date, instrument string, frame *domain.Frame) ([]domain.PositionPoint, []domain.PositionEvent, error) {
	out, err := p.strategy.Execute(ctx, frame)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", p.strategy.ID(), err)
	}

	points := out.Points()
	if p.writer != nil {
		if err := p.writer.WritePositions(date, instrument, points); err != nil {
			return nil, nil, fmt.Errorf("write positions: %w", err)
		}
	}
	if p.tables != nil {
		if err := p.tables.WriteTable(date, instrument, out); err != nil {
			return nil, nil, fmt.Errorf("write indicator table: %w", err)
		}
	}

	p.metrics.RecordMissingColumns(out.Indicators.MissingColumns)
	p.metrics.RecordExits(out.ExitCounts())

	p.logger.Debug("positions generated",
		zap.String("date", date),
		zap.String("instrument", instrument),
		zap.Int("bars", len(points)),
		zap.Int("events", len(out.Events)),
		zap.Strings("missing_columns", out.Indicators.MissingColumns))

	return points, out.Events, nil
}
