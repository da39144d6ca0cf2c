package reporting

import (
	"context"
	"fmt"
	"time"

	"hft-multifactor/internal/metrics"
	"hft-multifactor/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	runStore   storage.RunStore
	aggregator *metrics.Aggregator
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	runStore storage.RunStore,
	returnStore storage.DailyReturnStore,
	tradeStore storage.TradeStore,
) *Generator {
	return &Generator{
		runStore:   runStore,
		aggregator: metrics.NewAggregator(returnStore, tradeStore),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate rebuilds the report of a stored run. Exit reasons are not
// persisted, so the report carries none.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	rr, err := g.aggregator.ComputeRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("aggregate run %s: %w", runID, err)
	}

	return &Report{
		GeneratedAt: g.now(),
		RunID:       run.RunID,
		Mode:        run.Mode,
		ParamsJSON:  run.ParamsJSON,
		Batch: BatchSummary{
			Dates:      run.Dates,
			Jobs:       run.Jobs,
			Failures:   run.Failures,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
		},
		Portfolio: rr.Summary,
		Trades:    rr.Trades,
		Table:     rr.Table,
	}, nil
}

// Latest returns the ID of the most recently started run.
// Returns storage.ErrNotFound when no run is stored.
func (g *Generator) Latest(ctx context.Context) (string, error) {
	runs, err := g.runStore.List(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", storage.ErrNotFound
	}
	return runs[len(runs)-1].RunID, nil
}
