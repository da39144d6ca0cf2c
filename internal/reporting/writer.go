package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/metrics"
)

// Output file names under the output root.
const (
	ReturnsFile = "all_rets.csv"
	SummaryFile = "summary.md"
)

// OutputDir writes run artifacts under a root directory: one blotter per
// instrument-day at <root>/<date>/<instrument>.csv plus the returns table and
// the summary at the root.
type OutputDir struct {
	root string
}

// NewOutputDir creates an OutputDir.
func NewOutputDir(root string) *OutputDir {
	return &OutputDir{root: root}
}

// Root returns the output root.
func (d *OutputDir) Root() string {
	return d.root
}

// BlotterPath returns the blotter file path for an instrument-day.
func (d *OutputDir) BlotterPath(date, instrument string) string {
	return filepath.Join(d.root, date, instrument+".csv")
}

// WriteBlotter writes one instrument-day blotter.
func (d *OutputDir) WriteBlotter(date, instrument string, trades []domain.Trade) error {
	return writeFile(d.BlotterPath(date, instrument), RenderBlotterCSV(trades))
}

// WriteReturns writes the daily returns table.
func (d *OutputDir) WriteReturns(table *metrics.DailyTable) error {
	return writeFile(filepath.Join(d.root, ReturnsFile), RenderReturnsCSV(table))
}

// WriteSummary writes the markdown summary.
func (d *OutputDir) WriteSummary(r *Report) error {
	return writeFile(filepath.Join(d.root, SummaryFile), RenderMarkdown(r))
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
