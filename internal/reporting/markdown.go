package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Mode: %s\n\n", r.RunID, r.Mode))
	if r.StrategyID != "" {
		sb.WriteString(fmt.Sprintf("Strategy: `%s`\n\n", r.StrategyID))
	}

	// Batch
	sb.WriteString("## Batch\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Dates | %d |\n", r.Batch.Dates))
	sb.WriteString(fmt.Sprintf("| Jobs | %d |\n", r.Batch.Jobs))
	sb.WriteString(fmt.Sprintf("| Failures | %d |\n", r.Batch.Failures))
	if r.Batch.FinishedAt > 0 {
		elapsed := time.Duration(r.Batch.FinishedAt-r.Batch.StartedAt) * time.Millisecond
		sb.WriteString(fmt.Sprintf("| Duration | %s |\n", elapsed))
	}
	sb.WriteString("\n")

	if len(r.Batch.FailureKinds) > 0 {
		sb.WriteString("### Failures by Kind\n\n")
		sb.WriteString("| Kind | Count |\n")
		sb.WriteString("|------|-------|\n")
		for _, k := range sortedKeys(r.Batch.FailureKinds) {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", k, r.Batch.FailureKinds[k]))
		}
		sb.WriteString("\n")
	}

	// Portfolio
	p := r.Portfolio
	sb.WriteString("## Portfolio\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trading Days | %d |\n", p.Days))
	sb.WriteString(fmt.Sprintf("| Mean Daily Return | %s |\n", fixed(p.MeanDaily, 8)))
	sb.WriteString(fmt.Sprintf("| Daily Stddev | %s |\n", fixed(p.StdDaily, 8)))
	sb.WriteString(fmt.Sprintf("| Annual Return | %s |\n", fixed(p.AnnualReturn, 6)))
	sb.WriteString(fmt.Sprintf("| Sharpe | %s |\n", fixed(p.Sharpe, 4)))
	sb.WriteString("\n")

	// Trades
	t := r.Trades
	sb.WriteString("## Trades\n\n")
	if t.TotalTrades > 0 {
		sb.WriteString("| Trades | Wins | Losses | WinRate | Mean | Median | P10 | P90 | Stddev | MaxDD | MaxLoss |\n")
		sb.WriteString("|--------|------|--------|---------|------|--------|-----|-----|--------|-------|---------|\n")
		sb.WriteString(fmt.Sprintf("| %d | %d | %d | %s | %s | %s | %s | %s | %s | %s | %d |\n",
			t.TotalTrades, t.Wins, t.Losses, fixed(t.WinRate, 4),
			fixed(t.ReturnMean, 6), fixed(t.ReturnMedian, 6),
			fixed(t.ReturnP10, 6), fixed(t.ReturnP90, 6), fixed(t.ReturnStddev, 6),
			fixed(t.MaxDrawdown, 6), t.MaxConsecutiveLosses))
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	// Exits
	if r.Exits != nil {
		sb.WriteString("## Exit Reasons\n\n")
		if len(r.Exits) > 0 {
			sb.WriteString("| Reason | Count |\n")
			sb.WriteString("|--------|-------|\n")
			for _, k := range sortedKeys(r.Exits) {
				sb.WriteString(fmt.Sprintf("| %s | %d |\n", k, r.Exits[k]))
			}
		} else {
			sb.WriteString("No exits.\n")
		}
		sb.WriteString("\n")
	}

	// Parameters
	if r.ParamsJSON != "" {
		sb.WriteString("## Parameters\n\n")
		sb.WriteString("```json\n")
		sb.WriteString(r.ParamsJSON)
		sb.WriteString("\n```\n\n")
	}

	return sb.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
