package analytics

import (
	"fmt"
	"strings"
)

// FormatReport renders metrics as human-readable text. The output is a
// pure function of the record: no clock, no locale, no hidden state.
func FormatReport(m Metrics) string {
	builder := strings.Builder{}
	builder.WriteString("[Portfolio Report]\n")
	builder.WriteString(fmt.Sprintf("Total value: $%.2f across %d positions\n", m.TotalUSD, m.NumAssets))
	if m.NumAssets > 0 {
		builder.WriteString(fmt.Sprintf("Average position: $%.2f\n", m.AvgPositionUSD))
	}

	if m.Concentration.TopLabel != "" {
		builder.WriteString(fmt.Sprintf("Top asset: %s (%.1f%%)\n", m.Concentration.TopLabel, m.Concentration.TopPct))
	}
	builder.WriteString(fmt.Sprintf("Concentration: %s (HHI %.0f)\n", m.HHILevel, m.Concentration.HHI))

	builder.WriteString(fmt.Sprintf("Volatility: %s (stdev %.4f, %.1f%% of mean, drawdown %.1f%%)\n",
		m.Volatility.Signal, m.Volatility.Stdev, m.Volatility.VolatilityPct, m.Volatility.DrawdownPct))

	builder.WriteString(fmt.Sprintf("Stable allocation: %.1f%% (target %.1f%%)\n",
		m.Rebalance.CurrentPct, m.Rebalance.TargetPct))
	switch m.Rebalance.Suggestion {
	case SuggestIncreaseStable:
		builder.WriteString(fmt.Sprintf("Rebalance: add $%.2f to stables\n", m.Rebalance.DeltaUSD))
	case SuggestDecreaseStable:
		builder.WriteString(fmt.Sprintf("Rebalance: trim $%.2f from stables\n", -m.Rebalance.DeltaUSD))
	default:
		builder.WriteString("Rebalance: hold\n")
	}

	for _, warning := range m.Concentration.Warnings {
		builder.WriteString(fmt.Sprintf("Warning: %s\n", warning))
	}
	return builder.String()
}
