package portfolio

import (
	"context"
	"fmt"

	"portfolio-drop-alerts/internal/analytics"
	"portfolio-drop-alerts/internal/storage"
)

// ReportOptions tune the on-demand metrics report.
type ReportOptions struct {
	VolatilityLookback int
	TargetStablePct    float64
	StableSymbols      []string
}

// Report composes a snapshot with its recent value history into one
// analytics record. samples may be nil when no history store is wired.
func (v *Valuer) Report(ctx context.Context, userID int64, samples storage.ValueSampleStore, opts ReportOptions) (analytics.Metrics, Snapshot, error) {
	snapshot, err := v.Snapshot(ctx, userID)
	if err != nil {
		return analytics.Metrics{}, Snapshot{}, err
	}

	positions := make([]analytics.Position, 0, len(snapshot.Positions))
	stableUSD := 0.0
	stable := make(map[string]struct{}, len(opts.StableSymbols))
	for _, symbol := range opts.StableSymbols {
		stable[symbol] = struct{}{}
	}

	for _, position := range snapshot.Positions {
		positions = append(positions, analytics.Position{
			Label: position.Label,
			USD:   position.USD.InexactFloat64(),
		})
		if _, ok := stable[position.Symbol]; ok {
			stableUSD += position.USD.InexactFloat64()
		}
	}

	series, err := v.valueSeries(ctx, userID, samples, opts.VolatilityLookback)
	if err != nil {
		return analytics.Metrics{}, Snapshot{}, err
	}

	metrics := analytics.ComputeMetrics(positions, series, stableUSD, opts.TargetStablePct, opts.VolatilityLookback)
	return metrics, snapshot, nil
}

// valueSeries loads the user's recent total-value history, oldest first.
func (v *Valuer) valueSeries(ctx context.Context, userID int64, samples storage.ValueSampleStore, lookback int) ([]float64, error) {
	if samples == nil || lookback <= 0 {
		return nil, nil
	}

	recent, err := samples.ListRecentValues(ctx, userID, lookback)
	if err != nil {
		return nil, fmt.Errorf("value history for user %d: %w", userID, err)
	}

	series := make([]float64, len(recent))
	for i, sample := range recent {
		// ListRecentValues returns newest first; the signal wants
		// chronological order.
		series[len(recent)-1-i] = sample.TotalUSD.InexactFloat64()
	}
	return series, nil
}
