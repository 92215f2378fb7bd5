package app

import (
	"context"
	"fmt"
	"os"

	"portfolio-drop-alerts/internal/analytics"
	"portfolio-drop-alerts/internal/portfolio"
)

// Report values the user's portfolio and prints the analytics summary.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = a.Config.Analytics.VolatilityLookback
	}

	valuer := a.newValuer(store)
	metrics, snapshot, err := valuer.Report(ctx, opts.UserID, store, portfolio.ReportOptions{
		VolatilityLookback: lookback,
		TargetStablePct:    a.Config.Analytics.TargetStablePct,
		StableSymbols:      a.Config.Analytics.StableSymbols,
	})
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, analytics.FormatReport(metrics))
	for _, pos := range snapshot.Positions {
		fmt.Fprintf(os.Stdout, "  %s  %s %s  $%s  (%s)\n",
			pos.Label, pos.Native.StringFixed(6), pos.Symbol, pos.USD.StringFixed(2), pos.PriceTier)
	}
	return nil
}
