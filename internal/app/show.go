package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"portfolio-drop-alerts/internal/storage"
)

// Show prints recent value samples, or recent alerts with Alerts set.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Alerts {
		return a.showAlerts(ctx, store, opts)
	}
	return a.showValues(ctx, store, opts)
}

func (a *App) showValues(ctx context.Context, store storage.ValueSampleStore, opts ShowOptions) error {
	samples, err := store.ListRecentValues(ctx, opts.UserID, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no value samples found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tUser\tTotal USD")
	for _, sample := range samples {
		fmt.Fprintf(writer, "%s\t%d\t%s\n",
			sample.TickTS.UTC().Format(time.RFC3339),
			sample.UserID,
			sample.TotalUSD.StringFixed(2),
		)
	}
	return writer.Flush()
}

func (a *App) showAlerts(ctx context.Context, store storage.AlertAuditStore, opts ShowOptions) error {
	alerts, err := store.ListRecentAlerts(ctx, opts.UserID, opts.Limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tUser\tAnchor USD\tCurrent USD\tDrop%\tThreshold%")
	for _, alert := range alerts {
		fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.UserID,
			alert.AnchorUSD.StringFixed(2),
			alert.CurrentUSD.StringFixed(2),
			alert.DropPct.StringFixed(1),
			alert.ThresholdPct.StringFixed(1),
		)
	}
	return writer.Flush()
}
