package app

import (
	"context"

	"github.com/shopspring/decimal"
)

// EnableAlerts turns drop alerts on for a user and seeds the anchor from
// the current portfolio value.
func (a *App) EnableAlerts(ctx context.Context, userID int64, thresholdPct float64) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	mon := a.newMonitor(store, false)
	return mon.Enable(ctx, userID, decimal.NewFromFloat(thresholdPct))
}

// DisableAlerts turns drop alerts off for a user.
func (a *App) DisableAlerts(ctx context.Context, userID int64) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	mon := a.newMonitor(store, false)
	return mon.Disable(ctx, userID)
}
