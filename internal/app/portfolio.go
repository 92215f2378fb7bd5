package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"portfolio-drop-alerts/internal/balance"
)

// AddAddress validates and tracks a new wallet address for a user.
// Re-adding an existing address only updates its label.
func (a *App) AddAddress(ctx context.Context, userID int64, address, label string) error {
	if !balance.IsEVMAddress(address) && !balance.IsNativeAddress(address) {
		return fmt.Errorf("%w: %s", balance.ErrInvalidAddress, address)
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.AddAddress(ctx, userID, address, label); err != nil {
		return err
	}

	a.Logger.Info().Int64("user_id", userID).Str("address", address).Msg("address added to portfolio")
	return nil
}

// RemoveAddress stops tracking an address for a user.
func (a *App) RemoveAddress(ctx context.Context, userID int64, address string) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.RemoveAddress(ctx, userID, address); err != nil {
		return err
	}

	a.Logger.Info().Int64("user_id", userID).Str("address", address).Msg("address removed from portfolio")
	return nil
}

// ListPortfolio prints a user's tracked addresses.
func (a *App) ListPortfolio(ctx context.Context, userID int64) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	entries, err := store.ListPortfolio(ctx, userID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no addresses tracked")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Address\tLabel\tAdded (UTC)")
	for _, entry := range entries {
		fmt.Fprintf(writer, "%s\t%s\t%s\n",
			entry.Address, entry.Label, entry.CreatedAt.UTC().Format(time.RFC3339))
	}
	return writer.Flush()
}
