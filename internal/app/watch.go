package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"portfolio-drop-alerts/internal/balance"
)

// AddWatch validates and registers an address for transaction
// notifications. Re-adding an existing watch is a no-op.
func (a *App) AddWatch(ctx context.Context, userID int64, address string) error {
	if !balance.IsEVMAddress(address) && !balance.IsNativeAddress(address) {
		return fmt.Errorf("%w: %s", balance.ErrInvalidAddress, address)
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.AddWatch(ctx, userID, address); err != nil {
		return err
	}

	a.Logger.Info().Int64("user_id", userID).Str("address", address).Msg("address watch added")
	return nil
}

// RemoveWatch stops watching an address for a user.
func (a *App) RemoveWatch(ctx context.Context, userID int64, address string) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := store.RemoveWatch(ctx, userID, address)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("address %s is not watched", address)
	}

	a.Logger.Info().Int64("user_id", userID).Str("address", address).Msg("address watch removed")
	return nil
}

// ListWatches prints a user's watched addresses.
func (a *App) ListWatches(ctx context.Context, userID int64) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	watches, err := store.ListWatches(ctx, userID)
	if err != nil {
		return err
	}
	if len(watches) == 0 {
		fmt.Fprintln(os.Stdout, "no addresses watched")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Address\tLast Tx\tAdded (UTC)")
	for _, watch := range watches {
		lastTx := watch.LastTxHash
		if lastTx == "" {
			lastTx = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n",
			watch.Address, lastTx, watch.CreatedAt.UTC().Format(time.RFC3339))
	}
	return writer.Flush()
}
