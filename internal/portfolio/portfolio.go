package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"portfolio-drop-alerts/internal/balance"
	"portfolio-drop-alerts/internal/pricing"
	"portfolio-drop-alerts/internal/storage"
)

// NativeSymbol is the chain's native asset; all tracked addresses hold it.
const NativeSymbol = "SEI"

// Position is one address's valued holding within a snapshot.
type Position struct {
	Address   string
	Label     string
	Symbol    string
	Native    decimal.Decimal
	USD       decimal.Decimal
	PriceTier pricing.Tier
}

// Snapshot is a user's portfolio valued at one instant. It is rebuilt on
// every request and never reused across ticks.
type Snapshot struct {
	UserID     int64
	TotalUSD   decimal.Decimal
	Positions  []Position
	ComputedAt time.Time
}

// Quoter is the slice of the price cache the valuer needs.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (pricing.Quote, error)
}

// Valuer values portfolios: addresses from storage, balances from the
// chain, prices from the cache.
type Valuer struct {
	addresses storage.PortfolioStore
	balances  balance.Provider
	prices    Quoter
	logger    zerolog.Logger

	now func() time.Time
}

// NewValuer wires a portfolio valuer.
func NewValuer(addresses storage.PortfolioStore, balances balance.Provider, prices Quoter, logger zerolog.Logger) *Valuer {
	return &Valuer{
		addresses: addresses,
		balances:  balances,
		prices:    prices,
		logger:    logger.With().Str("component", "portfolio").Logger(),
		now:       time.Now,
	}
}

// Snapshot builds a fresh valuation of the user's portfolio. Any balance
// fetch failure fails the whole snapshot: a partially-valued portfolio
// would look like a drop.
func (v *Valuer) Snapshot(ctx context.Context, userID int64) (Snapshot, error) {
	entries, err := v.addresses.ListPortfolio(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list portfolio for user %d: %w", userID, err)
	}

	snapshot := Snapshot{
		UserID:     userID,
		TotalUSD:   decimal.Zero,
		Positions:  make([]Position, 0, len(entries)),
		ComputedAt: v.now().UTC(),
	}

	for _, entry := range entries {
		native, err := v.balances.NativeBalance(ctx, entry.Address)
		if err != nil {
			return Snapshot{}, fmt.Errorf("balance for %s: %w", entry.Address, err)
		}

		quote, err := v.prices.Quote(ctx, NativeSymbol)
		if err != nil {
			return Snapshot{}, fmt.Errorf("quote %s: %w", NativeSymbol, err)
		}

		position := Position{
			Address:   entry.Address,
			Label:     positionLabel(entry),
			Symbol:    NativeSymbol,
			Native:    native,
			USD:       native.Mul(quote.USD),
			PriceTier: quote.Tier,
		}
		snapshot.Positions = append(snapshot.Positions, position)
		snapshot.TotalUSD = snapshot.TotalUSD.Add(position.USD)
	}

	return snapshot, nil
}

func positionLabel(entry storage.AddressEntry) string {
	if entry.Label != "" {
		return entry.Label
	}
	if len(entry.Address) > 10 {
		return entry.Address[:10] + "..."
	}
	return entry.Address
}
