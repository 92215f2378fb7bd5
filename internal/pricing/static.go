package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Simulated serves deterministic test-mode prices in place of the live
// oracle when the upstream is not available or not configured.
type Simulated struct {
	prices map[string]decimal.Decimal
}

// NewSimulated constructs the test-mode source.
func NewSimulated() *Simulated {
	return &Simulated{prices: map[string]decimal.Decimal{
		"SEI":  decimal.NewFromFloat(0.85),
		"USDC": decimal.NewFromFloat(1.00),
		"ETH":  decimal.NewFromFloat(2150.25),
		"BTC":  decimal.NewFromFloat(43250.75),
		"SOL":  decimal.NewFromFloat(95.50),
	}}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Tier() Tier { return TierSimulated }

func (s *Simulated) Quote(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := s.prices[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Decimal{}, Permanent(fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol))
	}
	return price, nil
}

// Static serves last-known prices from a seeded table. It terminates the
// fallback chain: for supported symbols it never fails.
type Static struct {
	prices map[string]decimal.Decimal
}

// NewStatic builds the terminal fallback source from a symbol→USD table.
func NewStatic(table map[string]float64) *Static {
	prices := make(map[string]decimal.Decimal, len(table))
	for symbol, usd := range table {
		prices[strings.ToUpper(symbol)] = decimal.NewFromFloat(usd)
	}
	return &Static{prices: prices}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Tier() Tier { return TierFallback }

func (s *Static) Quote(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := s.prices[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Decimal{}, Permanent(fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol))
	}
	return price, nil
}

// Symbols lists the supported symbol set in no particular order.
func (s *Static) Symbols() []string {
	symbols := make([]string, 0, len(s.prices))
	for symbol := range s.prices {
		symbols = append(symbols, symbol)
	}
	return symbols
}

var (
	_ Source = (*Simulated)(nil)
	_ Source = (*Static)(nil)
)
