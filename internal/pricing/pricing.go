package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Tier labels which fallback level produced a quote.
type Tier string

const (
	// TierPrimary marks quotes served by the live oracle.
	TierPrimary Tier = "primary"
	// TierSimulated marks quotes served by the test-mode source.
	TierSimulated Tier = "simulated"
	// TierFallback marks quotes served from the static price table.
	TierFallback Tier = "fallback"
)

// Quote is an immutable USD price observation for one symbol.
type Quote struct {
	Symbol     string
	USD        decimal.Decimal
	ObservedAt time.Time
	Tier       Tier
}

// Source is one strategy in the quote fallback chain.
type Source interface {
	Name() string
	Tier() Tier
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// ErrUnknownSymbol indicates a symbol outside the supported set.
var ErrUnknownSymbol = errors.New("pricing: unknown symbol")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable; the cache moves straight to
// the next source instead of backing off.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
