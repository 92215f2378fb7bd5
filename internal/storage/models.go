package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddressEntry is one tracked address in a user's portfolio.
type AddressEntry struct {
	Address   string
	Label     string
	CreatedAt time.Time
}

// AlertConfig is a user's durable alerting preference. The monitor reads
// it fresh every tick and never mutates it outside enable/disable.
type AlertConfig struct {
	UserID    int64
	Enabled   bool
	DropPct   decimal.Decimal
	UpdatedAt time.Time
}

// ValueSample is one per-tick observation of a user's total portfolio
// value. The recent series feeds the volatility signal and the export
// chart.
type ValueSample struct {
	UserID    int64
	TickTS    time.Time
	TotalUSD  decimal.Decimal
	CreatedAt time.Time
}

// Watch is one address a user wants transaction notifications for.
// LastTxHash is the newest transaction already reported; empty means the
// watch has not been scanned yet.
type Watch struct {
	UserID     int64
	Address    string
	LastTxHash string
	CreatedAt  time.Time
}

// AlertRecord captures a dispatched drop alert for auditing.
type AlertRecord struct {
	ID           int64
	UserID       int64
	AnchorUSD    decimal.Decimal
	CurrentUSD   decimal.Decimal
	DropPct      decimal.Decimal
	ThresholdPct decimal.Decimal
	CreatedAt    time.Time
}
