package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"portfolio-drop-alerts/internal/analytics"
	"portfolio-drop-alerts/internal/pricing"
	"portfolio-drop-alerts/internal/storage"
)

type fakeAddresses struct {
	entries []storage.AddressEntry
	err     error
}

func (f *fakeAddresses) ListPortfolio(_ context.Context, _ int64) ([]storage.AddressEntry, error) {
	return f.entries, f.err
}

func (f *fakeAddresses) AddAddress(_ context.Context, _ int64, _, _ string) error { return nil }

func (f *fakeAddresses) RemoveAddress(_ context.Context, _ int64, _ string) error { return nil }

type fakeBalances struct {
	balances map[string]decimal.Decimal
	errs     map[string]error
}

func (f *fakeBalances) NativeBalance(_ context.Context, address string) (decimal.Decimal, error) {
	if err := f.errs[address]; err != nil {
		return decimal.Decimal{}, err
	}
	return f.balances[address], nil
}

type fakeQuoter struct {
	quote pricing.Quote
	err   error
}

func (f *fakeQuoter) Quote(_ context.Context, _ string) (pricing.Quote, error) {
	return f.quote, f.err
}

type fakeSamples struct {
	recent []storage.ValueSample
}

func (f *fakeSamples) UpsertValueSample(_ context.Context, _ storage.ValueSample) error { return nil }

func (f *fakeSamples) ListRecentValues(_ context.Context, _ int64, _ int) ([]storage.ValueSample, error) {
	return f.recent, nil
}

func (f *fakeSamples) ListValuesBetween(_ context.Context, _ int64, _, _ time.Time) ([]storage.ValueSample, error) {
	return nil, nil
}

func newTestValuer(addresses *fakeAddresses, balances *fakeBalances, quoter *fakeQuoter) *Valuer {
	return NewValuer(addresses, balances, quoter, zerolog.Nop())
}

func TestSnapshotValuesAllAddresses(t *testing.T) {
	addresses := &fakeAddresses{entries: []storage.AddressEntry{
		{Address: "sei1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Label: "main"},
		{Address: "0x1234567890abcdef1234567890abcdef12345678"},
	}}
	balances := &fakeBalances{balances: map[string]decimal.Decimal{
		"sei1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa": decimal.NewFromInt(100),
		"0x1234567890abcdef1234567890abcdef12345678": decimal.NewFromInt(50),
	}}
	quoter := &fakeQuoter{quote: pricing.Quote{Symbol: "SEI", USD: decimal.NewFromFloat(0.85), Tier: pricing.TierPrimary}}

	snapshot, err := newTestValuer(addresses, balances, quoter).Snapshot(context.Background(), 1)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if len(snapshot.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(snapshot.Positions))
	}
	if !snapshot.TotalUSD.Equal(decimal.NewFromFloat(127.5)) {
		t.Fatalf("expected total 127.5, got %s", snapshot.TotalUSD.String())
	}
	if snapshot.Positions[0].Label != "main" {
		t.Fatalf("label should be kept, got %q", snapshot.Positions[0].Label)
	}
	if snapshot.Positions[1].Label != "0x12345678..." {
		t.Fatalf("unlabelled address should be shortened, got %q", snapshot.Positions[1].Label)
	}
}

func TestSnapshotEmptyPortfolio(t *testing.T) {
	valuer := newTestValuer(&fakeAddresses{}, &fakeBalances{}, &fakeQuoter{})
	snapshot, err := valuer.Snapshot(context.Background(), 1)
	if err != nil {
		t.Fatalf("empty portfolio should not error: %v", err)
	}
	if !snapshot.TotalUSD.IsZero() || len(snapshot.Positions) != 0 {
		t.Fatalf("expected an empty snapshot, got %+v", snapshot)
	}
}

func TestSnapshotFailsOnBalanceError(t *testing.T) {
	addresses := &fakeAddresses{entries: []storage.AddressEntry{
		{Address: "sei1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
	}}
	balances := &fakeBalances{errs: map[string]error{
		"sei1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa": errors.New("lcd down"),
	}}
	quoter := &fakeQuoter{quote: pricing.Quote{USD: decimal.NewFromInt(1)}}

	if _, err := newTestValuer(addresses, balances, quoter).Snapshot(context.Background(), 1); err == nil {
		t.Fatal("balance failure should fail the whole snapshot")
	}
}

func TestReportBuildsChronologicalSeries(t *testing.T) {
	addresses := &fakeAddresses{entries: []storage.AddressEntry{
		{Address: "sei1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Label: "main"},
	}}
	balances := &fakeBalances{balances: map[string]decimal.Decimal{
		"sei1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa": decimal.NewFromInt(1000),
	}}
	quoter := &fakeQuoter{quote: pricing.Quote{Symbol: "SEI", USD: decimal.NewFromInt(1), Tier: pricing.TierFallback}}

	// Newest first, the way the store returns them. A falling history
	// must register as a drawdown once re-ordered chronologically.
	samples := &fakeSamples{recent: []storage.ValueSample{
		{TotalUSD: decimal.NewFromInt(800)},
		{TotalUSD: decimal.NewFromInt(900)},
		{TotalUSD: decimal.NewFromInt(1000)},
	}}

	metrics, snapshot, err := newTestValuer(addresses, balances, quoter).Report(
		context.Background(), 1, samples, ReportOptions{VolatilityLookback: 10, TargetStablePct: 20})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if !snapshot.TotalUSD.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected snapshot total %s", snapshot.TotalUSD.String())
	}
	wantDrawdown := (1000.0 - 800.0) / 1000.0 * 100
	if metrics.Volatility.DrawdownPct != wantDrawdown {
		t.Fatalf("expected drawdown %.2f, got %.2f", wantDrawdown, metrics.Volatility.DrawdownPct)
	}
	if metrics.Rebalance.Suggestion != analytics.SuggestIncreaseStable {
		t.Fatalf("all-SEI portfolio should suggest increasing stable, got %s", metrics.Rebalance.Suggestion)
	}
}
