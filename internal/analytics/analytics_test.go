package analytics

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestConcentrationDominantAsset(t *testing.T) {
	report := Concentration([]Position{{Label: "SEI", USD: 60}, {Label: "USDC", USD: 40}})

	if report.TopLabel != "SEI" {
		t.Fatalf("expected SEI on top, got %s", report.TopLabel)
	}
	if !almostEqual(report.TopPct, 60.0) {
		t.Fatalf("expected top share 60.0, got %v", report.TopPct)
	}
	if !almostEqual(report.HHI, 60*60+40*40) {
		t.Fatalf("unexpected HHI %v", report.HHI)
	}
	if len(report.Warnings) != 1 || report.Warnings[0] != "high concentration" {
		t.Fatalf("expected high concentration warning, got %v", report.Warnings)
	}
}

func TestConcentrationModerateBand(t *testing.T) {
	report := Concentration([]Position{
		{Label: "SEI", USD: 35},
		{Label: "ETH", USD: 33},
		{Label: "USDC", USD: 32},
	})
	if len(report.Warnings) != 1 || report.Warnings[0] != "moderate concentration" {
		t.Fatalf("expected moderate concentration warning, got %v", report.Warnings)
	}
}

func TestConcentrationBalancedPortfolio(t *testing.T) {
	report := Concentration([]Position{
		{Label: "A", USD: 25}, {Label: "B", USD: 25},
		{Label: "C", USD: 25}, {Label: "D", USD: 25},
	})
	if len(report.Warnings) != 0 {
		t.Fatalf("balanced portfolio should carry no warnings: %v", report.Warnings)
	}
	if !almostEqual(report.HHI, 2500) {
		t.Fatalf("expected HHI 2500, got %v", report.HHI)
	}
}

func TestConcentrationEmptyAndZeroTotal(t *testing.T) {
	for _, positions := range [][]Position{nil, {{Label: "A", USD: 0}}} {
		report := Concentration(positions)
		if report.TopLabel != "" || report.TopPct != 0 || report.HHI != 0 || report.Warnings != nil {
			t.Fatalf("degenerate input should yield a neutral report: %+v", report)
		}
	}
}

func TestConcentrationFirstMaxWinsTie(t *testing.T) {
	report := Concentration([]Position{{Label: "first", USD: 50}, {Label: "second", USD: 50}})
	if report.TopLabel != "first" {
		t.Fatalf("tie should keep the first position, got %s", report.TopLabel)
	}
}

func TestConcentrationLevelBands(t *testing.T) {
	cases := []struct {
		hhi  float64
		want string
	}{
		{5200, "very high"},
		{2000, "high"},
		{1200, "moderate"},
		{800, "low"},
	}
	for _, tc := range cases {
		if got := ConcentrationLevel(tc.hhi); got != tc.want {
			t.Fatalf("ConcentrationLevel(%v) = %q, want %q", tc.hhi, got, tc.want)
		}
	}
}

func TestVolatilitySignalBands(t *testing.T) {
	// Sample stdev of {100, 140, 60, 100} is ~32.66, about 33% of the mean.
	report := VolatilitySignal([]float64{100, 140, 60, 100}, 0)
	if report.Signal != SignalAlert {
		t.Fatalf("expected alert, got %s (vol %.2f%%)", report.Signal, report.VolatilityPct)
	}
	if !almostEqual(report.DrawdownPct, (140.0-100.0)/140.0*100) {
		t.Fatalf("unexpected drawdown %v", report.DrawdownPct)
	}

	// Sample stdev of {100, 110, 90, 100} is ~8.16% of the mean.
	report = VolatilitySignal([]float64{100, 110, 90, 100}, 0)
	if report.Signal != SignalWarn {
		t.Fatalf("expected warn, got %s (vol %.2f%%)", report.Signal, report.VolatilityPct)
	}

	report = VolatilitySignal([]float64{100, 101, 99, 100}, 0)
	if report.Signal != SignalOK {
		t.Fatalf("expected ok, got %s (vol %.2f%%)", report.Signal, report.VolatilityPct)
	}
}

func TestVolatilitySignalShortSeries(t *testing.T) {
	for _, series := range [][]float64{nil, {100}} {
		report := VolatilitySignal(series, 10)
		if report.Signal != SignalOK || report.Stdev != 0 || report.DrawdownPct != 0 {
			t.Fatalf("short series should be a neutral ok: %+v", report)
		}
	}
}

func TestVolatilitySignalLookbackWindow(t *testing.T) {
	// Wild history followed by a flat tail; only the tail should count.
	series := []float64{10, 500, 3, 100, 100, 100, 100}
	report := VolatilitySignal(series, 4)
	if report.Signal != SignalOK {
		t.Fatalf("lookback should exclude old samples, got %s", report.Signal)
	}
	if report.Stdev != 0 {
		t.Fatalf("flat window should have zero stdev, got %v", report.Stdev)
	}
}

func TestRebalanceAdvice(t *testing.T) {
	report := RebalanceAdvice(1000, 200, 40)
	if !almostEqual(report.CurrentPct, 20.0) {
		t.Fatalf("expected current 20.0, got %v", report.CurrentPct)
	}
	if !almostEqual(report.TargetUSD, 400.0) || !almostEqual(report.DeltaUSD, 200.0) {
		t.Fatalf("unexpected targets: %+v", report)
	}
	if report.Suggestion != SuggestIncreaseStable {
		t.Fatalf("expected increase suggestion, got %s", report.Suggestion)
	}

	if got := RebalanceAdvice(1000, 600, 40).Suggestion; got != SuggestDecreaseStable {
		t.Fatalf("expected decrease suggestion, got %s", got)
	}
	if got := RebalanceAdvice(1000, 400, 40).Suggestion; got != SuggestHold {
		t.Fatalf("expected hold, got %s", got)
	}
}

func TestRebalanceAdviceEpsilon(t *testing.T) {
	// Deltas inside the rounding tolerance must not flip the suggestion.
	if got := RebalanceAdvice(1000, 400.005, 40).Suggestion; got != SuggestHold {
		t.Fatalf("sub-epsilon delta should hold, got %s", got)
	}
	if got := RebalanceAdvice(0, 0, 40).Suggestion; got != SuggestHold {
		t.Fatalf("empty portfolio should hold, got %s", got)
	}
}

func TestComputeMetrics(t *testing.T) {
	positions := []Position{{Label: "SEI", USD: 600}, {Label: "USDC", USD: 400}}
	m := ComputeMetrics(positions, []float64{1000, 1000, 1000}, 400, 20, 60)

	if !almostEqual(m.TotalUSD, 1000) || m.NumAssets != 2 || !almostEqual(m.AvgPositionUSD, 500) {
		t.Fatalf("unexpected totals: %+v", m)
	}
	if m.Concentration.TopLabel != "SEI" {
		t.Fatalf("expected SEI on top, got %s", m.Concentration.TopLabel)
	}
	if m.HHILevel != "very high" {
		t.Fatalf("expected very high HHI level, got %s", m.HHILevel)
	}
	if m.Volatility.Signal != SignalOK {
		t.Fatalf("flat series should be ok, got %s", m.Volatility.Signal)
	}
	if m.Rebalance.Suggestion != SuggestDecreaseStable {
		t.Fatalf("40%% stable vs 20%% target should suggest decrease, got %s", m.Rebalance.Suggestion)
	}
}
