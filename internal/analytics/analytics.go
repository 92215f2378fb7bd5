// Package analytics provides the pure portfolio computations: every
// function is total and deterministic, and degenerate inputs (zero totals,
// empty series) map to defined neutral outputs rather than errors.
package analytics

import (
	"gonum.org/v1/gonum/stat"
)

// DeltaEpsilonUSD is the rounding tolerance below which rebalance advice
// is "hold", so floating-point noise cannot flip the suggestion.
const DeltaEpsilonUSD = 0.01

// Position is one labelled USD holding. Order matters for tie-breaking:
// the first maximum encountered wins.
type Position struct {
	Label string
	USD   float64
}

// ConcentrationReport summarises how lopsided a portfolio is.
type ConcentrationReport struct {
	TopLabel string
	TopPct   float64
	HHI      float64
	Warnings []string
}

// Concentration finds the dominant position and the Herfindahl-Hirschman
// Index. A zero or negative total yields a neutral report with no top
// asset and no warnings.
func Concentration(positions []Position) ConcentrationReport {
	var total float64
	for _, p := range positions {
		total += p.USD
	}
	if total <= 0 {
		return ConcentrationReport{}
	}

	top := positions[0]
	for _, p := range positions[1:] {
		if p.USD > top.USD {
			top = p
		}
	}

	report := ConcentrationReport{
		TopLabel: top.Label,
		TopPct:   top.USD / total * 100,
	}
	for _, p := range positions {
		share := p.USD / total * 100
		report.HHI += share * share
	}

	switch {
	case report.TopPct > 50:
		report.Warnings = append(report.Warnings, "high concentration")
	case report.TopPct >= 30:
		report.Warnings = append(report.Warnings, "moderate concentration")
	}
	return report
}

// ConcentrationLevel maps an HHI value to a coarse label.
func ConcentrationLevel(hhi float64) string {
	switch {
	case hhi > 2500:
		return "very high"
	case hhi > 1500:
		return "high"
	case hhi > 1000:
		return "moderate"
	default:
		return "low"
	}
}

// VolatilityReport carries the stdev/drawdown signal for a price series.
type VolatilityReport struct {
	Stdev         float64
	VolatilityPct float64
	DrawdownPct   float64
	Signal        string
}

// Volatility signal bands, on stdev as a percentage of the window mean.
const (
	SignalOK    = "ok"
	SignalWarn  = "warn"
	SignalAlert = "alert"
)

// VolatilitySignal inspects at most the last lookback samples. Fewer than
// two samples is not an error: the signal is "ok" with zero stdev and
// drawdown. Drawdown is measured from the window peak to the last sample.
func VolatilitySignal(series []float64, lookback int) VolatilityReport {
	if lookback > 0 && len(series) > lookback {
		series = series[len(series)-lookback:]
	}
	if len(series) < 2 {
		return VolatilityReport{Signal: SignalOK}
	}

	mean := stat.Mean(series, nil)
	stdev := stat.StdDev(series, nil)

	report := VolatilityReport{Stdev: stdev, Signal: SignalOK}
	if mean > 0 {
		report.VolatilityPct = stdev / mean * 100
	}

	peak := series[0]
	for _, v := range series[1:] {
		if v > peak {
			peak = v
		}
	}
	if peak > 0 {
		report.DrawdownPct = (peak - series[len(series)-1]) / peak * 100
	}

	switch {
	case report.VolatilityPct > 15:
		report.Signal = SignalAlert
	case report.VolatilityPct >= 8:
		report.Signal = SignalWarn
	}
	return report
}

// RebalanceReport describes how far the stable allocation sits from target.
type RebalanceReport struct {
	CurrentPct float64
	TargetPct  float64
	TargetUSD  float64
	DeltaUSD   float64
	Suggestion string
}

// Rebalance suggestions.
const (
	SuggestIncreaseStable = "increase stable allocation"
	SuggestDecreaseStable = "decrease stable allocation"
	SuggestHold           = "hold"
)

// RebalanceAdvice compares the current stable allocation against target.
func RebalanceAdvice(totalUSD, stableUSD, targetStablePct float64) RebalanceReport {
	report := RebalanceReport{TargetPct: targetStablePct, Suggestion: SuggestHold}
	if totalUSD > 0 {
		report.CurrentPct = stableUSD / totalUSD * 100
	}
	report.TargetUSD = targetStablePct / 100 * totalUSD
	report.DeltaUSD = report.TargetUSD - stableUSD

	switch {
	case report.DeltaUSD > DeltaEpsilonUSD:
		report.Suggestion = SuggestIncreaseStable
	case report.DeltaUSD < -DeltaEpsilonUSD:
		report.Suggestion = SuggestDecreaseStable
	}
	return report
}

// Metrics aggregates the three analyses over a single snapshot.
type Metrics struct {
	TotalUSD       float64
	NumAssets      int
	AvgPositionUSD float64
	Concentration  ConcentrationReport
	HHILevel       string
	Volatility     VolatilityReport
	Rebalance      RebalanceReport
}

// ComputeMetrics runs concentration, volatility, and rebalance analysis
// over one snapshot. series is the recent portfolio value history; it may
// be empty.
func ComputeMetrics(positions []Position, series []float64, stableUSD, targetStablePct float64, lookback int) Metrics {
	var total float64
	for _, p := range positions {
		total += p.USD
	}

	m := Metrics{
		TotalUSD:      total,
		NumAssets:     len(positions),
		Concentration: Concentration(positions),
		Volatility:    VolatilitySignal(series, lookback),
		Rebalance:     RebalanceAdvice(total, stableUSD, targetStablePct),
	}
	if m.NumAssets > 0 {
		m.AvgPositionUSD = total / float64(m.NumAssets)
	}
	m.HHILevel = ConcentrationLevel(m.Concentration.HHI)
	return m
}
