package analytics

import (
	"strings"
	"testing"
)

func TestFormatReport(t *testing.T) {
	positions := []Position{{Label: "SEI", USD: 600}, {Label: "USDC", USD: 400}}
	m := ComputeMetrics(positions, []float64{950, 1000, 980}, 400, 20, 60)

	text := FormatReport(m)
	for _, want := range []string{
		"[Portfolio Report]",
		"Total value: $1000.00 across 2 positions",
		"Top asset: SEI (60.0%)",
		"Stable allocation: 40.0% (target 20.0%)",
		"Rebalance: trim $200.00 from stables",
		"Warning: high concentration",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q:\n%s", want, text)
		}
	}
}

func TestFormatReportEmptyPortfolio(t *testing.T) {
	text := FormatReport(ComputeMetrics(nil, nil, 0, 20, 60))
	if !strings.Contains(text, "Total value: $0.00 across 0 positions") {
		t.Fatalf("unexpected empty report:\n%s", text)
	}
	if strings.Contains(text, "Top asset:") {
		t.Fatalf("empty portfolio should not name a top asset:\n%s", text)
	}
	if !strings.Contains(text, "Rebalance: hold") {
		t.Fatalf("empty portfolio should hold:\n%s", text)
	}
}
