package cost

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceSearch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		queries int
		want    string
	}{
		{0, "0"},
		{1, "0.005"},
		{10, "0.05"},
		{1000, "5"},
	}
	for _, tc := range cases {
		got := PriceSearch(tc.queries)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("PriceSearch(%d) = %s, want %s", tc.queries, got, tc.want)
		}
	}
}

func TestPriceAnalysis(t *testing.T) {
	t.Parallel()

	// 1M input at $2.50 plus 1M output at $10.00
	got := PriceAnalysis("gpt-4o", 1_000_000, 1_000_000)
	if !got.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("PriceAnalysis() = %s, want 12.5", got)
	}

	// Small counts round to six decimal places.
	got = PriceAnalysis("gpt-4o", 1234, 567)
	if !got.Equal(decimal.RequireFromString("0.008755")) {
		t.Errorf("PriceAnalysis() = %s, want 0.008755", got)
	}
}

func TestPriceAnalysisUnknownModelFallsBack(t *testing.T) {
	t.Parallel()

	known := PriceAnalysis("gpt-4o", 1000, 1000)
	unknown := PriceAnalysis("some-future-model", 1000, 1000)
	if !known.Equal(unknown) {
		t.Errorf("unknown model priced %s, want fallback %s", unknown, known)
	}
}

func TestFormatForDisplay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"0.0045", "$0.0045"},
		{"0.005", "$0.0050"},
		{"1.5", "$1.50"},
		{"12.345", "$12.35"},
	}
	for _, tc := range cases {
		if got := FormatForDisplay(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Errorf("FormatForDisplay(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
