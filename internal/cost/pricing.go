// Package cost holds the pricing tables used to attribute a monetary cost
// to external-API usage. All functions are pure; prices are point-in-time
// constants kept in one place so they can be versioned together.
package cost

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Search API: $5.00 per 1000 queries.
	searchCostPer1000 = decimal.RequireFromString("5.00")

	// gpt-4o: $2.50 per 1M input tokens, $10.00 per 1M output tokens.
	gpt4oInputPer1M  = decimal.RequireFromString("2.50")
	gpt4oOutputPer1M = decimal.RequireFromString("10.00")

	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1000)
)

// PriceSearch returns the cost of n search-API queries, rounded to six
// decimal places.
func PriceSearch(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n)).
		Mul(searchCostPer1000).
		Div(thousand).
		Round(6)
}

// PriceAnalysis returns the token cost of one analyzer call. Unknown models
// fall back to the gpt-4o table.
func PriceAnalysis(model string, inputTokens, outputTokens int64) decimal.Decimal {
	inputRate, outputRate := gpt4oInputPer1M, gpt4oOutputPer1M
	if !strings.Contains(strings.ToLower(model), "gpt-4o") {
		slog.Warn("Unknown analyzer model, using gpt-4o pricing", "model", model)
	}

	input := decimal.NewFromInt(inputTokens).Mul(inputRate).Div(million)
	output := decimal.NewFromInt(outputTokens).Mul(outputRate).Div(million)
	return input.Add(output).Round(6)
}

// FormatForDisplay renders a cost as a dollar string, keeping four decimal
// places for sub-cent amounts.
func FormatForDisplay(cost decimal.Decimal) string {
	switch {
	case cost.IsZero():
		return "$0.00"
	case cost.LessThan(decimal.RequireFromString("0.01")):
		return "$" + cost.StringFixed(4)
	default:
		return "$" + cost.StringFixed(2)
	}
}
