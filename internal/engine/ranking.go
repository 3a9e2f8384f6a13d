package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RankedCategory is a category total with its share of the grand total.
type RankedCategory struct {
	Category       string          `json:"category"`
	Amount         decimal.Decimal `json:"amount"`
	PercentOfTotal float64         `json:"percentOfTotal"`
}

// TopCategories returns the n largest categories, descending by amount.
// Equal amounts keep first-encounter order. The grand total is the total of
// the given map, so shares are relative to the same filtered period.
func TopCategories(totals CategoryTotals, n int) []RankedCategory {
	if n <= 0 {
		return []RankedCategory{}
	}
	entries := totals.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Amount.GreaterThan(entries[j].Amount)
	})
	if len(entries) > n {
		entries = entries[:n]
	}

	grand := totals.Total()
	out := make([]RankedCategory, len(entries))
	for i, e := range entries {
		out[i] = RankedCategory{
			Category:       e.Category,
			Amount:         e.Amount,
			PercentOfTotal: percentOf(e.Amount, grand),
		}
	}
	return out
}

// percentOf returns part/whole*100, or 0 when whole is not positive.
func percentOf(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}

// clampedPercentOf is percentOf limited to [0, 100].
func clampedPercentOf(part, whole decimal.Decimal) float64 {
	p := percentOf(part, whole)
	switch {
	case p > 100:
		return 100
	case p < 0:
		return 0
	}
	return p
}
