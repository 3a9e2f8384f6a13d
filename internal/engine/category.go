package engine

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"campusbudget/internal/core"
)

// CategoryTotal is the summed amount of one category key.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// CategoryTotals maps category keys to summed amounts. Keys are remembered in
// first-encounter order so rankings can break ties deterministically.
type CategoryTotals struct {
	keys []string
	sums map[string]decimal.Decimal
}

// AggregateByCategory sums transaction amounts per category key (the expense
// category or the income source). Keys absent from txs never appear.
func AggregateByCategory(txs []core.Transaction) CategoryTotals {
	c := CategoryTotals{sums: make(map[string]decimal.Decimal)}
	for _, tx := range txs {
		sum, ok := c.sums[tx.Category]
		if !ok {
			c.keys = append(c.keys, tx.Category)
		}
		c.sums[tx.Category] = sum.Add(tx.Amount)
	}
	return c
}

func (c CategoryTotals) Len() int { return len(c.keys) }

// Keys returns the category keys in first-encounter order.
func (c CategoryTotals) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

func (c CategoryTotals) Get(category string) (decimal.Decimal, bool) {
	v, ok := c.sums[category]
	return v, ok
}

// Total is the sum over all categories.
func (c CategoryTotals) Total() decimal.Decimal {
	total := decimal.Zero
	for _, k := range c.keys {
		total = total.Add(c.sums[k])
	}
	return total
}

// Entries returns the totals in first-encounter order.
func (c CategoryTotals) Entries() []CategoryTotal {
	out := make([]CategoryTotal, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, CategoryTotal{Category: k, Amount: c.sums[k]})
	}
	return out
}

// MarshalJSON encodes the totals as a JSON object keyed by category.
func (c CategoryTotals) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.sums[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
