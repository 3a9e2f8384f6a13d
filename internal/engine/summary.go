package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/core"
)

// PeriodSummary holds the headline figures of a report window.
type PeriodSummary struct {
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	NetSavings    decimal.Decimal `json:"netSavings"`
	// SavingsRate is NetSavings as a percentage of TotalIncome. It is
	// negative when spending exceeded income and 0 without income.
	SavingsRate float64 `json:"savingsRate"`
}

// Summarize totals already filtered expenses and incomes.
func Summarize(expenses, incomes []core.Transaction) PeriodSummary {
	totalExp := sumTransactions(expenses)
	totalInc := sumTransactions(incomes)
	net := totalInc.Sub(totalExp)
	return PeriodSummary{
		TotalExpenses: totalExp,
		TotalIncome:   totalInc,
		NetSavings:    net,
		SavingsRate:   percentOf(net, totalInc),
	}
}

func sumTransactions(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}

// MonthSummary compares the current month's spending with a monthly limit.
type MonthSummary struct {
	Spent        decimal.Decimal `json:"spent"`
	Limit        decimal.Decimal `json:"limit"`
	Remaining    decimal.Decimal `json:"remaining"`
	PercentSpent float64         `json:"percentSpent"`
	// LimitIsDefault is set when no active monthly budget exists and the
	// caller's default limit was used.
	LimitIsDefault bool `json:"limitIsDefault"`
}

// SummarizeMonth sums every expense in now's calendar month. The limit is the
// sum of active monthly budgets, or defaultLimit when there are none.
func SummarizeMonth(expenses []core.Expense, budgets []core.Budget, now time.Time, defaultLimit decimal.Decimal) MonthSummary {
	start := startOfMonth(now)
	month := Window{Start: start, End: endOfMonth(start)}

	spent := decimal.Zero
	for _, e := range expenses {
		if month.Contains(e.Date) {
			spent = spent.Add(e.Amount)
		}
	}

	limit := decimal.Zero
	found := false
	for _, b := range budgets {
		if b.Period == core.Monthly && ClassifyBudget(b, now) == BudgetActive {
			limit = limit.Add(b.Amount)
			found = true
		}
	}
	if !found {
		limit = defaultLimit
	}

	return MonthSummary{
		Spent:          spent,
		Limit:          limit,
		Remaining:      limit.Sub(spent),
		PercentSpent:   clampedPercentOf(spent, limit),
		LimitIsDefault: !found,
	}
}
