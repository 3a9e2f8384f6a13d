package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/core"
)

// BudgetStatus places a budget relative to the reference instant.
type BudgetStatus string

const (
	BudgetActive   BudgetStatus = "active"
	BudgetPast     BudgetStatus = "past"
	BudgetUpcoming BudgetStatus = "upcoming"
)

// BudgetProgress is the spending measured against one budget.
type BudgetProgress struct {
	Budget          core.Budget     `json:"budget"`
	Spent           decimal.Decimal `json:"spent"`
	Remaining       decimal.Decimal `json:"remaining"`
	ProgressPercent float64         `json:"progressPercent"`
	Status          BudgetStatus    `json:"status,omitempty"`
}

// OverBudget reports whether spending exceeded the budget amount.
func (p BudgetProgress) OverBudget() bool {
	return p.Remaining.IsNegative()
}

// ComputeBudgetProgress sums the expenses of b's category dated inside
// [b.StartDate, b.EndDate]. Progress is clamped to 100 and is 0 for a zero
// amount; remaining keeps its sign.
func ComputeBudgetProgress(b core.Budget, expenses []core.Expense) BudgetProgress {
	w := Window{Start: b.StartDate, End: b.EndDate}
	spent := decimal.Zero
	for _, e := range expenses {
		if e.Category == b.Category && w.Contains(e.Date) {
			spent = spent.Add(e.Amount)
		}
	}
	return BudgetProgress{
		Budget:          b,
		Spent:           spent,
		Remaining:       b.Amount.Sub(spent),
		ProgressPercent: clampedPercentOf(spent, b.Amount),
	}
}

// ClassifyBudget reports whether b is active (now inside its window), past
// (window ended before now) or upcoming (window starts after now).
func ClassifyBudget(b core.Budget, now time.Time) BudgetStatus {
	switch {
	case now.After(b.EndDate):
		return BudgetPast
	case now.Before(b.StartDate):
		return BudgetUpcoming
	}
	return BudgetActive
}

// BudgetPartition separates budgets into current, history and upcoming views.
type BudgetPartition struct {
	Current  []BudgetProgress `json:"current"`
	Past     []BudgetProgress `json:"past"`
	Upcoming []BudgetProgress `json:"upcoming"`
}

// PartitionBudgets computes progress for every budget and splits them by
// status. Current and upcoming keep input order; past is sorted by end date,
// most recent first.
func PartitionBudgets(budgets []core.Budget, expenses []core.Expense, now time.Time) BudgetPartition {
	p := BudgetPartition{
		Current:  []BudgetProgress{},
		Past:     []BudgetProgress{},
		Upcoming: []BudgetProgress{},
	}
	for _, b := range budgets {
		prog := ComputeBudgetProgress(b, expenses)
		prog.Status = ClassifyBudget(b, now)
		switch prog.Status {
		case BudgetActive:
			p.Current = append(p.Current, prog)
		case BudgetPast:
			p.Past = append(p.Past, prog)
		default:
			p.Upcoming = append(p.Upcoming, prog)
		}
	}
	sort.SliceStable(p.Past, func(i, j int) bool {
		return p.Past[i].Budget.EndDate.After(p.Past[j].Budget.EndDate)
	})
	return p
}
