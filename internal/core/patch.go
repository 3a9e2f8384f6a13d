package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Partial updates. A nil field keeps the stored value.
type (
	ExpensePatch struct {
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		Category    *string          `json:"category,omitempty"`
		Description *string          `json:"description,omitempty"`
		Date        *time.Time       `json:"date,omitempty"`
	}

	IncomePatch struct {
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		Source      *string          `json:"source,omitempty"`
		Description *string          `json:"description,omitempty"`
		Date        *time.Time       `json:"date,omitempty"`
	}

	BudgetPatch struct {
		Category  *string          `json:"category,omitempty"`
		Amount    *decimal.Decimal `json:"amount,omitempty"`
		Period    *Period          `json:"period,omitempty"`
		StartDate *time.Time       `json:"startDate,omitempty"`
		EndDate   *time.Time       `json:"endDate,omitempty"`
	}

	SavingsGoalPatch struct {
		Name          *string          `json:"name,omitempty"`
		TargetAmount  *decimal.Decimal `json:"targetAmount,omitempty"`
		CurrentAmount *decimal.Decimal `json:"currentAmount,omitempty"`
		Deadline      *time.Time       `json:"deadline,omitempty"`
	}
)

func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}

func (p IncomePatch) Apply(i Income) Income {
	if p.Amount != nil {
		i.Amount = *p.Amount
	}
	if p.Source != nil {
		i.Source = *p.Source
	}
	if p.Description != nil {
		i.Description = *p.Description
	}
	if p.Date != nil {
		i.Date = *p.Date
	}
	return i
}

// Apply merges the patch into b. Changing the period or start date without an
// explicit end date re-derives the end date from the new period.
func (p BudgetPatch) Apply(b Budget) Budget {
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.Period != nil {
		b.Period = *p.Period
	}
	if p.StartDate != nil {
		b.StartDate = *p.StartDate
	}
	switch {
	case p.EndDate != nil:
		b.EndDate = *p.EndDate
	case p.Period != nil || p.StartDate != nil:
		if b.Period.Valid() {
			b.EndDate = b.Period.EndDate(b.StartDate)
		}
	}
	return b
}

func (p SavingsGoalPatch) Apply(g SavingsGoal) SavingsGoal {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.CurrentAmount != nil {
		g.CurrentAmount = *p.CurrentAmount
	}
	if p.Deadline != nil {
		d := *p.Deadline
		g.Deadline = &d
	}
	return g
}
