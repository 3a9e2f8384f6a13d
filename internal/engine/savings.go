package engine

import (
	"github.com/shopspring/decimal"

	"campusbudget/internal/core"
)

// SavingsProgress is a goal with its completion figures.
type SavingsProgress struct {
	Goal            core.SavingsGoal `json:"goal"`
	PercentComplete float64          `json:"percentComplete"`
	Remaining       decimal.Decimal  `json:"remaining"`
	// IsDefault marks a caller-supplied placeholder goal rather than a stored one.
	IsDefault bool `json:"isDefault,omitempty"`
}

// ComputeSavingsProgress clamps the percentage to 100 and the remaining
// amount to zero; the saved amount itself may exceed the target.
func ComputeSavingsProgress(g core.SavingsGoal) SavingsProgress {
	remaining := g.TargetAmount.Sub(g.CurrentAmount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return SavingsProgress{
		Goal:            g,
		PercentComplete: clampedPercentOf(g.CurrentAmount, g.TargetAmount),
		Remaining:       remaining,
	}
}

// PrimaryGoal picks the goal shown on the dashboard: the first stored goal,
// else the fallback. It returns nil when neither exists.
func PrimaryGoal(goals []core.SavingsGoal, fallback *core.SavingsGoal) *SavingsProgress {
	if len(goals) > 0 {
		p := ComputeSavingsProgress(goals[0])
		return &p
	}
	if fallback == nil {
		return nil
	}
	p := ComputeSavingsProgress(*fallback)
	p.IsDefault = true
	return &p
}
