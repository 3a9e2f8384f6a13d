// Package records defines the Record Store ports: per-user create, read,
// update and delete of expenses, incomes, budgets and savings goals, plus the
// inclusive date range queries reports use.
package records

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/core"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable wraps I/O failures of the underlying store.
	ErrUnavailable = errors.New("record store unavailable")
)

// Lists are ordered by id ascending. Updates replace the stored record
// matching (UserID, ID); callers merge partial updates before calling.
type (
	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, userID, id int64) (core.Expense, error)
		ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error)
		// ListExpensesBetween returns expenses dated in [start, end].
		ListExpensesBetween(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id int64) error
	}

	IncomeStore interface {
		CreateIncome(ctx context.Context, in core.Income) (core.Income, error)
		GetIncome(ctx context.Context, userID, id int64) (core.Income, error)
		ListIncomes(ctx context.Context, userID int64) ([]core.Income, error)
		// ListIncomesBetween returns incomes dated in [start, end].
		ListIncomesBetween(ctx context.Context, userID int64, start, end time.Time) ([]core.Income, error)
		UpdateIncome(ctx context.Context, in core.Income) (core.Income, error)
		DeleteIncome(ctx context.Context, userID, id int64) error
	}

	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, userID, id int64) (core.Budget, error)
		ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		DeleteBudget(ctx context.Context, userID, id int64) error
	}

	SavingsGoalStore interface {
		CreateSavingsGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error)
		GetSavingsGoal(ctx context.Context, userID, id int64) (core.SavingsGoal, error)
		ListSavingsGoals(ctx context.Context, userID int64) ([]core.SavingsGoal, error)
		UpdateSavingsGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error)
		DeleteSavingsGoal(ctx context.Context, userID, id int64) error
		// AddContribution adds amount to the goal's current amount atomically.
		AddContribution(ctx context.Context, userID, id int64, amount decimal.Decimal) (core.SavingsGoal, error)
	}

	// Store is the full Record Store.
	Store interface {
		ExpenseStore
		IncomeStore
		BudgetStore
		SavingsGoalStore
		// Ping reports whether the store can serve requests.
		Ping(ctx context.Context) error
	}
)
