// Package memory is an in-process Record Store used for local development and
// tests. Data is lost on restart.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/core"
	"campusbudget/internal/records"
)

type Store struct {
	mu       sync.RWMutex
	nextID   int64
	now      func() time.Time
	expenses map[int64]core.Expense
	incomes  map[int64]core.Income
	budgets  map[int64]core.Budget
	goals    map[int64]core.SavingsGoal
}

var _ records.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:      time.Now,
		expenses: map[int64]core.Expense{},
		incomes:  map[int64]core.Income{},
		budgets:  map[int64]core.Budget{},
		goals:    map[int64]core.SavingsGoal{},
	}
}

// Seed is the JSON layout accepted by NewFromFile.
type Seed struct {
	Expenses     []core.Expense     `json:"expenses"`
	Incomes      []core.Income      `json:"incomes"`
	Budgets      []core.Budget      `json:"budgets"`
	SavingsGoals []core.SavingsGoal `json:"savingsGoals"`
}

// NewFromFile returns a store preloaded from a JSON seed file. A missing file
// yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	ctx := context.Background()
	for _, e := range seed.Expenses {
		if _, err := s.CreateExpense(ctx, e); err != nil {
			return nil, err
		}
	}
	for _, in := range seed.Incomes {
		if _, err := s.CreateIncome(ctx, in); err != nil {
			return nil, err
		}
	}
	for _, b := range seed.Budgets {
		if _, err := s.CreateBudget(ctx, b); err != nil {
			return nil, err
		}
	}
	for _, g := range seed.SavingsGoals {
		if _, err := s.CreateSavingsGoal(ctx, g); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// stamp assigns the next id and the creation time. Callers hold mu.
func (s *Store) stamp() (int64, time.Time) {
	s.nextID++
	return s.nextID, s.now().UTC()
}

func getOwned[T any](m map[int64]T, owner func(T) int64, userID, id int64) (T, error) {
	v, ok := m[id]
	if !ok || owner(v) != userID {
		var zero T
		return zero, records.ErrNotFound
	}
	return v, nil
}

func listOwned[T any](m map[int64]T, keep func(T) bool) []T {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = m[id]
	}
	return out
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func expenseOwner(e core.Expense) int64 { return e.UserID }
func incomeOwner(in core.Income) int64 { return in.UserID }
func budgetOwner(b core.Budget) int64 { return b.UserID }
func goalOwner(g core.SavingsGoal) int64 { return g.UserID }

// Expenses

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID, e.CreatedAt = s.stamp()
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOwned(s.expenses, expenseOwner, userID, id)
}

func (s *Store) ListExpenses(_ context.Context, userID int64) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOwned(s.expenses, func(e core.Expense) bool { return e.UserID == userID }), nil
}

func (s *Store) ListExpensesBetween(_ context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOwned(s.expenses, func(e core.Expense) bool {
		return e.UserID == userID && within(e.Date, start, end)
	}), nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := getOwned(s.expenses, expenseOwner, e.UserID, e.ID)
	if err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = prev.CreatedAt
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := getOwned(s.expenses, expenseOwner, userID, id); err != nil {
		return err
	}
	delete(s.expenses, id)
	return nil
}

// Incomes

func (s *Store) CreateIncome(_ context.Context, in core.Income) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in.ID, in.CreatedAt = s.stamp()
	s.incomes[in.ID] = in
	return in, nil
}

func (s *Store) GetIncome(_ context.Context, userID, id int64) (core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOwned(s.incomes, incomeOwner, userID, id)
}

func (s *Store) ListIncomes(_ context.Context, userID int64) ([]core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOwned(s.incomes, func(in core.Income) bool { return in.UserID == userID }), nil
}

func (s *Store) ListIncomesBetween(_ context.Context, userID int64, start, end time.Time) ([]core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOwned(s.incomes, func(in core.Income) bool {
		return in.UserID == userID && within(in.Date, start, end)
	}), nil
}

func (s *Store) UpdateIncome(_ context.Context, in core.Income) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := getOwned(s.incomes, incomeOwner, in.UserID, in.ID)
	if err != nil {
		return core.Income{}, err
	}
	in.CreatedAt = prev.CreatedAt
	s.incomes[in.ID] = in
	return in, nil
}

func (s *Store) DeleteIncome(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := getOwned(s.incomes, incomeOwner, userID, id); err != nil {
		return err
	}
	delete(s.incomes, id)
	return nil
}

// Budgets

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID, b.CreatedAt = s.stamp()
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) GetBudget(_ context.Context, userID, id int64) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOwned(s.budgets, budgetOwner, userID, id)
}

func (s *Store) ListBudgets(_ context.Context, userID int64) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOwned(s.budgets, func(b core.Budget) bool { return b.UserID == userID }), nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := getOwned(s.budgets, budgetOwner, b.UserID, b.ID)
	if err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = prev.CreatedAt
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := getOwned(s.budgets, budgetOwner, userID, id); err != nil {
		return err
	}
	delete(s.budgets, id)
	return nil
}

// Savings goals

func (s *Store) CreateSavingsGoal(_ context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID, g.CreatedAt = s.stamp()
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) GetSavingsGoal(_ context.Context, userID, id int64) (core.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOwned(s.goals, goalOwner, userID, id)
}

func (s *Store) ListSavingsGoals(_ context.Context, userID int64) ([]core.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOwned(s.goals, func(g core.SavingsGoal) bool { return g.UserID == userID }), nil
}

func (s *Store) UpdateSavingsGoal(_ context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := getOwned(s.goals, goalOwner, g.UserID, g.ID)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	g.CreatedAt = prev.CreatedAt
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) DeleteSavingsGoal(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := getOwned(s.goals, goalOwner, userID, id); err != nil {
		return err
	}
	delete(s.goals, id)
	return nil
}

func (s *Store) AddContribution(_ context.Context, userID, id int64, amount decimal.Decimal) (core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := getOwned(s.goals, goalOwner, userID, id)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	s.goals[id] = g
	return g, nil
}
