package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"campusbudget/internal/cache"
	"campusbudget/internal/core"
	"campusbudget/internal/engine"
	"campusbudget/internal/records"
)

// ReportService fetches one user's records and runs the aggregation engine
// over them. It holds no aggregation state between calls.
type ReportService struct {
	store     records.Store
	defaults  engine.DashboardOptions
	snapshots *cache.LRUCache[int64, engine.Snapshot]

	// generations counts invalidations per user. A fetch that saw an older
	// generation is not cached.
	genMu       sync.Mutex
	generations map[int64]uint64
}

func NewReportService(store records.Store, defaults engine.DashboardOptions) *ReportService {
	return &ReportService{
		store:    store,
		defaults: defaults,
	}
}

// WithSnapshotCache serves the dashboard's full-record snapshot from c until
// it expires or Invalidate drops it. Other views always read the store.
func (s *ReportService) WithSnapshotCache(c *cache.LRUCache[int64, engine.Snapshot]) *ReportService {
	s.snapshots = c
	s.generations = make(map[int64]uint64)
	return s
}

// Invalidate drops the cached snapshot of userID. Snapshots fetched before
// the call are not cached afterwards.
func (s *ReportService) Invalidate(userID int64) {
	if s.snapshots == nil {
		return
	}
	s.genMu.Lock()
	s.generations[userID]++
	s.genMu.Unlock()
	s.snapshots.Delete(userID)
}

func (s *ReportService) generation(userID int64) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[userID]
}

// cacheSnapshot stores snap unless userID was invalidated since gen.
func (s *ReportService) cacheSnapshot(userID int64, gen uint64, snap engine.Snapshot) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[userID] != gen {
		return false
	}
	s.snapshots.Set(userID, snap)
	return true
}

// CategoryReport is a window's category breakdown with its top entries.
type CategoryReport struct {
	Window     engine.Window           `json:"window"`
	Total      decimal.Decimal         `json:"total"`
	Categories engine.CategoryTotals   `json:"categories"`
	Top        []engine.RankedCategory `json:"top"`
}

// SavingsReport lists every goal and the one shown on the dashboard.
type SavingsReport struct {
	Goals   []engine.SavingsProgress `json:"goals"`
	Primary *engine.SavingsProgress  `json:"primary"`
}

// Window resolves sel relative to now. A semester selection without explicit
// bounds uses the configured semester.
func (s *ReportService) Window(sel engine.Range, now time.Time, explicit engine.Window) (engine.Window, error) {
	if sel == engine.Semester && explicit.Start.IsZero() && explicit.End.IsZero() {
		explicit = s.defaults.Semester
	}
	return engine.ResolveWindow(sel, now, explicit)
}

// snapshot fetches every record of the user concurrently.
func (s *ReportService) snapshot(ctx context.Context, userID int64) (engine.Snapshot, error) {
	var gen uint64
	if s.snapshots != nil {
		if snap, ok := s.snapshots.Get(userID); ok {
			return snap, nil
		}
		gen = s.generation(userID)
	}

	var snap engine.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Expenses, err = s.store.ListExpenses(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		snap.Incomes, err = s.store.ListIncomes(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		snap.Budgets, err = s.store.ListBudgets(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		snap.Goals, err = s.store.ListSavingsGoals(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return engine.Snapshot{}, fmt.Errorf("fetch records: %w", err)
	}
	if s.snapshots != nil && !s.cacheSnapshot(userID, gen, snap) {
		slog.DebugContext(ctx, "Skipped caching stale snapshot", "user_id", userID)
	}
	return snap, nil
}

// transactionsBetween fetches expenses and incomes inside w concurrently.
func (s *ReportService) transactionsBetween(ctx context.Context, userID int64, w engine.Window) ([]core.Expense, []core.Income, error) {
	var (
		expenses []core.Expense
		incomes  []core.Income
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		expenses, err = s.store.ListExpensesBetween(gctx, userID, w.Start, w.End)
		return err
	})
	g.Go(func() (err error) {
		incomes, err = s.store.ListIncomesBetween(gctx, userID, w.Start, w.End)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return expenses, incomes, nil
}

// Dashboard builds the landing page view at now.
func (s *ReportService) Dashboard(ctx context.Context, userID int64, now time.Time) (engine.Dashboard, error) {
	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return engine.Dashboard{}, err
	}
	d := engine.BuildDashboard(snap, now, s.defaults)
	slog.DebugContext(ctx, "Built dashboard",
		"user_id", userID,
		"expenses", len(snap.Expenses),
		"incomes", len(snap.Incomes))
	return d, nil
}

// Report builds the reports page view for w.
func (s *ReportService) Report(ctx context.Context, userID int64, w engine.Window) (engine.Report, error) {
	expenses, incomes, err := s.transactionsBetween(ctx, userID, w)
	if err != nil {
		return engine.Report{}, err
	}
	return engine.BuildReport(engine.Snapshot{Expenses: expenses, Incomes: incomes}, w), nil
}

// Categories ranks the expense categories of w. limit <= 0 uses the report
// default.
func (s *ReportService) Categories(ctx context.Context, userID int64, w engine.Window, limit int) (CategoryReport, error) {
	if limit <= 0 {
		limit = engine.TopCategoryCount
	}
	expenses, err := s.store.ListExpensesBetween(ctx, userID, w.Start, w.End)
	if err != nil {
		return CategoryReport{}, fmt.Errorf("fetch expenses: %w", err)
	}
	totals := engine.AggregateByCategory(engine.FilterTransactions(core.ExpenseTransactions(expenses), w))
	return CategoryReport{
		Window:     w,
		Total:      totals.Total(),
		Categories: totals,
		Top:        engine.TopCategories(totals, limit),
	}, nil
}

// Series returns the expense breakdown of w with its daily series.
func (s *ReportService) Series(ctx context.Context, userID int64, w engine.Window) (engine.Analytics, error) {
	expenses, err := s.store.ListExpensesBetween(ctx, userID, w.Start, w.End)
	if err != nil {
		return engine.Analytics{}, fmt.Errorf("fetch expenses: %w", err)
	}
	return engine.ExpenseAnalytics(expenses, w), nil
}

// Transactions returns the limit most recent transactions labelled relative
// to now. limit <= 0 uses the dashboard default.
func (s *ReportService) Transactions(ctx context.Context, userID int64, now time.Time, limit int) ([]engine.FeedItem, error) {
	if limit <= 0 {
		limit = engine.RecentCount
	}
	var (
		expenses []core.Expense
		incomes  []core.Income
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		expenses, err = s.store.ListExpenses(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		incomes, err = s.store.ListIncomes(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return engine.LabelFeed(engine.Recent(engine.MergeFeed(expenses, incomes), limit), now), nil
}

// Budgets computes progress for every budget, split into current, past and
// upcoming at now.
func (s *ReportService) Budgets(ctx context.Context, userID int64, now time.Time) (engine.BudgetPartition, error) {
	var (
		budgets  []core.Budget
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		budgets, err = s.store.ListBudgets(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.store.ListExpenses(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return engine.BudgetPartition{}, fmt.Errorf("fetch budgets: %w", err)
	}
	return engine.PartitionBudgets(budgets, expenses, now), nil
}

// BudgetProgress computes the progress of a single budget.
func (s *ReportService) BudgetProgress(ctx context.Context, userID, budgetID int64, now time.Time) (engine.BudgetProgress, error) {
	b, err := s.store.GetBudget(ctx, userID, budgetID)
	if err != nil {
		return engine.BudgetProgress{}, fmt.Errorf("get budget %d: %w", budgetID, err)
	}
	expenses, err := s.store.ListExpensesBetween(ctx, userID, b.StartDate, b.EndDate)
	if err != nil {
		return engine.BudgetProgress{}, fmt.Errorf("fetch expenses: %w", err)
	}
	p := engine.ComputeBudgetProgress(b, expenses)
	p.Status = engine.ClassifyBudget(b, now)
	return p, nil
}

// Savings computes progress for every goal.
func (s *ReportService) Savings(ctx context.Context, userID int64) (SavingsReport, error) {
	goals, err := s.store.ListSavingsGoals(ctx, userID)
	if err != nil {
		return SavingsReport{}, fmt.Errorf("fetch savings goals: %w", err)
	}
	r := SavingsReport{
		Goals:   make([]engine.SavingsProgress, 0, len(goals)),
		Primary: engine.PrimaryGoal(goals, s.defaults.DefaultGoal),
	}
	for _, g := range goals {
		r.Goals = append(r.Goals, engine.ComputeSavingsProgress(g))
	}
	return r, nil
}
