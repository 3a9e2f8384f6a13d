package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/cache"
	"campusbudget/internal/core"
	"campusbudget/internal/engine"
	"campusbudget/internal/records"
	"campusbudget/internal/records/memory"
)

// downStore fails every goal listing with ErrUnavailable.
type downStore struct {
	*memory.Store
}

func (downStore) ListSavingsGoals(context.Context, int64) ([]core.SavingsGoal, error) {
	return nil, fmt.Errorf("query: %w", records.ErrUnavailable)
}

// pausingStore holds the first goal listing after reading it, until release
// is closed.
type pausingStore struct {
	*memory.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (p *pausingStore) ListSavingsGoals(ctx context.Context, userID int64) ([]core.SavingsGoal, error) {
	goals, err := p.Store.ListSavingsGoals(ctx, userID)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return goals, err
}

func seedReports(t *testing.T, store records.Store) {
	t.Helper()
	ctx := context.Background()
	for _, e := range []core.Expense{
		{UserID: 1, Amount: dec("40"), Category: "Food", Date: day(2025, 9, 2)},
		{UserID: 1, Amount: dec("25"), Category: "Books", Date: day(2025, 9, 10)},
		{UserID: 1, Amount: dec("35"), Category: "Food", Date: day(2025, 9, 14)},
		{UserID: 1, Amount: dec("100"), Category: "Rent", Date: day(2025, 8, 1)},
		{UserID: 2, Amount: dec("999"), Category: "Food", Date: day(2025, 9, 3)},
	} {
		if _, err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("seed expense: %v", err)
		}
	}
	if _, err := store.CreateIncome(ctx, core.Income{UserID: 1, Amount: dec("500"), Source: "Job", Date: day(2025, 9, 1)}); err != nil {
		t.Fatalf("seed income: %v", err)
	}
	for _, b := range []core.Budget{
		{UserID: 1, Category: "Food", Amount: dec("150"), Period: core.Monthly, StartDate: day(2025, 9, 1), EndDate: day(2025, 9, 30)},
		{UserID: 1, Category: "Rent", Amount: dec("80"), Period: core.Monthly, StartDate: day(2025, 8, 1), EndDate: day(2025, 8, 31)},
		{UserID: 1, Category: "Books", Amount: dec("60"), Period: core.Monthly, StartDate: day(2025, 10, 1), EndDate: day(2025, 10, 31)},
	} {
		if _, err := store.CreateBudget(ctx, b); err != nil {
			t.Fatalf("seed budget: %v", err)
		}
	}
}

func TestReportService_Report(t *testing.T) {
	store := memory.New()
	seedReports(t, store)
	svc := NewReportService(store, engine.DashboardOptions{})
	now := day(2025, 9, 15)

	w, err := svc.Window(engine.ThisMonth, now, engine.Window{})
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	r, err := svc.Report(context.Background(), 1, w)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !r.Summary.TotalExpenses.Equal(dec("100")) || !r.Summary.TotalIncome.Equal(dec("500")) {
		t.Fatalf("unexpected summary %+v", r.Summary)
	}
	if !r.Summary.NetSavings.Equal(dec("400")) || r.Summary.SavingsRate != 80 {
		t.Fatalf("unexpected savings %+v", r.Summary)
	}
	if len(r.TopCategories) != 2 || r.TopCategories[0].Category != "Food" || r.TopCategories[0].PercentOfTotal != 75 {
		t.Fatalf("unexpected top categories %+v", r.TopCategories)
	}
}

func TestReportService_Categories(t *testing.T) {
	store := memory.New()
	seedReports(t, store)
	svc := NewReportService(store, engine.DashboardOptions{})

	w, _ := svc.Window(engine.ThreeMonths, day(2025, 9, 15), engine.Window{})
	r, err := svc.Categories(context.Background(), 1, w, 1)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if r.Categories.Len() != 3 || !r.Total.Equal(dec("200")) {
		t.Fatalf("unexpected totals %+v", r)
	}
	if len(r.Top) != 1 || r.Top[0].Category != "Rent" || r.Top[0].PercentOfTotal != 50 {
		t.Fatalf("unexpected top %+v", r.Top)
	}
}

func TestReportService_SemesterWindow(t *testing.T) {
	sem := engine.Window{Start: day(2025, 8, 21), End: day(2025, 12, 18)}
	svc := NewReportService(memory.New(), engine.DashboardOptions{Semester: sem})
	now := day(2025, 9, 15)

	w, err := svc.Window(engine.Semester, now, engine.Window{})
	if err != nil || !w.Start.Equal(sem.Start) || !w.End.Equal(sem.End) {
		t.Fatalf("configured semester must apply, got %+v err=%v", w, err)
	}

	custom := engine.Window{Start: day(2025, 9, 1), End: day(2025, 9, 7)}
	w, err = svc.Window(engine.Semester, now, custom)
	if err != nil || !w.Start.Equal(custom.Start) {
		t.Fatalf("explicit bounds must win, got %+v err=%v", w, err)
	}

	none := NewReportService(memory.New(), engine.DashboardOptions{})
	if _, err := none.Window(engine.Semester, now, engine.Window{}); !errors.Is(err, engine.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow without a semester, got %v", err)
	}
}

func TestReportService_Budgets(t *testing.T) {
	store := memory.New()
	seedReports(t, store)
	svc := NewReportService(store, engine.DashboardOptions{})

	p, err := svc.Budgets(context.Background(), 1, day(2025, 9, 15))
	if err != nil {
		t.Fatalf("budgets: %v", err)
	}
	if len(p.Current) != 1 || len(p.Past) != 1 || len(p.Upcoming) != 1 {
		t.Fatalf("unexpected partition %+v", p)
	}
	food := p.Current[0]
	if !food.Spent.Equal(dec("75")) || !food.Remaining.Equal(dec("75")) || food.ProgressPercent != 50 {
		t.Fatalf("unexpected food progress %+v", food)
	}
	rent := p.Past[0]
	if !rent.Remaining.Equal(dec("-20")) || rent.ProgressPercent != 100 || !rent.OverBudget() {
		t.Fatalf("unexpected rent progress %+v", rent)
	}

	single, err := svc.BudgetProgress(context.Background(), 1, food.Budget.ID, day(2025, 9, 15))
	if err != nil || !single.Spent.Equal(food.Spent) || single.Status != engine.BudgetActive {
		t.Fatalf("unexpected single progress %+v err=%v", single, err)
	}
	if _, err := svc.BudgetProgress(context.Background(), 2, food.Budget.ID, day(2025, 9, 15)); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("foreign budget must be not found, got %v", err)
	}
}

func TestReportService_TransactionsAndDashboard(t *testing.T) {
	store := memory.New()
	seedReports(t, store)
	goal := &core.SavingsGoal{Name: "Spring Break Trip", TargetAmount: dec("1200"), CurrentAmount: dec("480")}
	svc := NewReportService(store, engine.DashboardOptions{DefaultMonthlyLimit: decimal.NewFromInt(2000), DefaultGoal: goal})
	now := day(2025, 9, 15)

	feed, err := svc.Transactions(context.Background(), 1, now, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(feed) != engine.RecentCount || feed[0].Category != "Food" || feed[0].Day != engine.Yesterday || feed[3].Kind != core.KindIncome {
		t.Fatalf("unexpected feed %+v", feed)
	}

	d, err := svc.Dashboard(context.Background(), 1, now)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.Savings == nil || !d.Savings.IsDefault || d.Savings.PercentComplete != 40 {
		t.Fatalf("expected default goal at 40%%, got %+v", d.Savings)
	}
	if !d.MonthlyBudget.Limit.Equal(dec("150")) || d.MonthlyBudget.LimitIsDefault {
		t.Fatalf("active monthly budgets set the limit, got %+v", d.MonthlyBudget)
	}
	if d.Semester != nil {
		t.Fatalf("no semester configured, got %+v", d.Semester)
	}
}

func TestReportService_Savings(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if _, err := store.CreateSavingsGoal(ctx, core.SavingsGoal{UserID: 1, Name: "Laptop", TargetAmount: dec("900"), CurrentAmount: dec("1000")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewReportService(store, engine.DashboardOptions{})

	r, err := svc.Savings(ctx, 1)
	if err != nil {
		t.Fatalf("savings: %v", err)
	}
	if len(r.Goals) != 1 || r.Goals[0].PercentComplete != 100 || !r.Goals[0].Remaining.IsZero() {
		t.Fatalf("unexpected goals %+v", r.Goals)
	}
	if r.Primary == nil || r.Primary.IsDefault {
		t.Fatalf("stored goal must be primary, got %+v", r.Primary)
	}
}

func TestReportService_StoreUnavailable(t *testing.T) {
	svc := NewReportService(downStore{memory.New()}, engine.DashboardOptions{})

	if _, err := svc.Dashboard(context.Background(), 1, time.Now()); !errors.Is(err, records.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := svc.Savings(context.Background(), 1); !errors.Is(err, records.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestReportService_SnapshotCacheInvalidatedOnChange(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	reports := NewReportService(store, engine.DashboardOptions{}).
		WithSnapshotCache(cache.NewLRUCache[int64, engine.Snapshot](10, time.Hour))
	records := NewRecordService(store, nil)
	records.OnChange(reports.Invalidate)
	now := day(2025, 9, 15)

	g, err := records.CreateSavingsGoal(ctx, core.SavingsGoal{UserID: 1, Name: "Laptop", TargetAmount: dec("900")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	d, err := reports.Dashboard(ctx, 1, now)
	if err != nil || d.Savings == nil || !d.Savings.Goal.CurrentAmount.IsZero() {
		t.Fatalf("dashboard: %+v err=%v", d.Savings, err)
	}

	// a write that bypasses the service is not seen while cached
	if _, err := store.AddContribution(ctx, 1, g.ID, dec("450")); err != nil {
		t.Fatalf("direct contribution: %v", err)
	}
	if d, _ := reports.Dashboard(ctx, 1, now); !d.Savings.Goal.CurrentAmount.IsZero() {
		t.Fatalf("expected cached snapshot, got %s", d.Savings.Goal.CurrentAmount)
	}

	if _, err := records.Contribute(ctx, 1, g.ID, dec("100")); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	d, err = reports.Dashboard(ctx, 1, now)
	if err != nil || !d.Savings.Goal.CurrentAmount.Equal(dec("550")) {
		t.Fatalf("expected fresh snapshot after change, got %+v err=%v", d.Savings, err)
	}
}

func TestReportService_SnapshotFetchedBeforeChangeIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &pausingStore{Store: memory.New(), read: make(chan struct{}), release: make(chan struct{})}
	reports := NewReportService(store, engine.DashboardOptions{}).
		WithSnapshotCache(cache.NewLRUCache[int64, engine.Snapshot](10, time.Hour))
	records := NewRecordService(store, nil)
	records.OnChange(reports.Invalidate)
	now := day(2025, 9, 15)

	g, err := records.CreateSavingsGoal(ctx, core.SavingsGoal{UserID: 1, Name: "Laptop", TargetAmount: dec("900")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stale := make(chan engine.Dashboard, 1)
	go func() {
		d, _ := reports.Dashboard(ctx, 1, now)
		stale <- d
	}()

	<-store.read
	if _, err := records.Contribute(ctx, 1, g.ID, dec("200")); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	close(store.release)

	if d := <-stale; d.Savings == nil || !d.Savings.Goal.CurrentAmount.IsZero() {
		t.Fatalf("in-flight dashboard should reflect the earlier read, got %+v", d.Savings)
	}
	d, err := reports.Dashboard(ctx, 1, now)
	if err != nil || !d.Savings.Goal.CurrentAmount.Equal(dec("200")) {
		t.Fatalf("stale snapshot was cached: %+v err=%v", d.Savings, err)
	}
}
