package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/amqp"
	"campusbudget/internal/core"
	"campusbudget/internal/engine"
	"campusbudget/internal/records/memory"
	"campusbudget/internal/services"
)

type fakeExporter struct {
	calls [][]engine.BudgetProgress
	err   error
}

func (f *fakeExporter) ExportBudgetProgress(_ context.Context, _ int64, _ time.Time, p []engine.BudgetProgress) (string, error) {
	f.calls = append(f.calls, p)
	return "2025 Reports!A1:K2", f.err
}

type failingReporter struct{}

func (failingReporter) Budgets(context.Context, int64, time.Time) (engine.BudgetPartition, error) {
	return engine.BudgetPartition{}, errors.New("store down")
}

func newWorker(t *testing.T, exporter ProgressExporter) *BudgetAlertWorker {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	for _, b := range []core.Budget{
		{UserID: 1, Category: "Food", Amount: decimal.NewFromInt(100), Period: core.Monthly, StartDate: start, EndDate: core.Monthly.EndDate(start)},
		{UserID: 1, Category: "Books", Amount: decimal.NewFromInt(100), Period: core.Monthly, StartDate: start, EndDate: core.Monthly.EndDate(start)},
	} {
		if _, err := store.CreateBudget(ctx, b); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range []core.Expense{
		{UserID: 1, Amount: decimal.NewFromInt(85), Category: "Food", Date: start.AddDate(0, 0, 3)},
		{UserID: 1, Amount: decimal.NewFromInt(30), Category: "Books", Date: start.AddDate(0, 0, 4)},
	} {
		if _, err := store.CreateExpense(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	w := NewBudgetAlertWorker(services.NewReportService(store, engine.DashboardOptions{}), exporter, 80)
	w.now = func() time.Time { return time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC) }
	return w
}

func TestBudgetAlertWorker_Evaluate(t *testing.T) {
	exporter := &fakeExporter{}
	w := newWorker(t, exporter)

	alerts, err := w.Evaluate(context.Background(), 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(alerts) != 1 || alerts[0].Progress.Budget.Category != "Food" || alerts[0].Over {
		t.Fatalf("expected one Food alert under budget, got %+v", alerts)
	}
	if len(exporter.calls) != 1 || len(exporter.calls[0]) != 2 {
		t.Fatalf("expected both active budgets exported, got %+v", exporter.calls)
	}
}

func TestBudgetAlertWorker_HandleRecordEvent(t *testing.T) {
	tests := []struct {
		name        string
		kind        string
		wantExports int
	}{
		{"expense change re-evaluates", amqp.KindExpense, 1},
		{"budget change re-evaluates", amqp.KindBudget, 1},
		{"income change ignored", amqp.KindIncome, 0},
		{"savings goal change ignored", amqp.KindSavingsGoal, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := &fakeExporter{}
			w := newWorker(t, exporter)
			if err := w.HandleRecordEvent(context.Background(), amqp.NewRecordEvent(tt.kind, amqp.ActionCreated, 1, 1)); err != nil {
				t.Fatalf("HandleRecordEvent() error = %v", err)
			}
			if len(exporter.calls) != tt.wantExports {
				t.Errorf("exports = %d, want %d", len(exporter.calls), tt.wantExports)
			}
		})
	}
}

func TestBudgetAlertWorker_Errors(t *testing.T) {
	t.Run("export failure is returned for requeue", func(t *testing.T) {
		w := newWorker(t, &fakeExporter{err: errors.New("quota exceeded")})
		if _, err := w.Evaluate(context.Background(), 1); err == nil {
			t.Fatal("expected export error")
		}
	})

	t.Run("reporter failure", func(t *testing.T) {
		w := NewBudgetAlertWorker(failingReporter{}, nil, 80)
		event := amqp.NewRecordEvent(amqp.KindExpense, amqp.ActionDeleted, 1, 1)
		if err := w.HandleRecordEvent(context.Background(), event); err == nil {
			t.Fatal("expected reporter error")
		}
	})

	t.Run("no exporter", func(t *testing.T) {
		w := newWorker(t, nil)
		if _, err := w.Evaluate(context.Background(), 1); err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
	})
}

func TestThresholdAlerts(t *testing.T) {
	progress := []engine.BudgetProgress{
		{Budget: core.Budget{Category: "a"}, ProgressPercent: 79.99, Remaining: decimal.NewFromInt(1)},
		{Budget: core.Budget{Category: "b"}, ProgressPercent: 80, Remaining: decimal.NewFromInt(1)},
		{Budget: core.Budget{Category: "c"}, ProgressPercent: 100, Remaining: decimal.NewFromInt(-5)},
	}
	alerts := ThresholdAlerts(3, progress, 80)
	if len(alerts) != 2 || alerts[0].Progress.Budget.Category != "b" || !alerts[1].Over || alerts[1].UserID != 3 {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
}
