package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/amqp"
	"campusbudget/internal/core"
	"campusbudget/internal/records"
	"campusbudget/internal/records/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.RecordEvent
	err    error
}

func (f *fakePublisher) PublishRecordEvent(_ context.Context, e *amqp.RecordEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakePublisher) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Kind + ":" + e.Action
	}
	return out
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecordService_ExpenseLifecycle(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewRecordService(memory.New(), pub)

	e, err := svc.CreateExpense(ctx, core.Expense{UserID: 1, Amount: dec("12.50"), Category: "Food", Date: day(2025, 9, 3)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cat := "Transport"
	updated, err := svc.UpdateExpense(ctx, 1, e.ID, core.ExpensePatch{Category: &cat})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Category != "Transport" || !updated.Amount.Equal(dec("12.50")) {
		t.Fatalf("partial update must keep unspecified fields, got %+v", updated)
	}

	if err := svc.DeleteExpense(ctx, 1, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{"expense:created", "expense:updated", "expense:deleted"}
	got := pub.actions()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestRecordService_Validation(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewRecordService(memory.New(), pub)

	tests := []struct {
		name string
		run  func() error
	}{
		{"zero amount expense", func() error {
			_, err := svc.CreateExpense(ctx, core.Expense{UserID: 1, Amount: decimal.Zero, Category: "Food", Date: day(2025, 9, 1)})
			return err
		}},
		{"income without source", func() error {
			_, err := svc.CreateIncome(ctx, core.Income{UserID: 1, Amount: dec("10"), Date: day(2025, 9, 1)})
			return err
		}},
		{"budget with unknown period", func() error {
			_, err := svc.CreateBudget(ctx, core.Budget{UserID: 1, Category: "Food", Amount: dec("10"), Period: "weekly", StartDate: day(2025, 9, 1)})
			return err
		}},
		{"goal with negative current", func() error {
			_, err := svc.CreateSavingsGoal(ctx, core.SavingsGoal{UserID: 1, Name: "Laptop", TargetAmount: dec("900"), CurrentAmount: dec("-1")})
			return err
		}},
		{"non-positive contribution", func() error {
			_, err := svc.Contribute(ctx, 1, 1, decimal.Zero)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !core.IsValidationError(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(pub.actions()) != 0 {
		t.Fatalf("rejected input must not publish, got %v", pub.actions())
	}
}

func TestRecordService_UpdateRevalidatesMergedRecord(t *testing.T) {
	ctx := context.Background()
	svc := NewRecordService(memory.New(), nil)

	e, err := svc.CreateExpense(ctx, core.Expense{UserID: 1, Amount: dec("5"), Category: "Food", Date: day(2025, 9, 1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	empty := " "
	if _, err := svc.UpdateExpense(ctx, 1, e.ID, core.ExpensePatch{Category: &empty}); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	stored, _ := svc.Store().GetExpense(ctx, 1, e.ID)
	if stored.Category != "Food" {
		t.Fatalf("rejected update must not be stored, got %+v", stored)
	}
}

func TestRecordService_Ownership(t *testing.T) {
	ctx := context.Background()
	svc := NewRecordService(memory.New(), nil)

	in, err := svc.CreateIncome(ctx, core.Income{UserID: 1, Amount: dec("800"), Source: "Job", Date: day(2025, 9, 1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	src := "Scholarship"
	if _, err := svc.UpdateIncome(ctx, 2, in.ID, core.IncomePatch{Source: &src}); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("foreign update must be not found, got %v", err)
	}
	if err := svc.DeleteIncome(ctx, 2, in.ID); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("foreign delete must be not found, got %v", err)
	}
}

func TestRecordService_CreateBudgetDerivesEndDate(t *testing.T) {
	ctx := context.Background()
	svc := NewRecordService(memory.New(), nil)

	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	b, err := svc.CreateBudget(ctx, core.Budget{UserID: 1, Category: "Food", Amount: dec("300"), Period: core.Semester, StartDate: start})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if want := core.Semester.EndDate(start); !b.EndDate.Equal(want) {
		t.Fatalf("EndDate = %v, want %v", b.EndDate, want)
	}

	explicit := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	b2, err := svc.CreateBudget(ctx, core.Budget{UserID: 1, Category: "Food", Amount: dec("300"), Period: core.Monthly, StartDate: start, EndDate: explicit})
	if err != nil || !b2.EndDate.Equal(explicit) {
		t.Fatalf("explicit end date must be kept, got %+v err=%v", b2, err)
	}

	yearly := core.Yearly
	b3, err := svc.UpdateBudget(ctx, 1, b.ID, core.BudgetPatch{Period: &yearly})
	if err != nil || !b3.EndDate.Equal(core.Yearly.EndDate(start)) {
		t.Fatalf("period change must re-derive the end date, got %+v err=%v", b3, err)
	}
}

func TestRecordService_Contribute(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewRecordService(memory.New(), pub)

	g, err := svc.CreateSavingsGoal(ctx, core.SavingsGoal{UserID: 1, Name: "Spring Break Trip", TargetAmount: dec("1200"), CurrentAmount: dec("480")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.Contribute(ctx, 1, g.ID, dec("800"))
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if !got.CurrentAmount.Equal(dec("1280")) {
		t.Fatalf("current amount may exceed target, got %s", got.CurrentAmount)
	}
	if _, err := svc.Contribute(ctx, 2, g.ID, dec("1")); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("foreign contribution must be not found, got %v", err)
	}
	if a := pub.actions(); a[len(a)-1] != "savings_goal:contributed" {
		t.Fatalf("expected contribution event, got %v", a)
	}
}

func TestRecordService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: errors.New("connection refused")}
	svc := NewRecordService(memory.New(), pub)

	e, err := svc.CreateExpense(ctx, core.Expense{UserID: 1, Amount: dec("3"), Category: "Coffee", Date: day(2025, 9, 2)})
	if err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
	if _, err := svc.Store().GetExpense(ctx, 1, e.ID); err != nil {
		t.Fatalf("expense must be stored: %v", err)
	}
}
