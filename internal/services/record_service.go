package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"campusbudget/internal/amqp"
	"campusbudget/internal/core"
	applog "campusbudget/internal/log"
	"campusbudget/internal/records"
)

// EventPublisher announces record changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, event *amqp.RecordEvent) error
}

// RecordService validates record mutations, applies them to the store and
// publishes a change event for each. Publishing is best effort.
type RecordService struct {
	store     records.Store
	publisher EventPublisher
	hooks     []func(userID int64)
}

// NewRecordService creates the service. publisher may be nil.
func NewRecordService(store records.Store, publisher EventPublisher) *RecordService {
	return &RecordService{
		store:     store,
		publisher: publisher,
	}
}

// OnChange registers fn to run after every successful mutation of a user's
// records. Register hooks before serving requests.
func (s *RecordService) OnChange(fn func(userID int64)) {
	s.hooks = append(s.hooks, fn)
}

// Store exposes the underlying store for read paths.
func (s *RecordService) Store() records.Store {
	return s.store
}

type validated interface {
	Validate() error
}

// recordOps binds one record kind to its store calls.
type recordOps[T validated] struct {
	kind   string
	ids    func(T) (userID, id int64)
	create func(context.Context, T) (T, error)
	get    func(ctx context.Context, userID, id int64) (T, error)
	update func(context.Context, T) (T, error)
	del    func(ctx context.Context, userID, id int64) error
}

func createRecord[T validated](ctx context.Context, s *RecordService, ops recordOps[T], rec T) (T, error) {
	var zero T
	if err := rec.Validate(); err != nil {
		return zero, fmt.Errorf("validate %s: %w", ops.kind, err)
	}
	created, err := ops.create(ctx, rec)
	if err != nil {
		return zero, fmt.Errorf("create %s: %w", ops.kind, err)
	}
	userID, id := ops.ids(created)
	s.changed(ctx, ops.kind, amqp.ActionCreated, applog.OpCreate, userID, id)
	return created, nil
}

func updateRecord[T validated](ctx context.Context, s *RecordService, ops recordOps[T], userID, id int64, apply func(T) T) (T, error) {
	var zero T
	current, err := ops.get(ctx, userID, id)
	if err != nil {
		return zero, fmt.Errorf("get %s %d: %w", ops.kind, id, err)
	}
	merged := apply(current)
	if err := merged.Validate(); err != nil {
		return zero, fmt.Errorf("validate %s: %w", ops.kind, err)
	}
	updated, err := ops.update(ctx, merged)
	if err != nil {
		return zero, fmt.Errorf("update %s %d: %w", ops.kind, id, err)
	}
	s.changed(ctx, ops.kind, amqp.ActionUpdated, applog.OpUpdate, userID, id)
	return updated, nil
}

func deleteRecord[T validated](ctx context.Context, s *RecordService, ops recordOps[T], userID, id int64) error {
	if err := ops.del(ctx, userID, id); err != nil {
		return fmt.Errorf("delete %s %d: %w", ops.kind, id, err)
	}
	s.changed(ctx, ops.kind, amqp.ActionDeleted, applog.OpDelete, userID, id)
	return nil
}

func (s *RecordService) expenseOps() recordOps[core.Expense] {
	return recordOps[core.Expense]{
		kind:   amqp.KindExpense,
		ids:    func(e core.Expense) (int64, int64) { return e.UserID, e.ID },
		create: s.store.CreateExpense,
		get:    s.store.GetExpense,
		update: s.store.UpdateExpense,
		del:    s.store.DeleteExpense,
	}
}

func (s *RecordService) incomeOps() recordOps[core.Income] {
	return recordOps[core.Income]{
		kind:   amqp.KindIncome,
		ids:    func(i core.Income) (int64, int64) { return i.UserID, i.ID },
		create: s.store.CreateIncome,
		get:    s.store.GetIncome,
		update: s.store.UpdateIncome,
		del:    s.store.DeleteIncome,
	}
}

func (s *RecordService) budgetOps() recordOps[core.Budget] {
	return recordOps[core.Budget]{
		kind:   amqp.KindBudget,
		ids:    func(b core.Budget) (int64, int64) { return b.UserID, b.ID },
		create: s.store.CreateBudget,
		get:    s.store.GetBudget,
		update: s.store.UpdateBudget,
		del:    s.store.DeleteBudget,
	}
}

func (s *RecordService) goalOps() recordOps[core.SavingsGoal] {
	return recordOps[core.SavingsGoal]{
		kind:   amqp.KindSavingsGoal,
		ids:    func(g core.SavingsGoal) (int64, int64) { return g.UserID, g.ID },
		create: s.store.CreateSavingsGoal,
		get:    s.store.GetSavingsGoal,
		update: s.store.UpdateSavingsGoal,
		del:    s.store.DeleteSavingsGoal,
	}
}

func (s *RecordService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	return createRecord(ctx, s, s.expenseOps(), e)
}

func (s *RecordService) UpdateExpense(ctx context.Context, userID, id int64, p core.ExpensePatch) (core.Expense, error) {
	return updateRecord(ctx, s, s.expenseOps(), userID, id, p.Apply)
}

func (s *RecordService) DeleteExpense(ctx context.Context, userID, id int64) error {
	return deleteRecord(ctx, s, s.expenseOps(), userID, id)
}

func (s *RecordService) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	return createRecord(ctx, s, s.incomeOps(), in)
}

func (s *RecordService) UpdateIncome(ctx context.Context, userID, id int64, p core.IncomePatch) (core.Income, error) {
	return updateRecord(ctx, s, s.incomeOps(), userID, id, p.Apply)
}

func (s *RecordService) DeleteIncome(ctx context.Context, userID, id int64) error {
	return deleteRecord(ctx, s, s.incomeOps(), userID, id)
}

// CreateBudget derives the end date from the period when it is not set.
func (s *RecordService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.EndDate.IsZero() && !b.StartDate.IsZero() && b.Period.Valid() {
		b.EndDate = b.Period.EndDate(b.StartDate)
	}
	return createRecord(ctx, s, s.budgetOps(), b)
}

func (s *RecordService) UpdateBudget(ctx context.Context, userID, id int64, p core.BudgetPatch) (core.Budget, error) {
	return updateRecord(ctx, s, s.budgetOps(), userID, id, p.Apply)
}

func (s *RecordService) DeleteBudget(ctx context.Context, userID, id int64) error {
	return deleteRecord(ctx, s, s.budgetOps(), userID, id)
}

func (s *RecordService) CreateSavingsGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	return createRecord(ctx, s, s.goalOps(), g)
}

func (s *RecordService) UpdateSavingsGoal(ctx context.Context, userID, id int64, p core.SavingsGoalPatch) (core.SavingsGoal, error) {
	return updateRecord(ctx, s, s.goalOps(), userID, id, p.Apply)
}

func (s *RecordService) DeleteSavingsGoal(ctx context.Context, userID, id int64) error {
	return deleteRecord(ctx, s, s.goalOps(), userID, id)
}

// Contribute adds a positive amount to a savings goal. The current amount may
// end up above the target.
func (s *RecordService) Contribute(ctx context.Context, userID, id int64, amount decimal.Decimal) (core.SavingsGoal, error) {
	if !amount.IsPositive() {
		return core.SavingsGoal{}, fmt.Errorf("validate contribution: %w", core.ErrInvalidAmount)
	}
	g, err := s.store.AddContribution(ctx, userID, id, amount)
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("contribute to savings goal %d: %w", id, err)
	}
	s.changed(ctx, amqp.KindSavingsGoal, amqp.ActionContributed, applog.OpContribute, userID, id)
	return g, nil
}

func (s *RecordService) changed(ctx context.Context, kind, action, op string, userID, id int64) {
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogRecordChanged(ctx, op, kind, userID, id)
	for _, fn := range s.hooks {
		fn(userID)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping record event")
		return
	}
	if err := s.publisher.PublishRecordEvent(ctx, amqp.NewRecordEvent(kind, action, userID, id)); err != nil {
		// the record is already stored
		slog.ErrorContext(ctx, "Failed to publish record event",
			"kind", kind, "action", action, "record_id", id, "error", err)
	}
}
