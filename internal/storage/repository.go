package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/core"
	"campusbudget/internal/records"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the persistent Record Store.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ records.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialize access instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, records.ErrUnavailable, err)
}

// lookupErr maps a missing row to records.ErrNotFound.
func lookupErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrNotFound
	}
	return unavailable(op, err)
}

func queryAll[T any](ctx context.Context, db *sql.DB, scan func(rowScanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// execOwned runs a statement scoped to one user's record and reports
// records.ErrNotFound when nothing matched.
func (r *SQLiteRepository) execOwned(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(op, err)
	}
	if n == 0 {
		return records.ErrNotFound
	}
	return nil
}

// Expenses

const expenseColumns = "id, user_id, amount, category, description, date, created_at"

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var date, created int64
	if err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Description, &date, &created); err != nil {
		return core.Expense{}, err
	}
	e.Date, e.CreatedAt = fromNanos(date), fromNanos(created)
	return e, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.CreatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, amount, category, description, date, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Amount.String(), e.Category, e.Description, toNanos(e.Date), toNanos(e.CreatedAt))
	if err != nil {
		return core.Expense{}, unavailable("create expense", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return core.Expense{}, unavailable("create expense", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"category", e.Category,
		"amount", e.Amount.String())

	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, lookupErr("get expense", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	out, err := queryAll(ctx, r.db, scanExpense,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, unavailable("list expenses", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListExpensesBetween(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	out, err := queryAll(ctx, r.db, scanExpense,
		`SELECT `+expenseColumns+` FROM expenses WHERE user_id = ? AND date BETWEEN ? AND ? ORDER BY id`,
		userID, toNanos(start), toNanos(end))
	if err != nil {
		return nil, unavailable("list expenses between", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	err := r.execOwned(ctx, "update expense",
		`UPDATE expenses SET amount = ?, category = ?, description = ?, date = ? WHERE id = ? AND user_id = ?`,
		e.Amount.String(), e.Category, e.Description, toNanos(e.Date), e.ID, e.UserID)
	if err != nil {
		return core.Expense{}, err
	}
	return r.GetExpense(ctx, e.UserID, e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id int64) error {
	return r.execOwned(ctx, "delete expense", `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
}

// Incomes

const incomeColumns = "id, user_id, amount, source, description, date, created_at"

func scanIncome(row rowScanner) (core.Income, error) {
	var in core.Income
	var date, created int64
	if err := row.Scan(&in.ID, &in.UserID, &in.Amount, &in.Source, &in.Description, &date, &created); err != nil {
		return core.Income{}, err
	}
	in.Date, in.CreatedAt = fromNanos(date), fromNanos(created)
	return in, nil
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	in.CreatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (user_id, amount, source, description, date, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		in.UserID, in.Amount.String(), in.Source, in.Description, toNanos(in.Date), toNanos(in.CreatedAt))
	if err != nil {
		return core.Income{}, unavailable("create income", err)
	}
	if in.ID, err = res.LastInsertId(); err != nil {
		return core.Income{}, unavailable("create income", err)
	}
	return in, nil
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, userID, id int64) (core.Income, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+incomeColumns+` FROM incomes WHERE id = ? AND user_id = ?`, id, userID)
	in, err := scanIncome(row)
	if err != nil {
		return core.Income{}, lookupErr("get income", err)
	}
	return in, nil
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context, userID int64) ([]core.Income, error) {
	out, err := queryAll(ctx, r.db, scanIncome,
		`SELECT `+incomeColumns+` FROM incomes WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, unavailable("list incomes", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListIncomesBetween(ctx context.Context, userID int64, start, end time.Time) ([]core.Income, error) {
	out, err := queryAll(ctx, r.db, scanIncome,
		`SELECT `+incomeColumns+` FROM incomes WHERE user_id = ? AND date BETWEEN ? AND ? ORDER BY id`,
		userID, toNanos(start), toNanos(end))
	if err != nil {
		return nil, unavailable("list incomes between", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	err := r.execOwned(ctx, "update income",
		`UPDATE incomes SET amount = ?, source = ?, description = ?, date = ? WHERE id = ? AND user_id = ?`,
		in.Amount.String(), in.Source, in.Description, toNanos(in.Date), in.ID, in.UserID)
	if err != nil {
		return core.Income{}, err
	}
	return r.GetIncome(ctx, in.UserID, in.ID)
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, userID, id int64) error {
	return r.execOwned(ctx, "delete income", `DELETE FROM incomes WHERE id = ? AND user_id = ?`, id, userID)
}

// Budgets

const budgetColumns = "id, user_id, category, amount, period, start_date, end_date, created_at"

func scanBudget(row rowScanner) (core.Budget, error) {
	var b core.Budget
	var period string
	var start, end, created int64
	if err := row.Scan(&b.ID, &b.UserID, &b.Category, &b.Amount, &period, &start, &end, &created); err != nil {
		return core.Budget{}, err
	}
	b.Period = core.Period(period)
	b.StartDate, b.EndDate, b.CreatedAt = fromNanos(start), fromNanos(end), fromNanos(created)
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.CreatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category, amount, period, start_date, end_date, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.Category, b.Amount.String(), string(b.Period), toNanos(b.StartDate), toNanos(b.EndDate), toNanos(b.CreatedAt))
	if err != nil {
		return core.Budget{}, unavailable("create budget", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return core.Budget{}, unavailable("create budget", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, lookupErr("get budget", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	out, err := queryAll(ctx, r.db, scanBudget,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, unavailable("list budgets", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	err := r.execOwned(ctx, "update budget",
		`UPDATE budgets SET category = ?, amount = ?, period = ?, start_date = ?, end_date = ? WHERE id = ? AND user_id = ?`,
		b.Category, b.Amount.String(), string(b.Period), toNanos(b.StartDate), toNanos(b.EndDate), b.ID, b.UserID)
	if err != nil {
		return core.Budget{}, err
	}
	return r.GetBudget(ctx, b.UserID, b.ID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id int64) error {
	return r.execOwned(ctx, "delete budget", `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
}

// Savings goals

const goalColumns = "id, user_id, name, target_amount, current_amount, deadline, created_at"

func scanGoal(row rowScanner) (core.SavingsGoal, error) {
	var g core.SavingsGoal
	var deadline sql.NullInt64
	var created int64
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &deadline, &created); err != nil {
		return core.SavingsGoal{}, err
	}
	if deadline.Valid {
		d := fromNanos(deadline.Int64)
		g.Deadline = &d
	}
	g.CreatedAt = fromNanos(created)
	return g, nil
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func (r *SQLiteRepository) CreateSavingsGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	g.CreatedAt = r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO savings_goals (user_id, name, target_amount, current_amount, deadline, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Name, g.TargetAmount.String(), g.CurrentAmount.String(), nullableNanos(g.Deadline), toNanos(g.CreatedAt))
	if err != nil {
		return core.SavingsGoal{}, unavailable("create savings goal", err)
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return core.SavingsGoal{}, unavailable("create savings goal", err)
	}
	return g, nil
}

func (r *SQLiteRepository) GetSavingsGoal(ctx context.Context, userID, id int64) (core.SavingsGoal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if err != nil {
		return core.SavingsGoal{}, lookupErr("get savings goal", err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListSavingsGoals(ctx context.Context, userID int64) ([]core.SavingsGoal, error) {
	out, err := queryAll(ctx, r.db, scanGoal,
		`SELECT `+goalColumns+` FROM savings_goals WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, unavailable("list savings goals", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateSavingsGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	err := r.execOwned(ctx, "update savings goal",
		`UPDATE savings_goals SET name = ?, target_amount = ?, current_amount = ?, deadline = ? WHERE id = ? AND user_id = ?`,
		g.Name, g.TargetAmount.String(), g.CurrentAmount.String(), nullableNanos(g.Deadline), g.ID, g.UserID)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	return r.GetSavingsGoal(ctx, g.UserID, g.ID)
}

func (r *SQLiteRepository) DeleteSavingsGoal(ctx context.Context, userID, id int64) error {
	return r.execOwned(ctx, "delete savings goal", `DELETE FROM savings_goals WHERE id = ? AND user_id = ?`, id, userID)
}

// AddContribution reads and rewrites the current amount in one transaction.
// Amounts are stored as decimal text, so the addition happens in Go.
func (r *SQLiteRepository) AddContribution(ctx context.Context, userID, id int64, amount decimal.Decimal) (core.SavingsGoal, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.SavingsGoal{}, unavailable("add contribution", err)
	}
	defer tx.Rollback()

	var current decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT current_amount FROM savings_goals WHERE id = ? AND user_id = ?`, id, userID).Scan(&current)
	if err != nil {
		return core.SavingsGoal{}, lookupErr("add contribution", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE savings_goals SET current_amount = ? WHERE id = ? AND user_id = ?`,
		current.Add(amount).String(), id, userID); err != nil {
		return core.SavingsGoal{}, unavailable("add contribution", err)
	}
	if err := tx.Commit(); err != nil {
		return core.SavingsGoal{}, unavailable("add contribution", err)
	}

	slog.InfoContext(ctx, "Savings contribution recorded",
		"goal_id", id,
		"user_id", userID,
		"amount", amount.String())

	return r.GetSavingsGoal(ctx, userID, id)
}
