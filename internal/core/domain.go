package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

const maxDescriptionLength = 200

type (
	// Kind tags a Transaction with the record type it came from.
	Kind string

	Expense struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"userId"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description,omitempty"`
		Date        time.Time       `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	Income struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"userId"`
		Amount      decimal.Decimal `json:"amount"`
		Source      string          `json:"source"`
		Description string          `json:"description,omitempty"`
		Date        time.Time       `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	// Transaction is the kind-tagged union of Expense and Income used by the
	// aggregation engine. Category holds the expense category or the income source.
	Transaction struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"userId"`
		Kind        Kind            `json:"kind"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description,omitempty"`
		Date        time.Time       `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	Budget struct {
		ID        int64           `json:"id"`
		UserID    int64           `json:"userId"`
		Category  string          `json:"category"`
		Amount    decimal.Decimal `json:"amount"`
		Period    Period          `json:"period"`
		StartDate time.Time       `json:"startDate"`
		EndDate   time.Time       `json:"endDate"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	SavingsGoal struct {
		ID            int64           `json:"id"`
		UserID        int64           `json:"userId"`
		Name          string          `json:"name"`
		TargetAmount  decimal.Decimal `json:"targetAmount"`
		CurrentAmount decimal.Decimal `json:"currentAmount"`
		Deadline      *time.Time      `json:"deadline,omitempty"`
		CreatedAt     time.Time       `json:"createdAt"`
	}
)

// validationError marks errors raised at the input validation boundary.
type validationError string

func (e validationError) Error() string { return string(e) }

var (
	ErrInvalidAmount      error = validationError("invalid amount")
	ErrNegativeAmount     error = validationError("amount cannot be negative")
	ErrEmptyCategory      error = validationError("empty category")
	ErrEmptySource        error = validationError("empty income source")
	ErrEmptyName          error = validationError("empty name")
	ErrInvalidDate        error = validationError("invalid date")
	ErrInvalidPeriod      error = validationError("invalid budget period")
	ErrInvalidRange       error = validationError("end date must not be before start date")
	ErrDescriptionTooLong error = validationError("description too long (max 200 characters)")
	ErrMissingUser        error = validationError("missing user id")
)

// Record dates must fall in [MinDate, MaxDate). The SQLite store keeps
// instants as Unix nanoseconds, which only cover years 1678 to 2262.
var (
	MinDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxDate = time.Date(2200, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// ValidDate reports whether t is a usable record date.
func ValidDate(t time.Time) bool {
	return !t.Before(MinDate) && t.Before(MaxDate)
}

// IsValidationError reports whether err was produced by input validation.
func IsValidationError(err error) bool {
	var v validationError
	return errors.As(err, &v)
}

// Transaction converts the expense into its feed representation.
func (e Expense) Transaction() Transaction {
	return Transaction{
		ID:          e.ID,
		UserID:      e.UserID,
		Kind:        KindExpense,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date,
		CreatedAt:   e.CreatedAt,
	}
}

// Transaction converts the income into its feed representation.
func (i Income) Transaction() Transaction {
	return Transaction{
		ID:          i.ID,
		UserID:      i.UserID,
		Kind:        KindIncome,
		Amount:      i.Amount,
		Category:    i.Source,
		Description: i.Description,
		Date:        i.Date,
		CreatedAt:   i.CreatedAt,
	}
}

// ExpenseTransactions converts expenses preserving order.
func ExpenseTransactions(expenses []Expense) []Transaction {
	out := make([]Transaction, len(expenses))
	for i, e := range expenses {
		out[i] = e.Transaction()
	}
	return out
}

// IncomeTransactions converts incomes preserving order.
func IncomeTransactions(incomes []Income) []Transaction {
	out := make([]Transaction, len(incomes))
	for i, in := range incomes {
		out[i] = in.Transaction()
	}
	return out
}

func (e Expense) Validate() error {
	if e.UserID <= 0 {
		return ErrMissingUser
	}
	return validateEntry(e.Amount, e.Category, ErrEmptyCategory, e.Description, e.Date)
}

func (i Income) Validate() error {
	if i.UserID <= 0 {
		return ErrMissingUser
	}
	return validateEntry(i.Amount, i.Source, ErrEmptySource, i.Description, i.Date)
}

func validateEntry(amount decimal.Decimal, key string, errEmptyKey error, description string, date time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(key) == "" {
		return errEmptyKey
	}
	if len(description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if !ValidDate(date) {
		return ErrInvalidDate
	}
	return nil
}

func (b Budget) Validate() error {
	if b.UserID <= 0 {
		return ErrMissingUser
	}
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	if !ValidDate(b.StartDate) || !ValidDate(b.EndDate) {
		return ErrInvalidDate
	}
	if b.EndDate.Before(b.StartDate) {
		return ErrInvalidRange
	}
	return nil
}

func (g SavingsGoal) Validate() error {
	if g.UserID <= 0 {
		return ErrMissingUser
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if !g.TargetAmount.IsPositive() {
		return ErrInvalidAmount
	}
	// currentAmount may exceed targetAmount
	if g.CurrentAmount.IsNegative() {
		return ErrNegativeAmount
	}
	if g.Deadline != nil && !ValidDate(*g.Deadline) {
		return ErrInvalidDate
	}
	return nil
}
