// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies, path ids, report query parameters and the lenient amount and
// date fields clients send.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/core"
	"campusbudget/internal/engine"
)

const (
	maxBodyBytes = 1 << 20
	dateLayout   = "2006-01-02"
)

// errMalformedRequest marks input that could not be decoded at all, as
// opposed to decoded input failing validation.
var errMalformedRequest = errors.New("malformed request")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errMalformedRequest, fmt.Sprintf(format, args...))
}

// decodeJSON decodes a single JSON object into dst, rejecting unknown fields
// and trailing data.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return malformed("empty request body")
		}
		var fieldErr *fieldError
		if errors.As(err, &fieldErr) {
			return fieldErr.err
		}
		return malformed("%v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return malformed("request body must contain a single JSON object")
	}
	return nil
}

// fieldError carries a validation error out of a field's UnmarshalJSON so
// decodeJSON can tell it apart from syntax errors.
type fieldError struct {
	err error
}

func (e *fieldError) Error() string { return e.err.Error() }

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, malformed("invalid id %q", raw)
	}
	return id, nil
}

// parseReportQuery reads range, start and end. Dates are calendar days in
// loc; end covers its whole day.
func parseReportQuery(q url.Values, loc *time.Location) (engine.Range, engine.Window, error) {
	sel, err := engine.ParseRange(strings.TrimSpace(q.Get("range")))
	if err != nil {
		return "", engine.Window{}, err
	}

	var explicit engine.Window
	if v := strings.TrimSpace(q.Get("start")); v != "" {
		if explicit.Start, err = time.ParseInLocation(dateLayout, v, loc); err != nil {
			return "", engine.Window{}, malformed("invalid start date %q: expected YYYY-MM-DD", v)
		}
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		end, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return "", engine.Window{}, malformed("invalid end date %q: expected YYYY-MM-DD", v)
		}
		explicit.End = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return sel, explicit, nil
}

// parseLimit reads a non-negative limit. Zero means the default.
func parseLimit(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, malformed("invalid limit %q", v)
	}
	return n, nil
}

// amountInput accepts an amount as a JSON number or string. Parsing is
// deferred so a bad value surfaces as a validation error.
type amountInput string

func (a *amountInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return &fieldError{err: core.ErrInvalidAmount}
	}
	*a = amountInput(n.String())
	return nil
}

func (a *amountInput) positive() (*decimal.Decimal, error) {
	if a == nil {
		return nil, nil
	}
	d, err := core.ParseAmount(string(*a))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (a *amountInput) nonNegative() (*decimal.Decimal, error) {
	if a == nil {
		return nil, nil
	}
	d, err := core.ParseNonNegativeAmount(string(*a))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// dateInput accepts YYYY-MM-DD (as UTC midnight) or RFC 3339.
type dateInput string

func (d *dateInput) time() (*time.Time, error) {
	if d == nil {
		return nil, nil
	}
	s := strings.TrimSpace(string(*d))
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

func sanitized(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

type expenseRequest struct {
	Amount      *amountInput `json:"amount"`
	Category    *string      `json:"category"`
	Description *string      `json:"description"`
	Date        *dateInput   `json:"date"`
}

func (req expenseRequest) patch() (core.ExpensePatch, error) {
	amount, err := req.Amount.positive()
	if err != nil {
		return core.ExpensePatch{}, err
	}
	date, err := req.Date.time()
	if err != nil {
		return core.ExpensePatch{}, err
	}
	return core.ExpensePatch{
		Amount:      amount,
		Category:    sanitized(req.Category),
		Description: sanitized(req.Description),
		Date:        date,
	}, nil
}

func (req expenseRequest) expense(userID int64) (core.Expense, error) {
	p, err := req.patch()
	if err != nil {
		return core.Expense{}, err
	}
	return p.Apply(core.Expense{UserID: userID}), nil
}

type incomeRequest struct {
	Amount      *amountInput `json:"amount"`
	Source      *string      `json:"source"`
	Description *string      `json:"description"`
	Date        *dateInput   `json:"date"`
}

func (req incomeRequest) patch() (core.IncomePatch, error) {
	amount, err := req.Amount.positive()
	if err != nil {
		return core.IncomePatch{}, err
	}
	date, err := req.Date.time()
	if err != nil {
		return core.IncomePatch{}, err
	}
	return core.IncomePatch{
		Amount:      amount,
		Source:      sanitized(req.Source),
		Description: sanitized(req.Description),
		Date:        date,
	}, nil
}

func (req incomeRequest) income(userID int64) (core.Income, error) {
	p, err := req.patch()
	if err != nil {
		return core.Income{}, err
	}
	return p.Apply(core.Income{UserID: userID}), nil
}

type budgetRequest struct {
	Category  *string      `json:"category"`
	Amount    *amountInput `json:"amount"`
	Period    *string      `json:"period"`
	StartDate *dateInput   `json:"startDate"`
	EndDate   *dateInput   `json:"endDate"`
}

func (req budgetRequest) patch() (core.BudgetPatch, error) {
	amount, err := req.Amount.positive()
	if err != nil {
		return core.BudgetPatch{}, err
	}
	start, err := req.StartDate.time()
	if err != nil {
		return core.BudgetPatch{}, err
	}
	end, err := req.EndDate.time()
	if err != nil {
		return core.BudgetPatch{}, err
	}
	p := core.BudgetPatch{
		Category:  sanitized(req.Category),
		Amount:    amount,
		StartDate: start,
		EndDate:   end,
	}
	if req.Period != nil {
		period, err := core.ParsePeriod(strings.TrimSpace(*req.Period))
		if err != nil {
			return core.BudgetPatch{}, err
		}
		p.Period = &period
	}
	return p, nil
}

func (req budgetRequest) budget(userID int64) (core.Budget, error) {
	p, err := req.patch()
	if err != nil {
		return core.Budget{}, err
	}
	return p.Apply(core.Budget{UserID: userID}), nil
}

type savingsGoalRequest struct {
	Name          *string      `json:"name"`
	TargetAmount  *amountInput `json:"targetAmount"`
	CurrentAmount *amountInput `json:"currentAmount"`
	Deadline      *dateInput   `json:"deadline"`
}

func (req savingsGoalRequest) patch() (core.SavingsGoalPatch, error) {
	target, err := req.TargetAmount.positive()
	if err != nil {
		return core.SavingsGoalPatch{}, err
	}
	current, err := req.CurrentAmount.nonNegative()
	if err != nil {
		return core.SavingsGoalPatch{}, err
	}
	deadline, err := req.Deadline.time()
	if err != nil {
		return core.SavingsGoalPatch{}, err
	}
	return core.SavingsGoalPatch{
		Name:          sanitized(req.Name),
		TargetAmount:  target,
		CurrentAmount: current,
		Deadline:      deadline,
	}, nil
}

func (req savingsGoalRequest) savingsGoal(userID int64) (core.SavingsGoal, error) {
	p, err := req.patch()
	if err != nil {
		return core.SavingsGoal{}, err
	}
	return p.Apply(core.SavingsGoal{UserID: userID}), nil
}

type contributionRequest struct {
	Amount *amountInput `json:"amount"`
}

func (req contributionRequest) amount() (decimal.Decimal, error) {
	d, err := req.Amount.positive()
	if err != nil {
		return decimal.Zero, err
	}
	if d == nil {
		return decimal.Zero, core.ErrInvalidAmount
	}
	return *d, nil
}
