// Package engine turns one user's records into report views: category
// totals, day and month series, budget progress, the merged transaction feed
// and top-N rankings. Every function is a pure computation over the records
// and the reference instant it is given.
package engine

import (
	"errors"
	"fmt"
	"time"

	"campusbudget/internal/core"
)

// Range is a symbolic report window selector.
type Range string

const (
	ThisMonth   Range = "thisMonth"
	LastMonth   Range = "lastMonth"
	ThreeMonths Range = "threeMonths"
	Year        Range = "year"
	// Semester and Custom carry explicit bounds supplied by the caller.
	Semester Range = "semester"
	Custom   Range = "custom"
)

var (
	ErrUnknownRange  = errors.New("unknown report range")
	ErrInvalidWindow = errors.New("window end must not be before start")
)

// ParseRange returns the Range named by s. An empty string selects ThisMonth.
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case "":
		return ThisMonth, nil
	case ThisMonth, LastMonth, ThreeMonths, Year, Semester, Custom:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRange, s)
}

// Window is an inclusive [Start, End] interval.
type Window struct {
	Range Range     `json:"range"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in the window. Both bounds are inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Location is the time zone calendar buckets of the window are computed in.
func (w Window) Location() *time.Location {
	if w.Start.IsZero() {
		return time.UTC
	}
	return w.Start.Location()
}

// ResolveWindow computes concrete bounds for sel relative to now. Calendar
// boundaries are taken in now's location. Semester and Custom return the
// explicit bounds, which must be set and ordered.
func ResolveWindow(sel Range, now time.Time, explicit Window) (Window, error) {
	switch sel {
	case ThisMonth:
		start := startOfMonth(now)
		return Window{Range: sel, Start: start, End: endOfMonth(start)}, nil
	case LastMonth:
		start := startOfMonth(now).AddDate(0, -1, 0)
		return Window{Range: sel, Start: start, End: endOfMonth(start)}, nil
	case ThreeMonths:
		start := startOfMonth(now).AddDate(0, -2, 0)
		return Window{Range: sel, Start: start, End: endOfMonth(startOfMonth(now))}, nil
	case Year:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return Window{Range: sel, Start: start, End: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}, nil
	case Semester, Custom:
		if explicit.Start.IsZero() || explicit.End.IsZero() {
			return Window{}, fmt.Errorf("%s: %w", sel, ErrInvalidWindow)
		}
		if explicit.End.Before(explicit.Start) {
			return Window{}, fmt.Errorf("%s: %w", sel, ErrInvalidWindow)
		}
		return Window{Range: sel, Start: explicit.Start, End: explicit.End}, nil
	}
	return Window{}, fmt.Errorf("%w: %q", ErrUnknownRange, sel)
}

// FilterTransactions keeps the transactions dated inside w, preserving order.
func FilterTransactions(txs []core.Transaction, w Window) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if w.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	return out
}

// FilterExpenses keeps the expenses dated inside w, preserving order.
func FilterExpenses(expenses []core.Expense, w Window) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if w.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// endOfMonth expects the first instant of a month.
func endOfMonth(first time.Time) time.Time {
	return first.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
