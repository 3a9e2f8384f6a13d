package core

import (
	"fmt"
	"time"
)

const (
	Monthly  Period = "monthly"
	Semester Period = "semester"
	Yearly   Period = "yearly"
)

// Period is the budgeting cycle a Budget covers.
type Period string

// periodMonths maps each period to the number of calendar months it spans.
var periodMonths = map[Period]int{
	Monthly:  1,
	Semester: 4,
	Yearly:   12,
}

// ParsePeriod returns the Period named by s.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

func (p Period) Valid() bool {
	_, ok := periodMonths[p]
	return ok
}

// Months returns the span of the period in calendar months, or 0 if unknown.
func (p Period) Months() int {
	return periodMonths[p]
}

// EndDate derives the last day of a budget that starts on start:
// start + period months - 1 day. Month arithmetic clamps to the last day of
// the target month, so Jan 31 + 1 month is Feb 28/29.
func (p Period) EndDate(start time.Time) time.Time {
	return AddMonthsClamped(start, p.Months()).AddDate(0, 0, -1)
}

// AddMonthsClamped adds n calendar months to t, clamping the day of month to
// the length of the resulting month instead of overflowing into the next one.
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
