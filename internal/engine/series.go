package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/core"
)

const (
	// DayLabelLayout renders bucket labels such as "Sep 05".
	DayLabelLayout = "Jan 02"
	monthLabel     = "Jan"

	minSeriesPoints = 5
	padStepDays     = 5
)

// SeriesPoint is the total of one day bucket.
type SeriesPoint struct {
	Date   time.Time       `json:"date"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// SeriesOptions controls day bucketing.
type SeriesOptions struct {
	// Location is the zone calendar days are taken in. Nil means UTC.
	Location *time.Location
	// PadMonth, when set, is any instant in the month whose days 5, 10, 15,
	// 20 and 25 are added as zero points while the series has fewer than
	// five buckets.
	PadMonth time.Time
}

// SeriesOptionsFor returns the bucketing rules for a report window. Only the
// single-month windows are padded.
func SeriesOptionsFor(w Window) SeriesOptions {
	opts := SeriesOptions{Location: w.Location()}
	if w.Range == ThisMonth || w.Range == LastMonth {
		opts.PadMonth = w.Start
	}
	return opts
}

// DailySeries buckets transactions per calendar day, ascending by date. Only
// days with data appear unless padding applies.
func DailySeries(txs []core.Transaction, opts SeriesOptions) []SeriesPoint {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	index := make(map[int64]int)
	points := make([]SeriesPoint, 0)
	for _, tx := range txs {
		day := startOfDay(tx.Date, loc)
		i, ok := index[day.Unix()]
		if !ok {
			i = len(points)
			index[day.Unix()] = i
			points = append(points, SeriesPoint{Date: day, Label: day.Format(DayLabelLayout)})
		}
		points[i].Amount = points[i].Amount.Add(tx.Amount)
	}

	if len(points) < minSeriesPoints && !opts.PadMonth.IsZero() {
		m := opts.PadMonth.In(loc)
		for d := padStepDays; d <= padStepDays*minSeriesPoints; d += padStepDays {
			day := time.Date(m.Year(), m.Month(), d, 0, 0, 0, 0, loc)
			if _, ok := index[day.Unix()]; ok {
				continue
			}
			index[day.Unix()] = len(points)
			points = append(points, SeriesPoint{Date: day, Label: day.Format(DayLabelLayout), Amount: decimal.Zero})
		}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// CombinedPoint holds both expense and income totals of one day.
type CombinedPoint struct {
	Date     time.Time       `json:"date"`
	Label    string          `json:"label"`
	Expenses decimal.Decimal `json:"expenses"`
	Income   decimal.Decimal `json:"income"`
}

// CombinedDailySeries has one point for every day present in either list,
// ascending by date. A side with no data that day is zero.
func CombinedDailySeries(expenses, incomes []core.Transaction, loc *time.Location) []CombinedPoint {
	if loc == nil {
		loc = time.UTC
	}
	index := make(map[int64]int)
	points := make([]CombinedPoint, 0)
	bucket := func(t time.Time) *CombinedPoint {
		day := startOfDay(t, loc)
		i, ok := index[day.Unix()]
		if !ok {
			i = len(points)
			index[day.Unix()] = i
			points = append(points, CombinedPoint{Date: day, Label: day.Format(DayLabelLayout)})
		}
		return &points[i]
	}
	for _, tx := range expenses {
		p := bucket(tx.Date)
		p.Expenses = p.Expenses.Add(tx.Amount)
	}
	for _, tx := range incomes {
		p := bucket(tx.Date)
		p.Income = p.Income.Add(tx.Amount)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// MonthPoint is the expense total of one calendar month.
type MonthPoint struct {
	Month  time.Month      `json:"month"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthlySeries returns twelve points, January to December of year, with the
// totals of the transactions dated in that year. Months without data are zero.
func MonthlySeries(txs []core.Transaction, year int, loc *time.Location) []MonthPoint {
	if loc == nil {
		loc = time.UTC
	}
	points := make([]MonthPoint, 12)
	for i := range points {
		m := time.Month(i + 1)
		points[i] = MonthPoint{
			Month:  m,
			Label:  time.Date(year, m, 1, 0, 0, 0, 0, loc).Format(monthLabel),
			Amount: decimal.Zero,
		}
	}
	for _, tx := range txs {
		d := tx.Date.In(loc)
		if d.Year() != year {
			continue
		}
		p := &points[d.Month()-1]
		p.Amount = p.Amount.Add(tx.Amount)
	}
	return points
}
