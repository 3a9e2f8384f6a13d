package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"campusbudget/internal/core"
)

// TopCategoryCount is the number of categories ranked on report pages.
const TopCategoryCount = 5

// Snapshot is every record of one user, fetched once per request.
type Snapshot struct {
	Expenses []core.Expense
	Incomes  []core.Income
	Budgets  []core.Budget
	Goals    []core.SavingsGoal
}

// Report is the reports page view of one window.
type Report struct {
	Window        Window           `json:"window"`
	Summary       PeriodSummary    `json:"summary"`
	Categories    CategoryTotals   `json:"categories"`
	TopCategories []RankedCategory `json:"topCategories"`
	Daily         []CombinedPoint  `json:"daily"`
	// Monthly is only filled for the Year window.
	Monthly []MonthPoint `json:"monthly,omitempty"`
}

// BuildReport filters the snapshot to w and derives every report view.
func BuildReport(s Snapshot, w Window) Report {
	expenses := FilterTransactions(core.ExpenseTransactions(s.Expenses), w)
	incomes := FilterTransactions(core.IncomeTransactions(s.Incomes), w)
	totals := AggregateByCategory(expenses)

	r := Report{
		Window:        w,
		Summary:       Summarize(expenses, incomes),
		Categories:    totals,
		TopCategories: TopCategories(totals, TopCategoryCount),
		Daily:         CombinedDailySeries(expenses, incomes, w.Location()),
	}
	if w.Range == Year {
		r.Monthly = MonthlySeries(expenses, w.Start.Year(), w.Location())
	}
	return r
}

// DashboardOptions are the caller-supplied defaults of the dashboard.
type DashboardOptions struct {
	// DefaultMonthlyLimit applies when no monthly budget is active.
	DefaultMonthlyLimit decimal.Decimal
	// DefaultGoal is shown when the user has no savings goal. Nil shows none.
	DefaultGoal *core.SavingsGoal
	// Semester bounds the semester breakdown. A zero window skips it.
	Semester Window
	// RecentCount overrides the recent transaction count when positive.
	RecentCount int
}

// Analytics is a category breakdown with its daily expense series.
type Analytics struct {
	Window     Window          `json:"window"`
	Total      decimal.Decimal `json:"total"`
	Categories CategoryTotals  `json:"categories"`
	Series     []SeriesPoint   `json:"series"`
}

// Dashboard is the landing page view.
type Dashboard struct {
	MonthlyBudget MonthSummary     `json:"monthlyBudget"`
	Savings       *SavingsProgress `json:"savings"`
	Recent        []FeedItem       `json:"recent"`
	ThisMonth     Analytics        `json:"thisMonth"`
	Semester      *Analytics       `json:"semester,omitempty"`
}

// BuildDashboard derives the dashboard cards from one snapshot.
func BuildDashboard(s Snapshot, now time.Time, opts DashboardOptions) Dashboard {
	n := RecentCount
	if opts.RecentCount > 0 {
		n = opts.RecentCount
	}
	month, _ := ResolveWindow(ThisMonth, now, Window{})

	d := Dashboard{
		MonthlyBudget: SummarizeMonth(s.Expenses, s.Budgets, now, opts.DefaultMonthlyLimit),
		Savings:       PrimaryGoal(s.Goals, opts.DefaultGoal),
		Recent:        LabelFeed(Recent(MergeFeed(s.Expenses, s.Incomes), n), now),
		ThisMonth:     ExpenseAnalytics(s.Expenses, month),
	}
	if sem, err := ResolveWindow(Semester, now, opts.Semester); err == nil {
		a := ExpenseAnalytics(s.Expenses, sem)
		d.Semester = &a
	}
	return d
}

// ExpenseAnalytics breaks the expenses inside w down by category and day.
func ExpenseAnalytics(expenses []core.Expense, w Window) Analytics {
	txs := FilterTransactions(core.ExpenseTransactions(expenses), w)
	totals := AggregateByCategory(txs)
	return Analytics{
		Window:     w,
		Total:      totals.Total(),
		Categories: totals,
		Series:     DailySeries(txs, SeriesOptionsFor(w)),
	}
}
