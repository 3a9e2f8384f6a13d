package engine

import (
	"sort"
	"time"

	"campusbudget/internal/core"
)

// RecentCount is the size of the dashboard's recent transactions list.
const RecentCount = 4

// MergeFeed merges expenses and incomes into one kind-tagged feed, most
// recent first. Equal dates keep fetch order with expenses ahead of incomes.
func MergeFeed(expenses []core.Expense, incomes []core.Income) []core.Transaction {
	feed := make([]core.Transaction, 0, len(expenses)+len(incomes))
	feed = append(feed, core.ExpenseTransactions(expenses)...)
	feed = append(feed, core.IncomeTransactions(incomes)...)
	sortFeed(feed)
	return feed
}

// Recent returns the n most recent transactions of feed. The feed is sorted
// before truncating, so any input order is accepted. feed is not modified.
func Recent(feed []core.Transaction, n int) []core.Transaction {
	if n <= 0 {
		return []core.Transaction{}
	}
	sorted := make([]core.Transaction, len(feed))
	copy(sorted, feed)
	sortFeed(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func sortFeed(feed []core.Transaction) {
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Date.After(feed[j].Date)
	})
}

// RelativeDay labels a date against the reference day.
type RelativeDay string

const (
	Today     RelativeDay = "today"
	Yesterday RelativeDay = "yesterday"
	Earlier   RelativeDay = "earlier"
)

// RelativeDayOf compares calendar days in now's location.
func RelativeDayOf(t, now time.Time) RelativeDay {
	loc := now.Location()
	day := startOfDay(t, loc)
	today := startOfDay(now, loc)
	switch {
	case day.Equal(today):
		return Today
	case day.Equal(today.AddDate(0, 0, -1)):
		return Yesterday
	}
	return Earlier
}

// FeedItem is a transaction annotated with its relative day label.
type FeedItem struct {
	core.Transaction
	Day RelativeDay `json:"day"`
}

// LabelFeed attaches relative day labels to each transaction.
func LabelFeed(txs []core.Transaction, now time.Time) []FeedItem {
	out := make([]FeedItem, len(txs))
	for i, tx := range txs {
		out[i] = FeedItem{Transaction: tx, Day: RelativeDayOf(tx.Date, now)}
	}
	return out
}
