package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"campusbudget/internal/amqp"
	"campusbudget/internal/engine"
)

// BudgetReporter computes a user's budget progress. *services.ReportService
// implements it.
type BudgetReporter interface {
	Budgets(ctx context.Context, userID int64, now time.Time) (engine.BudgetPartition, error)
}

// ProgressExporter writes budget progress rows to an external report.
type ProgressExporter interface {
	ExportBudgetProgress(ctx context.Context, userID int64, asOf time.Time, progress []engine.BudgetProgress) (string, error)
}

// Alert is an active budget whose spending reached the alert threshold.
type Alert struct {
	UserID   int64                 `json:"userId"`
	Progress engine.BudgetProgress `json:"progress"`
	Over     bool                  `json:"over"`
}

// BudgetAlertWorker re-evaluates a user's active budgets whenever one of
// their expenses or budgets changes.
type BudgetAlertWorker struct {
	reports   BudgetReporter
	exporter  ProgressExporter
	threshold float64
	now       func() time.Time
}

// NewBudgetAlertWorker creates the worker. exporter may be nil. threshold is
// a progress percentage in (0, 100].
func NewBudgetAlertWorker(reports BudgetReporter, exporter ProgressExporter, threshold float64) *BudgetAlertWorker {
	return &BudgetAlertWorker{
		reports:   reports,
		exporter:  exporter,
		threshold: threshold,
		now:       time.Now,
	}
}

// HandleRecordEvent is the AMQP handler. Income and savings goal events are
// acknowledged without work.
func (w *BudgetAlertWorker) HandleRecordEvent(ctx context.Context, event *amqp.RecordEvent) error {
	switch event.Kind {
	case amqp.KindExpense, amqp.KindBudget:
	default:
		slog.DebugContext(ctx, "Ignoring record event",
			"kind", event.Kind,
			"message_id", event.ID)
		return nil
	}

	slog.InfoContext(ctx, "Processing record event",
		"kind", event.Kind,
		"action", event.Action,
		"user_id", event.UserID,
		"record_id", event.RecordID)

	_, err := w.Evaluate(ctx, event.UserID)
	return err
}

// Evaluate computes the user's active budget progress, logs an alert for each
// budget at or above the threshold and exports the active budgets when an
// exporter is configured.
func (w *BudgetAlertWorker) Evaluate(ctx context.Context, userID int64) ([]Alert, error) {
	now := w.now()
	partition, err := w.reports.Budgets(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("compute budget progress: %w", err)
	}

	alerts := ThresholdAlerts(userID, partition.Current, w.threshold)
	for _, a := range alerts {
		slog.WarnContext(ctx, "Budget alert",
			"user_id", userID,
			"category", a.Progress.Budget.Category,
			"spent", a.Progress.Spent.String(),
			"amount", a.Progress.Budget.Amount.String(),
			"progress_percent", a.Progress.ProgressPercent,
			"over_budget", a.Over)
	}

	if w.exporter != nil && len(partition.Current) > 0 {
		if _, err := w.exporter.ExportBudgetProgress(ctx, userID, now, partition.Current); err != nil {
			return alerts, fmt.Errorf("export budget progress: %w", err)
		}
	}

	return alerts, nil
}

// ThresholdAlerts keeps the budgets whose progress reached threshold percent,
// in input order.
func ThresholdAlerts(userID int64, progress []engine.BudgetProgress, threshold float64) []Alert {
	var alerts []Alert
	for _, p := range progress {
		if p.ProgressPercent >= threshold {
			alerts = append(alerts, Alert{UserID: userID, Progress: p, Over: p.OverBudget()})
		}
	}
	return alerts
}
