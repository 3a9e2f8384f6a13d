package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"campusbudget/internal/engine"
)

const dateLayout = "2006-01-02"

// reportHeader is written on the first row of an empty report sheet.
var reportHeader = []any{
	"As Of", "User", "Category", "Period", "Start", "End",
	"Amount", "Spent", "Remaining", "Progress %", "Status",
}

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID string
	// SheetName is the base sheet name; the report year is prefixed.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Exporter appends budget progress rows to a Google Sheets report.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

// New creates an Exporter. Extra client options replace service account
// authentication when given.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	sheetBase := strings.TrimSpace(cfg.SheetName)
	if sheetBase == "" {
		sheetBase = "Reports"
	}

	if len(opts) == 0 {
		credentialsJSON, err := serviceAccountCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
	}, nil
}

// serviceAccountCredentials reads inline JSON first, then the credentials file,
// then GOOGLE_APPLICATION_CREDENTIALS.
func serviceAccountCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account credentials", "path", file, "size", len(data))
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// ExportBudgetProgress appends one row per budget to the sheet of asOf's
// year and returns the written range.
func (e *Exporter) ExportBudgetProgress(ctx context.Context, userID int64, asOf time.Time, progress []engine.BudgetProgress) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(progress) == 0 {
		return "", nil
	}
	sheet := yearPrefixedName(e.sheetBase, asOf.Year())

	// Find the next empty row from the filled part of column A
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get sheet dimensions for %s: %w", sheet, err)
	}
	nextRow := len(resp.Values) + 1

	rows := make([][]any, 0, len(progress)+1)
	if nextRow == 1 {
		rows = append(rows, reportHeader)
	}
	for _, p := range progress {
		rows = append(rows, progressRow(userID, asOf, p))
	}

	lastRow := nextRow + len(rows) - 1
	dataRange := fmt.Sprintf("%s!A%d:K%d", sheet, nextRow, lastRow)
	vr := &gsheet.ValueRange{Values: rows}
	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", dataRange, err)
	}

	slog.InfoContext(ctx, "Exported budget progress",
		"user_id", userID,
		"rows", len(progress),
		"range", dataRange)
	return dataRange, nil
}

func progressRow(userID int64, asOf time.Time, p engine.BudgetProgress) []any {
	return []any{
		asOf.Format(dateLayout),
		userID,
		p.Budget.Category,
		string(p.Budget.Period),
		p.Budget.StartDate.Format(dateLayout),
		p.Budget.EndDate.Format(dateLayout),
		p.Budget.Amount.StringFixed(2),
		p.Spent.StringFixed(2),
		p.Remaining.StringFixed(2),
		strconv.FormatFloat(p.ProgressPercent, 'f', 2, 64),
		string(p.Status),
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
