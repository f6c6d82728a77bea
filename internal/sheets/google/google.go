package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"budgetapp/internal/core"
	ports "budgetapp/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultReportsSheet is the tab reports are written to.
const DefaultReportsSheet = "Reports"

var header = []any{"owner", "period", "income", "expense", "balance", "generated_at"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportsSheet  string

	// serialises find-then-write so two refreshes cannot append the same key twice
	mu sync.Mutex
}

var _ ports.ReportMirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func New(ctx context.Context, spreadsheetID, reportsSheet string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(reportsSheet) == "" {
		reportsSheet = DefaultReportsSheet
	}

	creds, err := serviceAccountCredentials(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets report mirror enabled", "sheet", reportsSheet)
	return &Client{svc: svc, spreadsheetID: spreadsheetID, reportsSheet: reportsSheet}, nil
}

func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// MirrorReport writes the report headline, replacing the row for the same
// owner and period when one exists.
func (c *Client) MirrorReport(ctx context.Context, owner string, r core.Report) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.reportsSheet+"!A:B").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s keys: %w", c.reportsSheet, err)
	}

	rowNum := findRow(keys.Values, owner, r.Period)
	if rowNum == 0 {
		rowNum = len(keys.Values) + 1
		if rowNum == 1 {
			if err := c.writeRow(ctx, 1, header); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
			rowNum = 2
		}
	}

	if err := c.writeRow(ctx, rowNum, reportRow(owner, r)); err != nil {
		return fmt.Errorf("write report row: %w", err)
	}

	slog.InfoContext(ctx, "Report mirrored to Google Sheets",
		"owner", owner,
		"period", r.Period,
		"row", rowNum)
	return nil
}

func (c *Client) writeRow(ctx context.Context, rowNum int, row []any) error {
	rng := fmt.Sprintf("%s!A%d:F%d", c.reportsSheet, rowNum, rowNum)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

// findRow returns the 1-based row holding owner and period, or 0.
func findRow(values [][]any, owner, period string) int {
	for i, row := range values {
		if len(row) < 2 {
			continue
		}
		if strings.EqualFold(fmt.Sprint(row[0]), owner) && fmt.Sprint(row[1]) == period {
			return i + 1
		}
	}
	return 0
}

func reportRow(owner string, r core.Report) []any {
	return []any{
		owner,
		r.Period,
		r.Summary.Income.Float(),
		r.Summary.Expense.Float(),
		r.Summary.Balance.Float(),
		r.GeneratedAt.UTC().Format(time.RFC3339),
	}
}
