package sheets

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"mathsnap-backend/internal/shared/storage/ledger"
)

// Ledger implements ledger.Ledger by appending rows to a Google Sheet.
type Ledger struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	appendRange   string
}

// New constructs a Sheets-backed ledger from a service-account credentials file.
func New(ctx context.Context, credentialsFile, spreadsheetID, appendRange string) (*Ledger, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if appendRange == "" {
		appendRange = "Submissions!A:F"
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read sheets credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheets credentials: %w", err)
	}

	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Ledger{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		appendRange:   appendRange,
	}, nil
}

// AppendRow appends one submission row to the configured sheet range.
func (l *Ledger) AppendRow(ctx context.Context, row ledger.Row) error {
	values := &sheetsapi.ValueRange{
		Values: [][]any{{
			row.StudentID,
			row.StudentName,
			row.Category,
			row.LatexCode,
			row.SubmittedAt.UTC().Format(time.RFC3339),
			row.ImageLink,
		}},
	}

	_, err := l.svc.Spreadsheets.Values.
		Append(l.spreadsheetID, l.appendRange, values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append sheet row: %w", err)
	}
	return nil
}

var _ ledger.Ledger = (*Ledger)(nil)
