package ledger

import (
	"context"
	"time"
)

// Row is the fixed column layout appended for each completed submission.
type Row struct {
	StudentID   string
	StudentName string
	Category    string
	LatexCode   string
	SubmittedAt time.Time
	ImageLink   string
}

// Ledger is the append-only row store recording submission metadata.
type Ledger interface {
	AppendRow(ctx context.Context, row Row) error
}
