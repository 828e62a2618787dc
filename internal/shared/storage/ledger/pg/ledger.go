package pg

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"mathsnap-backend/internal/shared/storage/ledger"
)

// Ledger implements ledger.Ledger using an append-only Postgres table.
type Ledger struct {
	DB *sql.DB
}

// New constructs a Postgres-backed ledger.
func New(db *sql.DB) *Ledger {
	return &Ledger{DB: db}
}

// AppendRow inserts one submission row. Rows are never updated or deleted.
func (l *Ledger) AppendRow(ctx context.Context, row ledger.Row) error {
	const query = `
INSERT INTO submission_ledger (
    id,
    student_id,
    student_name,
    category,
    latex_code,
    submitted_at,
    image_link
) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var category sql.NullString
	if row.Category != "" {
		category = sql.NullString{String: row.Category, Valid: true}
	}

	_, err := l.DB.ExecContext(
		ctx,
		query,
		uuid.NewString(),
		row.StudentID,
		row.StudentName,
		category,
		row.LatexCode,
		row.SubmittedAt,
		row.ImageLink,
	)
	return err
}

var _ ledger.Ledger = (*Ledger)(nil)
