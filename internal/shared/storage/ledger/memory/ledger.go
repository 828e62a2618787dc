package memory

import (
	"context"
	"sync"

	"mathsnap-backend/internal/shared/storage/ledger"
)

// Ledger is an in-memory ledger.Ledger for development and tests.
type Ledger struct {
	mu   sync.Mutex
	rows []ledger.Row
}

// New constructs an empty in-memory ledger.
func New() *Ledger {
	return &Ledger{}
}

// AppendRow records the row in memory.
func (l *Ledger) AppendRow(ctx context.Context, row ledger.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, row)
	return nil
}

// Rows returns a copy of all appended rows.
func (l *Ledger) Rows() []ledger.Row {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ledger.Row, len(l.rows))
	copy(out, l.rows)
	return out
}

var _ ledger.Ledger = (*Ledger)(nil)
