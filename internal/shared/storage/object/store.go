package object

import (
	"context"
	"io"
)

// Store defines the contract for saving submission images. Save returns an
// opaque object id; Link turns that id into the reference recorded in the
// ledger row.
type Store interface {
	Save(ctx context.Context, folder string, fileName string, r io.Reader) (string, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	Link(id string) string
}
