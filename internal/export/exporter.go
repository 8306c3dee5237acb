package export

import (
	"context"

	"budget/internal/core"
)

// Exporter pushes ledger records to an external backup destination.
type Exporter interface {
	AppendTransaction(ctx context.Context, t core.Transaction) error
	RemoveTransaction(ctx context.Context, id int64) error
}
