package ledger

import "context"

// Ledger defines the contract for the row-oriented store of record.
// ReadRange results always start with the header row; callers needing
// data rows must skip row 0.
type Ledger interface {
	ReadRange(ctx context.Context, readRange string) ([][]string, error)
	AppendRows(ctx context.Context, tab string, rows [][]string) error
	EnsureStructure(ctx context.Context) error
}
