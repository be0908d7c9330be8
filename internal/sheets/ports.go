package sheets

import (
	"context"

	"ledger/internal/core"
)

// JournalWriter appends ledger changes to an external journal and returns a
// reference to the written row.
type JournalWriter interface {
	AppendJournal(ctx context.Context, row core.JournalRow) (rowRef string, err error)
}
