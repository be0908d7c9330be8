package google

import (
	"strconv"
	"time"

	"ledger/internal/core"
)

// journalHeader is the first row of the journal sheet; columns A..J.
var journalHeader = []any{
	"recorded_at", "account_id", "kind", "action", "record_id",
	"loan_id", "date", "category", "amount", "note",
}

const journalColumns = "A:J"

// formatJournalRow renders a row the way USER_ENTERED input expects: the
// amount as a plain decimal so Sheets stores a number, ids as integers.
func formatJournalRow(r core.JournalRow) []any {
	recorded := r.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	loanID := ""
	if r.LoanID != 0 {
		loanID = strconv.FormatInt(r.LoanID, 10)
	}
	return []any{
		recorded.UTC().Format(time.RFC3339),
		r.AccountID,
		r.Kind,
		r.Action,
		r.RecordID,
		loanID,
		r.Date.String(),
		r.Category,
		r.Amount.String(),
		r.Note,
	}
}

func isHeaderRow(values [][]any) bool {
	if len(values) == 0 || len(values[0]) == 0 {
		return false
	}
	first, ok := values[0][0].(string)
	return ok && first == journalHeader[0]
}
