package core

import "time"

// Journal row kinds.
const (
	JournalEntry       = "entry"
	JournalInstallment = "installment"
	JournalPaydown     = "paydown"
)

// JournalRow is the flattened form of a ledger change mirrored to an
// external journal. Amount is signed: expenses and paydowns are negative.
type JournalRow struct {
	RecordedAt time.Time
	AccountID  int64
	Kind       string
	Action     string
	RecordID   int64
	LoanID     int64
	Date       Date
	Category   string
	Amount     Money
	Note       string
}

// JournalRowForEntry describes a cash entry change.
func JournalRowForEntry(accountID int64, action string, e CashEntry) JournalRow {
	amount := e.Amount
	if e.Type == Expense {
		amount = Money{Cents: -amount.Cents}
	}
	return JournalRow{
		AccountID: accountID,
		Kind:      JournalEntry,
		Action:    action,
		RecordID:  e.ID,
		Date:      e.Date,
		Category:  e.Category,
		Amount:    amount,
		Note:      deref(e.Note),
	}
}

// JournalRowForInstallment describes an installment received on a loan given.
func JournalRowForInstallment(accountID int64, p LoanGivenPayment) JournalRow {
	return JournalRow{
		AccountID: accountID,
		Kind:      JournalInstallment,
		Action:    "recorded",
		RecordID:  p.ID,
		LoanID:    p.LoanID,
		Date:      p.PaymentDate,
		Category:  p.PaymentMonth.String(),
		Amount:    p.AmountPaid,
		Note:      deref(p.Notes),
	}
}

// JournalRowForPaydown describes principal paid on a loan to pay.
func JournalRowForPaydown(accountID int64, p LoanToPayPayment) JournalRow {
	return JournalRow{
		AccountID: accountID,
		Kind:      JournalPaydown,
		Action:    "recorded",
		RecordID:  p.ID,
		LoanID:    p.LoanID,
		Date:      p.PaymentDate,
		Category:  StatusForPrincipal(p.PrincipalAfter),
		Amount:    Money{Cents: -p.PrincipalPaid.Cents},
		Note:      deref(p.Notes),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
