package core

import (
	"strings"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

// Loan statuses. Loans given carry free-text status defaulting to pending;
// loans to pay move between active and paid_off as principal is paid down.
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusPaidOff = "paid_off"
)

const (
	maxCategoryLen = 100
	maxNameLen     = 200

	// reminderLeadDays is how far ahead of the due date a reminder defaults to.
	reminderLeadDays = 7
)

type (
	EntryType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// CashEntry is a single income or expense record.
	CashEntry struct {
		ID        int64     `json:"id"`
		Date      Date      `json:"date"`
		Type      EntryType `json:"type"`
		Category  string    `json:"category"`
		Amount    Money     `json:"amount"`
		Note      *string   `json:"note"`
		CreatedAt time.Time `json:"created_at"`
	}

	// LoanGiven is money lent to a borrower. An update replaces every field,
	// amount included; repayments live in LoanGivenPayment rows.
	LoanGiven struct {
		ID           int64     `json:"id"`
		BorrowerName string    `json:"borrower_name"`
		Amount       Money     `json:"amount"`
		DueDate      Date      `json:"due_date"`
		ReminderDate Date      `json:"reminder_date"`
		Status       string    `json:"status"`
		Notes        *string   `json:"notes"`
		CreatedAt    time.Time `json:"created_at"`
	}

	// LoanGivenBalance is a loan given with its derived repayment totals.
	LoanGivenBalance struct {
		LoanGiven
		TotalPaid Money `json:"total_paid"`
		Remaining Money `json:"remaining"`
	}

	// LoanGivenPayment is the installment recorded for one calendar month.
	LoanGivenPayment struct {
		ID           int64   `json:"id"`
		LoanID       int64   `json:"loan_id"`
		PaymentMonth Month   `json:"payment_month"`
		AmountPaid   Money   `json:"amount_paid"`
		PaymentDate  Date    `json:"payment_date"`
		Notes        *string `json:"notes"`
	}

	// LoanToPay is money owed to a lender with a running principal balance.
	LoanToPay struct {
		ID                int64     `json:"id"`
		LenderName        string    `json:"lender_name"`
		OriginalPrincipal Money     `json:"original_principal"`
		CurrentPrincipal  Money     `json:"current_principal"`
		InterestRate      Rate      `json:"interest_rate"`
		DueDate           Date      `json:"due_date"`
		Status            string    `json:"status"`
		Notes             *string   `json:"notes"`
		CreatedAt         time.Time `json:"created_at"`
	}

	// LoanToPayPayment is an append-only audit record of one paydown.
	LoanToPayPayment struct {
		ID              int64     `json:"id"`
		LoanID          int64     `json:"loan_id"`
		PrincipalBefore Money     `json:"principal_before"`
		PrincipalPaid   Money     `json:"principal_paid"`
		PrincipalAfter  Money     `json:"principal_after"`
		InterestRate    Rate      `json:"interest_rate"`
		PaymentDate     Date      `json:"payment_date"`
		Notes           *string   `json:"notes"`
		CreatedAt       time.Time `json:"created_at"`
	}
)

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

func (e CashEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return Invalid("date", "Invalid date")
	}
	if !e.Type.Valid() || e.Amount.Cents <= 0 {
		return Invalid("type", "Invalid type or amount")
	}
	category := strings.TrimSpace(e.Category)
	if category == "" {
		return Invalid("category", "Missing required fields")
	}
	if len(category) > maxCategoryLen {
		return Invalid("category", "category too long (max 100 characters)")
	}
	return nil
}

// DefaultReminderDate is one week before due.
func DefaultReminderDate(due Date) Date {
	return due.AddDays(-reminderLeadDays)
}

func (l LoanGiven) Validate() error {
	if err := validateName("borrower_name", l.BorrowerName); err != nil {
		return err
	}
	if l.Amount.Cents <= 0 {
		return Invalid("amount", "amount must be greater than zero")
	}
	if l.DueDate.IsEmpty() {
		return Invalid("due_date", "Invalid due_date")
	}
	return nil
}

func (p LoanGivenPayment) Validate() error {
	if _, err := ParseMonth(string(p.PaymentMonth)); err != nil {
		return Invalid("payment_month", err.Error())
	}
	if p.AmountPaid.IsNegative() {
		return Invalid("amount_paid", "amount_paid must not be negative")
	}
	if p.PaymentDate.IsEmpty() {
		return Invalid("payment_date", "Invalid payment_date")
	}
	return nil
}

func (l LoanToPay) Validate() error {
	if err := validateName("lender_name", l.LenderName); err != nil {
		return err
	}
	if l.OriginalPrincipal.Cents <= 0 {
		return Invalid("original_principal", "original_principal must be greater than zero")
	}
	if l.InterestRate.IsNegative() {
		return Invalid("interest_rate", "interest_rate must not be negative")
	}
	if l.InterestRate.GreaterThanOrEqual(maxRate) {
		return Invalid("interest_rate", "interest_rate must be below 100000")
	}
	if l.CurrentPrincipal.IsNegative() || l.CurrentPrincipal.Cents > l.OriginalPrincipal.Cents {
		return Invalid("current_principal", "current_principal out of range")
	}
	if l.Status == StatusPaidOff && !l.CurrentPrincipal.IsZero() {
		return Invalid("status", "status paid_off requires a zero principal")
	}
	return nil
}

// StatusForPrincipal is paid_off exactly when nothing is outstanding.
func StatusForPrincipal(current Money) string {
	if current.IsZero() {
		return StatusPaidOff
	}
	return StatusActive
}

func validateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Invalid(field, "Missing required fields")
	}
	if len(name) > maxNameLen {
		return Invalid(field, field+" too long (max 200 characters)")
	}
	return nil
}
