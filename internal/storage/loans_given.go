package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ledger/internal/core"
)

const loanGivenColumns = `id, borrower_name, amount_cents, due_date, reminder_date, status, notes, created_at`

const loanGivenSelect = `lg.id, lg.borrower_name, lg.amount_cents, lg.due_date, lg.reminder_date, lg.status, lg.notes, lg.created_at`

const installmentColumns = `id, loan_id, payment_month, amount_paid_cents, payment_date, notes`

func scanLoanGiven(s rowScanner, extra ...any) (core.LoanGiven, error) {
	var (
		l     core.LoanGiven
		cents int64
		notes sql.NullString
	)
	dest := append([]any{&l.ID, &l.BorrowerName, &cents, &l.DueDate, &l.ReminderDate, &l.Status, &notes, timestamp{&l.CreatedAt}}, extra...)
	if err := s.Scan(dest...); err != nil {
		return core.LoanGiven{}, err
	}
	l.Amount = core.Money{Cents: cents}
	l.Notes = stringPtr(notes)
	return l, nil
}

func scanInstallment(s rowScanner) (core.LoanGivenPayment, error) {
	var (
		p     core.LoanGivenPayment
		month string
		cents int64
		notes sql.NullString
	)
	if err := s.Scan(&p.ID, &p.LoanID, &month, &cents, &p.PaymentDate, &notes); err != nil {
		return core.LoanGivenPayment{}, err
	}
	p.PaymentMonth = core.Month(month)
	p.AmountPaid = core.Money{Cents: cents}
	p.Notes = stringPtr(notes)
	return p, nil
}

func (r *Repository) CreateLoanGiven(ctx context.Context, accountID int64, l core.LoanGiven) (core.LoanGiven, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO loans_given (account_id, borrower_name, amount_cents, due_date, reminder_date, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+loanGivenColumns),
		accountID, strings.TrimSpace(l.BorrowerName), l.Amount.Cents, l.DueDate, l.ReminderDate, l.Status, nullString(l.Notes), r.now(),
	)
	created, err := scanLoanGiven(row)
	if err != nil {
		return core.LoanGiven{}, fmt.Errorf("create loan given: %w", err)
	}
	slog.InfoContext(ctx, "Loan given saved",
		"account_id", accountID,
		"loan_id", created.ID,
		"amount_cents", created.Amount.Cents)
	return created, nil
}

// GetLoanGiven returns the loan with its repayment totals.
func (r *Repository) GetLoanGiven(ctx context.Context, accountID, id int64) (core.LoanGivenBalance, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		SELECT `+loanGivenSelect+`, `+totalPaidExpr+`
		FROM loans_given lg
		WHERE lg.id = ? AND lg.account_id = ?`), id, accountID)
	b, err := scanLoanGivenBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LoanGivenBalance{}, core.ErrNotFound
	}
	if err != nil {
		return core.LoanGivenBalance{}, fmt.Errorf("get loan given %d: %w", id, err)
	}
	return b, nil
}

// UpdateLoanGiven rewrites the loan's descriptive fields. Installments are untouched.
func (r *Repository) UpdateLoanGiven(ctx context.Context, accountID int64, l core.LoanGiven) (core.LoanGiven, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		UPDATE loans_given
		SET borrower_name = ?, amount_cents = ?, due_date = ?, reminder_date = ?, status = ?, notes = ?
		WHERE id = ? AND account_id = ?
		RETURNING `+loanGivenColumns),
		strings.TrimSpace(l.BorrowerName), l.Amount.Cents, l.DueDate, l.ReminderDate, l.Status, nullString(l.Notes), l.ID, accountID,
	)
	updated, err := scanLoanGiven(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LoanGiven{}, core.ErrNotFound
	}
	if err != nil {
		return core.LoanGiven{}, fmt.Errorf("update loan given %d: %w", l.ID, err)
	}
	return updated, nil
}

const totalPaidExpr = `(SELECT CAST(COALESCE(SUM(p.amount_paid_cents), 0) AS BIGINT)
		   FROM loan_given_payments p WHERE p.loan_id = lg.id)`

func scanLoanGivenBalance(s rowScanner) (core.LoanGivenBalance, error) {
	var paid int64
	l, err := scanLoanGiven(s, &paid)
	if err != nil {
		return core.LoanGivenBalance{}, err
	}
	total := core.Money{Cents: paid}
	return core.LoanGivenBalance{
		LoanGiven: l,
		TotalPaid: total,
		Remaining: l.Amount.Sub(total),
	}, nil
}

// ListLoansGiven returns every loan given ordered by due date, each with
// total_paid and remaining derived from its installments.
func (r *Repository) ListLoansGiven(ctx context.Context, accountID int64) ([]core.LoanGivenBalance, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT `+loanGivenSelect+`, `+totalPaidExpr+`
		FROM loans_given lg
		WHERE lg.account_id = ?
		ORDER BY lg.due_date, lg.id`), accountID)
	if err != nil {
		return nil, fmt.Errorf("list loans given: %w", err)
	}
	defer rows.Close()

	loans := make([]core.LoanGivenBalance, 0)
	for rows.Next() {
		b, err := scanLoanGivenBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan given: %w", err)
		}
		loans = append(loans, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans given: %w", err)
	}
	return loans, nil
}

func loanGivenExists(ctx context.Context, q querier, dialect Dialect, accountID, loanID int64) error {
	var id int64
	err := q.QueryRowContext(ctx, dialect.Rebind(`SELECT id FROM loans_given WHERE id = ? AND account_id = ?`), loanID, accountID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup loan given %d: %w", loanID, err)
	}
	return nil
}

// UpsertInstallment records the payment for one month, replacing amount,
// payment date and notes when that month already has a row.
func (r *Repository) UpsertInstallment(ctx context.Context, accountID int64, p core.LoanGivenPayment) (core.LoanGivenPayment, error) {
	var saved core.LoanGivenPayment
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := loanGivenExists(ctx, tx, r.dialect, accountID, p.LoanID); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, r.q(`
			INSERT INTO loan_given_payments (loan_id, payment_month, amount_paid_cents, payment_date, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (loan_id, payment_month) DO UPDATE
			SET amount_paid_cents = excluded.amount_paid_cents,
			    payment_date = excluded.payment_date,
			    notes = excluded.notes
			RETURNING `+installmentColumns),
			p.LoanID, p.PaymentMonth.String(), p.AmountPaid.Cents, p.PaymentDate, nullString(p.Notes), r.now(),
		)
		var err error
		saved, err = scanInstallment(row)
		if err != nil {
			return fmt.Errorf("upsert installment: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.LoanGivenPayment{}, err
	}

	slog.InfoContext(ctx, "Installment recorded",
		"account_id", accountID,
		"loan_id", saved.LoanID,
		"payment_month", saved.PaymentMonth.String(),
		"amount_cents", saved.AmountPaid.Cents)
	return saved, nil
}

// ListInstallments returns a loan's installments ordered by month.
func (r *Repository) ListInstallments(ctx context.Context, accountID, loanID int64) ([]core.LoanGivenPayment, error) {
	if err := loanGivenExists(ctx, r.db, r.dialect, accountID, loanID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT `+installmentColumns+` FROM loan_given_payments
		WHERE loan_id = ?
		ORDER BY payment_month`), loanID)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	payments := make([]core.LoanGivenPayment, 0)
	for rows.Next() {
		p, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installments: %w", err)
	}
	return payments, nil
}

// GetInstallment looks up a single installment owned by the account.
func (r *Repository) GetInstallment(ctx context.Context, accountID, id int64) (core.LoanGivenPayment, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		SELECT p.id, p.loan_id, p.payment_month, p.amount_paid_cents, p.payment_date, p.notes
		FROM loan_given_payments p
		JOIN loans_given lg ON lg.id = p.loan_id
		WHERE p.id = ? AND lg.account_id = ?`), id, accountID)
	p, err := scanInstallment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LoanGivenPayment{}, core.ErrNotFound
	}
	if err != nil {
		return core.LoanGivenPayment{}, fmt.Errorf("get installment %d: %w", id, err)
	}
	return p, nil
}
