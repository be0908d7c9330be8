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

const loanToPayColumns = `id, lender_name, original_principal_cents, current_principal_cents, interest_rate, due_date, status, notes, created_at`

const paydownColumns = `id, loan_id, principal_before_cents, principal_paid_cents, principal_after_cents, interest_rate, payment_date, notes, created_at`

func scanLoanToPay(s rowScanner) (core.LoanToPay, error) {
	var (
		l                 core.LoanToPay
		original, current int64
		notes             sql.NullString
	)
	if err := s.Scan(&l.ID, &l.LenderName, &original, &current, &l.InterestRate, &l.DueDate, &l.Status, &notes, timestamp{&l.CreatedAt}); err != nil {
		return core.LoanToPay{}, err
	}
	l.OriginalPrincipal = core.Money{Cents: original}
	l.CurrentPrincipal = core.Money{Cents: current}
	l.Notes = stringPtr(notes)
	return l, nil
}

func scanPaydown(s rowScanner) (core.LoanToPayPayment, error) {
	var (
		p                   core.LoanToPayPayment
		before, paid, after int64
		notes               sql.NullString
	)
	if err := s.Scan(&p.ID, &p.LoanID, &before, &paid, &after, &p.InterestRate, &p.PaymentDate, &notes, timestamp{&p.CreatedAt}); err != nil {
		return core.LoanToPayPayment{}, err
	}
	p.PrincipalBefore = core.Money{Cents: before}
	p.PrincipalPaid = core.Money{Cents: paid}
	p.PrincipalAfter = core.Money{Cents: after}
	p.Notes = stringPtr(notes)
	return p, nil
}

// CreateLoanToPay inserts a loan whose current principal starts at the original.
func (r *Repository) CreateLoanToPay(ctx context.Context, accountID int64, l core.LoanToPay) (core.LoanToPay, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO loans_to_pay (account_id, lender_name, original_principal_cents, current_principal_cents,
		                          interest_rate, due_date, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+loanToPayColumns),
		accountID, strings.TrimSpace(l.LenderName), l.OriginalPrincipal.Cents, l.OriginalPrincipal.Cents,
		l.InterestRate, l.DueDate, l.Status, nullString(l.Notes), r.now(),
	)
	created, err := scanLoanToPay(row)
	if err != nil {
		return core.LoanToPay{}, fmt.Errorf("create loan to pay: %w", err)
	}
	slog.InfoContext(ctx, "Loan to pay saved",
		"account_id", accountID,
		"loan_id", created.ID,
		"amount_cents", created.OriginalPrincipal.Cents)
	return created, nil
}

func (r *Repository) GetLoanToPay(ctx context.Context, accountID, id int64) (core.LoanToPay, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		SELECT `+loanToPayColumns+` FROM loans_to_pay WHERE id = ? AND account_id = ?`), id, accountID)
	l, err := scanLoanToPay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LoanToPay{}, core.ErrNotFound
	}
	if err != nil {
		return core.LoanToPay{}, fmt.Errorf("get loan to pay %d: %w", id, err)
	}
	return l, nil
}

// ListLoansToPay orders active loans before paid-off ones, then by due date.
func (r *Repository) ListLoansToPay(ctx context.Context, accountID int64) ([]core.LoanToPay, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT `+loanToPayColumns+` FROM loans_to_pay
		WHERE account_id = ?
		ORDER BY status, due_date, id`), accountID)
	if err != nil {
		return nil, fmt.Errorf("list loans to pay: %w", err)
	}
	defer rows.Close()

	loans := make([]core.LoanToPay, 0)
	for rows.Next() {
		l, err := scanLoanToPay(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan to pay: %w", err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans to pay: %w", err)
	}
	return loans, nil
}

// RecordPaydown applies a principal payment atomically: it locks the loan
// row, rejects overpayment, appends the audit row and updates the balance
// and status. Nothing is written when an error is returned.
func (r *Repository) RecordPaydown(ctx context.Context, accountID int64, p core.LoanToPayPayment) (core.LoanToPayPayment, error) {
	var saved core.LoanToPayPayment
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var (
			current int64
			rate    core.Rate
		)
		err := tx.QueryRowContext(ctx, r.q(`
			SELECT current_principal_cents, interest_rate
			FROM loans_to_pay
			WHERE id = ? AND account_id = ?`+r.dialect.ForUpdate()), p.LoanID, accountID).Scan(&current, &rate)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock loan to pay %d: %w", p.LoanID, err)
		}

		res, err := core.ApplyPaydown(core.Money{Cents: current}, p.PrincipalPaid)
		if err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, r.q(`
			INSERT INTO loan_to_pay_payments (loan_id, principal_before_cents, principal_paid_cents, principal_after_cents,
			                                  interest_rate, payment_date, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING `+paydownColumns),
			p.LoanID, res.Before.Cents, res.Paid.Cents, res.After.Cents, rate, p.PaymentDate, nullString(p.Notes), r.now(),
		)
		saved, err = scanPaydown(row)
		if err != nil {
			return fmt.Errorf("insert paydown: %w", err)
		}

		upd, err := tx.ExecContext(ctx, r.q(`
			UPDATE loans_to_pay SET current_principal_cents = ?, status = ?
			WHERE id = ? AND account_id = ?`),
			res.After.Cents, res.Status, p.LoanID, accountID)
		if err != nil {
			return fmt.Errorf("update principal: %w", err)
		}
		return rowsAffected(upd, core.ErrNotFound)
	})
	if err != nil {
		return core.LoanToPayPayment{}, err
	}

	slog.InfoContext(ctx, "Paydown recorded",
		"account_id", accountID,
		"loan_id", saved.LoanID,
		"principal_paid_cents", saved.PrincipalPaid.Cents,
		"principal_after_cents", saved.PrincipalAfter.Cents)
	return saved, nil
}

// ListPaydowns returns a loan's paydown history, newest first.
func (r *Repository) ListPaydowns(ctx context.Context, accountID, loanID int64) ([]core.LoanToPayPayment, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.q(`SELECT id FROM loans_to_pay WHERE id = ? AND account_id = ?`), loanID, accountID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup loan to pay %d: %w", loanID, err)
	}

	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT `+paydownColumns+` FROM loan_to_pay_payments
		WHERE loan_id = ?
		ORDER BY payment_date DESC, id DESC`), loanID)
	if err != nil {
		return nil, fmt.Errorf("list paydowns: %w", err)
	}
	defer rows.Close()

	payments := make([]core.LoanToPayPayment, 0)
	for rows.Next() {
		p, err := scanPaydown(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paydown: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paydowns: %w", err)
	}
	return payments, nil
}

// GetPaydown looks up a single paydown owned by the account.
func (r *Repository) GetPaydown(ctx context.Context, accountID, id int64) (core.LoanToPayPayment, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		SELECT p.id, p.loan_id, p.principal_before_cents, p.principal_paid_cents, p.principal_after_cents,
		       p.interest_rate, p.payment_date, p.notes, p.created_at
		FROM loan_to_pay_payments p
		JOIN loans_to_pay l ON l.id = p.loan_id
		WHERE p.id = ? AND l.account_id = ?`), id, accountID)
	p, err := scanPaydown(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LoanToPayPayment{}, core.ErrNotFound
	}
	if err != nil {
		return core.LoanToPayPayment{}, fmt.Errorf("get paydown %d: %w", id, err)
	}
	return p, nil
}
