package http

import (
	"net/http"

	"ledger/internal/core"
	applog "ledger/internal/log"
)

// --- loans given ---

func parseLoanGiven(w http.ResponseWriter, r *http.Request) (core.LoanGiven, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return core.LoanGiven{}, err
	}
	if err := p.Require("borrower_name", "amount", "due_date"); err != nil {
		return core.LoanGiven{}, err
	}
	amount, err := p.Money("amount", "Invalid amount")
	if err != nil {
		return core.LoanGiven{}, err
	}
	due, err := p.Date("due_date", "Invalid due_date")
	if err != nil {
		return core.LoanGiven{}, err
	}
	reminder, err := p.Date("reminder_date", "Invalid reminder_date")
	if err != nil {
		return core.LoanGiven{}, err
	}
	return core.LoanGiven{
		BorrowerName: p.Get("borrower_name"),
		Amount:       amount,
		DueDate:      due,
		ReminderDate: reminder,
		Status:       p.Get("status"),
		Notes:        p.OptionalString("notes"),
	}, nil
}

func (s *Server) handleListLoansGiven(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpList)
		return
	}
	loans, err := s.ledger.ListLoansGiven(r.Context(), accountID)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpList)
		return
	}
	NewJSONResponse().JSON(nonNil(loans)).Write(w)
}

func (s *Server) handleGetLoanGiven(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpRead)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpRead)
		return
	}
	loan, err := s.ledger.GetLoanGiven(r.Context(), accountID, id)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpRead)
		return
	}
	NewJSONResponse().JSON(loan).Write(w)
}

func (s *Server) handleCreateLoanGiven(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpCreate)
		return
	}
	loan, err := parseLoanGiven(w, r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpCreate)
		return
	}
	created, err := s.ledger.CreateLoanGiven(r.Context(), accountID, loan)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpCreate)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Loan given created",
		applog.NewFields().WithAccount(accountID).WithLoan(created.ID, created.Amount.Cents).ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).JSON(created).Write(w)
}

func (s *Server) handleUpdateLoanGiven(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpdate)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpdate)
		return
	}
	loan, err := parseLoanGiven(w, r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpdate)
		return
	}
	loan.ID = id
	updated, err := s.ledger.UpdateLoanGiven(r.Context(), accountID, loan)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpdate)
		return
	}
	NewJSONResponse().JSON(updated).Write(w)
}

func (s *Server) handleListInstallments(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpList)
		return
	}
	loanID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpList)
		return
	}
	payments, err := s.ledger.ListInstallments(r.Context(), accountID, loanID)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpList)
		return
	}
	NewJSONResponse().JSON(nonNil(payments)).Write(w)
}

func (s *Server) handleRecordInstallment(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpsert)
		return
	}
	loanID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpsert)
		return
	}

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpsert)
		return
	}
	if err := p.Require("payment_month", "amount_paid"); err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpsert)
		return
	}
	month, err := p.Month("payment_month", "Invalid payment_month, expected YYYY-MM")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpsert)
		return
	}
	amount, err := p.Money("amount_paid", "Invalid amount_paid")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpsert)
		return
	}
	paidOn, err := p.Date("payment_date", "Invalid payment_date")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpsert)
		return
	}

	saved, err := s.ledger.RecordInstallment(r.Context(), accountID, core.LoanGivenPayment{
		LoanID:       loanID,
		PaymentMonth: month,
		AmountPaid:   amount,
		PaymentDate:  paidOn,
		Notes:        p.OptionalString("notes"),
	})
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpUpsert)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Installment recorded",
		applog.NewFields().WithAccount(accountID).WithLoan(loanID, saved.AmountPaid.Cents).ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).JSON(saved).Write(w)
}

// --- loans to pay ---

func (s *Server) handleListLoansToPay(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpList)
		return
	}
	loans, err := s.ledger.ListLoansToPay(r.Context(), accountID)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpList)
		return
	}
	NewJSONResponse().JSON(nonNil(loans)).Write(w)
}

func (s *Server) handleGetLoanToPay(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpRead)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpRead)
		return
	}
	loan, err := s.ledger.GetLoanToPay(r.Context(), accountID, id)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpRead)
		return
	}
	NewJSONResponse().JSON(loan).Write(w)
}

func (s *Server) handleCreateLoanToPay(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpCreate)
		return
	}

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpCreate)
		return
	}
	if err := p.Require("lender_name", "original_principal", "interest_rate"); err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpCreate)
		return
	}
	principal, err := p.Money("original_principal", "Invalid original_principal")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpCreate)
		return
	}
	rate, err := p.Rate("interest_rate", "Invalid interest_rate")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpCreate)
		return
	}
	due, err := p.Date("due_date", "Invalid due_date")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpCreate)
		return
	}

	created, err := s.ledger.CreateLoanToPay(r.Context(), accountID, core.LoanToPay{
		LenderName:        p.Get("lender_name"),
		OriginalPrincipal: principal,
		InterestRate:      rate,
		DueDate:           due,
		Status:            p.Get("status"),
		Notes:             p.OptionalString("notes"),
	})
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpCreate)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Loan to pay created",
		applog.NewFields().WithAccount(accountID).WithLoan(created.ID, created.OriginalPrincipal.Cents).ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).JSON(created).Write(w)
}

func (s *Server) handleListPaydowns(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpList)
		return
	}
	loanID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpList)
		return
	}
	payments, err := s.ledger.ListPaydowns(r.Context(), accountID, loanID)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpList)
		return
	}
	NewJSONResponse().JSON(nonNil(payments)).Write(w)
}

func (s *Server) handleRecordPaydown(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpPaydown)
		return
	}
	loanID, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpPaydown)
		return
	}

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpPaydown)
		return
	}
	if err := p.Require("principal_paid"); err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpPaydown)
		return
	}
	paid, err := p.Money("principal_paid", "Invalid principal_paid")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpPaydown)
		return
	}
	paidOn, err := p.Date("payment_date", "Invalid payment_date")
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpPaydown)
		return
	}

	saved, err := s.ledger.RecordPaydown(r.Context(), accountID, core.LoanToPayPayment{
		LoanID:        loanID,
		PrincipalPaid: paid,
		PaymentDate:   paidOn,
		Notes:         p.OptionalString("notes"),
	})
	if err != nil {
		s.fail(w, r, err, msgLoanNotFound, applog.OpPaydown)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Paydown recorded",
		applog.NewFields().WithAccount(accountID).WithLoan(loanID, saved.PrincipalPaid.Cents).ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).JSON(saved).Write(w)
}
