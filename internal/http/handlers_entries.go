package http

import (
	"net/http"

	"ledger/internal/core"
	applog "ledger/internal/log"
)

// parseEntry reads the fields shared by create and update.
func parseEntry(w http.ResponseWriter, r *http.Request) (core.CashEntry, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return core.CashEntry{}, err
	}
	if err := p.Require("date", "type", "category", "amount"); err != nil {
		return core.CashEntry{}, err
	}
	date, err := p.Date("date", "Invalid date")
	if err != nil {
		return core.CashEntry{}, err
	}
	amount, err := p.Money("amount", msgInvalidTypeAmount)
	if err != nil {
		return core.CashEntry{}, err
	}
	return core.CashEntry{
		Date:     date,
		Type:     core.EntryType(p.Get("type")),
		Category: p.Get("category"),
		Amount:   amount,
		Note:     p.OptionalString("note"),
	}, nil
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpList)
		return
	}
	date, err := queryDate(r, "date", "date parameter required", "Invalid date")
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpList)
		return
	}
	entries, err := s.ledger.ListEntriesByDate(r.Context(), accountID, date)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpList)
		return
	}
	NewJSONResponse().JSON(nonNil(entries)).Write(w)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpRead)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpRead)
		return
	}
	entry, err := s.ledger.GetEntry(r.Context(), accountID, id)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpRead)
		return
	}
	NewJSONResponse().JSON(entry).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpCreate)
		return
	}
	entry, err := parseEntry(w, r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpCreate)
		return
	}
	created, err := s.ledger.CreateEntry(r.Context(), accountID, entry)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpCreate)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Entry created",
		applog.NewFields().WithAccount(accountID).WithEntry(created.ID, created.Amount.Cents).ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).JSON(created).Write(w)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpUpdate)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpUpdate)
		return
	}
	entry, err := parseEntry(w, r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpUpdate)
		return
	}
	entry.ID = id
	updated, err := s.ledger.UpdateEntry(r.Context(), accountID, entry)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpUpdate)
		return
	}
	NewJSONResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpDelete)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpDelete)
		return
	}
	if err := s.ledger.DeleteEntry(r.Context(), accountID, id); err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpDelete)
		return
	}
	NewJSONResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpSummary)
		return
	}
	from, to, err := queryRange(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpSummary)
		return
	}
	summary, err := s.ledger.Summary(r.Context(), accountID, from, to)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpSummary)
		return
	}
	NewJSONResponse().JSON(summary).Write(w)
}
