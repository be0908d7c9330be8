package http

import (
	"bytes"
	"fmt"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/export"
	applog "ledger/internal/log"
)

// writeWorkbook sends a rendered xlsx as an attachment.
func writeWorkbook(w http.ResponseWriter, filename string, buf *bytes.Buffer) {
	NewJSONResponse().
		Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename)).
		Raw(export.ContentType, buf.Bytes()).
		Write(w)
}

func (s *Server) handleExportLoansGiven(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpExport)
		return
	}
	loans, err := s.ledger.ListLoansGiven(r.Context(), accountID)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpExport)
		return
	}
	var buf bytes.Buffer
	if err := export.LoansGiven(&buf, loans); err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpExport)
		return
	}
	writeWorkbook(w, "loans-given.xlsx", &buf)
}

func (s *Server) handleExportLoansToPay(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpExport)
		return
	}
	loans, err := s.ledger.ListLoansToPay(r.Context(), accountID)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpExport)
		return
	}
	var buf bytes.Buffer
	if err := export.LoansToPay(&buf, loans); err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpExport)
		return
	}
	writeWorkbook(w, "loans-to-pay.xlsx", &buf)
}

func (s *Server) handleExportEntries(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.accountID(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpExport)
		return
	}
	from, to, err := queryRange(r)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpExport)
		return
	}
	entries, err := s.ledger.ListEntriesInRange(r.Context(), accountID, from, to)
	if err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpExport)
		return
	}
	// Totals come from the exported rows so the sheet is self-consistent.
	summary := core.SummarizeEntries(from, to, entries)
	var buf bytes.Buffer
	if err := export.Entries(&buf, entries, summary); err != nil {
		s.fail(w, r, err, msgNotFound, applog.OpExport)
		return
	}
	writeWorkbook(w, fmt.Sprintf("entries-%s-%s.xlsx", from, to), &buf)
}
