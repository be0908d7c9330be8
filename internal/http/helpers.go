package http

import (
	"net/http"
	"strconv"
	"strings"

	"ledger/internal/core"
)

// HeaderAccountID selects the account a request operates on.
const HeaderAccountID = "X-Account-ID"

// accountID reads X-Account-ID, falling back to the configured default.
func (s *Server) accountID(r *http.Request) (int64, error) {
	v := strings.TrimSpace(r.Header.Get(HeaderAccountID))
	if v == "" {
		return s.defaultAccountID, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, core.Invalid("account_id", msgInvalidAccount)
	}
	return id, nil
}

// pathID parses a positive integer path segment.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, core.Invalid(name, msgInvalidID)
	}
	return id, nil
}

// queryDate parses a required YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key, missing, invalid string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return core.Date{}, core.Invalid(key, missing)
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Invalid(key, invalid)
	}
	return d, nil
}

// queryRange parses the inclusive from/to range used by summary and export.
func queryRange(r *http.Request) (core.Date, core.Date, error) {
	const missing = "from and to parameters required"
	from, err := queryDate(r, "from", missing, "Invalid from date")
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	to, err := queryDate(r, "to", missing, "Invalid to date")
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	return from, to, core.ValidateRange(from, to)
}

// sanitizeInput removes control characters (except tab, newline, carriage
// return) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// nonNil keeps empty collections rendering as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
