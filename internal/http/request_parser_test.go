package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledger/internal/core"
)

func newParser(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func TestRequestBodyParser_JSONAndForm(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantJSON    bool
	}{
		{"json", "application/json", `{"category":" food ","amount":12.34,"note":null}`, true},
		{"json without header", "", `{"category":"food","amount":"12.34"}`, true},
		{"form", "application/x-www-form-urlencoded", "category=food&amount=12%2C34", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(t, tt.contentType, tt.body)
			if p.IsJSON() != tt.wantJSON {
				t.Fatalf("IsJSON = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			if got := p.Get("category"); got != "food" {
				t.Errorf("category = %q, want food", got)
			}
			m, err := p.Money("amount", "bad")
			if err != nil || m.Cents != 1234 {
				t.Errorf("amount = %v, %v; want 1234 cents", m.Cents, err)
			}
			if p.OptionalString("note") != nil {
				t.Errorf("note should be nil")
			}
		})
	}
}

func TestRequestBodyParser_LargeNumbersKeepPrecision(t *testing.T) {
	p := newParser(t, "application/json", `{"amount":12345678901234.57}`)
	m, err := p.Money("amount", "bad")
	if err != nil {
		t.Fatalf("Money: %v", err)
	}
	if m.Cents != 1234567890123457 {
		t.Fatalf("cents = %d", m.Cents)
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":`))
	req.Header.Set("Content-Type", "application/json")
	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	err := p.Parse()
	if err == nil || err.Error() != msgInvalidBody {
		t.Fatalf("Parse err = %v, want %q", err, msgInvalidBody)
	}
	if again := p.Parse(); again != err {
		t.Fatalf("second Parse should return the cached error")
	}

	big := strings.Repeat("a", maxBodyBytes+1)
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("note="+big))
	p = NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); !core.IsValidation(err) {
		t.Fatalf("oversized body err = %v, want validation error", err)
	}
}

func TestRequestBodyParser_TypedFields(t *testing.T) {
	p := newParser(t, "application/json",
		`{"date":"2024-02-29","bad_date":"2023-02-29","month":"2024-01","bad_month":"2024-1","rate":"5,25","neg":-1}`)

	if err := p.Require("date", "missing"); err == nil || err.Error() != msgMissingFields {
		t.Errorf("Require err = %v", err)
	}

	d, err := p.Date("date", "bad date")
	if err != nil || d.String() != "2024-02-29" {
		t.Errorf("Date = %v, %v", d, err)
	}
	if _, err := p.Date("bad_date", "bad date"); err == nil || err.Error() != "bad date" {
		t.Errorf("bad Date err = %v", err)
	}
	if d, err := p.Date("absent", "bad date"); err != nil || !d.IsEmpty() {
		t.Errorf("absent Date = %v, %v; want zero", d, err)
	}

	if m, err := p.Month("month", "bad month"); err != nil || m != "2024-01" {
		t.Errorf("Month = %v, %v", m, err)
	}
	if _, err := p.Month("bad_month", "bad month"); err == nil {
		t.Errorf("expected month error")
	}

	r, err := p.Rate("rate", "bad rate")
	if err != nil || !r.Equal(core.MustRate("5.25")) {
		t.Errorf("Rate = %v, %v", r, err)
	}
	if _, err := p.Rate("neg", "bad rate"); err == nil {
		t.Errorf("negative rate accepted")
	}
	if _, err := p.Money("neg", "bad money"); err == nil || err.Error() != "bad money" {
		t.Errorf("negative money err = %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  food  ", "food"},
		{"a\x00b\x07c", "abc"},
		{"line\nbreak\ttab", "line\nbreak\ttab"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
