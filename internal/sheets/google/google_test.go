package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"ledger/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Journal")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	for _, k := range []string{
		"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS",
		"GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	_, err := newSheetsService(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
	if !strings.Contains(err.Error(), ErrNoOAuthClient.Error()) {
		t.Fatalf("expected oauth fallback error, got %v", err)
	}
}

func TestNewSheetsService_UnreadableFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/credentials.json")
	_, err := newSheetsService(context.Background())
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file error, got %v", err)
	}
}

func TestFormatJournalRow(t *testing.T) {
	row := core.JournalRow{
		RecordedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		AccountID:  1,
		Kind:       core.JournalEntry,
		Action:     "created",
		RecordID:   7,
		Date:       core.NewDate(2024, 1, 2),
		Category:   "food",
		Amount:     core.Money{Cents: -1250},
		Note:       "lunch",
	}
	got := formatJournalRow(row)
	want := []any{"2024-01-02T03:04:05Z", int64(1), "entry", "created", int64(7), "", "2024-01-02", "food", "-12.50", "lunch"}
	if len(got) != len(want) || len(got) != len(journalHeader) {
		t.Fatalf("column count: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d: got %#v want %#v", i, got[i], want[i])
		}
	}
}

// fakeSheets emulates the three Values endpoints the client calls.
type fakeSheets struct {
	mu       sync.Mutex
	header   []any
	appended [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	body, _ := io.ReadAll(r.Body)
	var vr gsheet.ValueRange
	if len(body) > 0 {
		_ = json.Unmarshal(body, &vr)
	}

	switch {
	case r.Method == http.MethodGet:
		resp := gsheet.ValueRange{Range: "Journal!A1:J1"}
		if f.header != nil {
			resp.Values = [][]any{f.header}
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPut:
		f.header = vr.Values[0]
		_ = json.NewEncoder(w).Encode(gsheet.UpdateValuesResponse{UpdatedRange: "Journal!A1:J1"})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		f.appended = append(f.appended, vr.Values...)
		_ = json.NewEncoder(w).Encode(gsheet.AppendValuesResponse{
			Updates: &gsheet.UpdateValuesResponse{UpdatedRange: "Journal!A2:J2"},
		})
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func TestAppendJournal_WritesHeaderOnce(t *testing.T) {
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	c := newWithService(svc, "sheet-id", "")

	row := core.JournalRow{AccountID: 1, Kind: core.JournalPaydown, Action: "recorded", RecordID: 3, LoanID: 9, Amount: core.Money{Cents: -5000}}
	for i := 0; i < 2; i++ {
		ref, err := c.AppendJournal(context.Background(), row)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if ref != "Journal!A2:J2" {
			t.Fatalf("unexpected ref %q", ref)
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.header) != len(journalHeader) || fake.header[0] != "recorded_at" {
		t.Fatalf("header not written: %v", fake.header)
	}
	if len(fake.appended) != 2 || fake.appended[0][5] != "9" || fake.appended[0][8] != "-50.00" {
		t.Fatalf("unexpected appended rows: %v", fake.appended)
	}
}

func TestAppendJournal_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheetName: "Journal"}
	if _, err := c.AppendJournal(context.Background(), core.JournalRow{}); err == nil {
		t.Fatalf("expected error without service")
	}
}
