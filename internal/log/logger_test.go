package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Format: "json", Component: ComponentLedger, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_ComponentAttached(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, slog.LevelInfo)

	l.Info("entry created", FieldEntryID, 7)
	l.WithComponent(ComponentStorage).Warn("slow query")
	l.Debug("hidden")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (debug filtered)", len(lines))
	}
	if lines[0][FieldComponent] != ComponentLedger {
		t.Fatalf("component = %v", lines[0][FieldComponent])
	}
	if lines[0][FieldEntryID] != float64(7) {
		t.Fatalf("entry_id = %v", lines[0][FieldEntryID])
	}
	if lines[1][FieldComponent] != ComponentStorage {
		t.Fatalf("component = %v", lines[1][FieldComponent])
	}
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected default logger: %+v", l)
	}
}

func TestMiddleware_RequestIDEnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, slog.LevelInfo)

	type key struct{}
	h := Middleware(base)(RequestIDMiddleware(func(ctx context.Context) string {
		id, _ := ctx.Value(key{}).(string)
		return id
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req = req.WithContext(context.WithValue(req.Context(), key{}, "abc"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0][FieldRequestID] != "abc" {
		t.Fatalf("unexpected log lines: %v", lines)
	}
}

func TestStructuredLogger_LevelsByStatus(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, slog.LevelInfo))
	req := httptest.NewRequest(http.MethodPost, "/api/loans-to-pay/1/payments", nil)

	sl.LogHTTPEnd(context.Background(), req, "r1", 201, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), req, "r2", 400, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), req, "r3", 500, 3, "10.0.0.1")
	sl.LogError(context.Background(), "paydown failed", errors.New("boom"), ComponentStorage, OpPaydown, NewFields().WithLoan(3, 500))

	lines := decodeLines(t, &buf)
	want := []string{"INFO", "WARN", "ERROR", "ERROR"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines", len(lines))
	}
	for i, w := range want {
		if lines[i]["level"] != w {
			t.Errorf("line %d level = %v, want %s", i, lines[i]["level"], w)
		}
	}
	last := lines[3]
	if last[FieldError] != "boom" || last[FieldOperation] != OpPaydown || last[FieldLoanID] != float64(3) {
		t.Fatalf("unexpected error line: %v", last)
	}
}
