package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWildcardPreflight(t *testing.T) {
	h := Middleware(DefaultConfig())(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/entries", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Methods") == "" || rr.Header().Get("Access-Control-Max-Age") != "43200" {
		t.Fatalf("preflight headers missing: %v", rr.Header())
	}
}

func TestAllowList(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowOrigins = []string{"https://app.example"}
	h := Middleware(cfg)(okHandler())

	tests := []struct {
		name       string
		origin     string
		method     string
		preflight  bool
		wantStatus int
		wantOrigin string
	}{
		{"allowed simple", "https://app.example", http.MethodGet, false, http.StatusOK, "https://app.example"},
		{"allowed preflight", "https://app.example", http.MethodOptions, true, http.StatusNoContent, "https://app.example"},
		{"denied simple", "https://evil.example", http.MethodGet, false, http.StatusOK, ""},
		{"denied preflight", "https://evil.example", http.MethodOptions, true, http.StatusForbidden, ""},
		{"no origin", "", http.MethodGet, false, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/summary", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "GET")
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}
