package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccountID(t *testing.T) {
	s := &Server{defaultAccountID: 3}
	tests := []struct {
		header  string
		want    int64
		wantErr bool
	}{
		{"", 3, false},
		{"7", 7, false},
		{" 12 ", 12, false},
		{"0", 0, true},
		{"-4", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set(HeaderAccountID, tt.header)
		}
		got, err := s.accountID(req)
		if (err != nil) != tt.wantErr {
			t.Errorf("header %q: err = %v, wantErr %v", tt.header, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("header %q: got %d, want %d", tt.header, got, tt.want)
		}
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"x", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetPathValue("id", tt.value)
		got, err := pathID(req, "id")
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("pathID(%q) = %d, %v", tt.value, got, err)
		}
	}
}

func TestQueryRange(t *testing.T) {
	tests := []struct {
		query string
		msg   string
	}{
		{"from=2024-01-01&to=2024-01-31", ""},
		{"from=2024-01-01&to=2024-01-01", ""},
		{"to=2024-01-31", "from and to parameters required"},
		{"from=2024-01-01", "from and to parameters required"},
		{"from=2024-13-01&to=2024-01-31", "Invalid from date"},
		{"from=2024-02-01&to=2024-01-31", "from must not be after to"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		_, _, err := queryRange(req)
		switch {
		case tt.msg == "" && err != nil:
			t.Errorf("%s: unexpected error %v", tt.query, err)
		case tt.msg != "" && (err == nil || err.Error() != tt.msg):
			t.Errorf("%s: err = %v, want %q", tt.query, err, tt.msg)
		}
	}
}

func TestNonNil(t *testing.T) {
	if got := nonNil[int](nil); got == nil || len(got) != 0 {
		t.Fatalf("nonNil(nil) = %#v", got)
	}
	in := []int{1}
	if got := nonNil(in); &got[0] != &in[0] {
		t.Fatalf("nonNil should return the input slice")
	}
}
