package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRandomTokenLength(t *testing.T) {
	tok, err := randomToken(16)
	if err != nil {
		t.Fatal(err)
	}
	if len(tok) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(tok))
	}
}

func TestShutdownHandlerGuards(t *testing.T) {
	token := "secret"

	cases := []struct {
		name    string
		method  string
		remote  string
		token   string
		want    int
		stopped bool
	}{
		{"wrong method", http.MethodGet, "127.0.0.1:1234", "secret", http.StatusMethodNotAllowed, false},
		{"remote host", http.MethodPost, "10.0.0.5:1234", "secret", http.StatusForbidden, false},
		{"bad token", http.MethodPost, "127.0.0.1:1234", "nope", http.StatusUnauthorized, false},
		{"ok", http.MethodPost, "127.0.0.1:1234", "secret", http.StatusOK, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stopped := false
			h := shutdownHandler(&token, func() { stopped = true })

			req := httptest.NewRequest(tc.method, "/shutdown", nil)
			req.RemoteAddr = tc.remote
			req.Header.Set("X-Shutdown-Token", tc.token)
			rec := httptest.NewRecorder()
			h(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if stopped != tc.stopped {
				t.Fatalf("expected stopped=%v, got %v", tc.stopped, stopped)
			}
		})
	}
}
