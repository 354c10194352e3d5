package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalAPIKeyMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
	}{
		{name: "valid key", configured: "secret-key", provided: "secret-key", wantStatus: http.StatusNoContent},
		{name: "wrong key", configured: "secret-key", provided: "other-key", wantStatus: http.StatusUnauthorized},
		{name: "missing key", configured: "secret-key", provided: "", wantStatus: http.StatusUnauthorized},
		{name: "unconfigured locks down", configured: "", provided: "anything", wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := InternalAPIKeyMiddleware(tt.configured)(next)
			req := httptest.NewRequest("POST", "/internal/payouts", nil)
			if tt.provided != "" {
				req.Header.Set("X-Internal-API-Key", tt.provided)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhooks/gateway", nil)
	req.RemoteAddr = "10.0.0.5:41234"
	if got := clientIP(req); got != "10.0.0.5" {
		t.Fatalf("expected remote addr host, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.5")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded address, got %q", got)
	}
}
