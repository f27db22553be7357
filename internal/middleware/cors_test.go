package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		method         string
		wantStatus     int
		wantHeader     string
	}{
		{
			name:           "no origins configured blocks all",
			allowedOrigins: []string{},
			requestOrigin:  "https://portal.permitdesk.example",
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
			wantHeader:     "", // No CORS header
		},
		{
			name:           "allowed origin gets header",
			allowedOrigins: []string{"https://portal.permitdesk.example"},
			requestOrigin:  "https://portal.permitdesk.example",
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
			wantHeader:     "https://portal.permitdesk.example",
		},
		{
			name:           "disallowed origin blocked on preflight",
			allowedOrigins: []string{"https://portal.permitdesk.example"},
			requestOrigin:  "https://permitdesk.attacker.example",
			method:         http.MethodOptions,
			wantStatus:     http.StatusForbidden,
			wantHeader:     "",
		},
		{
			name:           "preflight returns no content",
			allowedOrigins: []string{"https://portal.permitdesk.example"},
			requestOrigin:  "https://portal.permitdesk.example",
			method:         http.MethodOptions,
			wantStatus:     http.StatusNoContent,
			wantHeader:     "https://portal.permitdesk.example",
		},
		{
			name:           "case insensitive origin match",
			allowedOrigins: []string{"HTTPS://PORTAL.PERMITDESK.EXAMPLE"},
			requestOrigin:  "https://portal.permitdesk.example",
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
			wantHeader:     "https://portal.permitdesk.example",
		},
		{
			name:           "wildcard matches subdomain",
			allowedOrigins: []string{"*.permits.gov.example"},
			requestOrigin:  "https://portal.permits.gov.example",
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
			wantHeader:     "https://portal.permits.gov.example",
		},
		{
			name:           "wildcard rejects lookalike domain",
			allowedOrigins: []string{"*.permits.gov.example"},
			requestOrigin:  "https://evilpermits.gov.example",
			method:         http.MethodOptions,
			wantStatus:     http.StatusForbidden,
			wantHeader:     "",
		},
		{
			name:           "no origin header skips CORS",
			allowedOrigins: []string{"https://portal.permitdesk.example"},
			requestOrigin:  "",
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
			wantHeader:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.allowedOrigins

			handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestCORSPreflightHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://portal.permitdesk.example"}
	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/applications/01ARZ3NDEKTSV4RRFFQ69G5FAV/status", nil)
	req.Header.Set("Origin", "https://portal.permitdesk.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPatch) {
		t.Errorf("Access-Control-Allow-Methods = %q, want PATCH for review", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-API-Key") {
		t.Errorf("Access-Control-Allow-Headers = %q, want X-API-Key", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Retry-After") {
		t.Errorf("Access-Control-Expose-Headers = %q, want Retry-After", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q, want 86400", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("credentials must never be allowed, got %q", got)
	}
}
