package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bizpermit/permitdesk/internal/auth"
	"github.com/bizpermit/permitdesk/internal/model"
)

func TestRequireScope(t *testing.T) {
	tests := []struct {
		name       string
		authCtx    *model.AuthContext
		required   []string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "read scope allows read",
			authCtx:    &model.AuthContext{UserID: "u1", Role: model.RoleUser, Scopes: []string{model.ScopeRead}},
			required:   []string{model.ScopeRead},
			wantStatus: http.StatusOK,
		},
		{
			name:       "read scope cannot write",
			authCtx:    &model.AuthContext{UserID: "u1", Role: model.RoleUser, Scopes: []string{model.ScopeRead}},
			required:   []string{model.ScopeWrite},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "admin role does not imply scopes",
			authCtx:    &model.AuthContext{UserID: "a1", Role: model.RoleAdmin, Scopes: []string{model.ScopeRead}},
			required:   []string{model.ScopeWrite},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "any listed scope is enough",
			authCtx:    &model.AuthContext{UserID: "u1", Role: model.RoleUser, Scopes: []string{model.ScopeWrite}},
			required:   []string{model.ScopeRead, model.ScopeWrite},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no auth context",
			required:   []string{model.ScopeRead},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireScope(tc.required...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
			if tc.authCtx != nil {
				req = req.WithContext(auth.ContextWithAuth(req.Context(), tc.authCtx))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantCode == "" {
				return
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", body.Error.Code, tc.wantCode)
			}
		})
	}
}

func TestRequireReadWrite(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	authCtx := &model.AuthContext{UserID: "u1", Role: model.RoleUser, Scopes: []string{model.ScopeRead}}

	for _, tc := range []struct {
		name string
		mw   func(http.Handler) http.Handler
		want int
	}{
		{"read", RequireRead(), http.StatusOK},
		{"write", RequireWrite(), http.StatusForbidden},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(auth.ContextWithAuth(req.Context(), authCtx))
			rec := httptest.NewRecorder()
			tc.mw(ok).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
