package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bizpermit/permitdesk/internal/auth"
	"github.com/bizpermit/permitdesk/internal/cache"
	"github.com/bizpermit/permitdesk/internal/model"
	"github.com/bizpermit/permitdesk/internal/repository"
)

func newAccountService(t *testing.T) (*AccountService, *repository.MemoryStore, *cache.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := repository.NewMemoryStore()
	c := cache.NewWithClient(client)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAccountService(store, c, logger, auth.EnvTest), store, c
}

func TestRegisterAndLogin(t *testing.T) {
	svc, store, _ := newAccountService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, "  Juan@Example.COM ", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if session.User.Email != "juan@example.com" {
		t.Errorf("email not normalized: %q", session.User.Email)
	}
	if session.User.Role != model.RoleUser {
		t.Errorf("role = %s, want user", session.User.Role)
	}
	if strings.Contains(session.User.PasswordHash, "correct horse") ||
		!strings.HasPrefix(session.User.PasswordHash, "$argon2id$") {
		t.Errorf("password not hashed: %q", session.User.PasswordHash)
	}
	if !strings.HasPrefix(session.Key.Plaintext, "pk_test_") {
		t.Errorf("unexpected key: %q", session.Key.Plaintext)
	}

	keys, err := store.GetAPIKeysByPrefix(ctx, session.Key.Key.KeyPrefix)
	if err != nil || len(keys) != 1 || keys[0].UserRole != model.RoleUser {
		t.Fatalf("issued key not stored with role: %v %v", keys, err)
	}

	if _, err := svc.Register(ctx, "juan@example.com", "another pass"); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate email: expected ErrConflict, got %v", err)
	}

	login, err := svc.Login(ctx, "JUAN@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.User.ID != session.User.ID || login.Key.Key.ID == session.Key.Key.ID {
		t.Errorf("login should issue a fresh key for the same user")
	}

	_, wrongPassword := svc.Login(ctx, "juan@example.com", "wrong horse")
	_, unknownEmail := svc.Login(ctx, "nobody@example.com", "correct horse")
	if !errors.Is(wrongPassword, ErrUnauthorized) || !errors.Is(unknownEmail, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v / %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Errorf("login failures must be indistinguishable: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newAccountService(t)

	tests := []struct {
		name       string
		email      string
		password   string
		wantFields []string
	}{
		{"bad_email", "not-an-email", "long enough", []string{"email"}},
		{"display_name_form", "Juan <juan@example.com>", "long enough", []string{"email"}},
		{"short_password", "a@example.com", "short", []string{"password"}},
		{"long_password", "a@example.com", strings.Repeat("p", auth.MaxPasswordLen+1), []string{"password"}},
		{"both", "", "", []string{"email", "password"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), test.email, test.password)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if strings.Join(verr.Fields, ",") != strings.Join(test.wantFields, ",") {
				t.Errorf("fields = %v, want %v", verr.Fields, test.wantFields)
			}
		})
	}
}

func TestAPIKeyManagement(t *testing.T) {
	svc, store, c := newAccountService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, "owner@example.com", "password123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	owner := &model.Actor{UserID: session.User.ID, Role: session.User.Role}
	stranger := &model.Actor{UserID: "someone-else", Role: model.RoleUser}

	if _, err := svc.CreateKey(ctx, owner, model.APIKeyCreateRequest{Scopes: []string{"admin"}}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown scope: expected ErrValidation, got %v", err)
	}

	issued, err := svc.CreateKey(ctx, owner, model.APIKeyCreateRequest{Name: "ci", Scopes: []string{model.ScopeRead}})
	if err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}
	if issued.Key.Name != "ci" || !issued.Key.HasScope(model.ScopeRead) || issued.Key.HasScope(model.ScopeWrite) {
		t.Errorf("unexpected key: %+v", issued.Key)
	}

	keys, err := svc.ListKeys(ctx, owner)
	if err != nil || len(keys) != 2 {
		t.Fatalf("ListKeys: %d keys, err %v", len(keys), err)
	}

	if err := c.SetAuthContext(ctx, "cached-hash", &model.AuthContext{KeyID: issued.Key.ID, UserID: owner.UserID, Role: owner.Role}); err != nil {
		t.Fatalf("SetAuthContext failed: %v", err)
	}

	if err := svc.RevokeKey(ctx, stranger, issued.Key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("stranger revoke: expected ErrNotFound, got %v", err)
	}
	if err := svc.RevokeKey(ctx, owner, issued.Key.ID); err != nil {
		t.Fatalf("RevokeKey failed: %v", err)
	}
	if err := svc.RevokeKey(ctx, owner, issued.Key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second revoke: expected ErrNotFound, got %v", err)
	}

	stored, _ := store.GetAPIKeyByID(ctx, issued.Key.ID)
	if !stored.IsRevoked() {
		t.Error("key not revoked in store")
	}
	if cached, _ := c.GetAuthContext(ctx, "cached-hash"); cached != nil {
		t.Error("cached auth context survived revocation")
	}

	if _, err := svc.ListKeys(ctx, nil); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
